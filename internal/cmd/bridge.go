package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/dinrelay2mqtt/internal/adapter/actor"
	"github.com/berfenger/dinrelay2mqtt/internal/adapter/influx"
	"github.com/berfenger/dinrelay2mqtt/internal/config"
	"github.com/berfenger/dinrelay2mqtt/internal/core/actor"
	"github.com/berfenger/dinrelay2mqtt/internal/core/port"
	"github.com/berfenger/dinrelay2mqtt/internal/core/service"
	"github.com/berfenger/dinrelay2mqtt/internal/server"
	"github.com/berfenger/dinrelay2mqtt/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// The `bridge` command is the long running service.
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the MQTT bridge and the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runBridge(cfg)
	},
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func runBridge(cfg *config.Config) error {

	logger := newLogger(cfg)
	defer logger.Sync()

	logger.Info("bridge: starting", zap.Any("config", config.SafeCopy(*cfg)))

	client, err := service.NewRelayClient(cfg.Relay, logger)
	if err != nil {
		return err
	}

	// registration fails closed, nothing is published for an unverified unit
	switches, err := service.SetupOutlets(cfg.Relay, client, logger)
	if err != nil {
		client.Close()
		return err
	}

	eventStream := &eventstream.EventStream{}

	if cfg.InfluxDB.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		history, err := influx.NewOutletHistory(ctx, cfg.InfluxDB, logger)
		cancel()
		if err != nil {
			logger.Error("bridge: outlet history disabled", zap.Error(err))
		} else {
			history.Subscribe(eventStream)
			defer history.Close()
		}
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(*cfg, eventStream, relayActorProvider(cfg, client, switches, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return err
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	if err := ctx.StopFuture(pid).Wait(); err != nil {
		logger.Warn("bridge: stop master", zap.Error(err))
	}
	as.Shutdown()
	return nil
}

func relayActorProvider(cfg *config.Config, client port.RelayClient, switches []*service.RelaySwitch, logger *zap.Logger) actor.RelayActorProvider {
	return func() *adactor.RelayActor {
		return adactor.NewRelayActor(cfg.Relay, client, switches, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}
