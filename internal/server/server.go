package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

type Server struct {
	port          uint
	httpLog       bool
	rootContext   *actor.RootContext
	masterActor   *actor.PID
	actorTimeout  time.Duration
	commandExpiry time.Duration
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID) *http.Server {
	NewServer := newServer(cfg, rootContext, masterActor)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: NewServer.commandExpiry + 5*time.Second,
	}

	return server
}

func newServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID) *Server {
	return &Server{
		port:          cfg.Port,
		rootContext:   rootContext,
		masterActor:   masterActor,
		httpLog:       cfg.HttpLog,
		actorTimeout:  cfg.Relay.Timeout() + 3*time.Second,
		commandExpiry: cfg.Relay.Timeout() + cfg.Relay.CycleTime() + 3*time.Second,
	}
}
