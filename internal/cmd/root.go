// Package cmd holds the dinrelay2mqtt command line. Each subcommand only
// parses arguments and hands off to the config, service and actor packages.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/berfenger/dinrelay2mqtt/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

// The root command runs the bridge when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "dinrelay2mqtt",
	Short: "DIN III relay to MQTT bridge",
	Long: "Exposes every outlet of a Digital Loggers DIN III relay as a Home Assistant\n" +
		"switch through MQTT discovery.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return bridgeCmd.RunE(cmd, args)
	},
}

// Execute is called from main to run the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Set the config file path (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().String("log-level", "", "Set the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("relay-host", "", "Set the relay unit host")
	rootCmd.PersistentFlags().String("relay-protocol", "", "Set the relay protocol (http, modbus)")

	// bind viper config flags with cobra
	checkBindFlagError(viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")))
	checkBindFlagError(viper.BindPFlag("relay.host", rootCmd.PersistentFlags().Lookup("relay-host")))
	checkBindFlagError(viper.BindPFlag("relay.protocol", rootCmd.PersistentFlags().Lookup("relay-protocol")))
}

func checkBindFlagError(err error) {
	if err != nil {
		slog.Error("failed to bind cobra/viper flag", "error", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("config errors: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	return zap.Must(zapCfg.Build())
}
