package cmd

import (
	"os"

	"github.com/berfenger/dinrelay2mqtt/internal/core/service"
	"github.com/berfenger/dinrelay2mqtt/internal/server"

	"github.com/spf13/cobra"
)

var statusFormat = FORMAT_LIST

// The `status` command queries the relay unit once and prints its outlets.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of every outlet",
	Long: "Queries the relay unit once and prints the registered outlets.\n\n" +
		"Examples:\n" +
		"  dinrelay2mqtt status\n" +
		"  dinrelay2mqtt status -F yaml --relay-host 192.168.0.100",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		defer logger.Sync()

		client, err := service.NewRelayClient(cfg.Relay, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		switches, err := service.SetupOutlets(cfg.Relay, client, logger)
		if err != nil {
			return err
		}
		return printOutlets(os.Stdout, outletViews(switches), statusFormat)
	},
}

func outletViews(switches []*service.RelaySwitch) []server.OutletView {
	views := make([]server.OutletView, 0, len(switches))
	for _, sw := range switches {
		views = append(views, server.NewOutletView(sw.Info()))
	}
	return views
}

func init() {
	statusCmd.Flags().VarP(&statusFormat, "format", "F", "set the output format (list, json, yaml)")
	rootCmd.AddCommand(statusCmd)
}
