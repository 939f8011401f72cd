package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/core/service"

	"github.com/spf13/cobra"
)

// The `switch` command sends one command to one outlet.
var switchCmd = &cobra.Command{
	Use:   "switch <index> on|off|cycle",
	Short: "Switch one outlet on, off or power cycle it",
	Example: "  dinrelay2mqtt switch 3 off\n" +
		"  dinrelay2mqtt switch 1 cycle",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: %q", domain.ErrInvalidOutlet, args[0])
		}
		command, err := domain.ParseOutletCommand(args[1])
		if err != nil {
			return err
		}

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
		sw, err := findSwitch(switches, index)
		if err != nil {
			return err
		}
		if err := sw.Execute(command); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: %s\n", sw.Name(), command)
		return nil
	},
}

func findSwitch(switches []*service.RelaySwitch, index int) (*service.RelaySwitch, error) {
	for _, sw := range switches {
		if sw.Index() == index {
			return sw, nil
		}
	}
	return nil, domain.InvalidOutletError(index, len(switches))
}

func init() {
	rootCmd.AddCommand(switchCmd)
}
