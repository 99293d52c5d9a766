package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"greenlight-billing/internal/config"
	"greenlight-billing/pkg/logger"
)

// cli carries the configuration loaded before any command runs.
type cli struct {
	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	app := &cli{}

	cmd := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operator tooling for the Greenlight billing service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(cfg.App.LogLevel)
			app.cfg = cfg
			return nil
		},
	}

	cmd.AddCommand(migrateCommands(app))
	cmd.AddCommand(balanceCommands(app))
	cmd.AddCommand(calcCommand(app))

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
