package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"greenlight-billing/internal/app"
	"greenlight-billing/migrations"
)

func migrateCommands(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or roll back database migrations",
	}

	cmd.AddCommand(migrateUpCommand(c))
	cmd.AddCommand(migrateDownCommand(c))

	return cmd
}

func migrateUpCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.ConnectDB(c.cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			n, err := migrations.Up(db)
			if err != nil {
				return fmt.Errorf("failed to migrate up: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migrations!\n", n)
			return nil
		},
	}
}

func migrateDownCommand(c *cli) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.ConnectDB(c.cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			n, err := migrations.Down(db, steps)
			if err != nil {
				return fmt.Errorf("failed to migrate down: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migrations!\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back, 0 for all")

	return cmd
}
