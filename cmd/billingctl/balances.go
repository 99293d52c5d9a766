package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"greenlight-billing/internal/app"
)

func balanceCommands(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "maintain customer balances",
	}
	cmd.AddCommand(recalcCommand(c))
	return cmd
}

func recalcCommand(c *cli) *cobra.Command {
	var customerID string

	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "rebuild balances from bills and allocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := app.ConnectDB(c.cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			locker, closeLocker, err := app.NewLocker(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer closeLocker()

			tariffs, err := app.NewTariffSource(c.cfg.Tariff, db)
			if err != nil {
				return err
			}
			services := app.NewServices(db, tariffs, locker, c.cfg.App.BatchSize)

			if customerID != "" {
				balance, err := services.Balances.Recalculate(ctx, customerID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s billed=%s paid=%s due=%s wallet=%s\n",
					balance.CustomerID,
					balance.TotalBilled.StringFixed(2),
					balance.TotalPaid.StringFixed(2),
					balance.DueBalance.StringFixed(2),
					balance.Wallet.StringFixed(2))
				return nil
			}

			n, err := services.Balances.RecalculateAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recalculated %d balances\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&customerID, "customer", "", "only rebuild this customer's balance")

	return cmd
}
