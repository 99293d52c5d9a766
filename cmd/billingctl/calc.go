package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"greenlight-billing/internal/calculator"
	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/tariff"
)

type calcFlags struct {
	tariffFile      string
	start           string
	end             string
	consumption     string
	exported        string
	selfConsumption string
	production      string
	scaling         string
	fixedPrice      string
}

func calcCommand(c *cli) *cobra.Command {
	var f calcFlags

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "calculate a bill from a tariff file without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := f.tariffFile
			if path == "" {
				path = c.cfg.Tariff.File
			}
			src, err := tariff.NewFileSource(path)
			if err != nil {
				return err
			}
			t, err := src.Current(cmd.Context())
			if err != nil {
				return err
			}

			usage, period, overrides, err := f.parse()
			if err != nil {
				return err
			}

			result, err := calculator.CalculateBill(usage, period, t, overrides)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&f.tariffFile, "tariff", "", "tariff YAML file (defaults to TARIFF_FILE)")
	cmd.Flags().StringVar(&f.start, "start", "", "period start, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "period end (exclusive), YYYY-MM-DD")
	cmd.Flags().StringVar(&f.consumption, "consumption", "0", "consumed kWh")
	cmd.Flags().StringVar(&f.exported, "exported", "0", "exported kWh")
	cmd.Flags().StringVar(&f.selfConsumption, "self-consumption", "0", "self-consumed solar kWh")
	cmd.Flags().StringVar(&f.production, "production", "0", "solar production kWh")
	cmd.Flags().StringVar(&f.scaling, "scaling", "", "consumption scaling factor")
	cmd.Flags().StringVar(&f.fixedPrice, "fixed-price", "", "fixed price per kWh")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func (f calcFlags) parse() (domain.UsageRecord, domain.BillingPeriod, domain.CustomerOverrides, error) {
	var (
		usage     domain.UsageRecord
		period    domain.BillingPeriod
		overrides domain.CustomerOverrides
		err       error
	)

	if period.Start, err = time.Parse("2006-01-02", f.start); err != nil {
		return usage, period, overrides, fmt.Errorf("invalid --start: %w", err)
	}
	if period.End, err = time.Parse("2006-01-02", f.end); err != nil {
		return usage, period, overrides, fmt.Errorf("invalid --end: %w", err)
	}

	amounts := []struct {
		name   string
		value  string
		target *decimal.Decimal
	}{
		{"consumption", f.consumption, &usage.ConsumptionKWh},
		{"exported", f.exported, &usage.ExportedKWh},
		{"self-consumption", f.selfConsumption, &usage.SelfConsumptionKWh},
		{"production", f.production, &usage.ProductionKWh},
	}
	for _, a := range amounts {
		if *a.target, err = decimal.NewFromString(a.value); err != nil {
			return usage, period, overrides, fmt.Errorf("invalid --%s: %w", a.name, err)
		}
	}

	if overrides.Scaling, err = optionalDecimal("scaling", f.scaling); err != nil {
		return usage, period, overrides, err
	}
	if overrides.FixedPrice, err = optionalDecimal("fixed-price", f.fixedPrice); err != nil {
		return usage, period, overrides, err
	}
	return usage, period, overrides, nil
}

func optionalDecimal(name, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return &d, nil
}
