package domain

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// RateTier charges Rate per kWh for consumption up to UpTo (cumulative).
// The last tier has no UpTo and takes the remainder.
type RateTier struct {
	UpTo *decimal.Decimal `json:"up_to,omitempty"`
	Rate decimal.Decimal  `json:"rate"`
}

// Validate implements validation.Validatable.
func (t RateTier) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.UpTo, validation.By(positiveIfSet)),
		validation.Field(&t.Rate, validation.By(nonNegative)),
	)
}

// FacilityBand charges Fee when the average daily consumption is at most
// MaxDailyKWh. The upper bound is inclusive. The last band is open-ended.
type FacilityBand struct {
	MaxDailyKWh *decimal.Decimal `json:"max_daily_kwh,omitempty"`
	Fee         decimal.Decimal  `json:"fee"`
}

// Validate implements validation.Validatable.
func (b FacilityBand) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.MaxDailyKWh, validation.By(nonNegativeIfSet)),
		validation.Field(&b.Fee, validation.By(nonNegative)),
	)
}

// Tariff is the parameter set for one calculation. It is read-only while a bill is calculated.
type Tariff struct {
	ID                string          `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	FuelRate          decimal.Decimal `json:"fuel_rate" db:"fuel_rate"`
	RegulatoryFeeRate decimal.Decimal `json:"regulatory_fee_rate" db:"regulatory_fee_rate"`
	ExportRate        decimal.Decimal `json:"export_rate" db:"export_rate"`
	BasePrice         decimal.Decimal `json:"base_price" db:"base_price"`
	FeedInPrice       decimal.Decimal `json:"feed_in_price" db:"feed_in_price"`
	DiscountFactor    decimal.Decimal `json:"discount_factor" db:"discount_factor"`
	SavingsFeeCredit  decimal.Decimal `json:"savings_fee_credit" db:"savings_fee_credit"`
	Tiers             []RateTier      `json:"tiers" db:"tiers"`
	FacilityBands     []FacilityBand  `json:"facility_bands" db:"facility_bands"`
	EffectiveFrom     time.Time       `json:"effective_from" db:"effective_from"`
}

// Validate checks every field and the ordering of tiers and bands.
// Failures wrap ErrInvalidTariff.
func (t Tariff) Validate() error {
	err := validation.ValidateStruct(&t,
		validation.Field(&t.FuelRate, validation.By(nonNegative)),
		validation.Field(&t.RegulatoryFeeRate, validation.By(nonNegative)),
		validation.Field(&t.ExportRate, validation.By(nonNegative)),
		validation.Field(&t.BasePrice, validation.By(nonNegative)),
		validation.Field(&t.FeedInPrice, validation.By(nonNegative)),
		validation.Field(&t.DiscountFactor, validation.By(positive)),
		validation.Field(&t.SavingsFeeCredit, validation.By(nonNegative)),
		validation.Field(&t.Tiers, validation.Required, validation.By(tiersOrdered)),
		validation.Field(&t.FacilityBands, validation.Required, validation.By(bandsOrdered)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTariff, err)
	}
	return nil
}

func nonNegative(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal")
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func positive(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal")
	}
	if !d.IsPositive() {
		return errors.New("must be greater than zero")
	}
	return nil
}

func nonNegativeIfSet(value interface{}) error {
	d, ok := value.(*decimal.Decimal)
	if !ok || d == nil {
		return nil
	}
	return nonNegative(*d)
}

func positiveIfSet(value interface{}) error {
	d, ok := value.(*decimal.Decimal)
	if !ok || d == nil {
		return nil
	}
	return positive(*d)
}

func tiersOrdered(value interface{}) error {
	tiers, _ := value.([]RateTier)
	for i, tier := range tiers {
		last := i == len(tiers)-1
		if last && tier.UpTo != nil {
			return errors.New("last tier must be unbounded")
		}
		if !last && tier.UpTo == nil {
			return fmt.Errorf("tier %d must have an upper bound", i)
		}
		if i > 0 && !last && !tier.UpTo.GreaterThan(*tiers[i-1].UpTo) {
			return fmt.Errorf("tier %d upper bound must increase", i)
		}
	}
	return nil
}

func bandsOrdered(value interface{}) error {
	bands, _ := value.([]FacilityBand)
	for i, band := range bands {
		last := i == len(bands)-1
		if last && band.MaxDailyKWh != nil {
			return errors.New("last facility band must be open-ended")
		}
		if !last && band.MaxDailyKWh == nil {
			return fmt.Errorf("facility band %d must have an upper bound", i)
		}
		if i > 0 && !last && !band.MaxDailyKWh.GreaterThan(*bands[i-1].MaxDailyKWh) {
			return fmt.Errorf("facility band %d upper bound must increase", i)
		}
	}
	return nil
}
