package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageRecord holds one customer's metered energy for a billing period, in kWh.
// Production is expected to be at least SelfConsumption but any relation is accepted.
type UsageRecord struct {
	ConsumptionKWh     decimal.Decimal `json:"consumption_kwh"`
	ExportedKWh        decimal.Decimal `json:"exported_kwh"`
	SelfConsumptionKWh decimal.Decimal `json:"self_consumption_kwh"`
	ProductionKWh      decimal.Decimal `json:"production_kwh"`
}

// HasSolarFigures reports whether the savings figures can be derived.
func (u UsageRecord) HasSolarFigures() bool {
	return u.ProductionKWh.IsPositive() || u.SelfConsumptionKWh.IsPositive()
}

const secondsPerDay = 24 * 60 * 60

// BillingPeriod is the half-open interval [Start, End).
type BillingPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the length of the period in days, possibly fractional.
func (p BillingPeriod) Days() decimal.Decimal {
	seconds := int64(p.End.Sub(p.Start) / time.Second)
	return decimal.NewFromInt(seconds).Div(decimal.NewFromInt(secondsPerDay))
}

// CustomerOverrides are per-customer calculator adjustments; nil means unset.
type CustomerOverrides struct {
	Scaling    *decimal.Decimal `json:"scaling,omitempty"`
	FixedPrice *decimal.Decimal `json:"fixed_price,omitempty"`
}
