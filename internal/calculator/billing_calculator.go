package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"greenlight-billing/internal/domain"
)

const (
	moneyPlaces = 2
	ratePlaces  = 5
)

// BillResult is the outcome of one bill calculation. Money figures are
// rounded to cents and per-kWh rates to five places; all intermediate
// arithmetic is carried at full precision.
type BillResult struct {
	NumberOfDays    decimal.Decimal `json:"number_of_days"`
	BillableKWh     decimal.Decimal `json:"billable_kwh"`
	DailyAverageKWh decimal.Decimal `json:"daily_average_kwh"`
	BaseCost        decimal.Decimal `json:"base_cost"`
	FacilityCharge  decimal.Decimal `json:"facility_charge"`
	RegulatoryFee   decimal.Decimal `json:"regulatory_fee"`
	FuelCharge      decimal.Decimal `json:"fuel_charge"`
	ExportCredit    decimal.Decimal `json:"export_credit"`
	BelcoTotal      decimal.Decimal `json:"belco_total"`
	BelcoPerKWh     decimal.Decimal `json:"belco_per_kwh"`
	EffectivePrice  decimal.Decimal `json:"effective_price"`
	FinalRevenue    decimal.Decimal `json:"final_revenue"`
	NoConsumption   bool            `json:"no_consumption"`
	Savings         *SavingsResult  `json:"savings,omitempty"`
}

// Err reports the soft ErrNoConsumption condition. The result is still usable.
func (r BillResult) Err() error {
	if r.NoConsumption {
		return domain.ErrNoConsumption
	}
	return nil
}

// SavingsResult compares Greenlight revenue with what the utility would have
// charged for the consumption not covered by self-consumed solar.
type SavingsResult struct {
	CounterfactualKWh  decimal.Decimal `json:"counterfactual_kwh"`
	CounterfactualCost decimal.Decimal `json:"counterfactual_cost"`
	GreenlightRevenue  decimal.Decimal `json:"greenlight_revenue"`
	FeeCredit          decimal.Decimal `json:"fee_credit"`
	Savings            decimal.Decimal `json:"savings"`
}

// belcoBreakdown carries unrounded components of a utility-equivalent cost.
type belcoBreakdown struct {
	base       decimal.Decimal
	facility   decimal.Decimal
	regulatory decimal.Decimal
	fuel       decimal.Decimal
	daily      decimal.Decimal
}

func (b belcoBreakdown) total() decimal.Decimal {
	return b.base.Add(b.facility).Add(b.regulatory).Add(b.fuel)
}

// CalculateBill computes the utility-equivalent cost, the customer-facing
// revenue and, when solar figures are present, the customer's savings.
//
// Zero consumption is not an error: the result has NoConsumption set and zero
// revenue.
func CalculateBill(
	usage domain.UsageRecord,
	period domain.BillingPeriod,
	tariff domain.Tariff,
	overrides domain.CustomerOverrides,
) (*BillResult, error) {
	if !period.End.After(period.Start) {
		return nil, fmt.Errorf("%w: end %s is not after start %s",
			domain.ErrInvalidPeriod, period.End.Format("2006-01-02"), period.Start.Format("2006-01-02"))
	}
	if err := tariff.Validate(); err != nil {
		return nil, err
	}
	if err := validateUsage(usage); err != nil {
		return nil, err
	}

	scaling := decimal.NewFromInt(1)
	if overrides.Scaling != nil {
		if !overrides.Scaling.IsPositive() {
			return nil, fmt.Errorf("%w: scaling must be greater than zero", domain.ErrInvalidTariff)
		}
		scaling = *overrides.Scaling
	}
	if overrides.FixedPrice != nil && overrides.FixedPrice.IsNegative() {
		return nil, fmt.Errorf("%w: fixed price must not be negative", domain.ErrInvalidTariff)
	}

	days := period.Days()
	billable := usage.ConsumptionKWh.Mul(scaling)

	cost := belcoCost(billable, days, tariff)
	exportCredit := tariff.ExportRate.Mul(usage.ExportedKWh)
	belcoTotal := cost.total().Sub(exportCredit)

	result := &BillResult{
		NumberOfDays:    days.Round(ratePlaces),
		BillableKWh:     billable.Round(ratePlaces),
		DailyAverageKWh: cost.daily.Round(ratePlaces),
		BaseCost:        cost.base.Round(moneyPlaces),
		FacilityCharge:  cost.facility.Round(moneyPlaces),
		RegulatoryFee:   cost.regulatory.Round(moneyPlaces),
		FuelCharge:      cost.fuel.Round(moneyPlaces),
		ExportCredit:    exportCredit.Round(moneyPlaces),
		BelcoTotal:      belcoTotal.Round(moneyPlaces),
	}

	if billable.IsZero() {
		result.NoConsumption = true
		result.BelcoPerKWh = decimal.Zero
		result.EffectivePrice = decimal.Zero
		result.FinalRevenue = decimal.Zero
		return result, nil
	}

	perKWh := belcoTotal.Div(billable)
	price := decimal.Max(perKWh.Mul(tariff.DiscountFactor), tariff.BasePrice)
	if overrides.FixedPrice != nil {
		price = *overrides.FixedPrice
	}
	revenue := price.Mul(billable).Add(tariff.FeedInPrice.Mul(usage.ExportedKWh))

	result.BelcoPerKWh = perKWh.Round(ratePlaces)
	result.EffectivePrice = price.Round(ratePlaces)
	result.FinalRevenue = revenue.Round(moneyPlaces)

	if usage.HasSolarFigures() {
		result.Savings = savings(billable, usage.SelfConsumptionKWh, days, revenue, tariff)
	}

	return result, nil
}

// TieredCost applies the marginal-rate schedule to kwh.
func TieredCost(kwh decimal.Decimal, tiers []domain.RateTier) decimal.Decimal {
	total := decimal.Zero
	lower := decimal.Zero
	for _, tier := range tiers {
		if !kwh.GreaterThan(lower) {
			break
		}
		upper := kwh
		if tier.UpTo != nil && tier.UpTo.LessThan(kwh) {
			upper = *tier.UpTo
		}
		total = total.Add(upper.Sub(lower).Mul(tier.Rate))
		if tier.UpTo == nil {
			break
		}
		lower = *tier.UpTo
	}
	return total
}

// FacilityCharge picks the flat fee of the first band whose inclusive upper
// bound covers dailyAverage.
func FacilityCharge(dailyAverage decimal.Decimal, bands []domain.FacilityBand) decimal.Decimal {
	for _, band := range bands {
		if band.MaxDailyKWh == nil || dailyAverage.LessThanOrEqual(*band.MaxDailyKWh) {
			return band.Fee
		}
	}
	return decimal.Zero
}

func belcoCost(kwh, days decimal.Decimal, tariff domain.Tariff) belcoBreakdown {
	daily := kwh.Div(days)
	return belcoBreakdown{
		base:       TieredCost(kwh, tariff.Tiers),
		facility:   FacilityCharge(daily, tariff.FacilityBands),
		regulatory: tariff.RegulatoryFeeRate.Mul(kwh),
		fuel:       tariff.FuelRate.Mul(kwh),
		daily:      daily,
	}
}

func savings(billable, selfConsumption, days, revenue decimal.Decimal, tariff domain.Tariff) *SavingsResult {
	counterfactualKWh := decimal.Max(decimal.Zero, billable.Sub(selfConsumption))
	counterfactual := belcoCost(counterfactualKWh, days, tariff).total()
	saved := counterfactual.Sub(revenue.Add(tariff.SavingsFeeCredit))

	return &SavingsResult{
		CounterfactualKWh:  counterfactualKWh.Round(ratePlaces),
		CounterfactualCost: counterfactual.Round(moneyPlaces),
		GreenlightRevenue:  revenue.Round(moneyPlaces),
		FeeCredit:          tariff.SavingsFeeCredit.Round(moneyPlaces),
		Savings:            saved.Round(moneyPlaces),
	}
}

func validateUsage(u domain.UsageRecord) error {
	figures := []struct {
		name  string
		value decimal.Decimal
	}{
		{"consumption", u.ConsumptionKWh},
		{"exported", u.ExportedKWh},
		{"self_consumption", u.SelfConsumptionKWh},
		{"production", u.ProductionKWh},
	}
	for _, f := range figures {
		if f.value.IsNegative() {
			return fmt.Errorf("%w: %s is %s", domain.ErrInvalidUsage, f.name, f.value.String())
		}
	}
	return nil
}
