package calculator

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenlight-billing/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func testTariff() domain.Tariff {
	return domain.Tariff{
		ID:                "default",
		FuelRate:          dec("0.14304"),
		RegulatoryFeeRate: dec("0.00635"),
		ExportRate:        dec("0.2265"),
		BasePrice:         dec("0.15"),
		FeedInPrice:       dec("0.5"),
		DiscountFactor:    dec("0.8"),
		SavingsFeeCredit:  dec("10"),
		Tiers: []domain.RateTier{
			{UpTo: decPtr("250"), Rate: dec("0.13333")},
			{UpTo: decPtr("700"), Rate: dec("0.2259")},
			{Rate: dec("0.3337")},
		},
		FacilityBands: []domain.FacilityBand{
			{MaxDailyKWh: decPtr("10"), Fee: dec("30.00")},
			{MaxDailyKWh: decPtr("15"), Fee: dec("35.00")},
			{MaxDailyKWh: decPtr("25"), Fee: dec("42.61")},
			{MaxDailyKWh: decPtr("50"), Fee: dec("60.00")},
			{Fee: dec("100.00")},
		},
	}
}

func period(days int) domain.BillingPeriod {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return domain.BillingPeriod{Start: start, End: start.AddDate(0, 0, days)}
}

func TestCalculateBill_ReferenceExample(t *testing.T) {
	usage := domain.UsageRecord{ConsumptionKWh: dec("500"), ExportedKWh: dec("50")}

	result, err := CalculateBill(usage, period(31), testTariff(), domain.CustomerOverrides{})
	require.NoError(t, err)

	assertDecimal(t, "31", result.NumberOfDays)
	assertDecimal(t, "89.81", result.BaseCost)
	assertDecimal(t, "42.61", result.FacilityCharge)
	assertDecimal(t, "3.18", result.RegulatoryFee)
	assertDecimal(t, "71.52", result.FuelCharge)
	assertDecimal(t, "11.33", result.ExportCredit)
	assertDecimal(t, "195.79", result.BelcoTotal)
	assertDecimal(t, "0.39158", result.BelcoPerKWh)
	assertDecimal(t, "0.31326", result.EffectivePrice)
	assertDecimal(t, "181.63", result.FinalRevenue)
	assert.NoError(t, result.Err())
	assert.False(t, result.NoConsumption)
	assert.Nil(t, result.Savings)
}

func TestCalculateBill_BasePriceFloor(t *testing.T) {
	tariff := testTariff()
	tariff.BasePrice = dec("0.50")
	usage := domain.UsageRecord{ConsumptionKWh: dec("500"), ExportedKWh: dec("50")}

	result, err := CalculateBill(usage, period(31), tariff, domain.CustomerOverrides{})
	require.NoError(t, err)

	assertDecimal(t, "0.5", result.EffectivePrice)
	assertDecimal(t, "275", result.FinalRevenue)
}

func TestCalculateBill_FixedPriceOverride(t *testing.T) {
	usage := domain.UsageRecord{ConsumptionKWh: dec("400")}

	result, err := CalculateBill(usage, period(30), testTariff(), domain.CustomerOverrides{FixedPrice: decPtr("0.25")})
	require.NoError(t, err)

	assertDecimal(t, "0.25", result.EffectivePrice)
	assertDecimal(t, "100", result.FinalRevenue)
}

func TestCalculateBill_ScalingAppliesToConsumption(t *testing.T) {
	usage := domain.UsageRecord{ConsumptionKWh: dec("200")}

	scaled, err := CalculateBill(usage, period(30), testTariff(), domain.CustomerOverrides{Scaling: decPtr("1.5")})
	require.NoError(t, err)
	plain, err := CalculateBill(domain.UsageRecord{ConsumptionKWh: dec("300")}, period(30), testTariff(), domain.CustomerOverrides{})
	require.NoError(t, err)

	assertDecimal(t, "300", scaled.BillableKWh)
	assert.True(t, plain.BelcoTotal.Equal(scaled.BelcoTotal))
	assert.True(t, plain.FinalRevenue.Equal(scaled.FinalRevenue))
}

func TestCalculateBill_NoConsumption(t *testing.T) {
	usage := domain.UsageRecord{ExportedKWh: dec("20")}

	result, err := CalculateBill(usage, period(31), testTariff(), domain.CustomerOverrides{})
	require.NoError(t, err)

	assert.True(t, result.NoConsumption)
	assert.True(t, errors.Is(result.Err(), domain.ErrNoConsumption))
	assert.True(t, result.FinalRevenue.IsZero())
	assert.True(t, result.BelcoPerKWh.IsZero())
	assert.True(t, result.EffectivePrice.IsZero())
	// facility minimum less the export credit
	assertDecimal(t, "25.47", result.BelcoTotal)
}

func TestCalculateBill_TierBoundaryExactness(t *testing.T) {
	tiers := testTariff().Tiers

	assertDecimal(t, "33.3325", TieredCost(dec("250"), tiers))
	assertDecimal(t, "33.334759", TieredCost(dec("250.01"), tiers))
	assertDecimal(t, "134.9875", TieredCost(dec("700"), tiers))
	assertDecimal(t, "135.021870", TieredCost(dec("700.1"), tiers))
	assert.True(t, TieredCost(decimal.Zero, tiers).IsZero())
}

func TestFacilityCharge_InclusiveUpperBound(t *testing.T) {
	bands := testTariff().FacilityBands

	cases := []struct {
		daily string
		fee   string
	}{
		{"0", "30.00"},
		{"10", "30.00"},
		{"10.0001", "35.00"},
		{"15", "35.00"},
		{"25", "42.61"},
		{"50", "60.00"},
		{"50.01", "100.00"},
	}
	for _, c := range cases {
		fee := FacilityCharge(dec(c.daily), bands)
		assert.True(t, dec(c.fee).Equal(fee), "daily %s: expected %s, got %s", c.daily, c.fee, fee.String())
	}
}

func TestCalculateBill_DailyAverageOnBandBoundary(t *testing.T) {
	usage := domain.UsageRecord{ConsumptionKWh: dec("310")}

	result, err := CalculateBill(usage, period(31), testTariff(), domain.CustomerOverrides{})
	require.NoError(t, err)

	assertDecimal(t, "10", result.DailyAverageKWh)
	assertDecimal(t, "30", result.FacilityCharge)
}

func TestCalculateBill_MonotonicInConsumption(t *testing.T) {
	tariff := testTariff()
	previous := decimal.NewFromInt(-1)

	for kwh := int64(1); kwh <= 3000; kwh += 37 {
		usage := domain.UsageRecord{ConsumptionKWh: decimal.NewFromInt(kwh)}
		result, err := CalculateBill(usage, period(30), tariff, domain.CustomerOverrides{})
		require.NoError(t, err)

		assert.True(t, result.BelcoTotal.GreaterThanOrEqual(previous), "belco total decreased at %d kWh", kwh)
		previous = result.BelcoTotal
	}
}

func TestCalculateBill_Deterministic(t *testing.T) {
	usage := domain.UsageRecord{ConsumptionKWh: dec("812.37"), ExportedKWh: dec("13.2")}

	first, err := CalculateBill(usage, period(28), testTariff(), domain.CustomerOverrides{})
	require.NoError(t, err)
	second, err := CalculateBill(usage, period(28), testTariff(), domain.CustomerOverrides{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCalculateBill_RoundsOnlyAtBoundary(t *testing.T) {
	tariff := testTariff()
	tariff.BasePrice = decimal.Zero
	tariff.FeedInPrice = decimal.Zero
	tariff.DiscountFactor = dec("1")
	usage := domain.UsageRecord{ConsumptionKWh: dec("333")}

	result, err := CalculateBill(usage, period(30), tariff, domain.CustomerOverrides{})
	require.NoError(t, err)

	// with a discount factor of one the revenue is the unrounded utility total
	assert.True(t, result.FinalRevenue.Equal(result.BelcoTotal))
}

func TestCalculateBill_Savings(t *testing.T) {
	usage := domain.UsageRecord{
		ConsumptionKWh:     dec("500"),
		ExportedKWh:        dec("50"),
		SelfConsumptionKWh: dec("200"),
		ProductionKWh:      dec("300"),
	}

	result, err := CalculateBill(usage, period(31), testTariff(), domain.CustomerOverrides{})
	require.NoError(t, err)
	require.NotNil(t, result.Savings)

	assertDecimal(t, "300", result.Savings.CounterfactualKWh)
	assertDecimal(t, "119.44", result.Savings.CounterfactualCost)
	assertDecimal(t, "181.63", result.Savings.GreenlightRevenue)
	assertDecimal(t, "10", result.Savings.FeeCredit)
	assertDecimal(t, "-72.19", result.Savings.Savings)
}

func TestCalculateBill_InvalidPeriod(t *testing.T) {
	usage := domain.UsageRecord{ConsumptionKWh: dec("100")}
	p := period(30)

	_, err := CalculateBill(usage, domain.BillingPeriod{Start: p.End, End: p.Start}, testTariff(), domain.CustomerOverrides{})
	assert.True(t, errors.Is(err, domain.ErrInvalidPeriod))

	_, err = CalculateBill(usage, domain.BillingPeriod{Start: p.Start, End: p.Start}, testTariff(), domain.CustomerOverrides{})
	assert.True(t, errors.Is(err, domain.ErrInvalidPeriod))
}

func TestCalculateBill_InvalidTariff(t *testing.T) {
	usage := domain.UsageRecord{ConsumptionKWh: dec("100")}

	negative := testTariff()
	negative.FuelRate = dec("-0.1")
	_, err := CalculateBill(usage, period(30), negative, domain.CustomerOverrides{})
	assert.True(t, errors.Is(err, domain.ErrInvalidTariff))

	missingTiers := testTariff()
	missingTiers.Tiers = nil
	_, err = CalculateBill(usage, period(30), missingTiers, domain.CustomerOverrides{})
	assert.True(t, errors.Is(err, domain.ErrInvalidTariff))

	_, err = CalculateBill(usage, period(30), domain.Tariff{}, domain.CustomerOverrides{})
	assert.True(t, errors.Is(err, domain.ErrInvalidTariff))

	_, err = CalculateBill(usage, period(30), testTariff(), domain.CustomerOverrides{Scaling: decPtr("0")})
	assert.True(t, errors.Is(err, domain.ErrInvalidTariff))
}

func TestCalculateBill_NegativeUsage(t *testing.T) {
	usage := domain.UsageRecord{ConsumptionKWh: dec("100"), ExportedKWh: dec("-1")}

	_, err := CalculateBill(usage, period(30), testTariff(), domain.CustomerOverrides{})
	assert.True(t, errors.Is(err, domain.ErrInvalidUsage))
}

func TestCalculateBill_NegativeUsageNamesFirstFigure(t *testing.T) {
	usage := domain.UsageRecord{
		ConsumptionKWh:     dec("-5"),
		ExportedKWh:        dec("-1"),
		SelfConsumptionKWh: dec("-2"),
		ProductionKWh:      dec("-3"),
	}

	for i := 0; i < 20; i++ {
		_, err := CalculateBill(usage, period(30), testTariff(), domain.CustomerOverrides{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "consumption is -5")
	}
}
