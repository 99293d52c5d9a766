package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"greenlight-billing/internal/domain"
	"greenlight-billing/pkg/logger"
)

// TariffRepository keeps tariff versions; the current one is the latest
// whose effective_from is not in the future.
type TariffRepository interface {
	Current(ctx context.Context) (domain.Tariff, error)
	Save(ctx context.Context, tariff *domain.Tariff) error
}

type tariffRepository struct {
	db *sql.DB
}

func NewTariffRepository(db *sql.DB) TariffRepository {
	return &tariffRepository{db: db}
}

func (r *tariffRepository) Current(ctx context.Context) (domain.Tariff, error) {
	query := `
		SELECT id, name, fuel_rate, regulatory_fee_rate, export_rate, base_price,
			   feed_in_price, discount_factor, savings_fee_credit, tiers, facility_bands, effective_from
		FROM tariffs
		WHERE effective_from <= NOW()
		ORDER BY effective_from DESC
		LIMIT 1
	`

	var t domain.Tariff
	var tiers, bands []byte
	err := r.db.QueryRowContext(ctx, query).Scan(
		&t.ID,
		&t.Name,
		&t.FuelRate,
		&t.RegulatoryFeeRate,
		&t.ExportRate,
		&t.BasePrice,
		&t.FeedInPrice,
		&t.DiscountFactor,
		&t.SavingsFeeCredit,
		&tiers,
		&bands,
		&t.EffectiveFrom,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tariff{}, domain.ErrTariffNotFound
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get current tariff")
		return domain.Tariff{}, err
	}

	if err := json.Unmarshal(tiers, &t.Tiers); err != nil {
		return domain.Tariff{}, fmt.Errorf("%w: tiers: %v", domain.ErrInvalidTariff, err)
	}
	if err := json.Unmarshal(bands, &t.FacilityBands); err != nil {
		return domain.Tariff{}, fmt.Errorf("%w: facility bands: %v", domain.ErrInvalidTariff, err)
	}

	return t, t.Validate()
}

func (r *tariffRepository) Save(ctx context.Context, tariff *domain.Tariff) error {
	if err := tariff.Validate(); err != nil {
		return err
	}

	tiers, err := json.Marshal(tariff.Tiers)
	if err != nil {
		return err
	}
	bands, err := json.Marshal(tariff.FacilityBands)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tariffs (
			id, name, fuel_rate, regulatory_fee_rate, export_rate, base_price,
			feed_in_price, discount_factor, savings_fee_credit, tiers, facility_bands, effective_from
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		tariff.ID,
		tariff.Name,
		tariff.FuelRate,
		tariff.RegulatoryFeeRate,
		tariff.ExportRate,
		tariff.BasePrice,
		tariff.FeedInPrice,
		tariff.DiscountFactor,
		tariff.SavingsFeeCredit,
		tiers,
		bands,
		tariff.EffectiveFrom,
	)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("tariff_id", tariff.ID).Error("Failed to save tariff")
		return err
	}
	return nil
}
