package repository

import (
	"context"
	"database/sql"
	"errors"

	"greenlight-billing/internal/domain"
	"greenlight-billing/pkg/logger"
)

// BalanceRepository stores the customer_balances projection.
type BalanceRepository interface {
	// Get returns a zero balance when none has been stored yet.
	Get(ctx context.Context, customerID string) (*domain.CustomerBalance, error)
	Save(ctx context.Context, balance *domain.CustomerBalance) error
}

type balanceRepository struct {
	db *sql.DB
}

func NewBalanceRepository(db *sql.DB) BalanceRepository {
	return &balanceRepository{db: db}
}

func (r *balanceRepository) Get(ctx context.Context, customerID string) (*domain.CustomerBalance, error) {
	query := `
		SELECT customer_id, total_billed, total_paid, overdue, due_balance, wallet, updated_at
		FROM customer_balances
		WHERE customer_id = $1
	`

	var b domain.CustomerBalance
	err := r.db.QueryRowContext(ctx, query, customerID).Scan(
		&b.CustomerID,
		&b.TotalBilled,
		&b.TotalPaid,
		&b.Overdue,
		&b.DueBalance,
		&b.Wallet,
		&b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		balance := domain.NewCustomerBalance(customerID)
		return &balance, nil
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", customerID).Error("Failed to get customer balance")
		return nil, err
	}

	return &b, nil
}

func (r *balanceRepository) Save(ctx context.Context, balance *domain.CustomerBalance) error {
	query := `
		INSERT INTO customer_balances (customer_id, total_billed, total_paid, overdue, due_balance, wallet)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (customer_id) DO UPDATE SET
			total_billed = EXCLUDED.total_billed,
			total_paid = EXCLUDED.total_paid,
			overdue = EXCLUDED.overdue,
			due_balance = EXCLUDED.due_balance,
			wallet = EXCLUDED.wallet,
			updated_at = NOW()
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		balance.CustomerID,
		balance.TotalBilled,
		balance.TotalPaid,
		balance.Overdue,
		balance.DueBalance,
		balance.Wallet,
	).Scan(&balance.UpdatedAt)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", balance.CustomerID).Error("Failed to save customer balance")
		return err
	}
	return nil
}
