package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"greenlight-billing/internal/domain"
	"greenlight-billing/pkg/logger"
)

// AllocationRepository reads transaction_bill_allocations, the source of truth
// for paid amounts. Writes go through ReconciliationStore.Apply.
type AllocationRepository interface {
	ListByTransaction(ctx context.Context, transactionID string) ([]domain.Allocation, error)
	ListByBill(ctx context.Context, billID string) ([]domain.Allocation, error)
	ListByBills(ctx context.Context, billIDs []string) ([]domain.Allocation, error)
}

type allocationRepository struct {
	db *sql.DB
}

func NewAllocationRepository(db *sql.DB) AllocationRepository {
	return &allocationRepository{db: db}
}

const allocationColumns = `id, transaction_id, bill_id, allocated_amount, created_at, updated_at`

func (r *allocationRepository) ListByTransaction(ctx context.Context, transactionID string) ([]domain.Allocation, error) {
	return r.query(ctx, `SELECT `+allocationColumns+` FROM transaction_bill_allocations
		WHERE transaction_id = $1 ORDER BY created_at, id`, transactionID)
}

func (r *allocationRepository) ListByBill(ctx context.Context, billID string) ([]domain.Allocation, error) {
	return r.query(ctx, `SELECT `+allocationColumns+` FROM transaction_bill_allocations
		WHERE bill_id = $1 ORDER BY created_at, id`, billID)
}

func (r *allocationRepository) ListByBills(ctx context.Context, billIDs []string) ([]domain.Allocation, error) {
	if len(billIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+allocationColumns+` FROM transaction_bill_allocations
		WHERE bill_id = ANY($1) ORDER BY created_at, id`, pq.Array(billIDs))
}

func (r *allocationRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Allocation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query allocations")
		return nil, err
	}
	defer rows.Close()

	var allocations []domain.Allocation
	for rows.Next() {
		var a domain.Allocation
		if err := rows.Scan(&a.ID, &a.TransactionID, &a.BillID, &a.Amount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan allocation")
			return nil, err
		}
		allocations = append(allocations, a)
	}

	return allocations, rows.Err()
}

// upsertAllocation stores the cumulative amount for a (transaction, bill) pair.
func upsertAllocation(ctx context.Context, db execer, a domain.Allocation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transaction_bill_allocations (id, transaction_id, bill_id, allocated_amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (transaction_id, bill_id) DO UPDATE SET
			allocated_amount = EXCLUDED.allocated_amount,
			updated_at = NOW()
	`, a.ID, a.TransactionID, a.BillID, a.Amount)
	return err
}
