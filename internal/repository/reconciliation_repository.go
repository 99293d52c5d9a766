package repository

import (
	"context"
	"database/sql"

	"greenlight-billing/internal/matcher"
	"greenlight-billing/pkg/logger"
)

// ReconciliationStore applies a planned Changeset all-or-nothing.
type ReconciliationStore interface {
	Apply(ctx context.Context, changes *matcher.Changeset) error
}

type reconciliationStore struct {
	db *sql.DB
}

func NewReconciliationStore(db *sql.DB) ReconciliationStore {
	return &reconciliationStore{db: db}
}

func (r *reconciliationStore) Apply(ctx context.Context, changes *matcher.Changeset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer tx.Rollback()

	log := logger.GetLogger().WithField("transaction_id", changes.Transaction.ID)

	if changes.RemoveAllocations {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transaction_bill_allocations WHERE transaction_id = $1`,
			changes.Transaction.ID,
		); err != nil {
			log.WithError(err).Error("Failed to remove allocations")
			return err
		}
	}

	for _, a := range changes.Upserts {
		if err := upsertAllocation(ctx, tx, a); err != nil {
			log.WithError(err).WithField("bill_id", a.BillID).Error("Failed to upsert allocation")
			return err
		}
	}

	for _, bill := range changes.Bills {
		if err := updateBill(ctx, tx, bill); err != nil {
			log.WithError(err).WithField("bill_id", bill.ID).Error("Failed to update bill")
			return err
		}
	}

	if err := updateTransaction(ctx, tx, changes.Transaction); err != nil {
		log.WithError(err).Error("Failed to update transaction")
		return err
	}

	if err := tx.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit transaction")
		return err
	}

	log.WithField("bills", len(changes.Bills)).Debug("Changeset applied")
	return nil
}
