package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"greenlight-billing/internal/domain"
	"greenlight-billing/pkg/logger"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	BulkCreate(ctx context.Context, transactions []domain.Transaction) (int, error)
	Get(ctx context.Context, id string) (*domain.Transaction, error)
	Save(ctx context.Context, tx *domain.Transaction) error
	Delete(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error)
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, COALESCE(reference, ''), description, COALESCE(source, ''), date,
	amount, paid_amount, pending_amount, status, bill_id, created_at, updated_at`

func scanTransaction(row scanner) (domain.Transaction, error) {
	var tx domain.Transaction
	var billID sql.NullString
	err := row.Scan(
		&tx.ID,
		&tx.Reference,
		&tx.Description,
		&tx.Source,
		&tx.Date,
		&tx.Amount,
		&tx.PaidAmount,
		&tx.PendingAmount,
		&tx.Status,
		&billID,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if billID.Valid {
		tx.BillID = &billID.String
	}
	return tx, err
}

func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, reference, description, source, date, amount, paid_amount, pending_amount, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		tx.ID,
		nullString(tx.Reference),
		tx.Description,
		nullString(tx.Source),
		tx.Date,
		tx.Amount,
		tx.PaidAmount,
		tx.PendingAmount,
		tx.Status,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)

	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrTransactionExists, tx.Reference)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create transaction")
		return err
	}

	return nil
}

// BulkCreate inserts imported statement lines in one transaction. Lines whose
// reference already exists are skipped. It returns the number inserted.
func (r *transactionRepository) BulkCreate(ctx context.Context, transactions []domain.Transaction) (int, error) {
	if len(transactions) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, reference, description, source, date, amount, paid_amount, pending_amount, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (reference) WHERE reference IS NOT NULL DO NOTHING
	`)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to prepare statement")
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range transactions {
		res, err := stmt.ExecContext(ctx,
			t.ID,
			nullString(t.Reference),
			t.Description,
			nullString(t.Source),
			t.Date,
			t.Amount,
			t.PaidAmount,
			t.PendingAmount,
			t.Status,
		)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("reference", t.Reference).Error("Failed to insert transaction")
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to commit transaction")
		return 0, err
	}

	return inserted, nil
}

func (r *transactionRepository) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("transaction_id", id).Error("Failed to get transaction")
		return nil, err
	}

	return &tx, nil
}

func (r *transactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	if err := updateTransaction(ctx, r.db, *tx); err != nil {
		logger.GetLogger().WithError(err).WithField("transaction_id", tx.ID).Error("Failed to save transaction")
		return err
	}
	return nil
}

// Delete removes an unlinked transaction. The guard is part of the statement
// so a concurrent match cannot slip in between check and delete.
func (r *transactionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE id = $1 AND status = $2 AND bill_id IS NULL
	`, id, domain.TransactionUnmatched)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("transaction_id", id).Error("Failed to delete transaction")
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", domain.ErrTransactionLinked, id)
}

func (r *transactionRepository) ListByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE status = $1 ORDER BY date, id`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query transactions")
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan transaction")
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func updateTransaction(ctx context.Context, db execer, tx domain.Transaction) error {
	res, err := db.ExecContext(ctx, `
		UPDATE transactions
		SET paid_amount = $1, pending_amount = $2, status = $3, bill_id = $4, updated_at = NOW()
		WHERE id = $5
	`,
		tx.PaidAmount,
		tx.PendingAmount,
		tx.Status,
		tx.BillID,
		tx.ID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, tx.ID)
	}
	return nil
}
