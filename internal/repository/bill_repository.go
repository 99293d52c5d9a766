package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"greenlight-billing/internal/domain"
	"greenlight-billing/pkg/logger"
)

type BillRepository interface {
	Get(ctx context.Context, id string) (*domain.Bill, error)
	GetMany(ctx context.Context, ids []string) (map[string]domain.Bill, error)
	GetByCustomer(ctx context.Context, customerID string) ([]domain.Bill, error)
	ListPending(ctx context.Context, customerID string) ([]domain.Bill, error)
	// Save inserts or updates bill. carried are other bills of the customer whose
	// carried arrears moved; they are written in the same database transaction.
	Save(ctx context.Context, bill *domain.Bill, carried ...domain.Bill) error
	// Delete removes the bill and writes carried like Save does.
	Delete(ctx context.Context, id string, carried ...domain.Bill) error
}

type billRepository struct {
	db *sql.DB
}

func NewBillRepository(db *sql.DB) BillRepository {
	return &billRepository{db: db}
}

const billColumns = `id, customer_id, period_start, period_end, consumption_kwh, exported_kwh,
	belco_total, total_revenue, carried_arrears, total_bill, paid_amount, pending_bill,
	arrears, status, reconciliation_ids, created_at, updated_at`

func scanBill(row scanner) (domain.Bill, error) {
	var b domain.Bill
	var ids pq.StringArray
	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&b.PeriodStart,
		&b.PeriodEnd,
		&b.ConsumptionKWh,
		&b.ExportedKWh,
		&b.BelcoTotal,
		&b.TotalRevenue,
		&b.CarriedArrears,
		&b.TotalBill,
		&b.PaidAmount,
		&b.PendingBill,
		&b.Arrears,
		&b.Status,
		&ids,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	b.ReconciliationIDs = append([]string{}, ids...)
	return b, err
}

func (r *billRepository) Get(ctx context.Context, id string) (*domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`

	bill, err := scanBill(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBillNotFound, id)
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("bill_id", id).Error("Failed to get bill")
		return nil, err
	}

	return &bill, nil
}

func (r *billRepository) GetMany(ctx context.Context, ids []string) (map[string]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = ANY($1)`

	bills, err := r.query(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.Bill, len(bills))
	for _, b := range bills {
		out[b.ID] = b
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrBillNotFound, id)
		}
	}
	return out, nil
}

func (r *billRepository) GetByCustomer(ctx context.Context, customerID string) ([]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE customer_id = $1 ORDER BY period_start`
	return r.query(ctx, query, customerID)
}

func (r *billRepository) ListPending(ctx context.Context, customerID string) ([]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills
		WHERE customer_id = $1 AND status <> $2
		ORDER BY period_start`
	return r.query(ctx, query, customerID, domain.BillPaid)
}

func (r *billRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Bill, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query bills")
		return nil, err
	}
	defer rows.Close()

	var bills []domain.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan bill")
			return nil, err
		}
		bills = append(bills, bill)
	}

	return bills, rows.Err()
}

// rowQueryer is satisfied by *sql.DB and *sql.Tx.
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Save inserts or updates the bill. A second bill for the same customer and
// period start fails with ErrBillExists.
func (r *billRepository) Save(ctx context.Context, bill *domain.Bill, carried ...domain.Bill) error {
	if len(carried) == 0 {
		return saveBill(ctx, r.db, bill)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer tx.Rollback()

	if err := saveBill(ctx, tx, bill); err != nil {
		return err
	}
	if err := updateCarried(ctx, tx, carried); err != nil {
		return err
	}
	return tx.Commit()
}

func saveBill(ctx context.Context, db rowQueryer, bill *domain.Bill) error {
	query := `
		INSERT INTO bills (
			id, customer_id, period_start, period_end, consumption_kwh, exported_kwh,
			belco_total, total_revenue, carried_arrears, total_bill, paid_amount,
			pending_bill, arrears, status, reconciliation_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			carried_arrears = EXCLUDED.carried_arrears,
			total_bill = EXCLUDED.total_bill,
			paid_amount = EXCLUDED.paid_amount,
			pending_bill = EXCLUDED.pending_bill,
			arrears = EXCLUDED.arrears,
			status = EXCLUDED.status,
			reconciliation_ids = EXCLUDED.reconciliation_ids,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := db.QueryRowContext(ctx, query,
		bill.ID,
		bill.CustomerID,
		bill.PeriodStart,
		bill.PeriodEnd,
		bill.ConsumptionKWh,
		bill.ExportedKWh,
		bill.BelcoTotal,
		bill.TotalRevenue,
		bill.CarriedArrears,
		bill.TotalBill,
		bill.PaidAmount,
		bill.PendingBill,
		bill.Arrears,
		bill.Status,
		reconciliationArray(bill.ReconciliationIDs),
	).Scan(&bill.CreatedAt, &bill.UpdatedAt)

	if isUniqueViolation(err) {
		return fmt.Errorf("%w: customer %s from %s", domain.ErrBillExists, bill.CustomerID, bill.PeriodStart.Format("2006-01-02"))
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("bill_id", bill.ID).Error("Failed to save bill")
		return err
	}

	return nil
}

func (r *billRepository) Delete(ctx context.Context, id string, carried ...domain.Bill) error {
	if len(carried) == 0 {
		return deleteBill(ctx, r.db, id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer tx.Rollback()

	if err := deleteBill(ctx, tx, id); err != nil {
		return err
	}
	if err := updateCarried(ctx, tx, carried); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteBill(ctx context.Context, db execer, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("bill_id", id).Error("Failed to delete bill")
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrBillNotFound, id)
	}
	return nil
}

func updateCarried(ctx context.Context, db execer, bills []domain.Bill) error {
	for _, b := range bills {
		if err := updateBill(ctx, db, b); err != nil {
			logger.GetLogger().WithError(err).WithField("bill_id", b.ID).Error("Failed to carry arrears forward")
			return err
		}
	}
	return nil
}

// reconciliationArray binds ids as a text array. A nil slice would bind NULL.
func reconciliationArray(ids []string) interface{} {
	if ids == nil {
		ids = []string{}
	}
	return pq.Array(ids)
}

// updateBill writes the reconciliation-owned columns of a bill, carried arrears included.
func updateBill(ctx context.Context, db execer, bill domain.Bill) error {
	res, err := db.ExecContext(ctx, `
		UPDATE bills
		SET carried_arrears = $1, total_bill = $2, paid_amount = $3, pending_bill = $4,
			arrears = $5, status = $6, reconciliation_ids = $7, updated_at = NOW()
		WHERE id = $8
	`,
		bill.CarriedArrears,
		bill.TotalBill,
		bill.PaidAmount,
		bill.PendingBill,
		bill.Arrears,
		bill.Status,
		reconciliationArray(bill.ReconciliationIDs),
		bill.ID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrBillNotFound, bill.ID)
	}
	return nil
}
