package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenlight-billing/internal/domain"
)

var billColumnNames = []string{
	"id", "customer_id", "period_start", "period_end", "consumption_kwh", "exported_kwh",
	"belco_total", "total_revenue", "carried_arrears", "total_bill", "paid_amount", "pending_bill",
	"arrears", "status", "reconciliation_ids", "created_at", "updated_at",
}

func billRow(rows *sqlmock.Rows, id, status, ids string) *sqlmock.Rows {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(id, "cust-1", start, start.AddDate(0, 1, 0), "500", "50",
		"195.79", "181.63", "0", "181.63", "100", "81.63", "81.63", status, ids, start, start)
}

func TestBillRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM bills WHERE id = \\$1").
		WithArgs("B1").
		WillReturnRows(billRow(sqlmock.NewRows(billColumnNames), "B1", "Partially Paid", "{T1,T2}"))

	bill, err := NewBillRepository(db).Get(context.Background(), "B1")

	require.NoError(t, err)
	assert.Equal(t, domain.BillPartiallyPaid, bill.Status)
	assert.True(t, bill.TotalRevenue.Equal(decimal.RequireFromString("181.63")))
	assert.Equal(t, []string{"T1", "T2"}, bill.ReconciliationIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillRepository_GetEmptyReconciliationIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM bills WHERE id = \\$1").
		WithArgs("B1").
		WillReturnRows(billRow(sqlmock.NewRows(billColumnNames), "B1", "Pending", "{}"))

	bill, err := NewBillRepository(db).Get(context.Background(), "B1")

	require.NoError(t, err)
	assert.NotNil(t, bill.ReconciliationIDs)
	assert.Empty(t, bill.ReconciliationIDs)
}

func TestBillRepository_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM bills WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(billColumnNames))

	_, err = NewBillRepository(db).Get(context.Background(), "missing")

	assert.True(t, errors.Is(err, domain.ErrBillNotFound))
}

func TestBillRepository_GetManyMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM bills WHERE id = ANY").
		WillReturnRows(billRow(sqlmock.NewRows(billColumnNames), "B1", "Pending", "{}"))

	_, err = NewBillRepository(db).GetMany(context.Background(), []string{"B1", "B2"})

	assert.True(t, errors.Is(err, domain.ErrBillNotFound))
	assert.Contains(t, err.Error(), "B2")
}

func TestBillRepository_SaveDuplicatePeriod(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO bills").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	bill := &domain.Bill{ID: "B2", CustomerID: "cust-1", PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	err = NewBillRepository(db).Save(context.Background(), bill)

	assert.True(t, errors.Is(err, domain.ErrBillExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO bills").
		WithArgs("B1", "cust-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), domain.BillPending, "{}").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	// a new bill has no reconciliations; the NOT NULL array column must get '{}'
	bill := &domain.Bill{ID: "B1", CustomerID: "cust-1", Status: domain.BillPending}
	require.NoError(t, NewBillRepository(db).Save(context.Background(), bill))

	assert.Equal(t, now, bill.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillRepository_DeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM bills").WithArgs("B1").WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewBillRepository(db).Delete(context.Background(), "B1")

	assert.True(t, errors.Is(err, domain.ErrBillNotFound))
}

func TestBillRepository_SaveWithCarriedBills(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO bills").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("UPDATE bills").
		WithArgs("50", "231.63", sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), domain.BillPending, "{}", "B3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bill := &domain.Bill{ID: "B2", CustomerID: "cust-1", Status: domain.BillPending, ReconciliationIDs: []string{}}
	later := domain.Bill{
		ID:             "B3",
		TotalRevenue:   decimal.RequireFromString("181.63"),
		CarriedArrears: decimal.RequireFromString("50"),
		TotalBill:      decimal.RequireFromString("231.63"),
		Status:         domain.BillPending,
	}
	require.NoError(t, NewBillRepository(db).Save(context.Background(), bill, later))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillRepository_DeleteWithCarriedBillsRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM bills").WithArgs("B1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bills").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = NewBillRepository(db).Delete(context.Background(), "B1", domain.Bill{ID: "B2"})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillRepository_DeleteWithCarriedBills(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM bills").WithArgs("B1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bills").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewBillRepository(db).Delete(context.Background(), "B1", domain.Bill{ID: "B2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
