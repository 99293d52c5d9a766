package statement

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"greenlight-billing/internal/domain"
)

func TestBuildXLSX(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	balance := domain.NewCustomerBalance("cust-1")
	balance.TotalBilled = decimal.RequireFromString("181.63")
	balance.TotalPaid = decimal.RequireFromString("100")
	balance.Settle()

	data := Data{
		Customer: domain.Customer{ID: "cust-1", Name: "J Smith"},
		Balance:  balance,
		Bills: []domain.Bill{{
			ID:           "B1",
			PeriodStart:  start,
			PeriodEnd:    start.AddDate(0, 1, 0),
			TotalRevenue: decimal.RequireFromString("181.63"),
			TotalBill:    decimal.RequireFromString("181.63"),
			PaidAmount:   decimal.RequireFromString("100"),
			PendingBill:  decimal.RequireFromString("81.63"),
			Status:       domain.BillPartiallyPaid,
		}},
		Allocations: []domain.Allocation{{TransactionID: "T1", BillID: "B1", Amount: decimal.NewFromInt(100), CreatedAt: start}},
	}

	out, err := BuildXLSX(data)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, billsSheet, paymentsSheet}, f.GetSheetList())

	name, err := f.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "J Smith", name)

	due, err := f.GetCellValue(summarySheet, "B8")
	require.NoError(t, err)
	assert.Equal(t, "81.63", due)

	status, err := f.GetCellValue(billsSheet, "M2")
	require.NoError(t, err)
	assert.Equal(t, "Partially Paid", status)

	rows, err := f.GetRows(paymentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"T1", "B1", "100", "2024-01-01 00:00"}, rows[1])
}
