package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Allocation assigns part of one transaction's amount to one bill.
// Allocations are the source of truth for paid amounts and balances.
type Allocation struct {
	ID            string          `json:"id" db:"id"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	BillID        string          `json:"bill_id" db:"bill_id"`
	Amount        decimal.Decimal `json:"amount" db:"allocated_amount"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// AllocationRequest asks for amount of a transaction to be applied to a bill
type AllocationRequest struct {
	BillID string          `json:"bill_id"`
	Amount decimal.Decimal `json:"amount"`
}

// SumAllocations totals the allocated amounts.
func SumAllocations(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}
