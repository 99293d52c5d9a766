package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerBalance is a derived projection over a customer's bills and allocations
type CustomerBalance struct {
	CustomerID  string          `json:"customer_id" db:"customer_id"`
	TotalBilled decimal.Decimal `json:"total_billed" db:"total_billed"`
	TotalPaid   decimal.Decimal `json:"total_paid" db:"total_paid"`
	Overdue     decimal.Decimal `json:"overdue" db:"overdue"`
	DueBalance  decimal.Decimal `json:"due_balance" db:"due_balance"`
	Wallet      decimal.Decimal `json:"wallet" db:"wallet"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// NewCustomerBalance returns an all-zero balance for customerID.
func NewCustomerBalance(customerID string) CustomerBalance {
	return CustomerBalance{
		CustomerID:  customerID,
		TotalBilled: decimal.Zero,
		TotalPaid:   decimal.Zero,
		Overdue:     decimal.Zero,
		DueBalance:  decimal.Zero,
		Wallet:      decimal.Zero,
	}
}

// Settle derives due balance and wallet from the totals. Overdue is cleared
// once payments cover everything billed.
func (b *CustomerBalance) Settle() {
	diff := b.TotalBilled.Sub(b.TotalPaid)
	b.DueBalance = decimal.Max(decimal.Zero, diff)
	b.Wallet = decimal.Max(decimal.Zero, diff.Neg())
	if b.TotalPaid.GreaterThanOrEqual(b.TotalBilled) {
		b.Overdue = decimal.Zero
	}
}

// ApproxEqual compares the derived figures within tolerance.
func (b CustomerBalance) ApproxEqual(other CustomerBalance, tolerance decimal.Decimal) bool {
	within := func(x, y decimal.Decimal) bool {
		return x.Sub(y).Abs().LessThanOrEqual(tolerance)
	}
	return within(b.TotalBilled, other.TotalBilled) &&
		within(b.TotalPaid, other.TotalPaid) &&
		within(b.DueBalance, other.DueBalance) &&
		within(b.Wallet, other.Wallet)
}
