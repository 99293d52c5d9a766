package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents how much of a bank-statement line has been matched to bills
type TransactionStatus string

const (
	TransactionUnmatched        TransactionStatus = "Unmatched"
	TransactionPartiallyMatched TransactionStatus = "Partially Matched"
	TransactionMatched          TransactionStatus = "Matched"
)

// IsValid reports whether s is a known status
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionUnmatched, TransactionPartiallyMatched, TransactionMatched:
		return true
	}
	return false
}

// Transaction represents an imported bank-statement line
type Transaction struct {
	ID            string            `json:"id" db:"id"`
	Reference     string            `json:"reference,omitempty" db:"reference"`
	Description   string            `json:"description" db:"description"`
	Source        string            `json:"source,omitempty" db:"source"`
	Date          time.Time         `json:"date" db:"date"`
	Amount        decimal.Decimal   `json:"amount" db:"amount"`
	PaidAmount    decimal.Decimal   `json:"paid_amount" db:"paid_amount"`
	PendingAmount decimal.Decimal   `json:"pending_amount" db:"pending_amount"`
	Status        TransactionStatus `json:"status" db:"status"`
	BillID        *string           `json:"bill_id,omitempty" db:"bill_id"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// NewTransaction builds an unmatched transaction with nothing allocated yet.
func NewTransaction(id string, date time.Time, description string, amount decimal.Decimal) Transaction {
	return Transaction{
		ID:            id,
		Description:   description,
		Date:          date,
		Amount:        amount,
		PaidAmount:    decimal.Zero,
		PendingAmount: amount,
		Status:        TransactionUnmatched,
	}
}

// IsLinked reports whether the transaction still carries any match state.
// Linked transactions cannot be deleted.
func (t Transaction) IsLinked() bool {
	return t.Status != TransactionUnmatched || t.BillID != nil
}

// Reset returns the transaction to its freshly imported state.
func (t *Transaction) Reset() {
	t.PaidAmount = decimal.Zero
	t.PendingAmount = t.Amount
	t.Status = TransactionUnmatched
	t.BillID = nil
}

// ApplyPaid records the new allocated total and derives pending amount and status.
func (t *Transaction) ApplyPaid(paid decimal.Decimal) {
	t.PaidAmount = paid
	t.PendingAmount = t.Amount.Sub(paid)
	switch {
	case paid.IsZero():
		t.Status = TransactionUnmatched
	case t.PendingAmount.Sign() <= 0:
		t.Status = TransactionMatched
	default:
		t.Status = TransactionPartiallyMatched
	}
}
