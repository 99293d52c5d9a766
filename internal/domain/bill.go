package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus represents the payment state of a bill
type BillStatus string

const (
	BillPending       BillStatus = "Pending"
	BillPartiallyPaid BillStatus = "Partially Paid"
	BillPaid          BillStatus = "Paid"
)

// Bill is one customer's charge for a billing period [PeriodStart, PeriodEnd).
//
// CarriedArrears is the unpaid balance rolled in from the previous bill when
// this one was generated and is part of TotalBill. Arrears is this bill's own
// unpaid carry-forward and is recalculated on every reconciliation event.
type Bill struct {
	ID                string          `json:"id" db:"id"`
	CustomerID        string          `json:"customer_id" db:"customer_id"`
	PeriodStart       time.Time       `json:"period_start" db:"period_start"`
	PeriodEnd         time.Time       `json:"period_end" db:"period_end"`
	ConsumptionKWh    decimal.Decimal `json:"consumption_kwh" db:"consumption_kwh"`
	ExportedKWh       decimal.Decimal `json:"exported_kwh" db:"exported_kwh"`
	BelcoTotal        decimal.Decimal `json:"belco_total" db:"belco_total"`
	TotalRevenue      decimal.Decimal `json:"total_revenue" db:"total_revenue"`
	CarriedArrears    decimal.Decimal `json:"carried_arrears" db:"carried_arrears"`
	TotalBill         decimal.Decimal `json:"total_bill" db:"total_bill"`
	PaidAmount        decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	PendingBill       decimal.Decimal `json:"pending_bill" db:"pending_bill"`
	Arrears           decimal.Decimal `json:"arrears" db:"arrears"`
	Status            BillStatus      `json:"status" db:"status"`
	ReconciliationIDs []string        `json:"reconciliation_ids" db:"reconciliation_ids"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// ApplyPaid sets the paid total and derives pending, arrears and status.
// A bill with no remaining allocations returns to Pending with zero arrears.
func (b *Bill) ApplyPaid(paid decimal.Decimal, hasAllocations bool) {
	b.PaidAmount = paid
	b.PendingBill = decimal.Max(decimal.Zero, b.TotalBill.Sub(paid))

	if !hasAllocations {
		b.Status = BillPending
		b.Arrears = decimal.Zero
		return
	}

	b.Arrears = decimal.Max(decimal.Zero, b.TotalRevenue.Sub(paid))
	if b.PendingBill.IsZero() {
		b.Status = BillPaid
	} else {
		b.Status = BillPartiallyPaid
	}
}

// HasReconciliation reports whether transactionID is recorded on the bill.
func (b Bill) HasReconciliation(transactionID string) bool {
	for _, id := range b.ReconciliationIDs {
		if id == transactionID {
			return true
		}
	}
	return false
}

// AddReconciliation appends transactionID if absent.
func (b *Bill) AddReconciliation(transactionID string) {
	if !b.HasReconciliation(transactionID) {
		b.ReconciliationIDs = append(b.ReconciliationIDs, transactionID)
	}
}

// RemoveReconciliation drops transactionID from the bill. The list is never
// left nil so the stored array stays non-null.
func (b *Bill) RemoveReconciliation(transactionID string) {
	ids := make([]string, 0, len(b.ReconciliationIDs))
	for _, id := range b.ReconciliationIDs {
		if id != transactionID {
			ids = append(ids, id)
		}
	}
	b.ReconciliationIDs = ids
}

// CarryForward recomputes carried arrears along one customer's bills, ordered
// by period start. The first bill carries nothing and every later bill carries
// its predecessor's pending amount, so paying an earlier bill clears what later
// bills carried from it. bills is updated in place; the bills whose figures
// moved are returned.
func CarryForward(bills []Bill) []Bill {
	var changed []Bill
	carried := decimal.Zero
	for i := range bills {
		b := &bills[i]
		before := *b

		b.CarriedArrears = carried
		b.TotalBill = b.TotalRevenue.Add(carried)
		b.ApplyPaid(b.PaidAmount, b.PaidAmount.IsPositive())

		if !before.CarriedArrears.Equal(b.CarriedArrears) ||
			!before.TotalBill.Equal(b.TotalBill) ||
			!before.PendingBill.Equal(b.PendingBill) ||
			before.Status != b.Status {
			changed = append(changed, *b)
		}
		carried = b.PendingBill
	}
	return changed
}
