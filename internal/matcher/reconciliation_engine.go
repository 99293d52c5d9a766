package matcher

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"greenlight-billing/internal/domain"
	"greenlight-billing/pkg/logger"
)

// DistributionPolicy proposes how a transaction is split across selected bills
type DistributionPolicy interface {
	Distribute(tx domain.Transaction, bills []domain.Bill) []domain.AllocationRequest
}

// EvenSplitPolicy splits the transaction evenly; with three or more bills the
// last selected bill absorbs the rounding remainder.
type EvenSplitPolicy struct{}

func (p *EvenSplitPolicy) Distribute(tx domain.Transaction, bills []domain.Bill) []domain.AllocationRequest {
	amount := tx.PendingAmount
	requests := make([]domain.AllocationRequest, 0, len(bills))

	add := func(bill domain.Bill, share decimal.Decimal) {
		share = decimal.Min(share, billCap(bill))
		if share.IsPositive() {
			requests = append(requests, domain.AllocationRequest{BillID: bill.ID, Amount: share})
		}
	}

	switch n := len(bills); {
	case n == 0:
		return requests
	case n == 1:
		add(bills[0], amount)
	case n == 2:
		half := amount.Div(decimal.NewFromInt(2)).Round(2)
		add(bills[0], half)
		add(bills[1], amount.Sub(half))
	default:
		share := amount.Div(decimal.NewFromInt(int64(n))).Round(2)
		allocated := decimal.Zero
		for _, bill := range bills[:n-1] {
			s := decimal.Min(share, billCap(bill))
			add(bill, s)
			allocated = allocated.Add(decimal.Max(decimal.Zero, s))
		}
		add(bills[n-1], amount.Sub(allocated))
	}

	return requests
}

// billCap is the most a single distribution step may place on a bill.
func billCap(b domain.Bill) decimal.Decimal {
	return decimal.Min(b.PendingBill, b.TotalRevenue)
}

// ReconciliationEngine plans allocations and reversals. It performs no I/O:
// callers load state, apply the returned Changeset atomically, and serialize
// work on the same bill or transaction.
type ReconciliationEngine struct {
	policy DistributionPolicy
}

func NewReconciliationEngine(policy DistributionPolicy) *ReconciliationEngine {
	if policy == nil {
		policy = &EvenSplitPolicy{}
	}
	return &ReconciliationEngine{
		policy: policy,
	}
}

// AllocationInput contains the state an allocation is planned against
type AllocationInput struct {
	Transaction domain.Transaction
	// Bills holds every bill named in Requests, keyed by id.
	Bills map[string]domain.Bill
	// Allocations holds all existing allocations on those bills, from any transaction.
	Allocations []domain.Allocation
	Requests    []domain.AllocationRequest
	// RequireFull rejects requests that leave part of the transaction unallocated.
	RequireFull bool
}

// UndoInput contains the state a reversal is planned against
type UndoInput struct {
	Transaction domain.Transaction
	// Bills holds every bill the transaction touched, keyed by id.
	Bills map[string]domain.Bill
	// Allocations holds all existing allocations on those bills, from any transaction.
	Allocations []domain.Allocation
}

// Changeset is the complete set of writes for one operation. It must be
// applied all-or-nothing.
type Changeset struct {
	Transaction domain.Transaction
	Bills       []domain.Bill
	// Upserts carry the new cumulative amount per (transaction, bill).
	Upserts []domain.Allocation
	// RemoveAllocations deletes every allocation of Transaction before Upserts apply.
	RemoveAllocations bool
	// Allocated is the amount newly applied by this operation.
	Allocated decimal.Decimal
}

// PlanAllocation validates requests and computes the resulting bill,
// transaction and allocation rows. Any validation failure leaves nothing to apply.
func (e *ReconciliationEngine) PlanAllocation(input AllocationInput) (*Changeset, error) {
	if err := ValidateAllocationInput(input); err != nil {
		return nil, err
	}

	tx := input.Transaction
	existing := make(map[string]domain.Allocation)
	paidByBill := make(map[string]decimal.Decimal)
	countByBill := make(map[string]int)
	for _, a := range input.Allocations {
		paidByBill[a.BillID] = paidByBill[a.BillID].Add(a.Amount)
		countByBill[a.BillID]++
		if a.TransactionID == tx.ID {
			existing[a.BillID] = a
		}
	}

	changes := &Changeset{}
	requested := decimal.Zero

	for _, req := range input.Requests {
		bill := cloneBill(input.Bills[req.BillID])

		row, found := existing[req.BillID]
		if !found {
			row = domain.Allocation{
				ID:            uuid.New().String(),
				TransactionID: tx.ID,
				BillID:        req.BillID,
				Amount:        decimal.Zero,
			}
			countByBill[req.BillID]++
		}
		row.Amount = row.Amount.Add(req.Amount)

		if row.Amount.GreaterThan(bill.TotalRevenue) {
			return nil, fmt.Errorf("%w: bill %s allows %s, requested %s in total",
				domain.ErrAllocationExceedsCap, bill.ID, bill.TotalRevenue.StringFixed(2), row.Amount.StringFixed(2))
		}

		paid := paidByBill[req.BillID].Add(req.Amount)
		bill.ApplyPaid(paid, countByBill[req.BillID] > 0)
		bill.AddReconciliation(tx.ID)

		changes.Bills = append(changes.Bills, bill)
		changes.Upserts = append(changes.Upserts, row)
		requested = requested.Add(req.Amount)
	}

	lastBill := input.Requests[len(input.Requests)-1].BillID
	tx.ApplyPaid(tx.PaidAmount.Add(requested))
	tx.BillID = &lastBill
	changes.Transaction = tx
	changes.Allocated = requested

	logger.GetLogger().WithFields(map[string]interface{}{
		"transaction_id": tx.ID,
		"bills":          len(changes.Bills),
		"requested":      requested.StringFixed(2),
		"status":         tx.Status,
	}).Debug("Allocation planned")

	return changes, nil
}

// PlanUndo reverses every allocation of the transaction. It returns nil when
// the transaction carries no match state, so repeated calls are no-ops.
func (e *ReconciliationEngine) PlanUndo(input UndoInput) *Changeset {
	tx := input.Transaction

	own := 0
	remaining := make(map[string][]domain.Allocation)
	for _, a := range input.Allocations {
		if a.TransactionID == tx.ID {
			own++
			continue
		}
		remaining[a.BillID] = append(remaining[a.BillID], a)
	}

	if own == 0 && !tx.IsLinked() {
		return nil
	}

	ids := make([]string, 0, len(input.Bills))
	for id := range input.Bills {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	changes := &Changeset{RemoveAllocations: true}
	for _, id := range ids {
		bill := cloneBill(input.Bills[id])
		bill.RemoveReconciliation(tx.ID)
		rest := remaining[bill.ID]
		bill.ApplyPaid(domain.SumAllocations(rest), len(rest) > 0)
		changes.Bills = append(changes.Bills, bill)
	}

	tx.Reset()
	changes.Transaction = tx

	logger.GetLogger().WithFields(map[string]interface{}{
		"transaction_id": tx.ID,
		"bills":          len(changes.Bills),
	}).Debug("Undo planned")

	return changes
}

// AutoDistribute proposes allocations of the transaction's unallocated amount
// over bills in the order given.
func (e *ReconciliationEngine) AutoDistribute(tx domain.Transaction, bills []domain.Bill) []domain.AllocationRequest {
	return e.policy.Distribute(tx, bills)
}

// CanDelete reports whether the transaction may be removed.
func CanDelete(tx domain.Transaction) error {
	if tx.IsLinked() {
		return fmt.Errorf("%w: transaction %s is %s", domain.ErrTransactionLinked, tx.ID, tx.Status)
	}
	return nil
}

// ValidateAllocationInput checks the requests against the transaction before any bill is touched.
func ValidateAllocationInput(input AllocationInput) error {
	if len(input.Requests) == 0 {
		return domain.ErrNoAllocations
	}

	seen := make(map[string]bool, len(input.Requests))
	total := decimal.Zero
	for _, req := range input.Requests {
		if seen[req.BillID] {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateBill, req.BillID)
		}
		seen[req.BillID] = true

		if !req.Amount.IsPositive() {
			return fmt.Errorf("%w: bill %s got %s", domain.ErrInvalidAmount, req.BillID, req.Amount.String())
		}
		if _, ok := input.Bills[req.BillID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrBillNotFound, req.BillID)
		}
		total = total.Add(req.Amount)
	}

	unallocated := input.Transaction.Amount.Sub(input.Transaction.PaidAmount)
	if total.GreaterThan(unallocated) {
		return fmt.Errorf("%w: requested %s, unallocated %s",
			domain.ErrAllocationExceedsAmount, total.StringFixed(2), unallocated.StringFixed(2))
	}
	if input.RequireFull && !total.Equal(unallocated) {
		return fmt.Errorf("%w: requested %s, unallocated %s",
			domain.ErrAllocationMismatch, total.StringFixed(2), unallocated.StringFixed(2))
	}
	return nil
}

func cloneBill(b domain.Bill) domain.Bill {
	if b.ReconciliationIDs != nil {
		ids := make([]string, len(b.ReconciliationIDs))
		copy(ids, b.ReconciliationIDs)
		b.ReconciliationIDs = ids
	}
	return b
}
