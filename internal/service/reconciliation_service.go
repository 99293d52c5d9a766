package service

import (
	"context"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/lock"
	"greenlight-billing/internal/matcher"
	"greenlight-billing/internal/metrics"
	"greenlight-billing/internal/repository"
	"greenlight-billing/pkg/logger"
)

const undoAttempts = 3

type AllocateRequest struct {
	TransactionID string                     `json:"transaction_id"`
	Allocations   []domain.AllocationRequest `json:"allocations"`
	// RequireFull rejects allocations that do not use the whole unallocated amount.
	RequireFull bool `json:"require_full"`
}

func (r AllocateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TransactionID, validation.Required),
		validation.Field(&r.Allocations, validation.Required),
	)
}

type AllocationResult struct {
	Transaction domain.Transaction `json:"transaction"`
	Bills       []domain.Bill      `json:"bills"`
	Allocated   decimal.Decimal    `json:"allocated"`
}

type ReconciliationService interface {
	Allocate(ctx context.Context, req AllocateRequest) (*AllocationResult, error)
	AutoDistribute(ctx context.Context, transactionID string, billIDs []string) ([]domain.AllocationRequest, error)
	AutoAllocate(ctx context.Context, transactionID string, billIDs []string) (*AllocationResult, error)
	Undo(ctx context.Context, transactionID string) error
	DeleteTransaction(ctx context.Context, transactionID string) error
}

type reconciliationService struct {
	transactions repository.TransactionRepository
	bills        repository.BillRepository
	allocations  repository.AllocationRepository
	store        repository.ReconciliationStore
	balances     BalanceService
	locker       lock.Locker
	engine       *matcher.ReconciliationEngine
}

func NewReconciliationService(
	transactions repository.TransactionRepository,
	bills repository.BillRepository,
	allocations repository.AllocationRepository,
	store repository.ReconciliationStore,
	balances BalanceService,
	locker lock.Locker,
) ReconciliationService {
	return &reconciliationService{
		transactions: transactions,
		bills:        bills,
		allocations:  allocations,
		store:        store,
		balances:     balances,
		locker:       locker,
		engine:       matcher.NewReconciliationEngine(&matcher.EvenSplitPolicy{}),
	}
}

// Allocate applies part of a transaction to one or more bills in a single
// atomic write. On failure nothing is changed.
func (s *reconciliationService) Allocate(ctx context.Context, req AllocateRequest) (*AllocationResult, error) {
	result, err := s.allocate(ctx, req)
	if err != nil {
		metrics.IncAllocationFailed(err)
		logger.GetLogger().WithError(err).WithField("transaction_id", req.TransactionID).Warn("Allocation rejected")
		return nil, err
	}
	metrics.ObserveAllocation(result.Allocated.InexactFloat64())
	return result, nil
}

func (s *reconciliationService) allocate(ctx context.Context, req AllocateRequest) (*AllocationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	billIDs := make([]string, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		billIDs = append(billIDs, a.BillID)
	}

	// a bill's customer never changes, so it can be read before locking
	owners, err := s.bills.GetMany(ctx, uniqueIDs(billIDs))
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lockKeys(req.TransactionID, billIDs, customerIDs(owners))...)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.transactions.Get(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	bills, err := s.bills.GetMany(ctx, uniqueIDs(billIDs))
	if err != nil {
		return nil, err
	}
	existing, err := s.allocations.ListByBills(ctx, uniqueIDs(billIDs))
	if err != nil {
		return nil, err
	}

	changes, err := s.engine.PlanAllocation(matcher.AllocationInput{
		Transaction: *tx,
		Bills:       bills,
		Allocations: existing,
		Requests:    req.Allocations,
		RequireFull: req.RequireFull,
	})
	if err != nil {
		return nil, err
	}

	carried, overdue, err := carryForward(ctx, s.bills, changes.Bills)
	if err != nil {
		return nil, err
	}
	changes.Bills = carried

	if err := s.store.Apply(ctx, changes); err != nil {
		return nil, fmt.Errorf("failed to apply allocation: %w", err)
	}

	// payments per customer, in a stable order
	paid := make(map[string]decimal.Decimal)
	for _, a := range req.Allocations {
		customerID := bills[a.BillID].CustomerID
		paid[customerID] = paid[customerID].Add(a.Amount)
	}
	for _, customerID := range sortedKeys(paid) {
		if _, err := s.balances.ApplyPayment(ctx, customerID, paid[customerID], overdue[customerID]); err != nil {
			logger.GetLogger().WithError(err).WithField("customer_id", customerID).Error("Failed to apply payment to balance")
		}
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"transaction_id": changes.Transaction.ID,
		"bills":          len(changes.Bills),
		"allocated":      changes.Allocated.StringFixed(2),
		"status":         changes.Transaction.Status,
	}).Info("Allocation applied")

	return &AllocationResult{
		Transaction: changes.Transaction,
		Bills:       changes.Bills,
		Allocated:   changes.Allocated,
	}, nil
}

// AutoDistribute proposes how the transaction's unallocated amount is split
// over billIDs in the given order. Nothing is written.
func (s *reconciliationService) AutoDistribute(ctx context.Context, transactionID string, billIDs []string) ([]domain.AllocationRequest, error) {
	if len(billIDs) == 0 {
		return nil, domain.ErrNoAllocations
	}
	if len(uniqueIDs(billIDs)) != len(billIDs) {
		return nil, domain.ErrDuplicateBill
	}

	tx, err := s.transactions.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	byID, err := s.bills.GetMany(ctx, billIDs)
	if err != nil {
		return nil, err
	}

	ordered := make([]domain.Bill, 0, len(billIDs))
	for _, id := range billIDs {
		ordered = append(ordered, byID[id])
	}
	return s.engine.AutoDistribute(*tx, ordered), nil
}

// AutoAllocate distributes the transaction with AutoDistribute and applies the result.
func (s *reconciliationService) AutoAllocate(ctx context.Context, transactionID string, billIDs []string) (*AllocationResult, error) {
	requests, err := s.AutoDistribute(ctx, transactionID, billIDs)
	if err != nil {
		return nil, err
	}
	return s.Allocate(ctx, AllocateRequest{TransactionID: transactionID, Allocations: requests})
}

// Undo reverses every allocation of the transaction. Undoing an unmatched
// transaction is a no-op.
func (s *reconciliationService) Undo(ctx context.Context, transactionID string) error {
	err := s.undo(ctx, transactionID)
	metrics.ObserveUndo(err)
	return err
}

func (s *reconciliationService) undo(ctx context.Context, transactionID string) error {
	for attempt := 0; attempt < undoAttempts; attempt++ {
		touched, err := s.touchedBillIDs(ctx, transactionID)
		if err != nil {
			return err
		}

		owners := map[string]domain.Bill{}
		if len(touched) > 0 {
			if owners, err = s.bills.GetMany(ctx, touched); err != nil {
				return err
			}
		}

		done, err := s.undoLocked(ctx, transactionID, touched, customerIDs(owners))
		if err != nil || done {
			return err
		}
		// a concurrent allocation reached a bill outside the locked set
	}
	return fmt.Errorf("%w: transaction %s kept changing during undo", domain.ErrLockHeld, transactionID)
}

func (s *reconciliationService) undoLocked(ctx context.Context, transactionID string, billIDs, customers []string) (bool, error) {
	release, err := s.locker.Acquire(ctx, lockKeys(transactionID, billIDs, customers)...)
	if err != nil {
		return false, err
	}
	defer release()

	current, err := s.touchedBillIDs(ctx, transactionID)
	if err != nil {
		return false, err
	}
	if !sameIDs(current, billIDs) {
		return false, nil
	}

	tx, err := s.transactions.Get(ctx, transactionID)
	if err != nil {
		return false, err
	}

	bills := map[string]domain.Bill{}
	if len(billIDs) > 0 {
		if bills, err = s.bills.GetMany(ctx, billIDs); err != nil {
			return false, err
		}
	}
	allocations, err := s.allocations.ListByBills(ctx, billIDs)
	if err != nil {
		return false, err
	}

	changes := s.engine.PlanUndo(matcher.UndoInput{
		Transaction: *tx,
		Bills:       bills,
		Allocations: allocations,
	})
	if changes == nil {
		logger.GetLogger().WithField("transaction_id", transactionID).Debug("Nothing to undo")
		return true, nil
	}

	carried, _, err := carryForward(ctx, s.bills, changes.Bills)
	if err != nil {
		return false, err
	}
	changes.Bills = carried

	if err := s.store.Apply(ctx, changes); err != nil {
		return false, fmt.Errorf("failed to apply undo: %w", err)
	}

	for _, customerID := range customerIDs(bills) {
		if _, err := s.balances.Recalculate(ctx, customerID); err != nil {
			logger.GetLogger().WithError(err).WithField("customer_id", customerID).Error("Failed to recalculate balance after undo")
		}
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"transaction_id": transactionID,
		"bills":          len(changes.Bills),
	}).Info("Allocation undone")

	return true, nil
}

func (s *reconciliationService) touchedBillIDs(ctx context.Context, transactionID string) ([]string, error) {
	allocations, err := s.allocations.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(allocations))
	for _, a := range allocations {
		ids = append(ids, a.BillID)
	}
	return uniqueIDs(ids), nil
}

// DeleteTransaction removes a transaction that carries no match state.
func (s *reconciliationService) DeleteTransaction(ctx context.Context, transactionID string) error {
	release, err := s.locker.Acquire(ctx, lock.TransactionKey(transactionID))
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.transactions.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	if err := matcher.CanDelete(*tx); err != nil {
		return err
	}

	if err := s.transactions.Delete(ctx, transactionID); err != nil {
		return err
	}

	logger.GetLogger().WithField("transaction_id", transactionID).Info("Transaction deleted")
	return nil
}

// lockKeys covers the transaction, its bills and the bill chains of their
// customers, since carried arrears move along the whole chain.
func lockKeys(transactionID string, billIDs, customers []string) []string {
	keys := make([]string, 0, len(billIDs)+len(customers)+1)
	keys = append(keys, lock.TransactionKey(transactionID))
	for _, id := range billIDs {
		keys = append(keys, lock.BillKey(id))
	}
	for _, id := range customers {
		keys = append(keys, lock.CustomerBillsKey(id))
	}
	return keys
}

// uniqueIDs returns the ids sorted without duplicates.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
