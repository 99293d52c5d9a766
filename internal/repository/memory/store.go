package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/matcher"
	"greenlight-billing/internal/repository"
)

type allocationKey struct {
	transactionID string
	billID        string
}

// Store keeps every record kind behind one lock so a Changeset applies atomically.
// It backs tests and single-process runs without PostgreSQL.
type Store struct {
	mu           sync.RWMutex
	customers    map[string]domain.Customer
	bills        map[string]domain.Bill
	transactions map[string]domain.Transaction
	allocations  map[allocationKey]domain.Allocation
	balances     map[string]domain.CustomerBalance
	tariffs      []domain.Tariff
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		customers:    make(map[string]domain.Customer),
		bills:        make(map[string]domain.Bill),
		transactions: make(map[string]domain.Transaction),
		allocations:  make(map[allocationKey]domain.Allocation),
		balances:     make(map[string]domain.CustomerBalance),
		now:          time.Now,
	}
}

func (s *Store) Bills() repository.BillRepository               { return billRepo{s} }
func (s *Store) Transactions() repository.TransactionRepository { return transactionRepo{s} }
func (s *Store) Allocations() repository.AllocationRepository   { return allocationRepo{s} }
func (s *Store) Customers() repository.CustomerRepository       { return customerRepo{s} }
func (s *Store) Balances() repository.BalanceRepository         { return balanceRepo{s} }
func (s *Store) Tariffs() repository.TariffRepository           { return tariffRepo{s} }

// Apply writes a Changeset. Every referenced record is checked before anything changes.
func (s *Store) Apply(ctx context.Context, changes *matcher.Changeset) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[changes.Transaction.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, changes.Transaction.ID)
	}
	for _, b := range changes.Bills {
		if _, ok := s.bills[b.ID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrBillNotFound, b.ID)
		}
	}
	for _, a := range changes.Upserts {
		if _, ok := s.bills[a.BillID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrBillNotFound, a.BillID)
		}
	}

	now := s.now()
	if changes.RemoveAllocations {
		for key := range s.allocations {
			if key.transactionID == changes.Transaction.ID {
				delete(s.allocations, key)
			}
		}
	}
	for _, a := range changes.Upserts {
		s.upsertAllocation(a, now)
	}
	for _, b := range changes.Bills {
		s.updateBill(b, now)
	}

	tx := changes.Transaction
	tx.BillID = cloneString(tx.BillID)
	tx.UpdatedAt = now
	s.transactions[tx.ID] = tx

	return nil
}

// updateBill copies the reconciliation-owned fields of b onto the stored bill.
func (s *Store) updateBill(b domain.Bill, now time.Time) {
	stored := s.bills[b.ID]
	stored.CarriedArrears = b.CarriedArrears
	stored.TotalBill = b.TotalBill
	stored.PaidAmount = b.PaidAmount
	stored.PendingBill = b.PendingBill
	stored.Arrears = b.Arrears
	stored.Status = b.Status
	stored.ReconciliationIDs = cloneIDs(b.ReconciliationIDs)
	stored.UpdatedAt = now
	s.bills[b.ID] = stored
}

func (s *Store) upsertAllocation(a domain.Allocation, now time.Time) {
	key := allocationKey{transactionID: a.TransactionID, billID: a.BillID}
	if existing, ok := s.allocations[key]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	} else {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	s.allocations[key] = a
}

func (s *Store) sortedAllocations(keep func(domain.Allocation) bool) []domain.Allocation {
	var out []domain.Allocation
	for _, a := range s.allocations {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneBill(b domain.Bill) domain.Bill {
	b.ReconciliationIDs = cloneIDs(b.ReconciliationIDs)
	return b
}

func cloneIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTariff(t domain.Tariff) domain.Tariff {
	t.Tiers = append([]domain.RateTier(nil), t.Tiers...)
	t.FacilityBands = append([]domain.FacilityBand(nil), t.FacilityBands...)
	return t
}

var (
	_ repository.ReconciliationStore = (*Store)(nil)
)
