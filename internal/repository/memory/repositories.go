package memory

import (
	"context"
	"fmt"
	"sort"

	"greenlight-billing/internal/domain"
)

type billRepo struct{ s *Store }

func (r billRepo) Get(ctx context.Context, id string) (*domain.Bill, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bills[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBillNotFound, id)
	}
	b = cloneBill(b)
	return &b, nil
}

func (r billRepo) GetMany(ctx context.Context, ids []string) (map[string]domain.Bill, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string]domain.Bill, len(ids))
	for _, id := range ids {
		b, ok := r.s.bills[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrBillNotFound, id)
		}
		out[id] = cloneBill(b)
	}
	return out, nil
}

func (r billRepo) GetByCustomer(ctx context.Context, customerID string) ([]domain.Bill, error) {
	return r.list(ctx, func(b domain.Bill) bool { return b.CustomerID == customerID }), nil
}

func (r billRepo) ListPending(ctx context.Context, customerID string) ([]domain.Bill, error) {
	return r.list(ctx, func(b domain.Bill) bool {
		return b.CustomerID == customerID && b.Status != domain.BillPaid
	}), nil
}

func (r billRepo) list(ctx context.Context, keep func(domain.Bill) bool) []domain.Bill {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Bill
	for _, b := range r.s.bills {
		if keep(b) {
			out = append(out, cloneBill(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.Before(out[j].PeriodStart)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r billRepo) Save(ctx context.Context, bill *domain.Bill, carried ...domain.Bill) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.checkCarried(carried); err != nil {
		return err
	}

	for _, other := range r.s.bills {
		if other.ID != bill.ID && other.CustomerID == bill.CustomerID && other.PeriodStart.Equal(bill.PeriodStart) {
			return fmt.Errorf("%w: customer %s from %s", domain.ErrBillExists, bill.CustomerID, bill.PeriodStart.Format("2006-01-02"))
		}
	}

	now := r.s.now()
	if existing, ok := r.s.bills[bill.ID]; ok {
		bill.CreatedAt = existing.CreatedAt
	} else {
		bill.CreatedAt = now
	}
	bill.UpdatedAt = now
	r.s.bills[bill.ID] = cloneBill(*bill)
	for _, b := range carried {
		r.s.updateBill(b, now)
	}
	return nil
}

func (r billRepo) checkCarried(carried []domain.Bill) error {
	for _, b := range carried {
		if _, ok := r.s.bills[b.ID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrBillNotFound, b.ID)
		}
	}
	return nil
}

func (r billRepo) Delete(ctx context.Context, id string, carried ...domain.Bill) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.checkCarried(carried); err != nil {
		return err
	}

	if _, ok := r.s.bills[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrBillNotFound, id)
	}
	for key := range r.s.allocations {
		if key.billID == id {
			return fmt.Errorf("%w: %s", domain.ErrBillHasPayments, id)
		}
	}
	delete(r.s.bills, id)
	now := r.s.now()
	for _, b := range carried {
		r.s.updateBill(b, now)
	}
	return nil
}

type transactionRepo struct{ s *Store }

func (r transactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.transactions[tx.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrTransactionExists, tx.ID)
	}
	if tx.Reference != "" {
		for _, t := range r.s.transactions {
			if t.Reference == tx.Reference {
				return fmt.Errorf("%w: %s", domain.ErrTransactionExists, tx.Reference)
			}
		}
	}

	now := r.s.now()
	tx.CreatedAt, tx.UpdatedAt = now, now
	stored := *tx
	stored.BillID = cloneString(tx.BillID)
	r.s.transactions[tx.ID] = stored
	return nil
}

func (r transactionRepo) BulkCreate(ctx context.Context, transactions []domain.Transaction) (int, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	refs := make(map[string]bool)
	for _, t := range r.s.transactions {
		if t.Reference != "" {
			refs[t.Reference] = true
		}
	}

	now := r.s.now()
	inserted := 0
	for _, t := range transactions {
		if _, exists := r.s.transactions[t.ID]; exists {
			return inserted, fmt.Errorf("%w: %s", domain.ErrTransactionExists, t.ID)
		}
		if t.Reference != "" && refs[t.Reference] {
			continue
		}
		refs[t.Reference] = true
		t.BillID = cloneString(t.BillID)
		t.CreatedAt, t.UpdatedAt = now, now
		r.s.transactions[t.ID] = t
		inserted++
	}
	return inserted, nil
}

func (r transactionRepo) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	t.BillID = cloneString(t.BillID)
	return &t, nil
}

func (r transactionRepo) Save(ctx context.Context, tx *domain.Transaction) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.transactions[tx.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, tx.ID)
	}
	stored.PaidAmount = tx.PaidAmount
	stored.PendingAmount = tx.PendingAmount
	stored.Status = tx.Status
	stored.BillID = cloneString(tx.BillID)
	stored.UpdatedAt = r.s.now()
	r.s.transactions[tx.ID] = stored
	return nil
}

func (r transactionRepo) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.transactions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	if t.IsLinked() {
		return fmt.Errorf("%w: %s", domain.ErrTransactionLinked, id)
	}
	delete(r.s.transactions, id)
	return nil
}

func (r transactionRepo) ListByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Transaction
	for _, t := range r.s.transactions {
		if t.Status == status {
			t.BillID = cloneString(t.BillID)
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type allocationRepo struct{ s *Store }

func (r allocationRepo) ListByTransaction(ctx context.Context, transactionID string) ([]domain.Allocation, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sortedAllocations(func(a domain.Allocation) bool { return a.TransactionID == transactionID }), nil
}

func (r allocationRepo) ListByBill(ctx context.Context, billID string) ([]domain.Allocation, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sortedAllocations(func(a domain.Allocation) bool { return a.BillID == billID }), nil
}

func (r allocationRepo) ListByBills(ctx context.Context, billIDs []string) ([]domain.Allocation, error) {
	_ = ctx
	want := make(map[string]bool, len(billIDs))
	for _, id := range billIDs {
		want[id] = true
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sortedAllocations(func(a domain.Allocation) bool { return want[a.BillID] }), nil
}

type customerRepo struct{ s *Store }

func (r customerRepo) Get(ctx context.Context, id string) (*domain.Customer, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}
	return &c, nil
}

func (r customerRepo) List(ctx context.Context) ([]domain.Customer, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Customer, 0, len(r.s.customers))
	for _, c := range r.s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r customerRepo) Save(ctx context.Context, customer *domain.Customer) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.customers[customer.ID]; ok {
		customer.CreatedAt = existing.CreatedAt
	} else {
		customer.CreatedAt = r.s.now()
	}
	r.s.customers[customer.ID] = *customer
	return nil
}

type balanceRepo struct{ s *Store }

func (r balanceRepo) Get(ctx context.Context, customerID string) (*domain.CustomerBalance, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.balances[customerID]
	if !ok {
		b = domain.NewCustomerBalance(customerID)
	}
	return &b, nil
}

func (r balanceRepo) Save(ctx context.Context, balance *domain.CustomerBalance) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	balance.UpdatedAt = r.s.now()
	r.s.balances[balance.CustomerID] = *balance
	return nil
}

type tariffRepo struct{ s *Store }

func (r tariffRepo) Current(ctx context.Context) (domain.Tariff, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	now := r.s.now()
	var current *domain.Tariff
	for i := range r.s.tariffs {
		t := &r.s.tariffs[i]
		if t.EffectiveFrom.After(now) {
			continue
		}
		if current == nil || t.EffectiveFrom.After(current.EffectiveFrom) {
			current = t
		}
	}
	if current == nil {
		return domain.Tariff{}, domain.ErrTariffNotFound
	}
	return cloneTariff(*current), nil
}

func (r tariffRepo) Save(ctx context.Context, tariff *domain.Tariff) error {
	_ = ctx
	if err := tariff.Validate(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tariffs = append(r.s.tariffs, cloneTariff(*tariff))
	return nil
}
