package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/lock"
	"greenlight-billing/internal/metrics"
	"greenlight-billing/internal/repository"
	"greenlight-billing/pkg/logger"
)

// BalanceService maintains the customer_balances projection. Recalculate is
// authoritative; ApplyNewBill and ApplyPayment are incremental shortcuts that
// converge with it.
type BalanceService interface {
	Get(ctx context.Context, customerID string) (*domain.CustomerBalance, error)
	Recalculate(ctx context.Context, customerID string) (*domain.CustomerBalance, error)
	RecalculateAll(ctx context.Context) (int, error)
	ApplyNewBill(ctx context.Context, customerID string, billAmount, overdueCarry decimal.Decimal) (*domain.CustomerBalance, error)
	ApplyPayment(ctx context.Context, customerID string, amount, overdue decimal.Decimal) (*domain.CustomerBalance, error)
}

type balanceService struct {
	customers   repository.CustomerRepository
	bills       repository.BillRepository
	allocations repository.AllocationRepository
	balances    repository.BalanceRepository
	locker      lock.Locker
}

func NewBalanceService(
	customers repository.CustomerRepository,
	bills repository.BillRepository,
	allocations repository.AllocationRepository,
	balances repository.BalanceRepository,
	locker lock.Locker,
) BalanceService {
	return &balanceService{
		customers:   customers,
		bills:       bills,
		allocations: allocations,
		balances:    balances,
		locker:      locker,
	}
}

func (s *balanceService) Get(ctx context.Context, customerID string) (*domain.CustomerBalance, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	return s.balances.Get(ctx, customerID)
}

// Recalculate rebuilds the balance from bills and allocations alone.
//
// total_billed is the sum of each bill's TotalRevenue, not of TotalBill.
// TotalBill also holds the arrears carried in from the previous bill, which
// were already billed there; summing TotalBill would bill them twice.
// total_paid is the sum of allocations on the customer's bills and overdue is
// the carried arrears on the latest bill.
func (s *balanceService) Recalculate(ctx context.Context, customerID string) (*domain.CustomerBalance, error) {
	release, err := s.locker.Acquire(ctx, lock.CustomerKey(customerID))
	if err != nil {
		return nil, err
	}
	defer release()

	balance, err := s.recalculate(ctx, customerID)
	metrics.ObserveRecalculation(err)
	return balance, err
}

func (s *balanceService) recalculate(ctx context.Context, customerID string) (*domain.CustomerBalance, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}

	bills, err := s.bills.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills: %w", err)
	}

	balance := domain.NewCustomerBalance(customerID)
	ids := make([]string, 0, len(bills))
	for _, b := range bills {
		balance.TotalBilled = balance.TotalBilled.Add(b.TotalRevenue)
		ids = append(ids, b.ID)
	}
	if len(bills) > 0 {
		// bills are ordered by period start
		balance.Overdue = bills[len(bills)-1].CarriedArrears
	}

	allocations, err := s.allocations.ListByBills(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}
	balance.TotalPaid = domain.SumAllocations(allocations)
	balance.Settle()

	if err := s.balances.Save(ctx, &balance); err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"customer_id":  customerID,
		"total_billed": balance.TotalBilled.StringFixed(2),
		"total_paid":   balance.TotalPaid.StringFixed(2),
		"due_balance":  balance.DueBalance.StringFixed(2),
		"wallet":       balance.Wallet.StringFixed(2),
	}).Info("Customer balance recalculated")

	return &balance, nil
}

// RecalculateAll rebuilds every customer's balance and returns how many were rebuilt.
func (s *balanceService) RecalculateAll(ctx context.Context) (int, error) {
	customers, err := s.customers.List(ctx)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, c := range customers {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.Recalculate(ctx, c.ID); err != nil {
			return done, fmt.Errorf("customer %s: %w", c.ID, err)
		}
		done++
	}
	return done, nil
}

func (s *balanceService) ApplyNewBill(ctx context.Context, customerID string, billAmount, overdueCarry decimal.Decimal) (*domain.CustomerBalance, error) {
	return s.update(ctx, customerID, func(b *domain.CustomerBalance) {
		b.TotalBilled = b.TotalBilled.Add(billAmount)
		b.Overdue = overdueCarry
	})
}

// ApplyPayment adds amount to the paid total. overdue is the carried arrears
// on the customer's latest bill once the payment has been carried forward.
func (s *balanceService) ApplyPayment(ctx context.Context, customerID string, amount, overdue decimal.Decimal) (*domain.CustomerBalance, error) {
	return s.update(ctx, customerID, func(b *domain.CustomerBalance) {
		b.TotalPaid = b.TotalPaid.Add(amount)
		b.Overdue = overdue
	})
}

func (s *balanceService) update(ctx context.Context, customerID string, mutate func(*domain.CustomerBalance)) (*domain.CustomerBalance, error) {
	release, err := s.locker.Acquire(ctx, lock.CustomerKey(customerID))
	if err != nil {
		return nil, err
	}
	defer release()

	balance, err := s.balances.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	mutate(balance)
	balance.Settle()

	if err := s.balances.Save(ctx, balance); err != nil {
		return nil, err
	}
	return balance, nil
}
