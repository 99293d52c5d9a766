package service

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"greenlight-billing/internal/calculator"
	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/lock"
	"greenlight-billing/internal/metrics"
	"greenlight-billing/internal/repository"
	"greenlight-billing/internal/tariff"
	"greenlight-billing/pkg/logger"
)

type GenerateBillRequest struct {
	CustomerID  string             `json:"customer_id"`
	PeriodStart time.Time          `json:"period_start"`
	PeriodEnd   time.Time          `json:"period_end"`
	Usage       domain.UsageRecord `json:"usage"`
}

func (r GenerateBillRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CustomerID, validation.Required),
		validation.Field(&r.PeriodStart, validation.Required),
		validation.Field(&r.PeriodEnd, validation.Required),
	)
}

// CalculateRequest previews a bill. Overrides come from the customer when
// CustomerID is set, otherwise from the request.
type CalculateRequest struct {
	CustomerID  string                   `json:"customer_id,omitempty"`
	PeriodStart time.Time                `json:"period_start"`
	PeriodEnd   time.Time                `json:"period_end"`
	Usage       domain.UsageRecord       `json:"usage"`
	Overrides   domain.CustomerOverrides `json:"overrides"`
}

type GeneratedBill struct {
	Bill    domain.Bill             `json:"bill"`
	Result  calculator.BillResult   `json:"calculation"`
	Balance *domain.CustomerBalance `json:"balance,omitempty"`
}

type BillingService interface {
	GenerateBill(ctx context.Context, req GenerateBillRequest) (*GeneratedBill, error)
	Calculate(ctx context.Context, req CalculateRequest) (*calculator.BillResult, error)
	GetBill(ctx context.Context, id string) (*domain.Bill, error)
	ListBills(ctx context.Context, customerID string, pendingOnly bool) ([]domain.Bill, error)
	DeleteBill(ctx context.Context, id string) error
}

type billingService struct {
	customers   repository.CustomerRepository
	bills       repository.BillRepository
	allocations repository.AllocationRepository
	tariffs     tariff.Source
	balances    BalanceService
	locker      lock.Locker
}

func NewBillingService(
	customers repository.CustomerRepository,
	bills repository.BillRepository,
	allocations repository.AllocationRepository,
	tariffs tariff.Source,
	balances BalanceService,
	locker lock.Locker,
) BillingService {
	return &billingService{
		customers:   customers,
		bills:       bills,
		allocations: allocations,
		tariffs:     tariffs,
		balances:    balances,
		locker:      locker,
	}
}

// GenerateBill calculates and stores the bill for one customer period. The
// previous bill's pending amount is carried in as arrears, and later bills are
// carried forward again when the period lands between existing ones.
func (s *billingService) GenerateBill(ctx context.Context, req GenerateBillRequest) (*GeneratedBill, error) {
	generated, err := s.generate(ctx, req)
	metrics.ObserveBillGenerated(err)
	return generated, err
}

func (s *billingService) generate(ctx context.Context, req GenerateBillRequest) (*GeneratedBill, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	release, err := s.locker.Acquire(ctx, lock.CustomerBillsKey(req.CustomerID))
	if err != nil {
		return nil, err
	}
	defer release()

	customer, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	result, err := s.calculate(ctx, req.Usage, domain.BillingPeriod{Start: req.PeriodStart, End: req.PeriodEnd}, customer.Overrides())
	if err != nil {
		return nil, err
	}

	existing, err := s.bills.GetByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills: %w", err)
	}

	for _, b := range existing {
		if b.PeriodStart.Equal(req.PeriodStart) {
			return nil, fmt.Errorf("%w: customer %s from %s", domain.ErrBillExists, customer.ID, req.PeriodStart.Format("2006-01-02"))
		}
	}

	bill := domain.Bill{
		ID:                uuid.New().String(),
		CustomerID:        customer.ID,
		PeriodStart:       req.PeriodStart,
		PeriodEnd:         req.PeriodEnd,
		ConsumptionKWh:    req.Usage.ConsumptionKWh,
		ExportedKWh:       req.Usage.ExportedKWh,
		BelcoTotal:        result.BelcoTotal,
		TotalRevenue:      result.FinalRevenue,
		CarriedArrears:    decimal.Zero,
		TotalBill:         result.FinalRevenue,
		Arrears:           decimal.Zero,
		ReconciliationIDs: []string{},
	}
	bill.ApplyPaid(decimal.Zero, false)

	// the new bill carries its predecessor's pending amount and, when it lands
	// between existing periods, changes what the later bills carry
	chain := insertByPeriod(existing, bill)
	moved := domain.CarryForward(chain)
	var carried []domain.Bill
	for _, b := range moved {
		if b.ID != bill.ID {
			carried = append(carried, b)
		}
	}
	for _, b := range chain {
		if b.ID == bill.ID {
			bill = b
		}
	}

	if err := s.bills.Save(ctx, &bill, carried...); err != nil {
		return nil, err
	}

	overdue := chain[len(chain)-1].CarriedArrears
	balance, err := s.balances.ApplyNewBill(ctx, customer.ID, bill.TotalRevenue, overdue)
	if err != nil {
		// the bill stands; a recalculation repairs the projection
		logger.GetLogger().WithError(err).WithField("customer_id", customer.ID).Error("Failed to apply new bill to balance")
	}

	if err := result.Err(); err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", customer.ID).Warn("Bill generated without consumption")
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"bill_id":         bill.ID,
		"customer_id":     customer.ID,
		"period_start":    bill.PeriodStart.Format("2006-01-02"),
		"total_revenue":   bill.TotalRevenue.StringFixed(2),
		"carried_arrears": bill.CarriedArrears.StringFixed(2),
		"carried_bills":   len(carried),
	}).Info("Bill generated")

	return &GeneratedBill{Bill: bill, Result: *result, Balance: balance}, nil
}

func (s *billingService) Calculate(ctx context.Context, req CalculateRequest) (*calculator.BillResult, error) {
	overrides := req.Overrides
	if req.CustomerID != "" {
		customer, err := s.customers.Get(ctx, req.CustomerID)
		if err != nil {
			return nil, err
		}
		overrides = customer.Overrides()
	}
	return s.calculate(ctx, req.Usage, domain.BillingPeriod{Start: req.PeriodStart, End: req.PeriodEnd}, overrides)
}

func (s *billingService) calculate(ctx context.Context, usage domain.UsageRecord, period domain.BillingPeriod, overrides domain.CustomerOverrides) (*calculator.BillResult, error) {
	t, err := s.tariffs.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tariff: %w", err)
	}

	start := time.Now()
	result, err := calculator.CalculateBill(usage, period, t, overrides)
	metrics.ObserveCalculation(err, time.Since(start))
	return result, err
}

func (s *billingService) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	return s.bills.Get(ctx, id)
}

func (s *billingService) ListBills(ctx context.Context, customerID string, pendingOnly bool) ([]domain.Bill, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	if pendingOnly {
		return s.bills.ListPending(ctx, customerID)
	}
	return s.bills.GetByCustomer(ctx, customerID)
}

// DeleteBill removes a bill that has no payments attached, carries the
// remaining bills forward and rebuilds the customer's balance.
func (s *billingService) DeleteBill(ctx context.Context, id string) error {
	// a bill's customer never changes, so it can be read before locking
	owner, err := s.bills.Get(ctx, id)
	if err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, lock.BillKey(id), lock.CustomerBillsKey(owner.CustomerID))
	if err != nil {
		return err
	}
	defer release()

	bill, err := s.bills.Get(ctx, id)
	if err != nil {
		return err
	}

	allocations, err := s.allocations.ListByBill(ctx, id)
	if err != nil {
		return err
	}
	if len(allocations) > 0 {
		return fmt.Errorf("%w: bill %s has %d allocations", domain.ErrBillHasPayments, id, len(allocations))
	}

	existing, err := s.bills.GetByCustomer(ctx, bill.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load bills: %w", err)
	}
	remaining := make([]domain.Bill, 0, len(existing))
	for _, b := range existing {
		if b.ID != id {
			remaining = append(remaining, b)
		}
	}

	if err := s.bills.Delete(ctx, id, domain.CarryForward(remaining)...); err != nil {
		return err
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"bill_id":     id,
		"customer_id": bill.CustomerID,
	}).Info("Bill deleted")

	if _, err := s.balances.Recalculate(ctx, bill.CustomerID); err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", bill.CustomerID).Error("Failed to recalculate balance after bill deletion")
	}
	return nil
}
