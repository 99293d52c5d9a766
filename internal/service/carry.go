package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/repository"
)

// carryForward re-derives the carried arrears of every customer touched by
// changed, with changed standing in for the stored copies. It returns changed
// extended by the later bills whose figures moved, and the overdue amount per
// customer: the carried arrears on their latest bill.
//
// Callers hold the customer-bills lock of every affected customer.
func carryForward(ctx context.Context, bills repository.BillRepository, changed []domain.Bill) ([]domain.Bill, map[string]decimal.Decimal, error) {
	pending := make(map[string]domain.Bill, len(changed))
	customers := make(map[string]decimal.Decimal)
	for _, b := range changed {
		pending[b.ID] = b
		customers[b.CustomerID] = decimal.Zero
	}

	out := append([]domain.Bill(nil), changed...)
	index := make(map[string]int, len(out))
	for i, b := range out {
		index[b.ID] = i
	}

	for _, customerID := range sortedKeys(customers) {
		stored, err := bills.GetByCustomer(ctx, customerID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load bills: %w", err)
		}
		for i, b := range stored {
			if p, ok := pending[b.ID]; ok {
				stored[i] = p
			}
		}

		for _, b := range domain.CarryForward(stored) {
			if i, ok := index[b.ID]; ok {
				out[i] = b
				continue
			}
			index[b.ID] = len(out)
			out = append(out, b)
		}

		if len(stored) > 0 {
			customers[customerID] = stored[len(stored)-1].CarriedArrears
		}
	}

	return out, customers, nil
}

// customerIDs returns the distinct customers of bills, sorted.
func customerIDs(bills map[string]domain.Bill) []string {
	ids := make([]string, 0, len(bills))
	for _, b := range bills {
		ids = append(ids, b.CustomerID)
	}
	return uniqueIDs(ids)
}

// insertByPeriod returns bills with bill placed in period-start order.
func insertByPeriod(bills []domain.Bill, bill domain.Bill) []domain.Bill {
	out := append(append([]domain.Bill(nil), bills...), bill)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out
}
