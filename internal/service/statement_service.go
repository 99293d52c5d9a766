package service

import (
	"context"
	"fmt"
	"time"

	"greenlight-billing/internal/metrics"
	"greenlight-billing/internal/repository"
	"greenlight-billing/internal/statement"
	"greenlight-billing/pkg/logger"
)

// StatementService renders downloadable customer statements
type StatementService interface {
	ExportXLSX(ctx context.Context, customerID string) ([]byte, error)
}

type statementService struct {
	customers   repository.CustomerRepository
	bills       repository.BillRepository
	allocations repository.AllocationRepository
	balances    repository.BalanceRepository
}

func NewStatementService(
	customers repository.CustomerRepository,
	bills repository.BillRepository,
	allocations repository.AllocationRepository,
	balances repository.BalanceRepository,
) StatementService {
	return &statementService{
		customers:   customers,
		bills:       bills,
		allocations: allocations,
		balances:    balances,
	}
}

func (s *statementService) ExportXLSX(ctx context.Context, customerID string) ([]byte, error) {
	start := time.Now()
	out, err := s.export(ctx, customerID)
	metrics.ObserveStatementExport(err, time.Since(start))
	return out, err
}

func (s *statementService) export(ctx context.Context, customerID string) ([]byte, error) {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	bills, err := s.bills.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills: %w", err)
	}

	ids := make([]string, 0, len(bills))
	for _, b := range bills {
		ids = append(ids, b.ID)
	}
	allocations, err := s.allocations.ListByBills(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}

	balance, err := s.balances.Get(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}

	out, err := statement.BuildXLSX(statement.Data{
		Customer:    *customer,
		Balance:     *balance,
		Bills:       bills,
		Allocations: allocations,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build statement: %w", err)
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"customer_id": customerID,
		"bills":       len(bills),
		"allocations": len(allocations),
		"bytes":       len(out),
	}).Info("Statement exported")

	return out, nil
}
