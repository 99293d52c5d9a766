package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/metrics"
	"greenlight-billing/internal/parser"
	"greenlight-billing/internal/repository"
	"greenlight-billing/pkg/logger"
)

type CreateTransactionRequest struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference,omitempty"`
	Source      string          `json:"source,omitempty"`
}

func (r CreateTransactionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Date, validation.Required),
		validation.Field(&r.Description, validation.Required, validation.Length(1, 500)),
		validation.Field(&r.Amount, validation.By(func(interface{}) error {
			if !r.Amount.IsPositive() {
				return errors.New("must be greater than zero")
			}
			return nil
		})),
	)
}

// ImportSummary reports the outcome of a statement import.
type ImportSummary struct {
	Rows       int `json:"rows"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

type TransactionService interface {
	Create(ctx context.Context, req CreateTransactionRequest) (*domain.Transaction, error)
	Import(ctx context.Context, r io.Reader, source string) (*ImportSummary, error)
	Get(ctx context.Context, id string) (*domain.Transaction, error)
	ListByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error)
}

type transactionService struct {
	repo      repository.TransactionRepository
	batchSize int
}

func NewTransactionService(repo repository.TransactionRepository, batchSize int) TransactionService {
	return &transactionService{repo: repo, batchSize: batchSize}
}

func (s *transactionService) Create(ctx context.Context, req CreateTransactionRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	tx := domain.NewTransaction(uuid.New().String(), req.Date, strings.TrimSpace(req.Description), req.Amount)
	tx.Reference = strings.TrimSpace(req.Reference)
	tx.Source = strings.TrimSpace(req.Source)

	if err := s.repo.Create(ctx, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Import reads a CSV bank statement and stores every valid line as an
// unmatched transaction. Lines whose reference was imported before are skipped.
func (s *transactionService) Import(ctx context.Context, r io.Reader, source string) (*ImportSummary, error) {
	summary := &ImportSummary{}
	p := parser.NewCSVStatementParser(source)

	stats, err := p.Parse(r, s.batchSize, func(batch []domain.Transaction) error {
		inserted, err := s.repo.BulkCreate(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to store batch: %w", err)
		}
		summary.Imported += inserted
		summary.Duplicates += len(batch) - inserted
		return nil
	})
	summary.Rows = stats.Rows
	summary.Invalid = stats.Skipped

	metrics.AddImported("imported", summary.Imported)
	metrics.AddImported("duplicate", summary.Duplicates)
	metrics.AddImported("invalid", summary.Invalid)

	if err != nil {
		logger.GetLogger().WithError(err).WithField("source", source).Error("Statement import failed")
		return summary, err
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"source":     source,
		"rows":       summary.Rows,
		"imported":   summary.Imported,
		"duplicates": summary.Duplicates,
		"invalid":    summary.Invalid,
	}).Info("Statement imported")

	return summary, nil
}

func (s *transactionService) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: transaction id is required", ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *transactionService) ListByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.repo.ListByStatus(ctx, status)
}
