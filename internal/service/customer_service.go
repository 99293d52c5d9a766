package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/repository"
	"greenlight-billing/pkg/logger"
)

// ErrValidation marks request validation failures.
var ErrValidation = errors.New("validation failed")

type CreateCustomerRequest struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Scaling    *decimal.Decimal `json:"scaling,omitempty"`
	FixedPrice *decimal.Decimal `json:"fixed_price,omitempty"`
}

func (r CreateCustomerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, is.EmailFormat),
		validation.Field(&r.Scaling, validation.By(positiveDecimal)),
		validation.Field(&r.FixedPrice, validation.By(nonNegativeDecimal)),
	)
}

type CustomerService interface {
	Create(ctx context.Context, req CreateCustomerRequest) (*domain.Customer, error)
	Get(ctx context.Context, id string) (*domain.Customer, error)
}

type customerService struct {
	customers repository.CustomerRepository
}

func NewCustomerService(customers repository.CustomerRepository) CustomerService {
	return &customerService{customers: customers}
}

func (s *customerService) Create(ctx context.Context, req CreateCustomerRequest) (*domain.Customer, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}

	customer := &domain.Customer{
		ID:    id,
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	}
	if req.Scaling != nil {
		customer.Scaling = decimal.NewNullDecimal(*req.Scaling)
	}
	if req.FixedPrice != nil {
		customer.FixedPrice = decimal.NewNullDecimal(*req.FixedPrice)
	}

	if err := s.customers.Save(ctx, customer); err != nil {
		return nil, err
	}

	logger.GetLogger().WithField("customer_id", customer.ID).Info("Customer saved")
	return customer, nil
}

func (s *customerService) Get(ctx context.Context, id string) (*domain.Customer, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	return s.customers.Get(ctx, id)
}

func positiveDecimal(value interface{}) error {
	d, _ := value.(*decimal.Decimal)
	if d != nil && !d.IsPositive() {
		return errors.New("must be greater than zero")
	}
	return nil
}

func nonNegativeDecimal(value interface{}) error {
	d, _ := value.(*decimal.Decimal)
	if d != nil && d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}
