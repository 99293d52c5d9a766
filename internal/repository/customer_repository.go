package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"greenlight-billing/internal/domain"
	"greenlight-billing/pkg/logger"
)

type CustomerRepository interface {
	Get(ctx context.Context, id string) (*domain.Customer, error)
	List(ctx context.Context) ([]domain.Customer, error)
	Save(ctx context.Context, customer *domain.Customer) error
}

type customerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

const customerColumns = `id, name, email, scaling, fixed_price, created_at`

func scanCustomer(row scanner) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Scaling, &c.FixedPrice, &c.CreatedAt)
	return c, err
}

func (r *customerRepository) Get(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", id).Error("Failed to get customer")
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id`)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query customers")
		return nil, err
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan customer")
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *customerRepository) Save(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, name, email, scaling, fixed_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			scaling = EXCLUDED.scaling,
			fixed_price = EXCLUDED.fixed_price
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		customer.ID,
		customer.Name,
		customer.Email,
		customer.Scaling,
		customer.FixedPrice,
	).Scan(&customer.CreatedAt)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", customer.ID).Error("Failed to save customer")
		return err
	}
	return nil
}
