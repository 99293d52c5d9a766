package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a billed solar customer. Scaling multiplies metered consumption;
// FixedPrice replaces the discounted per-kWh price when set.
type Customer struct {
	ID         string              `json:"id" db:"id"`
	Name       string              `json:"name" db:"name"`
	Email      string              `json:"email" db:"email"`
	Scaling    decimal.NullDecimal `json:"scaling" db:"scaling"`
	FixedPrice decimal.NullDecimal `json:"fixed_price" db:"fixed_price"`
	CreatedAt  time.Time           `json:"created_at" db:"created_at"`
}

// Overrides extracts the calculator overrides for the customer.
func (c Customer) Overrides() CustomerOverrides {
	var o CustomerOverrides
	if c.Scaling.Valid {
		s := c.Scaling.Decimal
		o.Scaling = &s
	}
	if c.FixedPrice.Valid {
		p := c.FixedPrice.Decimal
		o.FixedPrice = &p
	}
	return o
}
