package domain

import "errors"

var (
	// Calculation errors are caller bugs and are never retried.
	ErrInvalidPeriod = errors.New("invalid billing period")
	ErrInvalidTariff = errors.New("invalid tariff")
	// ErrNoConsumption is soft: the calculator reports it through
	// BillResult.NoConsumption and still returns a zero-revenue result.
	ErrNoConsumption = errors.New("no consumption in billing period")
	ErrInvalidUsage  = errors.New("usage figures must not be negative")

	ErrAllocationExceedsCap    = errors.New("allocation exceeds bill total revenue")
	ErrAllocationExceedsAmount = errors.New("allocation exceeds transaction unallocated amount")
	ErrAllocationMismatch      = errors.New("allocations do not sum to transaction amount")
	ErrInvalidAmount           = errors.New("allocation amount must be positive")
	ErrNoAllocations           = errors.New("no allocations requested")
	ErrDuplicateBill           = errors.New("bill selected more than once")

	ErrTransactionLinked   = errors.New("transaction is linked to bills, undo the match first")
	ErrBillHasPayments     = errors.New("bill has payments attached")
	ErrBillExists          = errors.New("bill already exists for customer and period")
	ErrBillNotFound        = errors.New("bill not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionExists   = errors.New("transaction already exists")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrTariffNotFound      = errors.New("tariff not found")
	ErrLockHeld            = errors.New("entity is locked by another operation")
)
