package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/service"
	"greenlight-billing/pkg/logger"
	"greenlight-billing/pkg/response"
)

var (
	notFoundErrors = []error{
		domain.ErrBillNotFound,
		domain.ErrTransactionNotFound,
		domain.ErrCustomerNotFound,
	}
	conflictErrors = []error{
		domain.ErrTransactionLinked,
		domain.ErrBillHasPayments,
		domain.ErrBillExists,
		domain.ErrTransactionExists,
		domain.ErrLockHeld,
	}
	badRequestErrors = []error{
		domain.ErrAllocationExceedsCap,
		domain.ErrAllocationExceedsAmount,
		domain.ErrAllocationMismatch,
		domain.ErrInvalidAmount,
		domain.ErrNoAllocations,
		domain.ErrDuplicateBill,
		domain.ErrInvalidPeriod,
		domain.ErrInvalidUsage,
		domain.ErrInvalidTariff,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.ValidationError(c, err)
	case isAny(err, notFoundErrors):
		response.NotFound(c, err.Error())
	case isAny(err, conflictErrors):
		response.Conflict(c, message, err.Error())
	case isAny(err, badRequestErrors):
		response.BadRequest(c, message, err.Error())
	default:
		logger.GetLogger().WithError(err).Error(message)
		response.InternalError(c, message, err.Error())
	}
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

// parseDate accepts a calendar date or an RFC3339 timestamp.
func parseDate(value string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func badDate(c *gin.Context, field string) {
	response.BadRequest(c, "Invalid "+field+" format", "Use YYYY-MM-DD or RFC3339 format")
}
