package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/service"
	"greenlight-billing/pkg/logger"
	"greenlight-billing/pkg/response"
)

type ReconciliationHandler struct {
	service service.ReconciliationService
}

func NewReconciliationHandler(service service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: service}
}

type AllocateRequest struct {
	TransactionID string                     `json:"transaction_id" binding:"required"`
	Allocations   []domain.AllocationRequest `json:"allocations" binding:"required,min=1"`
	RequireFull   bool                       `json:"require_full"`
}

type AutoDistributeRequest struct {
	TransactionID string   `json:"transaction_id" binding:"required"`
	BillIDs       []string `json:"bill_ids" binding:"required,min=1"`
	// Apply stores the proposal instead of only returning it.
	Apply bool `json:"apply"`
}

// Allocate godoc
// @Summary Allocate a transaction to bills
// @Description Apply amounts from one transaction to one or more bills in a single atomic write
// @Tags reconciliation
// @Accept json
// @Produce json
// @Param request body AllocateRequest true "Allocation request"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/reconcile/allocate [post]
func (h *ReconciliationHandler) Allocate(c *gin.Context) {
	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("Invalid request")
		response.ValidationError(c, err)
		return
	}

	result, err := h.service.Allocate(c.Request.Context(), service.AllocateRequest{
		TransactionID: req.TransactionID,
		Allocations:   req.Allocations,
		RequireFull:   req.RequireFull,
	})
	if err != nil {
		respondError(c, err, "Allocation failed")
		return
	}

	response.Success(c, http.StatusOK, "Allocation applied successfully", result)
}

// AutoDistribute godoc
// @Summary Split a transaction across bills
// @Description Propose an even split of the unallocated amount over the selected bills, in order. With apply=true the proposal is allocated.
// @Tags reconciliation
// @Accept json
// @Produce json
// @Param request body AutoDistributeRequest true "Transaction and bills"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/reconcile/auto-distribute [post]
func (h *ReconciliationHandler) AutoDistribute(c *gin.Context) {
	var req AutoDistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	if req.Apply {
		result, err := h.service.AutoAllocate(c.Request.Context(), req.TransactionID, req.BillIDs)
		if err != nil {
			respondError(c, err, "Allocation failed")
			return
		}
		response.Success(c, http.StatusOK, "Allocation applied successfully", result)
		return
	}

	proposal, err := h.service.AutoDistribute(c.Request.Context(), req.TransactionID, req.BillIDs)
	if err != nil {
		respondError(c, err, "Distribution failed")
		return
	}

	response.Success(c, http.StatusOK, "Distribution proposed", proposal)
}

// Undo godoc
// @Summary Undo a transaction's allocations
// @Description Reverse every allocation of the transaction. Undoing an unmatched transaction is a no-op.
// @Tags reconciliation
// @Produce json
// @Param transaction_id path string true "Transaction ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/reconcile/undo/{transaction_id} [post]
func (h *ReconciliationHandler) Undo(c *gin.Context) {
	transactionID := c.Param("transaction_id")

	if err := h.service.Undo(c.Request.Context(), transactionID); err != nil {
		respondError(c, err, "Undo failed")
		return
	}

	response.Success(c, http.StatusOK, "Allocation undone successfully", gin.H{"transaction_id": transactionID})
}
