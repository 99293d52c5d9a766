package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/service"
	"greenlight-billing/pkg/response"
)

type BillHandler struct {
	service service.BillingService
}

func NewBillHandler(service service.BillingService) *BillHandler {
	return &BillHandler{service: service}
}

type GenerateBillRequest struct {
	CustomerID  string             `json:"customer_id" binding:"required"`
	PeriodStart string             `json:"period_start" binding:"required"`
	PeriodEnd   string             `json:"period_end" binding:"required"`
	Usage       domain.UsageRecord `json:"usage"`
}

type CalculateRequest struct {
	CustomerID  string                   `json:"customer_id"`
	PeriodStart string                   `json:"period_start" binding:"required"`
	PeriodEnd   string                   `json:"period_end" binding:"required"`
	Usage       domain.UsageRecord       `json:"usage"`
	Overrides   domain.CustomerOverrides `json:"overrides"`
}

// GenerateBill godoc
// @Summary Generate a bill
// @Description Calculate and store the bill for one customer period. The previous bill's pending amount is carried as arrears.
// @Tags bills
// @Accept json
// @Produce json
// @Param request body GenerateBillRequest true "Billing period and usage"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/bills [post]
func (h *BillHandler) GenerateBill(c *gin.Context) {
	var req GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	start, err := parseDate(req.PeriodStart)
	if err != nil {
		badDate(c, "period_start")
		return
	}
	end, err := parseDate(req.PeriodEnd)
	if err != nil {
		badDate(c, "period_end")
		return
	}

	generated, err := h.service.GenerateBill(c.Request.Context(), service.GenerateBillRequest{
		CustomerID:  req.CustomerID,
		PeriodStart: start,
		PeriodEnd:   end,
		Usage:       req.Usage,
	})
	if err != nil {
		respondError(c, err, "Failed to generate bill")
		return
	}

	response.Created(c, "Bill generated successfully", generated)
}

// GetBill godoc
// @Summary Get bill by ID
// @Tags bills
// @Produce json
// @Param bill_id path string true "Bill ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/bills/{bill_id} [get]
func (h *BillHandler) GetBill(c *gin.Context) {
	bill, err := h.service.GetBill(c.Request.Context(), c.Param("bill_id"))
	if err != nil {
		respondError(c, err, "Failed to get bill")
		return
	}

	response.Success(c, http.StatusOK, "Bill retrieved successfully", bill)
}

// DeleteBill godoc
// @Summary Delete a bill
// @Description Delete a bill that has no payments allocated to it
// @Tags bills
// @Produce json
// @Param bill_id path string true "Bill ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/bills/{bill_id} [delete]
func (h *BillHandler) DeleteBill(c *gin.Context) {
	billID := c.Param("bill_id")
	if err := h.service.DeleteBill(c.Request.Context(), billID); err != nil {
		respondError(c, err, "Failed to delete bill")
		return
	}

	response.Success(c, http.StatusOK, "Bill deleted successfully", gin.H{"id": billID})
}

// Calculate godoc
// @Summary Preview a bill calculation
// @Description Run the calculator against the current tariff without storing anything
// @Tags bills
// @Accept json
// @Produce json
// @Param request body CalculateRequest true "Billing period, usage and overrides"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/calculate [post]
func (h *BillHandler) Calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	start, err := parseDate(req.PeriodStart)
	if err != nil {
		badDate(c, "period_start")
		return
	}
	end, err := parseDate(req.PeriodEnd)
	if err != nil {
		badDate(c, "period_end")
		return
	}

	result, err := h.service.Calculate(c.Request.Context(), service.CalculateRequest{
		CustomerID:  req.CustomerID,
		PeriodStart: start,
		PeriodEnd:   end,
		Usage:       req.Usage,
		Overrides:   req.Overrides,
	})
	if err != nil {
		respondError(c, err, "Failed to calculate bill")
		return
	}

	response.Success(c, http.StatusOK, "Bill calculated successfully", result)
}
