package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"greenlight-billing/internal/service"
	"greenlight-billing/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type CustomerHandler struct {
	customers  service.CustomerService
	billing    service.BillingService
	balances   service.BalanceService
	statements service.StatementService
}

func NewCustomerHandler(
	customers service.CustomerService,
	billing service.BillingService,
	balances service.BalanceService,
	statements service.StatementService,
) *CustomerHandler {
	return &CustomerHandler{
		customers:  customers,
		billing:    billing,
		balances:   balances,
		statements: statements,
	}
}

// CreateCustomer godoc
// @Summary Create or update a customer
// @Tags customers
// @Accept json
// @Produce json
// @Param customer body service.CreateCustomerRequest true "Customer data"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/customers [post]
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var req service.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	customer, err := h.customers.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create customer")
		return
	}

	response.Created(c, "Customer saved successfully", customer)
}

// GetCustomer godoc
// @Summary Get customer by ID
// @Tags customers
// @Produce json
// @Param customer_id path string true "Customer ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/customers/{customer_id} [get]
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	customer, err := h.customers.Get(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		respondError(c, err, "Failed to get customer")
		return
	}

	response.Success(c, http.StatusOK, "Customer retrieved successfully", customer)
}

// ListBills godoc
// @Summary List a customer's bills
// @Description Bills ordered by period start. With pending=true only bills that are not fully paid are returned.
// @Tags customers
// @Produce json
// @Param customer_id path string true "Customer ID"
// @Param pending query bool false "Only unpaid bills"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/customers/{customer_id}/bills [get]
func (h *CustomerHandler) ListBills(c *gin.Context) {
	pendingOnly, _ := strconv.ParseBool(c.DefaultQuery("pending", "false"))

	bills, err := h.billing.ListBills(c.Request.Context(), c.Param("customer_id"), pendingOnly)
	if err != nil {
		respondError(c, err, "Failed to list bills")
		return
	}

	response.Success(c, http.StatusOK, "Bills retrieved successfully", bills)
}

// GetBalance godoc
// @Summary Get customer balance
// @Tags customers
// @Produce json
// @Param customer_id path string true "Customer ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/customers/{customer_id}/balance [get]
func (h *CustomerHandler) GetBalance(c *gin.Context) {
	balance, err := h.balances.Get(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		respondError(c, err, "Failed to get balance")
		return
	}

	response.Success(c, http.StatusOK, "Balance retrieved successfully", balance)
}

// RecalculateBalance godoc
// @Summary Rebuild customer balance
// @Description Recompute the balance from bills and allocations
// @Tags customers
// @Produce json
// @Param customer_id path string true "Customer ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/customers/{customer_id}/balance/recalculate [post]
func (h *CustomerHandler) RecalculateBalance(c *gin.Context) {
	balance, err := h.balances.Recalculate(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		respondError(c, err, "Failed to recalculate balance")
		return
	}

	response.Success(c, http.StatusOK, "Balance recalculated successfully", balance)
}

// ExportStatement godoc
// @Summary Download customer statement
// @Description Excel workbook with the balance, every bill and every allocated payment
// @Tags customers
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param customer_id path string true "Customer ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Response
// @Router /api/v1/customers/{customer_id}/statement.xlsx [get]
func (h *CustomerHandler) ExportStatement(c *gin.Context) {
	customerID := c.Param("customer_id")

	out, err := h.statements.ExportXLSX(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, err, "Failed to export statement")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "statement-"+customerID+".xlsx"))
	c.Data(http.StatusOK, xlsxContentType, out)
}
