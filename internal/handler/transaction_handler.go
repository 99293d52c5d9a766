package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/service"
	"greenlight-billing/pkg/logger"
	"greenlight-billing/pkg/response"
)

type TransactionHandler struct {
	service        service.TransactionService
	reconciliation service.ReconciliationService
}

func NewTransactionHandler(service service.TransactionService, reconciliation service.ReconciliationService) *TransactionHandler {
	return &TransactionHandler{service: service, reconciliation: reconciliation}
}

type CreateTransactionRequest struct {
	Date        string          `json:"date" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	Source      string          `json:"source"`
}

type ListTransactionsRequest struct {
	Status string `form:"status"`
}

// CreateTransaction godoc
// @Summary Create a new transaction
// @Description Record a single bank-statement line as an unmatched transaction
// @Tags transactions
// @Accept json
// @Produce json
// @Param transaction body CreateTransactionRequest true "Transaction data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("Invalid request")
		response.ValidationError(c, err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		badDate(c, "date")
		return
	}

	tx, err := h.service.Create(c.Request.Context(), service.CreateTransactionRequest{
		Date:        date,
		Description: req.Description,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Source:      req.Source,
	})
	if err != nil {
		respondError(c, err, "Failed to create transaction")
		return
	}

	response.Created(c, "Transaction created successfully", tx)
}

// ImportTransactions godoc
// @Summary Import a bank statement
// @Description Upload a CSV statement with date, description, amount and optional reference columns
// @Tags transactions
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV statement"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/transactions/import [post]
func (h *TransactionHandler) ImportTransactions(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "Missing statement file", err.Error())
		return
	}

	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, "Unreadable statement file", err.Error())
		return
	}
	defer file.Close()

	summary, err := h.service.Import(c.Request.Context(), file, header.Filename)
	if err != nil {
		respondError(c, err, "Failed to import statement")
		return
	}

	response.Created(c, "Statement imported successfully", summary)
}

// GetTransaction godoc
// @Summary Get transaction by ID
// @Tags transactions
// @Produce json
// @Param transaction_id path string true "Transaction ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/transactions/{transaction_id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	transactionID := c.Param("transaction_id")

	tx, err := h.service.Get(c.Request.Context(), transactionID)
	if err != nil {
		respondError(c, err, "Failed to get transaction")
		return
	}

	response.Success(c, http.StatusOK, "Transaction retrieved successfully", tx)
}

// ListTransactions godoc
// @Summary List transactions by status
// @Tags transactions
// @Produce json
// @Param status query string false "Unmatched, Partially Matched or Matched" default(Unmatched)
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	var req ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	status := domain.TransactionUnmatched
	if req.Status != "" {
		status = domain.TransactionStatus(req.Status)
	}

	transactions, err := h.service.ListByStatus(c.Request.Context(), status)
	if err != nil {
		respondError(c, err, "Failed to list transactions")
		return
	}

	response.Success(c, http.StatusOK, "Transactions retrieved successfully", transactions)
}

// DeleteTransaction godoc
// @Summary Delete a transaction
// @Description Only unmatched transactions can be deleted; undo the match first
// @Tags transactions
// @Produce json
// @Param transaction_id path string true "Transaction ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/transactions/{transaction_id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	transactionID := c.Param("transaction_id")

	if err := h.reconciliation.DeleteTransaction(c.Request.Context(), transactionID); err != nil {
		respondError(c, err, "Failed to delete transaction")
		return
	}

	response.Success(c, http.StatusOK, "Transaction deleted successfully", gin.H{"id": transactionID})
}
