package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greenlight-billing/internal/middleware"
	"greenlight-billing/pkg/logger"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Bills          *BillHandler
	Customers      *CustomerHandler
	Transactions   *TransactionHandler
	Reconciliation *ReconciliationHandler
	// Ping checks storage for /health; nil skips the check.
	Ping func(ctx context.Context) error
}

func NewRouter(h Handlers) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		if h.Ping != nil {
			if err := h.Ping(c.Request.Context()); err != nil {
				logger.GetLogger().WithError(err).Warn("Health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/calculate", h.Bills.Calculate)

		bills := v1.Group("/bills")
		{
			bills.POST("", h.Bills.GenerateBill)
			bills.GET("/:bill_id", h.Bills.GetBill)
			bills.DELETE("/:bill_id", h.Bills.DeleteBill)
		}

		customers := v1.Group("/customers")
		{
			customers.POST("", h.Customers.CreateCustomer)
			customers.GET("/:customer_id", h.Customers.GetCustomer)
			customers.GET("/:customer_id/bills", h.Customers.ListBills)
			customers.GET("/:customer_id/balance", h.Customers.GetBalance)
			customers.POST("/:customer_id/balance/recalculate", h.Customers.RecalculateBalance)
			customers.GET("/:customer_id/statement.xlsx", h.Customers.ExportStatement)
		}

		transactions := v1.Group("/transactions")
		{
			transactions.POST("", h.Transactions.CreateTransaction)
			transactions.POST("/import", h.Transactions.ImportTransactions)
			transactions.GET("", h.Transactions.ListTransactions)
			transactions.GET("/:transaction_id", h.Transactions.GetTransaction)
			transactions.DELETE("/:transaction_id", h.Transactions.DeleteTransaction)
		}

		reconciliation := v1.Group("/reconcile")
		{
			reconciliation.POST("/allocate", h.Reconciliation.Allocate)
			reconciliation.POST("/auto-distribute", h.Reconciliation.AutoDistribute)
			reconciliation.POST("/undo/:transaction_id", h.Reconciliation.Undo)
		}
	}

	return router
}
