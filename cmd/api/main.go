package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "greenlight-billing/docs"
	"greenlight-billing/internal/app"
	"greenlight-billing/internal/config"
	"greenlight-billing/internal/handler"
	"greenlight-billing/internal/metrics"
	"greenlight-billing/pkg/logger"
)

// @title Greenlight Billing API
// @version 1.0
// @description Solar billing, bank-statement reconciliation and customer balances
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@greenlight-billing.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.App.LogLevel)
	logger.GetLogger().Info("Starting Greenlight Billing Service")

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := app.ConnectDB(cfg.Database)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	logger.GetLogger().Info("Database connection established")

	locker, closeLocker, err := app.NewLocker(ctx, cfg)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to set up locks")
	}
	defer closeLocker()

	tariffs, err := app.NewTariffSource(cfg.Tariff, db)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to load tariff")
	}

	services := app.NewServices(db, tariffs, locker, cfg.App.BatchSize)

	router := handler.NewRouter(handler.Handlers{
		Bills:          handler.NewBillHandler(services.Billing),
		Customers:      handler.NewCustomerHandler(services.Customers, services.Billing, services.Balances, services.Statements),
		Transactions:   handler.NewTransactionHandler(services.Transactions, services.Reconciliation),
		Reconciliation: handler.NewReconciliationHandler(services.Reconciliation),
		Ping:           db.PingContext,
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.GetLogger().WithField("address", addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.GetLogger().WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.GetLogger().Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.GetLogger().WithError(err).Error("Server shutdown failed")
	}
}
