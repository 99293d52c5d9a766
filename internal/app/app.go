// Package app wires configuration, storage and services for the binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"greenlight-billing/internal/config"
	"greenlight-billing/internal/lock"
	"greenlight-billing/internal/repository"
	"greenlight-billing/internal/service"
	"greenlight-billing/internal/tariff"
	"greenlight-billing/pkg/logger"
)

// Services holds every service backed by one database.
type Services struct {
	Customers      service.CustomerService
	Billing        service.BillingService
	Balances       service.BalanceService
	Reconciliation service.ReconciliationService
	Transactions   service.TransactionService
	Statements     service.StatementService
}

func ConnectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)

	return db, nil
}

// NewLocker returns a Redis locker when REDIS_ADDR is set, otherwise an
// in-process keyed mutex. The returned close function is never nil.
func NewLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func() error, error) {
	if cfg.Redis.Addr == "" {
		logger.GetLogger().Info("Using in-process locks")
		return lock.NewKeyedMutex(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.GetLogger().WithField("addr", cfg.Redis.Addr).Info("Using Redis locks")
	return lock.NewRedisLocker(client, cfg.Lock.Prefix, cfg.Lock.TTL, cfg.Lock.Wait), client.Close, nil
}

func NewTariffSource(cfg config.TariffConfig, db *sql.DB) (tariff.Source, error) {
	if cfg.Source == config.TariffSourceDB {
		return repository.NewTariffRepository(db), nil
	}
	return tariff.NewFileSource(cfg.File)
}

func NewServices(db *sql.DB, tariffs tariff.Source, locker lock.Locker, batchSize int) *Services {
	customers := repository.NewCustomerRepository(db)
	bills := repository.NewBillRepository(db)
	transactions := repository.NewTransactionRepository(db)
	allocations := repository.NewAllocationRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	store := repository.NewReconciliationStore(db)

	balances := service.NewBalanceService(customers, bills, allocations, balanceRepo, locker)

	return &Services{
		Customers:      service.NewCustomerService(customers),
		Billing:        service.NewBillingService(customers, bills, allocations, tariffs, balances, locker),
		Balances:       balances,
		Reconciliation: service.NewReconciliationService(transactions, bills, allocations, store, balances, locker),
		Transactions:   service.NewTransactionService(transactions, batchSize),
		Statements:     service.NewStatementService(customers, bills, allocations, balanceRepo),
	}
}
