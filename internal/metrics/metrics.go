package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"greenlight-billing/internal/domain"
)

const (
	metricPrefix = "billing_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	billsGenerated      *prometheus.CounterVec
	calculationLatency  *prometheus.HistogramVec
	allocationsApplied  prometheus.Counter
	allocatedAmount     prometheus.Counter
	allocationsFailed   *prometheus.CounterVec
	undoTotal           *prometheus.CounterVec
	balanceRecalcs      *prometheus.CounterVec
	transactionsImport  *prometheus.CounterVec
	statementExportTime *prometheus.HistogramVec
)

// Init registers the billing metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		billsGenerated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bills_generated_total",
				Help: "Total bill generation attempts by result",
			},
			[]string{"result"},
		)
		calculationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "calculation_latency_seconds",
				Help:    "Billing calculator latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		allocationsApplied = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "allocations_applied_total",
				Help: "Total allocate operations committed",
			},
		)
		allocatedAmount = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "allocated_amount_total",
				Help: "Total amount allocated to bills",
			},
		)
		allocationsFailed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "allocations_failed_total",
				Help: "Total rejected allocate operations by reason",
			},
			[]string{"reason"},
		)
		undoTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "undo_total",
				Help: "Total undo operations by result",
			},
			[]string{"result"},
		)
		balanceRecalcs = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "balance_recalculations_total",
				Help: "Total full balance recalculations by result",
			},
			[]string{"result"},
		)
		transactionsImport = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transactions_imported_total",
				Help: "Total statement lines processed by outcome",
			},
			[]string{"outcome"},
		)
		statementExportTime = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_export_latency_seconds",
				Help:    "Customer statement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			billsGenerated,
			calculationLatency,
			allocationsApplied,
			allocatedAmount,
			allocationsFailed,
			undoTotal,
			balanceRecalcs,
			transactionsImport,
			statementExportTime,
		)
	})
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// Reason maps an error to a bounded label value.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrAllocationExceedsCap):
		return "exceeds_cap"
	case errors.Is(err, domain.ErrAllocationExceedsAmount):
		return "exceeds_amount"
	case errors.Is(err, domain.ErrAllocationMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrNoAllocations), errors.Is(err, domain.ErrDuplicateBill):
		return "invalid_request"
	case errors.Is(err, domain.ErrBillNotFound), errors.Is(err, domain.ErrTransactionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrLockHeld):
		return "locked"
	default:
		return "internal"
	}
}

func ObserveBillGenerated(err error) {
	if billsGenerated != nil {
		billsGenerated.WithLabelValues(result(err)).Inc()
	}
}

func ObserveCalculation(err error, duration time.Duration) {
	if calculationLatency != nil {
		calculationLatency.WithLabelValues(result(err)).Observe(duration.Seconds())
	}
}

func ObserveAllocation(amount float64) {
	if allocationsApplied != nil {
		allocationsApplied.Inc()
	}
	if allocatedAmount != nil && amount > 0 {
		allocatedAmount.Add(amount)
	}
}

func IncAllocationFailed(err error) {
	if allocationsFailed != nil {
		allocationsFailed.WithLabelValues(Reason(err)).Inc()
	}
}

func ObserveUndo(err error) {
	if undoTotal != nil {
		undoTotal.WithLabelValues(result(err)).Inc()
	}
}

func ObserveRecalculation(err error) {
	if balanceRecalcs != nil {
		balanceRecalcs.WithLabelValues(result(err)).Inc()
	}
}

func AddImported(outcome string, count int) {
	if transactionsImport != nil && count > 0 {
		transactionsImport.WithLabelValues(outcome).Add(float64(count))
	}
}

func ObserveStatementExport(err error, duration time.Duration) {
	if statementExportTime != nil {
		statementExportTime.WithLabelValues(result(err)).Observe(duration.Seconds())
	}
}
