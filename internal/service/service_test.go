package service_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"greenlight-billing/internal/domain"
	"greenlight-billing/internal/lock"
	"greenlight-billing/internal/repository/memory"
	"greenlight-billing/internal/service"
	"greenlight-billing/internal/tariff"
)

var jan = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store          *memory.Store
	customers      service.CustomerService
	balances       service.BalanceService
	billing        service.BillingService
	reconciliation service.ReconciliationService
	transactions   service.TransactionService
	statements     service.StatementService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	src, err := tariff.NewFileSource(filepath.Join("..", "..", "config", "tariff.yaml"))
	require.NoError(t, err)

	store := memory.NewStore()
	locker := lock.NewKeyedMutex()
	balances := service.NewBalanceService(store.Customers(), store.Bills(), store.Allocations(), store.Balances(), locker)

	f := &fixture{
		store:     store,
		customers: service.NewCustomerService(store.Customers()),
		balances:  balances,
		billing:   service.NewBillingService(store.Customers(), store.Bills(), store.Allocations(), src, balances, locker),
		reconciliation: service.NewReconciliationService(
			store.Transactions(), store.Bills(), store.Allocations(), store, balances, locker),
		transactions: service.NewTransactionService(store.Transactions(), 2),
		statements:   service.NewStatementService(store.Customers(), store.Bills(), store.Allocations(), store.Balances()),
	}

	_, err = f.customers.Create(context.Background(), service.CreateCustomerRequest{ID: "cust-1", Name: "J Smith", Email: "j@example.com"})
	require.NoError(t, err)
	return f
}

// monthlyBill bills 500 kWh consumed and 50 kWh exported over 31 days: 181.63.
func (f *fixture) monthlyBill(t *testing.T, start time.Time) domain.Bill {
	t.Helper()
	generated, err := f.billing.GenerateBill(context.Background(), service.GenerateBillRequest{
		CustomerID:  "cust-1",
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 0, 31),
		Usage:       domain.UsageRecord{ConsumptionKWh: decimal.NewFromInt(500), ExportedKWh: decimal.NewFromInt(50)},
	})
	require.NoError(t, err)
	return generated.Bill
}

func (f *fixture) payment(t *testing.T, amount string) domain.Transaction {
	t.Helper()
	tx, err := f.transactions.Create(context.Background(), service.CreateTransactionRequest{
		Date:        jan.AddDate(0, 1, 3),
		Description: "ONLINE PAYMENT",
		Amount:      decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return *tx
}

func (f *fixture) balance(t *testing.T) domain.CustomerBalance {
	t.Helper()
	b, err := f.balances.Get(context.Background(), "cust-1")
	require.NoError(t, err)
	return *b
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), field)
}

func TestGenerateBill_CarriesArrears(t *testing.T) {
	f := newFixture(t)

	first := f.monthlyBill(t, jan)
	assertMoney(t, "181.63", first.TotalRevenue, "first revenue")
	assertMoney(t, "0.00", first.CarriedArrears, "first carried")
	assert.Equal(t, domain.BillPending, first.Status)

	second := f.monthlyBill(t, jan.AddDate(0, 1, 0))
	assertMoney(t, "181.63", second.CarriedArrears, "second carried")
	assertMoney(t, "363.26", second.TotalBill, "second total")

	b := f.balance(t)
	assertMoney(t, "363.26", b.TotalBilled, "total billed")
	assertMoney(t, "181.63", b.Overdue, "overdue")
	assertMoney(t, "363.26", b.DueBalance, "due")
	assertMoney(t, "0.00", b.Wallet, "wallet")
}

func TestGenerateBill_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.monthlyBill(t, jan)

	_, err := f.billing.GenerateBill(ctx, service.GenerateBillRequest{
		CustomerID:  "cust-1",
		PeriodStart: jan,
		PeriodEnd:   jan.AddDate(0, 0, 31),
		Usage:       domain.UsageRecord{ConsumptionKWh: decimal.NewFromInt(10)},
	})
	assert.ErrorIs(t, err, domain.ErrBillExists)

	_, err = f.billing.GenerateBill(ctx, service.GenerateBillRequest{
		CustomerID:  "nobody",
		PeriodStart: jan,
		PeriodEnd:   jan.AddDate(0, 0, 31),
	})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)

	_, err = f.billing.GenerateBill(ctx, service.GenerateBillRequest{CustomerID: "cust-1"})
	assert.ErrorIs(t, err, service.ErrValidation)

	bills, err := f.billing.ListBills(ctx, "cust-1", false)
	require.NoError(t, err)
	assert.Len(t, bills, 1)
}

func TestGenerateBill_NoConsumption(t *testing.T) {
	f := newFixture(t)

	generated, err := f.billing.GenerateBill(context.Background(), service.GenerateBillRequest{
		CustomerID:  "cust-1",
		PeriodStart: jan,
		PeriodEnd:   jan.AddDate(0, 0, 31),
	})
	require.NoError(t, err)

	assert.True(t, generated.Result.NoConsumption)
	assert.True(t, generated.Bill.TotalRevenue.IsZero())
	assertMoney(t, "0.00", f.balance(t).DueBalance, "due")
}

func TestAllocate_UpdatesBillTransactionAndBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bill := f.monthlyBill(t, jan)
	tx := f.payment(t, "100")

	result, err := f.reconciliation.Allocate(ctx, service.AllocateRequest{
		TransactionID: tx.ID,
		Allocations:   []domain.AllocationRequest{{BillID: bill.ID, Amount: decimal.NewFromInt(100)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionMatched, result.Transaction.Status)
	assertMoney(t, "100.00", result.Allocated, "allocated")

	stored, err := f.billing.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BillPartiallyPaid, stored.Status)
	assertMoney(t, "81.63", stored.PendingBill, "pending")
	assert.Equal(t, []string{tx.ID}, stored.ReconciliationIDs)

	b := f.balance(t)
	assertMoney(t, "100.00", b.TotalPaid, "paid")
	assertMoney(t, "81.63", b.DueBalance, "due")
}

func TestAllocate_RejectionLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bill := f.monthlyBill(t, jan)
	tx := f.payment(t, "500")

	_, err := f.reconciliation.Allocate(ctx, service.AllocateRequest{
		TransactionID: tx.ID,
		Allocations:   []domain.AllocationRequest{{BillID: bill.ID, Amount: decimal.NewFromInt(200)}},
	})
	assert.ErrorIs(t, err, domain.ErrAllocationExceedsCap)

	stored, err := f.billing.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BillPending, stored.Status)

	storedTx, err := f.transactions.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionUnmatched, storedTx.Status)
	assertMoney(t, "0.00", f.balance(t).TotalPaid, "paid")
}

func TestAutoAllocate_SplitsAcrossBills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.monthlyBill(t, jan)
	second := f.monthlyBill(t, jan.AddDate(0, 1, 0))
	tx := f.payment(t, "100")

	proposal, err := f.reconciliation.AutoDistribute(ctx, tx.ID, []string{first.ID, second.ID})
	require.NoError(t, err)
	require.Len(t, proposal, 2)
	assertMoney(t, "50.00", proposal[0].Amount, "first share")
	assertMoney(t, "50.00", proposal[1].Amount, "second share")

	result, err := f.reconciliation.AutoAllocate(ctx, tx.ID, []string{first.ID, second.ID})
	require.NoError(t, err)
	assert.Len(t, result.Bills, 2)
	assert.Equal(t, domain.TransactionMatched, result.Transaction.Status)

	_, err = f.reconciliation.AutoDistribute(ctx, tx.ID, []string{first.ID, first.ID})
	assert.ErrorIs(t, err, domain.ErrDuplicateBill)
}

func TestUndo_RestoresStateAndBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bill := f.monthlyBill(t, jan)
	tx := f.payment(t, "60")

	_, err := f.reconciliation.Allocate(ctx, service.AllocateRequest{
		TransactionID: tx.ID,
		Allocations:   []domain.AllocationRequest{{BillID: bill.ID, Amount: decimal.NewFromInt(60)}},
	})
	require.NoError(t, err)

	require.NoError(t, f.reconciliation.Undo(ctx, tx.ID))

	stored, err := f.billing.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BillPending, stored.Status)
	assertMoney(t, "181.63", stored.PendingBill, "pending")
	assert.Empty(t, stored.ReconciliationIDs)

	storedTx, err := f.transactions.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionUnmatched, storedTx.Status)
	assert.Nil(t, storedTx.BillID)

	b := f.balance(t)
	assertMoney(t, "0.00", b.TotalPaid, "paid")
	assertMoney(t, "181.63", b.DueBalance, "due")

	// a second undo finds nothing to reverse
	require.NoError(t, f.reconciliation.Undo(ctx, tx.ID))
}

func TestBalance_IncrementalConvergesWithRecalculate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.monthlyBill(t, jan)
	tx := f.payment(t, "250")

	_, err := f.reconciliation.Allocate(ctx, service.AllocateRequest{
		TransactionID: tx.ID,
		Allocations:   []domain.AllocationRequest{{BillID: first.ID, Amount: decimal.RequireFromString("181.63")}},
	})
	require.NoError(t, err)
	f.monthlyBill(t, jan.AddDate(0, 1, 0))

	incremental := f.balance(t)

	rebuilt, err := f.balances.Recalculate(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, incremental.ApproxEqual(*rebuilt, decimal.RequireFromString("0.01")),
		"incremental %+v, rebuilt %+v", incremental, *rebuilt)
	assertMoney(t, "181.63", rebuilt.DueBalance, "due")
	assertMoney(t, "0.00", rebuilt.Overdue, "overdue")

	again, err := f.balances.Recalculate(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, rebuilt.ApproxEqual(*again, decimal.Zero))

	n, err := f.balances.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bill := f.monthlyBill(t, jan)
	linked := f.payment(t, "10")
	free := f.payment(t, "20")

	_, err := f.reconciliation.Allocate(ctx, service.AllocateRequest{
		TransactionID: linked.ID,
		Allocations:   []domain.AllocationRequest{{BillID: bill.ID, Amount: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)

	err = f.reconciliation.DeleteTransaction(ctx, linked.ID)
	assert.ErrorIs(t, err, domain.ErrTransactionLinked)
	stillThere, err := f.transactions.Get(ctx, linked.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionMatched, stillThere.Status)

	require.NoError(t, f.reconciliation.DeleteTransaction(ctx, free.ID))
	_, err = f.transactions.Get(ctx, free.ID)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestDeleteBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bill := f.monthlyBill(t, jan)
	tx := f.payment(t, "10")

	_, err := f.reconciliation.Allocate(ctx, service.AllocateRequest{
		TransactionID: tx.ID,
		Allocations:   []domain.AllocationRequest{{BillID: bill.ID, Amount: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.billing.DeleteBill(ctx, bill.ID), domain.ErrBillHasPayments)

	require.NoError(t, f.reconciliation.Undo(ctx, tx.ID))
	require.NoError(t, f.billing.DeleteBill(ctx, bill.ID))

	_, err = f.billing.GetBill(ctx, bill.ID)
	assert.ErrorIs(t, err, domain.ErrBillNotFound)
	assertMoney(t, "0.00", f.balance(t).TotalBilled, "billed")
}

func (f *fixture) allocate(t *testing.T, tx domain.Transaction, billID, amount string) {
	t.Helper()
	_, err := f.reconciliation.Allocate(context.Background(), service.AllocateRequest{
		TransactionID: tx.ID,
		Allocations:   []domain.AllocationRequest{{BillID: billID, Amount: decimal.RequireFromString(amount)}},
	})
	require.NoError(t, err)
}

func (f *fixture) bill(t *testing.T, id string) domain.Bill {
	t.Helper()
	b, err := f.billing.GetBill(context.Background(), id)
	require.NoError(t, err)
	return *b
}

func TestAllocate_PayingEveryBillSettlesCarriedArrears(t *testing.T) {
	tests := []struct {
		name        string
		secondFirst bool
	}{
		{"earlier bill paid first", false},
		{"later bill paid first", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			first := f.monthlyBill(t, jan)
			second := f.monthlyBill(t, jan.AddDate(0, 1, 0))
			assertMoney(t, "181.63", second.CarriedArrears, "carried before payment")

			tx1 := f.payment(t, "181.63")
			tx2 := f.payment(t, "181.63")
			if tt.secondFirst {
				f.allocate(t, tx2, second.ID, "181.63")
				assert.Equal(t, domain.BillPartiallyPaid, f.bill(t, second.ID).Status)
				f.allocate(t, tx1, first.ID, "181.63")
			} else {
				f.allocate(t, tx1, first.ID, "181.63")
				f.allocate(t, tx2, second.ID, "181.63")
			}

			stored := f.bill(t, second.ID)
			assert.Equal(t, domain.BillPaid, stored.Status)
			assertMoney(t, "0.00", stored.CarriedArrears, "carried")
			assertMoney(t, "181.63", stored.TotalBill, "total")
			assertMoney(t, "0.00", stored.PendingBill, "pending")
			assert.Equal(t, domain.BillPaid, f.bill(t, first.ID).Status)

			pending, err := f.billing.ListBills(ctx, "cust-1", true)
			require.NoError(t, err)
			assert.Empty(t, pending)

			b := f.balance(t)
			assertMoney(t, "0.00", b.DueBalance, "due")
			assertMoney(t, "0.00", b.Wallet, "wallet")
			assertMoney(t, "0.00", b.Overdue, "overdue")

			rebuilt, err := f.balances.Recalculate(ctx, "cust-1")
			require.NoError(t, err)
			assert.True(t, b.ApproxEqual(*rebuilt, decimal.Zero))
			assertMoney(t, "0.00", rebuilt.Overdue, "rebuilt overdue")
		})
	}
}

func TestAllocate_PartialPaymentReducesLaterCarry(t *testing.T) {
	f := newFixture(t)
	first := f.monthlyBill(t, jan)
	second := f.monthlyBill(t, jan.AddDate(0, 1, 0))
	tx := f.payment(t, "100")

	f.allocate(t, tx, first.ID, "100")

	stored := f.bill(t, second.ID)
	assertMoney(t, "81.63", stored.CarriedArrears, "carried")
	assertMoney(t, "263.26", stored.TotalBill, "total")
	assertMoney(t, "263.26", stored.PendingBill, "pending")
	assert.Equal(t, domain.BillPending, stored.Status)
	assertMoney(t, "81.63", f.balance(t).Overdue, "overdue")
}

func TestUndo_RestoresLaterCarry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.monthlyBill(t, jan)
	second := f.monthlyBill(t, jan.AddDate(0, 1, 0))
	tx1 := f.payment(t, "181.63")
	tx2 := f.payment(t, "181.63")
	f.allocate(t, tx1, first.ID, "181.63")
	f.allocate(t, tx2, second.ID, "181.63")

	require.NoError(t, f.reconciliation.Undo(ctx, tx1.ID))

	assert.Equal(t, domain.BillPending, f.bill(t, first.ID).Status)
	stored := f.bill(t, second.ID)
	assert.Equal(t, domain.BillPartiallyPaid, stored.Status)
	assertMoney(t, "181.63", stored.CarriedArrears, "carried")
	assertMoney(t, "363.26", stored.TotalBill, "total")
	assertMoney(t, "181.63", stored.PendingBill, "pending")

	b := f.balance(t)
	assertMoney(t, "181.63", b.Overdue, "overdue")
	assertMoney(t, "181.63", b.DueBalance, "due")
}

func TestGenerateBill_BetweenPeriodsCarriesLaterBills(t *testing.T) {
	f := newFixture(t)
	f.monthlyBill(t, jan)
	march := f.monthlyBill(t, jan.AddDate(0, 2, 0))
	assertMoney(t, "181.63", march.CarriedArrears, "march carried")

	feb := f.monthlyBill(t, jan.AddDate(0, 1, 0))
	assertMoney(t, "181.63", feb.CarriedArrears, "feb carried")
	assertMoney(t, "363.26", feb.PendingBill, "feb pending")

	stored := f.bill(t, march.ID)
	assertMoney(t, "363.26", stored.CarriedArrears, "march carried")
	assertMoney(t, "544.89", stored.TotalBill, "march total")

	b := f.balance(t)
	assertMoney(t, "544.89", b.TotalBilled, "billed")
	assertMoney(t, "363.26", b.Overdue, "overdue")
}

func TestDeleteBill_CarriesRemainingBillsForward(t *testing.T) {
	f := newFixture(t)
	first := f.monthlyBill(t, jan)
	second := f.monthlyBill(t, jan.AddDate(0, 1, 0))

	require.NoError(t, f.billing.DeleteBill(context.Background(), first.ID))

	stored := f.bill(t, second.ID)
	assertMoney(t, "0.00", stored.CarriedArrears, "carried")
	assertMoney(t, "181.63", stored.TotalBill, "total")
	assertMoney(t, "181.63", stored.PendingBill, "pending")

	b := f.balance(t)
	assertMoney(t, "181.63", b.TotalBilled, "billed")
	assertMoney(t, "0.00", b.Overdue, "overdue")
}

func TestAllocate_ConcurrentOnOneBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bill := f.monthlyBill(t, jan)

	const n = 20
	txs := make([]domain.Transaction, n)
	for i := range txs {
		txs[i] = f.payment(t, "5")
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, tx := range txs {
		wg.Add(1)
		go func(tx domain.Transaction) {
			defer wg.Done()
			_, err := f.reconciliation.Allocate(ctx, service.AllocateRequest{
				TransactionID: tx.ID,
				Allocations:   []domain.AllocationRequest{{BillID: bill.ID, Amount: decimal.NewFromInt(5)}},
			})
			errs <- err
		}(tx)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored := f.bill(t, bill.ID)
	assertMoney(t, "100.00", stored.PaidAmount, "paid")
	assertMoney(t, "81.63", stored.PendingBill, "pending")
	assert.Len(t, stored.ReconciliationIDs, n)
	assertMoney(t, "100.00", f.balance(t).TotalPaid, "balance paid")

	allocations, err := f.store.Allocations().ListByBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Len(t, allocations, n)
}

func TestUndo_ConcurrentWithAllocate(t *testing.T) {
	for round := 0; round < 10; round++ {
		f := newFixture(t)
		ctx := context.Background()
		bill := f.monthlyBill(t, jan)
		undone := f.payment(t, "50")
		incoming := f.payment(t, "30")
		f.allocate(t, undone, bill.ID, "50")

		var wg sync.WaitGroup
		var undoErr, allocErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			undoErr = f.reconciliation.Undo(ctx, undone.ID)
		}()
		go func() {
			defer wg.Done()
			_, allocErr = f.reconciliation.Allocate(ctx, service.AllocateRequest{
				TransactionID: incoming.ID,
				Allocations:   []domain.AllocationRequest{{BillID: bill.ID, Amount: decimal.NewFromInt(30)}},
			})
		}()
		wg.Wait()
		require.NoError(t, undoErr)
		require.NoError(t, allocErr)

		stored := f.bill(t, bill.ID)
		assert.Equal(t, domain.BillPartiallyPaid, stored.Status)
		assertMoney(t, "30.00", stored.PaidAmount, "paid")
		assertMoney(t, "151.63", stored.PendingBill, "pending")
		assert.Equal(t, []string{incoming.ID}, stored.ReconciliationIDs)

		storedTx, err := f.transactions.Get(ctx, undone.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionUnmatched, storedTx.Status)
		assertMoney(t, "30.00", f.balance(t).TotalPaid, "balance paid")
	}
}

func TestTransactionImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	csv := strings.Join([]string{
		"Date,Description,Amount,Reference",
		"2024-02-03,ONLINE PAYMENT,100.00,REF-1",
		"2024-02-04,ONLINE PAYMENT,\"1,250.50\",REF-2",
		"2024-02-05,FEE REVERSAL,-5.00,REF-3",
		"2024-02-06,ONLINE PAYMENT,100.00,REF-1",
	}, "\n")

	summary, err := f.transactions.Import(ctx, strings.NewReader(csv), "statement.csv")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Rows)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Invalid)

	unmatched, err := f.transactions.ListByStatus(ctx, domain.TransactionUnmatched)
	require.NoError(t, err)
	assert.Len(t, unmatched, 2)

	_, err = f.transactions.ListByStatus(ctx, "Unknown")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestCustomerCreate_Validation(t *testing.T) {
	f := newFixture(t)
	negative := decimal.NewFromInt(-1)

	_, err := f.customers.Create(context.Background(), service.CreateCustomerRequest{Name: "X", Email: "not-an-email"})
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = f.customers.Create(context.Background(), service.CreateCustomerRequest{Name: "X", Scaling: &negative})
	assert.ErrorIs(t, err, service.ErrValidation)

	c, err := f.customers.Create(context.Background(), service.CreateCustomerRequest{Name: " Y "})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Y", c.Name)
}

func TestCalculate_UsesCustomerOverrides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	price := decimal.RequireFromString("0.30")

	_, err := f.customers.Create(ctx, service.CreateCustomerRequest{ID: "cust-2", Name: "Fixed", FixedPrice: &price})
	require.NoError(t, err)

	result, err := f.billing.Calculate(ctx, service.CalculateRequest{
		CustomerID:  "cust-2",
		PeriodStart: jan,
		PeriodEnd:   jan.AddDate(0, 0, 31),
		Usage:       domain.UsageRecord{ConsumptionKWh: decimal.NewFromInt(100)},
	})
	require.NoError(t, err)
	assertMoney(t, "30.00", result.FinalRevenue, "revenue")

	_, err = f.billing.Calculate(ctx, service.CalculateRequest{PeriodStart: jan, PeriodEnd: jan})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestStatementExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.monthlyBill(t, jan)

	out, err := f.statements.ExportXLSX(ctx, "cust-1")
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("bills")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = f.statements.ExportXLSX(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}
