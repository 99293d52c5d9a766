package statement

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"greenlight-billing/internal/domain"
)

const (
	summarySheet  = "summary"
	billsSheet    = "bills"
	paymentsSheet = "payments"
)

// Data is everything a customer statement shows.
type Data struct {
	Customer    domain.Customer
	Balance     domain.CustomerBalance
	Bills       []domain.Bill
	Allocations []domain.Allocation
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// BuildXLSX renders a customer statement workbook with a summary, one row
// per bill and one row per allocation.
func BuildXLSX(data Data) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(billsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(paymentsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Customer Statement")
	_ = f.SetCellValue(summarySheet, "A3", "Customer")
	_ = f.SetCellValue(summarySheet, "B3", data.Customer.Name)
	_ = f.SetCellValue(summarySheet, "A4", "Customer ID")
	_ = f.SetCellValue(summarySheet, "B4", data.Customer.ID)
	_ = f.SetCellValue(summarySheet, "A5", "Total Billed")
	_ = f.SetCellValue(summarySheet, "B5", money(data.Balance.TotalBilled))
	_ = f.SetCellValue(summarySheet, "A6", "Total Paid")
	_ = f.SetCellValue(summarySheet, "B6", money(data.Balance.TotalPaid))
	_ = f.SetCellValue(summarySheet, "A7", "Overdue")
	_ = f.SetCellValue(summarySheet, "B7", money(data.Balance.Overdue))
	_ = f.SetCellValue(summarySheet, "A8", "Due Balance")
	_ = f.SetCellValue(summarySheet, "B8", money(data.Balance.DueBalance))
	_ = f.SetCellValue(summarySheet, "A9", "Wallet")
	_ = f.SetCellValue(summarySheet, "B9", money(data.Balance.Wallet))

	billHeader := []interface{}{
		"Bill ID", "Period Start", "Period End", "Consumption (kWh)", "Exported (kWh)",
		"Belco Total", "Revenue", "Carried Arrears", "Total Bill", "Paid", "Pending", "Arrears", "Status",
	}
	if err := f.SetSheetRow(billsSheet, "A1", &billHeader); err != nil {
		return nil, err
	}
	for i, b := range data.Bills {
		row := []interface{}{
			b.ID,
			b.PeriodStart.Format("2006-01-02"),
			b.PeriodEnd.Format("2006-01-02"),
			b.ConsumptionKWh.InexactFloat64(),
			b.ExportedKWh.InexactFloat64(),
			money(b.BelcoTotal),
			money(b.TotalRevenue),
			money(b.CarriedArrears),
			money(b.TotalBill),
			money(b.PaidAmount),
			money(b.PendingBill),
			money(b.Arrears),
			string(b.Status),
		}
		if err := f.SetSheetRow(billsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	paymentHeader := []interface{}{"Transaction ID", "Bill ID", "Amount", "Allocated At"}
	if err := f.SetSheetRow(paymentsSheet, "A1", &paymentHeader); err != nil {
		return nil, err
	}
	for i, a := range data.Allocations {
		row := []interface{}{a.TransactionID, a.BillID, money(a.Amount), a.CreatedAt.Format("2006-01-02 15:04")}
		if err := f.SetSheetRow(paymentsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
