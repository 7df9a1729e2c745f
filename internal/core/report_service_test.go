package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func saleLog(total, discount int64, payments ...Payment) *TransactionLog {
	return &TransactionLog{
		TransactionType: TransactionTypeNormalSales,
		Sales: SalesSummary{
			TotalAmountWithTax:  decimal.NewFromInt(total),
			TotalDiscountAmount: decimal.NewFromInt(discount),
			TotalQuantity:       1,
		},
		Payments: payments,
	}
}

func TestReportAccumulate(t *testing.T) {
	svc := &reportService{}
	report := &SalesReport{}
	taxLines := map[string]*ReportTaxLine{}
	paymentLines := map[string]*ReportPaymentLine{}

	// Two sales, one gets voided, one return.
	svc.accumulate(report, taxLines, paymentLines, saleLog(1000, 100))
	svc.accumulate(report, taxLines, paymentLines, saleLog(2000, 0))

	void := saleLog(2000, 0)
	void.TransactionType = TransactionTypeVoidSales
	svc.accumulate(report, taxLines, paymentLines, void)

	ret := &TransactionLog{
		TransactionType: TransactionTypeReturnSales,
		Sales: SalesSummary{
			TotalAmountWithTax: decimal.NewFromInt(-300),
			TotalQuantity:      -1,
		},
	}
	svc.accumulate(report, taxLines, paymentLines, ret)

	if !report.Sales.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("sales amount = %s, want 1000 (void removed)", report.Sales.Amount)
	}
	if report.Sales.Count != 1 {
		t.Errorf("sales count = %d, want 1", report.Sales.Count)
	}
	if !report.Returns.Amount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("returns amount = %s, want 300 (reported positive)", report.Returns.Amount)
	}
	if !report.Voids.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("voids amount = %s, want 2000", report.Voids.Amount)
	}
	if !report.DiscountAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("discount = %s, want 100", report.DiscountAmount)
	}
	// Gross restates pre-discount sales: 1100 + 2000 − 2000.
	if !report.GrossSales.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("gross sales = %s, want 1100", report.GrossSales)
	}
}

func TestReportAccumulate_SplitTenderCountsOnce(t *testing.T) {
	svc := &reportService{}
	report := &SalesReport{}
	paymentLines := map[string]*ReportPaymentLine{}

	svc.accumulate(report, map[string]*ReportTaxLine{}, paymentLines, saleLog(1000, 0,
		Payment{PaymentCode: "01", Amount: decimal.NewFromInt(400)},
		Payment{PaymentCode: "01", Amount: decimal.NewFromInt(300)},
		Payment{PaymentCode: "11", Amount: decimal.NewFromInt(300)},
	))

	cash := paymentLines["01"]
	if !cash.Amount.Equal(decimal.NewFromInt(700)) {
		t.Errorf("cash amount = %s, want 700", cash.Amount)
	}
	if cash.Count != 1 {
		t.Errorf("cash count = %d, want 1 (two tenders, one transaction)", cash.Count)
	}
	if card := paymentLines["11"]; card.Count != 1 || !card.Amount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("card = %s/%d, want 300/1", card.Amount, card.Count)
	}
}

func TestReportAccumulate_VoidReturnRestoresReturns(t *testing.T) {
	svc := &reportService{}
	report := &SalesReport{}

	ret := &TransactionLog{
		TransactionType: TransactionTypeReturnSales,
		Sales:           SalesSummary{TotalAmountWithTax: decimal.NewFromInt(-500)},
	}
	svc.accumulate(report, map[string]*ReportTaxLine{}, map[string]*ReportPaymentLine{}, ret)

	voidReturn := &TransactionLog{
		TransactionType: TransactionTypeVoidReturn,
		Sales:           SalesSummary{TotalAmountWithTax: decimal.NewFromInt(500)},
	}
	svc.accumulate(report, map[string]*ReportTaxLine{}, map[string]*ReportPaymentLine{}, voidReturn)

	if !report.Returns.Amount.IsZero() {
		t.Errorf("returns amount = %s, want 0 after void-of-return", report.Returns.Amount)
	}
	if report.Returns.Count != 0 {
		t.Errorf("returns count = %d, want 0", report.Returns.Count)
	}
}

func TestReportAccumulate_CashOperations(t *testing.T) {
	svc := &reportService{}
	report := &SalesReport{}

	for _, log := range []*TransactionLog{
		{TransactionType: TransactionTypeOpen, CashAmount: decimal.NewFromInt(30000)},
		{TransactionType: TransactionTypeCashIn, CashAmount: decimal.NewFromInt(5000)},
		{TransactionType: TransactionTypeCashOut, CashAmount: decimal.NewFromInt(2000)},
		{TransactionType: TransactionTypeClose, CashAmount: decimal.NewFromInt(33000)},
	} {
		svc.accumulate(report, map[string]*ReportTaxLine{}, map[string]*ReportPaymentLine{}, log)
	}

	if !report.InitialAmount.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("initial amount = %s, want 30000", report.InitialAmount)
	}
	if !report.CashIn.Amount.Equal(decimal.NewFromInt(5000)) || report.CashIn.Count != 1 {
		t.Errorf("cash in = %s/%d, want 5000/1", report.CashIn.Amount, report.CashIn.Count)
	}
	if !report.CashOut.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("cash out = %s, want 2000", report.CashOut.Amount)
	}
	if !report.CloseAmount.Equal(decimal.NewFromInt(33000)) {
		t.Errorf("close amount = %s, want 33000", report.CloseAmount)
	}
}
