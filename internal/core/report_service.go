package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"pos-backend/internal/db"
)

// ReportScope selects which transactions a report covers.
type ReportScope string

const (
	// ReportScopeFlash is an intra-day report taken while the terminal is
	// still open.
	ReportScopeFlash ReportScope = "flash"
	// ReportScopeDaily is the end-of-day report after close.
	ReportScopeDaily ReportScope = "daily"
)

// ReportTotal is one aggregated bucket.
type ReportTotal struct {
	Amount   decimal.Decimal `json:"amount"`
	Quantity int             `json:"quantity"`
	Count    int             `json:"count"`
}

// ReportTaxLine aggregates one tax code across the report window.
type ReportTaxLine struct {
	TaxCode      string          `json:"taxCode"`
	TaxName      string          `json:"taxName"`
	TaxAmount    decimal.Decimal `json:"taxAmount"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
}

// ReportPaymentLine aggregates one payment code. Count is the number of
// transactions the code appears in; a split payment with three tenders of
// one code still counts its transaction once.
type ReportPaymentLine struct {
	PaymentCode string          `json:"paymentCode"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Count       int             `json:"count"`
}

// SalesReport is the flash or daily rollup for one store and business date.
type SalesReport struct {
	StoreCode    string      `json:"storeCode"`
	TerminalID   string      `json:"terminalId,omitempty"`
	BusinessDate string      `json:"businessDate"`
	Scope        ReportScope `json:"scope"`

	Sales   ReportTotal `json:"sales"`
	Returns ReportTotal `json:"returns"`
	Voids   ReportTotal `json:"voids"`

	DiscountAmount decimal.Decimal `json:"discountAmount"`
	GrossSales     decimal.Decimal `json:"grossSales"`
	NetSales       decimal.Decimal `json:"netSales"`

	Taxes    []ReportTaxLine     `json:"taxes"`
	Payments []ReportPaymentLine `json:"payments"`

	CashIn        ReportTotal     `json:"cashIn"`
	CashOut       ReportTotal     `json:"cashOut"`
	InitialAmount decimal.Decimal `json:"initialAmount"`
	CloseAmount   decimal.Decimal `json:"closeAmount"`
}

// ReportService builds sales reports by walking the transaction logs of one
// store and business date. Aggregation never multiplies rows: each
// transaction contributes its own sales totals exactly once regardless of
// how many tax or payment rows it carries.
type ReportService interface {
	SalesReport(ctx context.Context, storeCode, businessDate, terminalID string, scope ReportScope) (*SalesReport, error)
}

type reportService struct {
	tdb *db.TenantDB
}

func NewReportService(tdb *db.TenantDB) ReportService {
	return &reportService{tdb: tdb}
}

func (s *reportService) SalesReport(ctx context.Context, storeCode, businessDate, terminalID string, scope ReportScope) (*SalesReport, error) {
	if storeCode == "" || businessDate == "" {
		return nil, ErrValidation.Withf("store code and business date are required")
	}
	if scope == "" {
		scope = ReportScopeFlash
	}

	query := fmt.Sprintf(
		"SELECT body FROM %s WHERE store_code = $1 AND business_date = $2", s.tdb.T("transactions"))
	args := []any{storeCode, businessDate}
	if terminalID != "" {
		query += " AND terminal_id = $3"
		args = append(args, terminalID)
	}
	query += " ORDER BY generate_date_time"

	rows, err := s.tdb.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for report: %w", err)
	}
	defer rows.Close()

	report := &SalesReport{
		StoreCode:    storeCode,
		TerminalID:   terminalID,
		BusinessDate: businessDate,
		Scope:        scope,
	}
	taxLines := map[string]*ReportTaxLine{}
	paymentLines := map[string]*ReportPaymentLine{}

	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		var log TransactionLog
		if err := json.Unmarshal(body, &log); err != nil {
			return nil, fmt.Errorf("failed to decode transaction body: %w", err)
		}
		if log.Sales.IsCancelled {
			continue
		}
		s.accumulate(report, taxLines, paymentLines, &log)
	}

	for _, code := range sortedKeys(taxLines) {
		report.Taxes = append(report.Taxes, *taxLines[code])
	}
	for _, code := range sortedKeys(paymentLines) {
		report.Payments = append(report.Payments, *paymentLines[code])
	}

	report.NetSales = report.GrossSales.Sub(report.Returns.Amount)
	return report, nil
}

func (s *reportService) accumulate(report *SalesReport, taxLines map[string]*ReportTaxLine, paymentLines map[string]*ReportPaymentLine, log *TransactionLog) {
	switch log.TransactionType {
	case TransactionTypeNormalSales:
		report.Sales.Amount = report.Sales.Amount.Add(log.Sales.TotalAmountWithTax)
		report.Sales.Quantity += log.Sales.TotalQuantity
		report.Sales.Count++
		report.DiscountAmount = report.DiscountAmount.Add(log.Sales.TotalDiscountAmount)
		report.GrossSales = report.GrossSales.Add(log.Sales.TotalAmountWithTax).Add(log.Sales.TotalDiscountAmount)
		s.accumulateLines(taxLines, paymentLines, log, decimal.NewFromInt(1))

	case TransactionTypeReturnSales:
		// Return logs carry negative amounts; the bucket reports them positive.
		report.Returns.Amount = report.Returns.Amount.Sub(log.Sales.TotalAmountWithTax)
		report.Returns.Quantity += log.Sales.TotalQuantity
		report.Returns.Count++
		s.accumulateLines(taxLines, paymentLines, log, decimal.NewFromInt(1))

	case TransactionTypeVoidSales:
		report.Voids.Amount = report.Voids.Amount.Add(log.Sales.TotalAmountWithTax)
		report.Voids.Quantity += log.Sales.TotalQuantity
		report.Voids.Count++
		report.Sales.Amount = report.Sales.Amount.Sub(log.Sales.TotalAmountWithTax)
		report.Sales.Count--
		report.DiscountAmount = report.DiscountAmount.Sub(log.Sales.TotalDiscountAmount)
		report.GrossSales = report.GrossSales.Sub(log.Sales.TotalAmountWithTax).Sub(log.Sales.TotalDiscountAmount)
		s.accumulateLines(taxLines, paymentLines, log, decimal.NewFromInt(-1))

	case TransactionTypeVoidReturn:
		// Voiding a return removes its (negative) contribution.
		report.Returns.Amount = report.Returns.Amount.Sub(log.Sales.TotalAmountWithTax.Neg())
		report.Returns.Count--
		s.accumulateLines(taxLines, paymentLines, log, decimal.NewFromInt(-1))

	case TransactionTypeCashIn:
		report.CashIn.Amount = report.CashIn.Amount.Add(log.CashAmount)
		report.CashIn.Count++
	case TransactionTypeCashOut:
		report.CashOut.Amount = report.CashOut.Amount.Add(log.CashAmount)
		report.CashOut.Count++
	case TransactionTypeOpen:
		report.InitialAmount = log.CashAmount
	case TransactionTypeClose:
		report.CloseAmount = log.CashAmount
	}
}

func (s *reportService) accumulateLines(taxLines map[string]*ReportTaxLine, paymentLines map[string]*ReportPaymentLine, log *TransactionLog, sign decimal.Decimal) {
	for _, t := range log.Taxes {
		line, ok := taxLines[t.TaxCode]
		if !ok {
			line = &ReportTaxLine{TaxCode: t.TaxCode, TaxName: t.TaxName}
			taxLines[t.TaxCode] = line
		}
		line.TaxAmount = line.TaxAmount.Add(t.TaxAmount.Mul(sign))
		line.TargetAmount = line.TargetAmount.Add(t.TargetAmount.Mul(sign))
	}

	// One count per distinct payment code per transaction.
	seen := map[string]bool{}
	for _, p := range log.Payments {
		line, ok := paymentLines[p.PaymentCode]
		if !ok {
			line = &ReportPaymentLine{PaymentCode: p.PaymentCode, Description: p.Description}
			paymentLines[p.PaymentCode] = line
		}
		line.Amount = line.Amount.Add(p.Amount.Mul(sign))
		if !seen[p.PaymentCode] {
			seen[p.PaymentCode] = true
			line.Count += int(sign.IntPart())
		}
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
