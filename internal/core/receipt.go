package core

import (
	"fmt"
	"strings"
)

const receiptWidth = 32

var tranTypeLabels = map[TransactionType]string{
	TransactionTypeNormalSales:       "SALES",
	TransactionTypeNormalSalesCancel: "SALES CANCEL",
	TransactionTypeReturnSales:       "RETURN",
	TransactionTypeVoidSales:         "VOID",
	TransactionTypeVoidReturn:        "VOID RETURN",
	TransactionTypeOpen:              "OPEN",
	TransactionTypeClose:             "CLOSE",
	TransactionTypeCashIn:            "CASH IN",
	TransactionTypeCashOut:           "CASH OUT",
}

func receiptLine(left, right string) string {
	pad := receiptWidth - len(left) - len(right)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}

// renderReceipt produces the fixed-width receipt text stored on the
// transaction log and journal. No printer knowledge here; downstream
// services treat the text as opaque.
func renderReceipt(log *TransactionLog) string {
	var b strings.Builder
	line := func(s string) { b.WriteString(s + "\n") }

	line(strings.Repeat("=", receiptWidth))
	line(receiptLine(tranTypeLabels[log.TransactionType], log.BusinessDate))
	line(receiptLine(fmt.Sprintf("No.%d", log.TransactionNo), fmt.Sprintf("R#%d", log.ReceiptNo)))
	line(receiptLine(log.StoreCode, log.TerminalID))
	if log.Origin != nil {
		line(receiptLine("ORIGIN", fmt.Sprintf("No.%d", log.Origin.TransactionNo)))
	}
	line(strings.Repeat("-", receiptWidth))

	switch log.TransactionType {
	case TransactionTypeOpen, TransactionTypeCashIn, TransactionTypeCashOut:
		line(receiptLine("AMOUNT", log.CashAmount.StringFixed(0)))
	case TransactionTypeClose:
		line(receiptLine("PHYSICAL", log.CashAmount.StringFixed(0)))
	default:
		for _, li := range log.LineItems {
			if li.IsCancelled {
				continue
			}
			desc := li.Description
			if desc == "" {
				desc = li.ItemCode
			}
			line(receiptLine(desc, ""))
			line(receiptLine(fmt.Sprintf("  %s x%d", li.UnitPrice.StringFixed(0), li.Quantity), li.Amount.StringFixed(0)))
			for _, d := range li.Discounts {
				line(receiptLine("  DISCOUNT", "-"+d.Amount.StringFixed(0)))
			}
		}
		for _, d := range log.SubtotalDiscounts {
			line(receiptLine("SUBTOTAL DISCOUNT", "-"+d.Amount.StringFixed(0)))
		}
		line(strings.Repeat("-", receiptWidth))
		line(receiptLine("TOTAL", log.Sales.TotalAmountWithTax.StringFixed(0)))
		for _, t := range log.Taxes {
			label := t.TaxName
			if label == "" {
				label = t.TaxCode
			}
			if t.TaxType == TaxTypeInternal {
				label = "(" + label + ")"
			}
			line(receiptLine(label, t.TaxAmount.StringFixed(0)))
		}
		for _, p := range log.Payments {
			desc := p.Description
			if desc == "" {
				desc = p.PaymentCode
			}
			line(receiptLine(desc, p.DepositAmount.StringFixed(0)))
		}
		if !log.Sales.ChangeAmount.IsZero() {
			line(receiptLine("CHANGE", log.Sales.ChangeAmount.StringFixed(0)))
		}
	}

	line(strings.Repeat("=", receiptWidth))
	line(receiptLine("STAFF "+log.Staff.ID, log.GenerateDateTime.Format("2006-01-02 15:04:05")))
	return b.String()
}

// renderJournal is the receipt plus the audit trailer the journal keeps.
func renderJournal(log *TransactionLog) string {
	var b strings.Builder
	b.WriteString(renderReceipt(log))
	b.WriteString(fmt.Sprintf("type=%d open=%d biz=%d\n",
		log.TransactionType, log.OpenCounter, log.BusinessCounter))
	return b.String()
}
