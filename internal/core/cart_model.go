package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartStatus is the cart lifecycle state.
type CartStatus string

const (
	CartStatusInitial      CartStatus = "Initial"
	CartStatusIdle         CartStatus = "Idle"
	CartStatusEnteringItem CartStatus = "EnteringItem"
	CartStatusPaying       CartStatus = "Paying"
	CartStatusCompleted    CartStatus = "Completed"
	CartStatusCancelled    CartStatus = "Cancelled"
)

// CartEvent names a cart state-machine event.
type CartEvent string

const (
	EventCreate              CartEvent = "create"
	EventAddItems            CartEvent = "add_items"
	EventCancelLine          CartEvent = "cancel_line"
	EventUnitPriceOverride   CartEvent = "unit_price_override"
	EventAddLineDiscount     CartEvent = "add_line_discount"
	EventAddSubtotalDiscount CartEvent = "add_subtotal_discount"
	EventSubtotal            CartEvent = "subtotal"
	EventAddPayment          CartEvent = "add_payment"
	EventResumeItemEntry     CartEvent = "resume_item_entry"
	EventBill                CartEvent = "bill"
	EventCancelCart          CartEvent = "cancel_cart"
)

// cartTransitions is the (state, event) legality table. An event missing for
// the cart's current state is rejected before any handler runs.
var cartTransitions = map[CartStatus]map[CartEvent]bool{
	CartStatusInitial: {
		EventCreate:     true,
		EventCancelCart: true,
	},
	CartStatusIdle: {
		EventAddItems:   true,
		EventCancelCart: true,
	},
	CartStatusEnteringItem: {
		EventAddItems:          true,
		EventCancelLine:        true,
		EventUnitPriceOverride: true,
		EventAddLineDiscount:   true,
		EventSubtotal:          true,
		EventCancelCart:        true,
	},
	CartStatusPaying: {
		EventAddSubtotalDiscount: true,
		EventAddPayment:          true,
		EventResumeItemEntry:     true,
		EventBill:                true,
		EventCancelCart:          true,
	},
}

// CanFire reports whether the event is legal in the given state.
func CanFire(status CartStatus, event CartEvent) bool {
	return cartTransitions[status][event]
}

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountTypeAmount     DiscountType = "Amount"
	DiscountTypePercentage DiscountType = "Percentage"
)

// Discount is applied either to one line item or to the cart subtotal. For
// percentage discounts Value is the percentage; Amount is the resolved
// monetary effect.
type Discount struct {
	SeqNo  int             `json:"seqNo"`
	Type   DiscountType    `json:"discountType"`
	Value  decimal.Decimal `json:"value"`
	Amount decimal.Decimal `json:"amount"`
	Detail string          `json:"detail,omitempty"`
}

// CartLineItem is one entry of a cart. DiscountsAllocated is a computed view
// regenerated by every recompute pass; callers never write it directly.
type CartLineItem struct {
	LineNo               int             `json:"lineNo"`
	ItemCode             string          `json:"itemCode"`
	Description          string          `json:"description"`
	UnitPrice            decimal.Decimal `json:"unitPrice"`
	UnitPriceOriginal    decimal.Decimal `json:"unitPriceOriginal"`
	IsUnitPriceChanged   bool            `json:"isUnitPriceChanged"`
	Quantity             int             `json:"quantity"`
	Amount               decimal.Decimal `json:"amount"`
	TaxCode              string          `json:"taxCode"`
	IsDiscountRestricted bool            `json:"isDiscountRestricted"`
	IsCancelled          bool            `json:"isCancelled"`
	Discounts            []Discount      `json:"discounts,omitempty"`
	DiscountsAllocated   []Discount      `json:"discountsAllocated,omitempty"`
	ImageURLs            []string        `json:"imageUrls,omitempty"`
}

// GrossAmount is unit price times quantity before any discount.
func (l *CartLineItem) GrossAmount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineDiscountTotal sums the line's own discounts.
func (l *CartLineItem) LineDiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range l.Discounts {
		total = total.Add(d.Amount)
	}
	return total
}

// AllocatedTotal sums the subtotal-discount amounts allocated to this line.
func (l *CartLineItem) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range l.DiscountsAllocated {
		total = total.Add(d.Amount)
	}
	return total
}

// Payment is one tender against the cart balance. Amount never exceeds
// DepositAmount; the difference is change for change-giving methods.
type Payment struct {
	PaymentNo     int             `json:"paymentNo"`
	PaymentCode   string          `json:"paymentCode"`
	Description   string          `json:"description"`
	DepositAmount decimal.Decimal `json:"depositAmount"`
	Amount        decimal.Decimal `json:"amount"`
	ChangeAmount  decimal.Decimal `json:"changeAmount"`
	Detail        string          `json:"detail,omitempty"`
}

// TaxResult is one computed tax row.
type TaxResult struct {
	TaxNo          int             `json:"taxNo"`
	TaxCode        string          `json:"taxCode"`
	TaxType        TaxType         `json:"taxType"`
	TaxName        string          `json:"taxName"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	TargetAmount   decimal.Decimal `json:"targetAmount"`
	TargetQuantity int             `json:"targetQuantity"`
}

// SalesSummary is the cart rollup. TotalAmount is pre-external-tax;
// TotalAmountWithTax is the authoritative tax-inclusive total.
type SalesSummary struct {
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	TotalAmountWithTax  decimal.Decimal `json:"totalAmountWithTax"`
	TotalDiscountAmount decimal.Decimal `json:"totalDiscountAmount"`
	TotalQuantity       int             `json:"totalQuantity"`
	TaxAmount           decimal.Decimal `json:"taxAmount"`
	InternalTaxAmount   decimal.Decimal `json:"internalTaxAmount"`
	ChangeAmount        decimal.Decimal `json:"changeAmount"`
	IsCancelled         bool            `json:"isCancelled"`
}

// Cart is the per-terminal shopping session aggregate. The whole aggregate is
// persisted as one document and mutated under a row lock, so nested slices
// are value types without back-pointers.
type Cart struct {
	CartID          string          `json:"cartId"`
	TerminalID      string          `json:"terminalId"`
	StoreCode       string          `json:"storeCode"`
	TerminalNo      int             `json:"terminalNo"`
	Status          CartStatus      `json:"status"`
	TransactionType TransactionType `json:"transactionType"`
	Staff           StaffRef        `json:"staff"`

	LineItems         []CartLineItem `json:"lineItems"`
	SubtotalDiscounts []Discount     `json:"subtotalDiscounts,omitempty"`
	Payments          []Payment      `json:"payments,omitempty"`
	Taxes             []TaxResult    `json:"taxes,omitempty"`

	Sales   SalesSummary    `json:"sales"`
	Balance decimal.Decimal `json:"balance"`

	ReceiptText string `json:"receiptText,omitempty"`
	JournalText string `json:"journalText,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FindLine returns the line with the given number, or nil.
func (c *Cart) FindLine(lineNo int) *CartLineItem {
	for i := range c.LineItems {
		if c.LineItems[i].LineNo == lineNo {
			return &c.LineItems[i]
		}
	}
	return nil
}

// PaymentTotal sums applied payment amounts.
func (c *Cart) PaymentTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// IsTerminal reports whether no further events are accepted.
func (c *Cart) IsTerminal() bool {
	return c.Status == CartStatusCompleted || c.Status == CartStatusCancelled
}
