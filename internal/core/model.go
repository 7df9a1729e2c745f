package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType identifies the business meaning of a transaction log row.
type TransactionType int

const (
	TransactionTypeNormalSales       TransactionType = 101
	TransactionTypeNormalSalesCancel TransactionType = -101
	TransactionTypeReturnSales       TransactionType = 102
	TransactionTypeVoidSales         TransactionType = 201
	TransactionTypeVoidReturn        TransactionType = 202
	TransactionTypeOpen              TransactionType = 301
	TransactionTypeClose             TransactionType = 302
	TransactionTypeCashIn            TransactionType = 401
	TransactionTypeCashOut           TransactionType = 402
)

// TerminalStatus is the lifecycle state of a POS terminal.
type TerminalStatus string

const (
	TerminalStatusIdle     TerminalStatus = "Idle"
	TerminalStatusOpened   TerminalStatus = "Opened"
	TerminalStatusClosed   TerminalStatus = "Closed"
	TerminalStatusSignedIn TerminalStatus = "Signedin"
)

// Counter types allocated per terminal.
const (
	CounterTypeTransactionNo = "transactionNo"
	CounterTypeReceiptNo     = "receiptNo"
)

// StaffRef is the single staff reference shape used across all services.
type StaffRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Store struct {
	StoreCode    string    `json:"storeCode"`
	StoreName    string    `json:"storeName"`
	BusinessDate string    `json:"businessDate"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Terminal struct {
	TerminalID      string          `json:"terminalId"`
	StoreCode       string          `json:"storeCode"`
	TerminalNo      int             `json:"terminalNo"`
	FunctionMode    string          `json:"functionMode"`
	Status          TerminalStatus  `json:"status"`
	BusinessDate    string          `json:"businessDate"`
	OpenCounter     int             `json:"openCounter"`
	BusinessCounter int             `json:"businessCounter"`
	Staff           StaffRef        `json:"staff"`
	APIKey          string          `json:"apiKey,omitempty"`
	InitialAmount   decimal.Decimal `json:"initialAmount"`
	PhysicalAmount  decimal.Decimal `json:"physicalAmount"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Staff struct {
	StaffID   string    `json:"staffId"`
	StaffName string    `json:"staffName"`
	PinHash   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	IsSuperuser  bool       `json:"isSuperuser"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ── Master data ──────────────────────────────────────────────────────────────

type Item struct {
	ItemCode             string          `json:"itemCode"`
	Description          string          `json:"description"`
	DescriptionShort     string          `json:"descriptionShort"`
	UnitPrice            decimal.Decimal `json:"unitPrice"`
	TaxCode              string          `json:"taxCode"`
	CategoryCode         string          `json:"categoryCode"`
	IsDiscountRestricted bool            `json:"isDiscountRestricted"`
	ImageURLs            []string        `json:"imageUrls"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

type Category struct {
	CategoryCode string    `json:"categoryCode"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TaxType distinguishes add-on tax from tax included in the price.
type TaxType string

const (
	TaxTypeExternal TaxType = "External"
	TaxTypeInternal TaxType = "Internal"
)

type TaxMaster struct {
	TaxCode     string          `json:"taxCode"`
	TaxNo       int             `json:"taxNo"`
	TaxType     TaxType         `json:"taxType"`
	TaxName     string          `json:"taxName"`
	Rate        decimal.Decimal `json:"rate"`
	RoundDigit  int             `json:"roundDigit"`
	RoundMethod string          `json:"roundMethod"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type PaymentMaster struct {
	PaymentCode    string    `json:"paymentCode"`
	Description    string    `json:"description"`
	CanRefund      bool      `json:"canRefund"`
	CanDepositOver bool      `json:"canDepositOver"`
	CanChange      bool      `json:"canChange"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ── Transaction log ──────────────────────────────────────────────────────────

// TranReference points a void or return transaction at its original.
type TranReference struct {
	StoreCode     string `json:"storeCode"`
	TerminalID    string `json:"terminalId"`
	TransactionNo int64  `json:"transactionNo"`
}

// TransactionLog is the immutable record produced on cart finalization and
// for terminal open/close and cash in/out operations. Voided/refunded flags
// are overlaid from TransactionStatus when reading; the row itself never
// changes after insert.
type TransactionLog struct {
	StoreCode        string          `json:"storeCode"`
	TerminalID       string          `json:"terminalId"`
	TerminalNo       int             `json:"terminalNo"`
	TransactionNo    int64           `json:"transactionNo"`
	TransactionType  TransactionType `json:"transactionType"`
	ReceiptNo        int64           `json:"receiptNo"`
	BusinessDate     string          `json:"businessDate"`
	OpenCounter      int             `json:"openCounter"`
	BusinessCounter  int             `json:"businessCounter"`
	GenerateDateTime time.Time       `json:"generateDateTime"`
	Staff            StaffRef        `json:"staff"`
	Origin           *TranReference  `json:"origin,omitempty"`
	IsVoided         bool            `json:"isVoided"`
	IsRefunded       bool            `json:"isRefunded"`

	LineItems         []CartLineItem `json:"lineItems,omitempty"`
	SubtotalDiscounts []Discount     `json:"subtotalDiscounts,omitempty"`
	Payments          []Payment      `json:"payments,omitempty"`
	Taxes             []TaxResult    `json:"taxes,omitempty"`
	Sales             SalesSummary   `json:"sales"`

	// Cash amount for CashIn/CashOut and the initial amount for Open.
	CashAmount decimal.Decimal `json:"cashAmount"`

	ReceiptText string `json:"receiptText,omitempty"`
	JournalText string `json:"journalText,omitempty"`
}

// TransactionStatus records out-of-band void/return state for one
// transaction. Created lazily on the first void or return.
type TransactionStatus struct {
	StoreCode           string     `json:"storeCode"`
	TerminalID          string     `json:"terminalId"`
	TransactionNo       int64      `json:"transactionNo"`
	IsVoided            bool       `json:"isVoided"`
	VoidTransactionNo   *int64     `json:"voidTransactionNo,omitempty"`
	VoidDateTime        *time.Time `json:"voidDateTime,omitempty"`
	VoidStaffID         string     `json:"voidStaffId,omitempty"`
	IsRefunded          bool       `json:"isRefunded"`
	ReturnTransactionNo *int64     `json:"returnTransactionNo,omitempty"`
	ReturnDateTime      *time.Time `json:"returnDateTime,omitempty"`
	ReturnStaffID       string     `json:"returnStaffId,omitempty"`
}

// JournalEntry is the receipt/journal record written alongside each
// transaction log and queried by the journal endpoints.
type JournalEntry struct {
	StoreCode        string          `json:"storeCode"`
	TerminalID       string          `json:"terminalId"`
	TerminalNo       int             `json:"terminalNo"`
	TransactionNo    int64           `json:"transactionNo"`
	TransactionType  TransactionType `json:"transactionType"`
	ReceiptNo        int64           `json:"receiptNo"`
	BusinessDate     string          `json:"businessDate"`
	OpenCounter      int             `json:"openCounter"`
	Amount           decimal.Decimal `json:"amount"`
	Quantity         int             `json:"quantity"`
	StaffID          string          `json:"staffId"`
	ReceiptText      string          `json:"receiptText"`
	JournalText      string          `json:"journalText"`
	GenerateDateTime time.Time       `json:"generateDateTime"`
}
