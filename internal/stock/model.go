package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// Update types recorded in the append-only history.
const (
	UpdateTypeSale       = "sale"
	UpdateTypeVoid       = "void"
	UpdateTypeReturn     = "return"
	UpdateTypeVoidReturn = "void_return"
	UpdateTypePurchase   = "purchase"
	UpdateTypeAdjustment = "adjustment"
	UpdateTypeInitial    = "initial"
)

// Stock is the current quantity and thresholds of one item in one store.
// Negative quantity is permitted.
type Stock struct {
	TenantID        string          `json:"tenantId"`
	StoreCode       string          `json:"storeCode"`
	ItemCode        string          `json:"itemCode"`
	CurrentQuantity decimal.Decimal `json:"currentQuantity"`
	MinimumQuantity decimal.Decimal `json:"minimumQuantity"`
	ReorderPoint    decimal.Decimal `json:"reorderPoint"`
	ReorderQuantity decimal.Decimal `json:"reorderQuantity"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Update is one history row. AfterQuantity always equals BeforeQuantity
// plus QuantityChange.
type Update struct {
	ID             int64           `json:"id"`
	StoreCode      string          `json:"storeCode"`
	ItemCode       string          `json:"itemCode"`
	UpdateType     string          `json:"updateType"`
	QuantityChange decimal.Decimal `json:"quantityChange"`
	BeforeQuantity decimal.Decimal `json:"beforeQuantity"`
	AfterQuantity  decimal.Decimal `json:"afterQuantity"`
	ReferenceID    string          `json:"referenceId,omitempty"`
	OperatorID     string          `json:"operatorId,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// SnapshotItem is one stock row frozen inside a snapshot.
type SnapshotItem struct {
	ItemCode        string          `json:"itemCode"`
	CurrentQuantity decimal.Decimal `json:"currentQuantity"`
	MinimumQuantity decimal.Decimal `json:"minimumQuantity"`
	ReorderPoint    decimal.Decimal `json:"reorderPoint"`
}

// Snapshot is a point-in-time copy of one store's stocks.
type Snapshot struct {
	ID               int64          `json:"id"`
	StoreCode        string         `json:"storeCode"`
	Stocks           []SnapshotItem `json:"stocks"`
	TotalItems       int            `json:"totalItems"`
	GenerateDateTime time.Time      `json:"generateDateTime"`
}

// Snapshot schedule intervals.
const (
	IntervalDaily   = "daily"
	IntervalWeekly  = "weekly"
	IntervalMonthly = "monthly"
)

// Schedule is the per-tenant snapshot configuration. TargetStores may be
// the literal ["all"].
type Schedule struct {
	Enabled         bool       `json:"enabled"`
	Interval        string     `json:"interval"`
	Hour            int        `json:"hour"`
	Minute          int        `json:"minute"`
	DayOfWeek       *int       `json:"dayOfWeek,omitempty"`
	DayOfMonth      *int       `json:"dayOfMonth,omitempty"`
	RetentionDays   int        `json:"retentionDays"`
	TargetStores    []string   `json:"targetStores"`
	LastExecutedAt  *time.Time `json:"lastExecutedAt,omitempty"`
	NextExecutionAt *time.Time `json:"nextExecutionAt,omitempty"`
}

// Due reports whether the schedule fires in the hour containing t. Minute
// granularity is checked by the caller's tick cadence; the scheduler runs
// once per minute.
func (s *Schedule) Due(t time.Time) bool {
	if !s.Enabled || t.Hour() != s.Hour || t.Minute() != s.Minute {
		return false
	}
	switch s.Interval {
	case IntervalWeekly:
		return s.DayOfWeek != nil && int(t.Weekday()) == *s.DayOfWeek
	case IntervalMonthly:
		return s.DayOfMonth != nil && t.Day() == *s.DayOfMonth
	default:
		return true
	}
}
