package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/core"
	"pos-backend/internal/db"
)

// Service is the stock ledger: atomic quantity mutation, append-only
// history, snapshots and threshold alerts. It spans tenants because it
// consumes a cross-tenant event stream.
type Service struct {
	gateway *db.Gateway
	alerts  *AlertHub
	log     *logrus.Entry
}

func NewService(gateway *db.Gateway, alerts *AlertHub, log *logrus.Entry) *Service {
	return &Service{gateway: gateway, alerts: alerts, log: log}
}

func (s *Service) tenant(tenantID string) (*db.TenantDB, error) {
	tdb, err := s.gateway.Tenant(tenantID)
	if err != nil {
		return nil, core.ErrValidation.WithCause(err)
	}
	return tdb, nil
}

// Update applies a signed quantity change in one atomic statement and
// appends the history row. The post-image comes back from the same upsert,
// so before and after are exact even under concurrent mutation.
func (s *Service) Update(ctx context.Context, tenantID, storeCode, itemCode string, change decimal.Decimal, updateType, referenceID, operatorID, note string) (*Stock, error) {
	if storeCode == "" || itemCode == "" {
		return nil, core.ErrValidation.Withf("store code and item code are required")
	}
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}

	st := &Stock{TenantID: tenantID, StoreCode: storeCode, ItemCode: itemCode}
	err = tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (store_code, item_code, current_quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (store_code, item_code) DO UPDATE SET
			current_quantity = %s.current_quantity + $3,
			updated_at = NOW()
		RETURNING current_quantity, minimum_quantity, reorder_point, reorder_quantity, updated_at
	`, tdb.T("stocks"), "stocks"), storeCode, itemCode, change).Scan(
		&st.CurrentQuantity, &st.MinimumQuantity, &st.ReorderPoint, &st.ReorderQuantity, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to apply stock change for %s/%s: %w", storeCode, itemCode, err)
	}

	before := st.CurrentQuantity.Sub(change)
	_, err = tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (store_code, item_code, update_type, quantity_change,
		                before_quantity, after_quantity, reference_id, operator_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tdb.T("stock_updates")),
		storeCode, itemCode, updateType, change, before, st.CurrentQuantity,
		referenceID, operatorID, note)
	if err != nil {
		return nil, fmt.Errorf("failed to append stock update for %s/%s: %w", storeCode, itemCode, err)
	}

	if s.alerts != nil {
		s.alerts.Evaluate(tenantID, st)
	}
	return st, nil
}

func (s *Service) Get(ctx context.Context, tenantID, storeCode, itemCode string) (*Stock, error) {
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	st := &Stock{TenantID: tenantID, StoreCode: storeCode, ItemCode: itemCode}
	err = tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT current_quantity, minimum_quantity, reorder_point, reorder_quantity, updated_at
		FROM %s WHERE store_code = $1 AND item_code = $2
	`, tdb.T("stocks")), storeCode, itemCode).Scan(
		&st.CurrentQuantity, &st.MinimumQuantity, &st.ReorderPoint, &st.ReorderQuantity, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrStockNotFound.Withf("%s/%s", storeCode, itemCode)
		}
		return nil, fmt.Errorf("failed to fetch stock %s/%s: %w", storeCode, itemCode, err)
	}
	return st, nil
}

func (s *Service) List(ctx context.Context, tenantID, storeCode string, limit, page int) ([]Stock, int, error) {
	if limit <= 0 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := tdb.Pool().QueryRow(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE store_code = $1", tdb.T("stocks")), storeCode).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count stocks: %w", err)
	}

	rows, err := tdb.Pool().Query(ctx, fmt.Sprintf(`
		SELECT item_code, current_quantity, minimum_quantity, reorder_point, reorder_quantity, updated_at
		FROM %s WHERE store_code = $1 ORDER BY item_code LIMIT $2 OFFSET $3
	`, tdb.T("stocks")), storeCode, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []Stock
	for rows.Next() {
		st := Stock{TenantID: tenantID, StoreCode: storeCode}
		if err := rows.Scan(&st.ItemCode, &st.CurrentQuantity, &st.MinimumQuantity,
			&st.ReorderPoint, &st.ReorderQuantity, &st.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, st)
	}
	return stocks, total, nil
}

// SetThresholds updates the alert thresholds, creating the stock row at
// zero quantity when absent.
func (s *Service) SetThresholds(ctx context.Context, tenantID, storeCode, itemCode string, minimum, reorderPoint, reorderQuantity decimal.Decimal) (*Stock, error) {
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	st := &Stock{TenantID: tenantID, StoreCode: storeCode, ItemCode: itemCode}
	err = tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (store_code, item_code, minimum_quantity, reorder_point, reorder_quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (store_code, item_code) DO UPDATE SET
			minimum_quantity = EXCLUDED.minimum_quantity,
			reorder_point = EXCLUDED.reorder_point,
			reorder_quantity = EXCLUDED.reorder_quantity,
			updated_at = NOW()
		RETURNING current_quantity, minimum_quantity, reorder_point, reorder_quantity, updated_at
	`, tdb.T("stocks")), storeCode, itemCode, minimum, reorderPoint, reorderQuantity).Scan(
		&st.CurrentQuantity, &st.MinimumQuantity, &st.ReorderPoint, &st.ReorderQuantity, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to set thresholds for %s/%s: %w", storeCode, itemCode, err)
	}
	return st, nil
}

func (s *Service) History(ctx context.Context, tenantID, storeCode, itemCode string, limit, page int) ([]Update, int, error) {
	if limit <= 0 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := tdb.Pool().QueryRow(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE store_code = $1 AND item_code = $2", tdb.T("stock_updates")),
		storeCode, itemCode).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count stock updates: %w", err)
	}

	rows, err := tdb.Pool().Query(ctx, fmt.Sprintf(`
		SELECT id, store_code, item_code, update_type, quantity_change,
		       before_quantity, after_quantity, reference_id, operator_id, note, created_at
		FROM %s WHERE store_code = $1 AND item_code = $2
		ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4
	`, tdb.T("stock_updates")), storeCode, itemCode, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query stock updates: %w", err)
	}
	defer rows.Close()

	var updates []Update
	for rows.Next() {
		var u Update
		if err := rows.Scan(&u.ID, &u.StoreCode, &u.ItemCode, &u.UpdateType, &u.QuantityChange,
			&u.BeforeQuantity, &u.AfterQuantity, &u.ReferenceID, &u.OperatorID, &u.Note, &u.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan stock update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, total, nil
}

// LowStock lists items at or below their minimum quantity.
func (s *Service) LowStock(ctx context.Context, tenantID, storeCode string) ([]Stock, error) {
	return s.listByThreshold(ctx, tenantID, storeCode, "minimum_quantity")
}

// ReorderAlerts lists items at or below their reorder point.
func (s *Service) ReorderAlerts(ctx context.Context, tenantID, storeCode string) ([]Stock, error) {
	return s.listByThreshold(ctx, tenantID, storeCode, "reorder_point")
}

func (s *Service) listByThreshold(ctx context.Context, tenantID, storeCode, column string) ([]Stock, error) {
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	rows, err := tdb.Pool().Query(ctx, fmt.Sprintf(`
		SELECT item_code, current_quantity, minimum_quantity, reorder_point, reorder_quantity, updated_at
		FROM %s
		WHERE store_code = $1 AND %s > 0 AND current_quantity <= %s
		ORDER BY item_code
	`, tdb.T("stocks"), column, column), storeCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s breaches: %w", column, err)
	}
	defer rows.Close()

	var stocks []Stock
	for rows.Next() {
		st := Stock{TenantID: tenantID, StoreCode: storeCode}
		if err := rows.Scan(&st.ItemCode, &st.CurrentQuantity, &st.MinimumQuantity,
			&st.ReorderPoint, &st.ReorderQuantity, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, st)
	}
	return stocks, nil
}

// ── Snapshots ────────────────────────────────────────────────────────────────

// TakeSnapshot freezes one store's stocks into a snapshot row.
func (s *Service) TakeSnapshot(ctx context.Context, tenantID, storeCode string) (*Snapshot, error) {
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	rows, err := tdb.Pool().Query(ctx, fmt.Sprintf(`
		SELECT item_code, current_quantity, minimum_quantity, reorder_point
		FROM %s WHERE store_code = $1 ORDER BY item_code
	`, tdb.T("stocks")), storeCode)
	if err != nil {
		return nil, fmt.Errorf("failed to read stocks for snapshot: %w", err)
	}
	defer rows.Close()

	var items []SnapshotItem
	for rows.Next() {
		var it SnapshotItem
		if err := rows.Scan(&it.ItemCode, &it.CurrentQuantity, &it.MinimumQuantity, &it.ReorderPoint); err != nil {
			return nil, fmt.Errorf("failed to scan stock for snapshot: %w", err)
		}
		items = append(items, it)
	}

	snap := &Snapshot{
		StoreCode:        storeCode,
		Stocks:           items,
		TotalItems:       len(items),
		GenerateDateTime: time.Now(),
	}
	body, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	err = tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (store_code, stocks, total_items, generate_date_time)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, tdb.T("stock_snapshots")), storeCode, body, snap.TotalItems, snap.GenerateDateTime).Scan(&snap.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert snapshot for %s: %w", storeCode, err)
	}
	return snap, nil
}

// ListSnapshots returns snapshots for a store within a time range.
func (s *Service) ListSnapshots(ctx context.Context, tenantID, storeCode string, from, to time.Time, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	rows, err := tdb.Pool().Query(ctx, fmt.Sprintf(`
		SELECT id, store_code, stocks, total_items, generate_date_time
		FROM %s
		WHERE store_code = $1 AND generate_date_time >= $2 AND generate_date_time <= $3
		ORDER BY generate_date_time DESC LIMIT $4
	`, tdb.T("stock_snapshots")), storeCode, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var body []byte
		if err := rows.Scan(&snap.ID, &snap.StoreCode, &body, &snap.TotalItems, &snap.GenerateDateTime); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal(body, &snap.Stocks); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// SweepSnapshots deletes snapshots older than the retention period. This
// replaces a TTL index; retention changes take effect on the next sweep
// without any index rebuild.
func (s *Service) SweepSnapshots(ctx context.Context, tenantID string, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	tag, err := tdb.Pool().Exec(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE generate_date_time < $1", tdb.T("stock_snapshots")), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// StoreCodes enumerates the stores that have stock rows, used when a
// schedule targets "all".
func (s *Service) StoreCodes(ctx context.Context, tenantID string) ([]string, error) {
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	rows, err := tdb.Pool().Query(ctx, fmt.Sprintf(
		"SELECT DISTINCT store_code FROM %s ORDER BY store_code", tdb.T("stocks")))
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate stores: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan store code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// ── Schedule ────────────────────────────────────────────────────────────────

// GetSchedule loads the tenant's snapshot schedule; absent rows come back
// as a disabled default.
func (s *Service) GetSchedule(ctx context.Context, tenantID string) (*Schedule, error) {
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return nil, err
	}
	sc := &Schedule{}
	var stores []byte
	err = tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT enabled, snap_interval, hour, minute, day_of_week, day_of_month,
		       retention_days, target_stores, last_executed_at, next_execution_at
		FROM %s WHERE id = 1
	`, tdb.T("snapshot_schedules"))).Scan(
		&sc.Enabled, &sc.Interval, &sc.Hour, &sc.Minute, &sc.DayOfWeek, &sc.DayOfMonth,
		&sc.RetentionDays, &stores, &sc.LastExecutedAt, &sc.NextExecutionAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &Schedule{Interval: IntervalDaily, Hour: 2, RetentionDays: 30, TargetStores: []string{"all"}}, nil
		}
		return nil, fmt.Errorf("failed to fetch snapshot schedule: %w", err)
	}
	if err := json.Unmarshal(stores, &sc.TargetStores); err != nil {
		return nil, fmt.Errorf("failed to decode target stores: %w", err)
	}
	return sc, nil
}

// PutSchedule replaces the tenant's snapshot schedule.
func (s *Service) PutSchedule(ctx context.Context, tenantID string, sc Schedule) error {
	switch sc.Interval {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
	default:
		return core.ErrValidation.Withf("unknown snapshot interval %q", sc.Interval)
	}
	if sc.Hour < 0 || sc.Hour > 23 || sc.Minute < 0 || sc.Minute > 59 {
		return core.ErrValidation.Withf("snapshot time %02d:%02d out of range", sc.Hour, sc.Minute)
	}
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return err
	}
	stores, err := json.Marshal(sc.TargetStores)
	if err != nil {
		return fmt.Errorf("failed to encode target stores: %w", err)
	}
	if stores == nil || string(stores) == "null" {
		stores = []byte(`["all"]`)
	}
	_, err = tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, enabled, snap_interval, hour, minute, day_of_week, day_of_month,
		                retention_days, target_stores)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			snap_interval = EXCLUDED.snap_interval,
			hour = EXCLUDED.hour,
			minute = EXCLUDED.minute,
			day_of_week = EXCLUDED.day_of_week,
			day_of_month = EXCLUDED.day_of_month,
			retention_days = EXCLUDED.retention_days,
			target_stores = EXCLUDED.target_stores,
			updated_at = NOW()
	`, tdb.T("snapshot_schedules")),
		sc.Enabled, sc.Interval, sc.Hour, sc.Minute, sc.DayOfWeek, sc.DayOfMonth,
		sc.RetentionDays, stores)
	if err != nil {
		return fmt.Errorf("failed to store snapshot schedule: %w", err)
	}
	return nil
}

// MarkExecuted stamps the schedule after a run.
func (s *Service) MarkExecuted(ctx context.Context, tenantID string, at time.Time) error {
	tdb, err := s.tenant(tenantID)
	if err != nil {
		return err
	}
	_, err = tdb.Pool().Exec(ctx, fmt.Sprintf(
		"UPDATE %s SET last_executed_at = $1, updated_at = NOW() WHERE id = 1", tdb.T("snapshot_schedules")), at)
	if err != nil {
		return fmt.Errorf("failed to mark schedule executed: %w", err)
	}
	return nil
}
