package core_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"pos-backend/internal/core"
	"pos-backend/internal/db"
)

const testTenantID = "Z9999"

// setupTestTenant skips unless TEST_DATABASE_URL is set, then registers the
// test tenant's schema and truncates the tables the tests touch.
func setupTestTenant(t *testing.T) *db.TenantDB {
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	gateway := db.NewGateway(pool, "postest")
	tdb, err := gateway.RegisterTenant(ctx, testTenantID)
	if err != nil {
		t.Fatalf("failed to register test tenant: %v", err)
	}

	_, err = pool.Exec(ctx, fmt.Sprintf(
		"TRUNCATE TABLE %s, %s, %s, %s, %s, %s, %s, %s, %s, %s CASCADE",
		tdb.T("terminal_counters"), tdb.T("items"), tdb.T("taxes"), tdb.T("categories"),
		tdb.T("payment_methods"), tdb.T("transactions"), tdb.T("transaction_statuses"), tdb.T("journals"),
		tdb.T("terminals"), tdb.T("stores")))
	if err != nil {
		t.Fatalf("failed to clean test schema: %v", err)
	}
	return tdb
}

func TestCounterService_ConcurrentNext(t *testing.T) {
	tdb := setupTestTenant(t)
	counters := core.NewCounterService(tdb)
	ctx := context.Background()

	const workers = 50
	values := make(chan int64, workers)
	errCh := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := counters.Next(ctx, "Z9999-5678-1", core.CounterTypeReceiptNo)
			if err != nil {
				errCh <- err
				return
			}
			values <- v
		}()
	}
	wg.Wait()
	close(values)
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent Next error: %v", err)
	}

	seen := make(map[int64]bool)
	var max int64
	for v := range values {
		if seen[v] {
			t.Errorf("duplicate counter value %d", v)
		}
		seen[v] = true
		if v > max {
			max = v
		}
	}
	if len(seen) != workers {
		t.Errorf("got %d distinct values, want %d", len(seen), workers)
	}
	if max != workers {
		t.Errorf("max value = %d, want %d", max, workers)
	}
}

func TestCounterService_Rollover(t *testing.T) {
	tdb := setupTestTenant(t)
	counters := core.NewCounterService(tdb)
	ctx := context.Background()

	// Park the counter at the end of its range, then advance past it.
	_, err := tdb.Pool().Exec(ctx, fmt.Sprintf(
		"INSERT INTO %s (terminal_id, counter_type, value) VALUES ($1, $2, $3)",
		tdb.T("terminal_counters")), "Z9999-5678-1", core.CounterTypeReceiptNo, core.ReceiptNoEnd)
	if err != nil {
		t.Fatalf("failed to park counter: %v", err)
	}

	v, err := counters.Next(ctx, "Z9999-5678-1", core.CounterTypeReceiptNo)
	if err != nil {
		t.Fatalf("Next after range end: %v", err)
	}
	if v != core.ReceiptNoStart {
		t.Errorf("rollover value = %d, want %d", v, core.ReceiptNoStart)
	}
}

func TestCounterService_CurrentDoesNotAdvance(t *testing.T) {
	tdb := setupTestTenant(t)
	counters := core.NewCounterService(tdb)
	ctx := context.Background()

	v, err := counters.Current(ctx, "Z9999-5678-2", core.CounterTypeTransactionNo)
	if err != nil {
		t.Fatalf("Current on fresh counter: %v", err)
	}
	if v != core.TransactionNoStart-1 {
		t.Errorf("fresh Current = %d, want %d", v, core.TransactionNoStart-1)
	}

	if _, err := counters.Next(ctx, "Z9999-5678-2", core.CounterTypeTransactionNo); err != nil {
		t.Fatalf("Next: %v", err)
	}
	for i := 0; i < 3; i++ {
		if v, err = counters.Current(ctx, "Z9999-5678-2", core.CounterTypeTransactionNo); err != nil {
			t.Fatalf("Current: %v", err)
		}
	}
	if v != core.TransactionNoStart {
		t.Errorf("Current after one Next = %d, want %d", v, core.TransactionNoStart)
	}
}

func TestMasterService_ItemLifecycle(t *testing.T) {
	tdb := setupTestTenant(t)
	masters := core.NewMasterService(tdb)
	ctx := context.Background()

	item := core.Item{
		ItemCode:     "4901000000011",
		Description:  "Mineral Water 500ml",
		UnitPrice:    decimal.NewFromInt(120),
		TaxCode:      "01",
		CategoryCode: "20",
	}
	if _, err := masters.UpsertItem(ctx, item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	got, err := masters.GetItem(ctx, item.ItemCode)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Description != item.Description || !got.UnitPrice.Equal(item.UnitPrice) {
		t.Errorf("GetItem = %+v, want description %q price %s", got, item.Description, item.UnitPrice)
	}

	item.UnitPrice = decimal.NewFromInt(140)
	if _, err := masters.UpsertItem(ctx, item); err != nil {
		t.Fatalf("UpsertItem update: %v", err)
	}
	got, err = masters.GetItem(ctx, item.ItemCode)
	if err != nil {
		t.Fatalf("GetItem after update: %v", err)
	}
	if !got.UnitPrice.Equal(decimal.NewFromInt(140)) {
		t.Errorf("updated price = %s, want 140", got.UnitPrice)
	}

	if err := masters.DeleteItem(ctx, item.ItemCode); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := masters.GetItem(ctx, item.ItemCode); core.KindOf(err) != core.KindNotFound {
		t.Errorf("GetItem after delete: err = %v, want not-found", err)
	}
}
