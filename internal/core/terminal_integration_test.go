package core_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"pos-backend/internal/core"
	"pos-backend/internal/db"
)

func openTerminal(t *testing.T, tdb *db.TenantDB, terms core.TerminalService) *core.Terminal {
	t.Helper()
	ctx := context.Background()
	if _, err := terms.Create(ctx, "5678", 1, ""); err != nil {
		t.Fatalf("failed to create terminal: %v", err)
	}
	terminalID := core.TerminalIDOf(testTenantID, "5678", 1)
	if _, err := terms.SignIn(ctx, terminalID, core.StaffRef{ID: "S001", Name: "店長"}); err != nil {
		t.Fatalf("failed to sign in: %v", err)
	}
	term, _, err := terms.Open(ctx, terminalID, decimal.NewFromInt(30000))
	if err != nil {
		t.Fatalf("failed to open terminal: %v", err)
	}
	return term
}

func TestCashInPersistsNote(t *testing.T) {
	tdb := setupTestTenant(t)
	ctx := context.Background()

	trans := newTranService(t, tdb)
	counters := core.NewCounterService(tdb)
	terms := core.NewTerminalService(tdb, counters, trans, discardLog())
	term := openTerminal(t, tdb, terms)

	const note = "レジ補充（両替分）"
	log, err := terms.CashIn(ctx, term.TerminalID, decimal.NewFromInt(5000), note)
	if err != nil {
		t.Fatalf("cash in failed: %v", err)
	}
	if !strings.Contains(log.JournalText, note) {
		t.Fatalf("expected journal text to contain note %q, got:\n%s", note, log.JournalText)
	}

	var stored string
	err = tdb.Pool().QueryRow(ctx, fmt.Sprintf(
		"SELECT journal_text FROM %s WHERE terminal_id = $1 AND transaction_no = $2",
		tdb.T("journals")), term.TerminalID, log.TransactionNo).Scan(&stored)
	if err != nil {
		t.Fatalf("failed to read journal row: %v", err)
	}
	if !strings.Contains(stored, note) {
		t.Fatalf("expected stored journal text to contain note %q, got:\n%s", note, stored)
	}
	if stored != log.JournalText {
		t.Fatalf("stored journal text differs from returned log")
	}
}

func TestCashOutRequiresOpenedTerminal(t *testing.T) {
	tdb := setupTestTenant(t)
	ctx := context.Background()

	trans := newTranService(t, tdb)
	counters := core.NewCounterService(tdb)
	terms := core.NewTerminalService(tdb, counters, trans, discardLog())
	if _, err := terms.Create(ctx, "5678", 1, ""); err != nil {
		t.Fatalf("failed to create terminal: %v", err)
	}
	terminalID := core.TerminalIDOf(testTenantID, "5678", 1)

	_, err := terms.CashOut(ctx, terminalID, decimal.NewFromInt(1000), "")
	if err == nil {
		t.Fatal("expected cash out on a closed terminal to fail")
	}
	if code := core.AsError(err).Code; code != core.ErrTerminalNotOpened.Code {
		t.Fatalf("expected %s, got %v", core.ErrTerminalNotOpened.Code, err)
	}
}
