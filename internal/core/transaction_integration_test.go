package core_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/core"
	"pos-backend/internal/db"
)

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTranService(t *testing.T, tdb *db.TenantDB) core.TransactionService {
	t.Helper()
	masters := core.NewMasterService(tdb)
	_, err := masters.UpsertPayment(context.Background(), core.PaymentMaster{
		PaymentCode:    "01",
		Description:    "現金",
		CanRefund:      true,
		CanDepositOver: true,
		CanChange:      true,
	})
	if err != nil {
		t.Fatalf("failed to seed payment master: %v", err)
	}
	counters := core.NewCounterService(tdb)
	return core.NewTransactionService(tdb, counters, masters, nil, nil, discardLog())
}

func storeSale(t *testing.T, trans core.TransactionService, tranNo int64) *core.TransactionLog {
	t.Helper()
	log := &core.TransactionLog{
		StoreCode:        "5678",
		TerminalID:       "Z9999-5678-1",
		TerminalNo:       1,
		TransactionNo:    tranNo,
		TransactionType:  core.TransactionTypeNormalSales,
		ReceiptNo:        tranNo,
		BusinessDate:     "20260826",
		GenerateDateTime: time.Now(),
		Staff:            core.StaffRef{ID: "S001", Name: "店長"},
		LineItems: []core.CartLineItem{{
			LineNo:    1,
			ItemCode:  "4901000000011",
			UnitPrice: decimal.NewFromInt(1000),
			Quantity:  1,
			Amount:    decimal.NewFromInt(1000),
			TaxCode:   "01",
		}},
		Payments: []core.Payment{{
			PaymentNo:     1,
			PaymentCode:   "01",
			DepositAmount: decimal.NewFromInt(1000),
			Amount:        decimal.NewFromInt(1000),
		}},
	}
	log.Sales.TotalAmount = decimal.NewFromInt(1000)
	log.Sales.TotalAmountWithTax = decimal.NewFromInt(1000)
	log.Sales.TotalQuantity = 1
	if err := trans.Store(context.Background(), log); err != nil {
		t.Fatalf("failed to store sale %d: %v", tranNo, err)
	}
	return log
}

func TestVoidRejectsRefundedSale(t *testing.T) {
	tdb := setupTestTenant(t)
	trans := newTranService(t, tdb)
	ctx := context.Background()

	sale := storeSale(t, trans, 1)
	if _, err := trans.Return(ctx, core.ReturnRequest{
		StoreCode: sale.StoreCode, TerminalID: sale.TerminalID,
		TransactionNo: sale.TransactionNo, Staff: sale.Staff,
	}); err != nil {
		t.Fatalf("Return: %v", err)
	}

	_, err := trans.Void(ctx, core.VoidRequest{
		StoreCode: sale.StoreCode, TerminalID: sale.TerminalID,
		TransactionNo: sale.TransactionNo, Staff: sale.Staff,
	})
	if e := core.AsError(err); e == nil || e.Code != "ALREADY_REFUNDED" {
		t.Fatalf("Void of refunded sale: err = %v, want ALREADY_REFUNDED", err)
	}
}

func TestReturnRejectsVoidedSale(t *testing.T) {
	tdb := setupTestTenant(t)
	trans := newTranService(t, tdb)
	ctx := context.Background()

	sale := storeSale(t, trans, 1)
	if _, err := trans.Void(ctx, core.VoidRequest{
		StoreCode: sale.StoreCode, TerminalID: sale.TerminalID,
		TransactionNo: sale.TransactionNo, Staff: sale.Staff,
	}); err != nil {
		t.Fatalf("Void: %v", err)
	}

	_, err := trans.Return(ctx, core.ReturnRequest{
		StoreCode: sale.StoreCode, TerminalID: sale.TerminalID,
		TransactionNo: sale.TransactionNo, Staff: sale.Staff,
	})
	if e := core.AsError(err); e == nil || e.Code != "ALREADY_VOIDED" {
		t.Fatalf("Return of voided sale: err = %v, want ALREADY_VOIDED", err)
	}

	// A second void must also be rejected.
	_, err = trans.Void(ctx, core.VoidRequest{
		StoreCode: sale.StoreCode, TerminalID: sale.TerminalID,
		TransactionNo: sale.TransactionNo, Staff: sale.Staff,
	})
	if e := core.AsError(err); e == nil || e.Code != "ALREADY_VOIDED" {
		t.Fatalf("second Void: err = %v, want ALREADY_VOIDED", err)
	}
}

func TestVoidOfReturnReopensOriginal(t *testing.T) {
	tdb := setupTestTenant(t)
	trans := newTranService(t, tdb)
	ctx := context.Background()

	sale := storeSale(t, trans, 1)
	ret, err := trans.Return(ctx, core.ReturnRequest{
		StoreCode: sale.StoreCode, TerminalID: sale.TerminalID,
		TransactionNo: sale.TransactionNo, Staff: sale.Staff,
	})
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if ret.TransactionType != core.TransactionTypeReturnSales {
		t.Fatalf("return type = %d, want %d", ret.TransactionType, core.TransactionTypeReturnSales)
	}

	voided, err := trans.Void(ctx, core.VoidRequest{
		StoreCode: ret.StoreCode, TerminalID: ret.TerminalID,
		TransactionNo: ret.TransactionNo, Staff: sale.Staff,
	})
	if err != nil {
		t.Fatalf("Void of return: %v", err)
	}
	if voided.TransactionType != core.TransactionTypeVoidReturn {
		t.Errorf("void type = %d, want %d", voided.TransactionType, core.TransactionTypeVoidReturn)
	}

	// Voiding the return clears the refund so the sale can be returned again.
	reloaded, err := trans.Get(ctx, sale.StoreCode, sale.TerminalID, sale.TransactionNo)
	if err != nil {
		t.Fatalf("Get original: %v", err)
	}
	if reloaded.IsRefunded {
		t.Error("original sale still marked refunded after its return was voided")
	}
	if _, err := trans.Return(ctx, core.ReturnRequest{
		StoreCode: sale.StoreCode, TerminalID: sale.TerminalID,
		TransactionNo: sale.TransactionNo, Staff: sale.Staff,
	}); err != nil {
		t.Errorf("second Return after void-of-return: %v", err)
	}
}
