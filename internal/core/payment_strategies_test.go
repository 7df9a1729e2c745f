package core_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"pos-backend/internal/core"
)

var (
	cashMaster    = core.PaymentMaster{PaymentCode: "01", Description: "cash", CanRefund: true, CanDepositOver: true, CanChange: true}
	cardMaster    = core.PaymentMaster{PaymentCode: "11", Description: "card", CanRefund: true}
	voucherMaster = core.PaymentMaster{PaymentCode: "21", Description: "voucher", CanDepositOver: true}
)

func payingCart(balance int64) *core.Cart {
	return &core.Cart{Status: core.CartStatusPaying, Balance: decimal.NewFromInt(balance)}
}

func TestStandardPay(t *testing.T) {
	registry := core.NewPaymentRegistry()

	t.Run("cash over-deposit yields change", func(t *testing.T) {
		cart := payingCart(800)
		if err := registry.Strategy("01").Pay(cart, cashMaster, dec(1000), ""); err != nil {
			t.Fatalf("pay: %v", err)
		}
		p := cart.Payments[0]
		if !p.DepositAmount.Equal(dec(1000)) || !p.Amount.Equal(dec(800)) || !p.ChangeAmount.Equal(dec(200)) {
			t.Errorf("payment = deposit %s amount %s change %s, want 1000/800/200",
				p.DepositAmount, p.Amount, p.ChangeAmount)
		}
	})

	t.Run("voucher over-deposit applies without change", func(t *testing.T) {
		cart := payingCart(800)
		if err := registry.Strategy("21").Pay(cart, voucherMaster, dec(1000), ""); err != nil {
			t.Fatalf("pay: %v", err)
		}
		p := cart.Payments[0]
		if !p.Amount.Equal(dec(800)) || !p.ChangeAmount.IsZero() {
			t.Errorf("payment = amount %s change %s, want 800/0", p.Amount, p.ChangeAmount)
		}
	})

	t.Run("card rejects over-deposit", func(t *testing.T) {
		cart := payingCart(800)
		err := registry.Strategy("11").Pay(cart, cardMaster, dec(1000), "")
		if e := core.AsError(err); e == nil || e.Code != "DEPOSIT_OVER" {
			t.Errorf("error = %v, want DEPOSIT_OVER", err)
		}
	})

	t.Run("exact card payment", func(t *testing.T) {
		cart := payingCart(800)
		if err := registry.Strategy("11").Pay(cart, cardMaster, dec(800), ""); err != nil {
			t.Fatalf("pay: %v", err)
		}
		if p := cart.Payments[0]; !p.Amount.Equal(dec(800)) || !p.ChangeAmount.IsZero() {
			t.Errorf("payment = amount %s change %s, want 800/0", p.Amount, p.ChangeAmount)
		}
	})

	t.Run("settled cart accepts no more tenders", func(t *testing.T) {
		cart := payingCart(0)
		err := registry.Strategy("01").Pay(cart, cashMaster, dec(100), "")
		if e := core.AsError(err); e == nil || e.Code != "BALANCE_ZERO" {
			t.Errorf("error = %v, want BALANCE_ZERO", err)
		}
	})

	t.Run("non-positive deposit rejected", func(t *testing.T) {
		cart := payingCart(800)
		err := registry.Strategy("01").Pay(cart, cashMaster, dec(0), "")
		if e := core.AsError(err); e == nil || e.Code != "VALIDATION" {
			t.Errorf("error = %v, want VALIDATION", err)
		}
	})
}

func TestStandardRefund(t *testing.T) {
	registry := core.NewPaymentRegistry()

	t.Run("refundable method accepted", func(t *testing.T) {
		cart := &core.Cart{}
		if err := registry.Strategy("01").Refund(cart, cashMaster, dec(500), ""); err != nil {
			t.Fatalf("refund: %v", err)
		}
		if p := cart.Payments[0]; !p.Amount.Equal(dec(500)) {
			t.Errorf("refund amount = %s, want 500", p.Amount)
		}
	})

	t.Run("non-refundable method rejected", func(t *testing.T) {
		cart := &core.Cart{}
		err := registry.Strategy("21").Refund(cart, voucherMaster, dec(500), "")
		if e := core.AsError(err); e == nil || e.Code != "VALIDATION" {
			t.Errorf("error = %v, want VALIDATION", err)
		}
	})
}

func TestPaymentRegistry_CustomStrategy(t *testing.T) {
	registry := core.NewPaymentRegistry()
	called := false
	registry.Register("99", core.PaymentStrategy{
		Pay: func(cart *core.Cart, master core.PaymentMaster, deposit decimal.Decimal, detail string) error {
			called = true
			return nil
		},
	})

	if err := registry.Strategy("99").Pay(&core.Cart{}, core.PaymentMaster{}, dec(1), ""); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if !called {
		t.Error("custom strategy was not invoked")
	}
}
