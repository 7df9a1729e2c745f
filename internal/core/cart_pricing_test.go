package core_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"pos-backend/internal/core"
)

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func taxMasters() map[string]core.TaxMaster {
	return map[string]core.TaxMaster{
		"01": {TaxCode: "01", TaxNo: 1, TaxType: core.TaxTypeExternal, TaxName: "tax 10%", Rate: dec(10), RoundDigit: 0, RoundMethod: "Floor"},
		"02": {TaxCode: "02", TaxNo: 2, TaxType: core.TaxTypeExternal, TaxName: "tax 8%", Rate: dec(8), RoundDigit: 0, RoundMethod: "Floor"},
		"11": {TaxCode: "11", TaxNo: 3, TaxType: core.TaxTypeInternal, TaxName: "incl 10%", Rate: dec(10), RoundDigit: 0, RoundMethod: "Floor"},
	}
}

func TestRecompute_LineAmounts(t *testing.T) {
	cart := &core.Cart{
		LineItems: []core.CartLineItem{
			{LineNo: 1, UnitPrice: dec(150), Quantity: 2, TaxCode: "01"},
			{LineNo: 2, UnitPrice: dec(100), Quantity: 1, TaxCode: "01",
				Discounts: []core.Discount{{SeqNo: 1, Type: core.DiscountTypeAmount, Value: dec(30), Amount: dec(30)}}},
			{LineNo: 3, UnitPrice: dec(999), Quantity: 5, TaxCode: "01", IsCancelled: true},
		},
	}
	if err := cart.Recompute(taxMasters(), core.RoundingFloor); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if got := cart.LineItems[0].Amount; !got.Equal(dec(300)) {
		t.Errorf("line 1 amount = %s, want 300", got)
	}
	if got := cart.LineItems[1].Amount; !got.Equal(dec(70)) {
		t.Errorf("line 2 amount = %s, want 70", got)
	}
	if got := cart.LineItems[2].Amount; !got.IsZero() {
		t.Errorf("cancelled line amount = %s, want 0", got)
	}
	if got := cart.Sales.TotalQuantity; got != 3 {
		t.Errorf("total quantity = %d, want 3 (cancelled line excluded)", got)
	}
	if got := cart.Sales.TotalDiscountAmount; !got.Equal(dec(30)) {
		t.Errorf("total discount = %s, want 30", got)
	}
}

func TestRecompute_SubtotalDiscountAllocation(t *testing.T) {
	tests := []struct {
		name     string
		lines    []core.CartLineItem
		discount core.Discount
		want     []int64 // allocated per line, in order
	}{
		{
			name: "remainder lands on the largest line",
			lines: []core.CartLineItem{
				{LineNo: 1, UnitPrice: dec(100), Quantity: 1, TaxCode: "01"},
				{LineNo: 2, UnitPrice: dec(200), Quantity: 1, TaxCode: "01"},
				{LineNo: 3, UnitPrice: dec(300), Quantity: 1, TaxCode: "01"},
			},
			discount: core.Discount{SeqNo: 1, Type: core.DiscountTypeAmount, Value: dec(100)},
			want:     []int64{16, 33, 51},
		},
		{
			name: "even split needs no remainder",
			lines: []core.CartLineItem{
				{LineNo: 1, UnitPrice: dec(500), Quantity: 1, TaxCode: "01"},
				{LineNo: 2, UnitPrice: dec(500), Quantity: 1, TaxCode: "01"},
			},
			discount: core.Discount{SeqNo: 1, Type: core.DiscountTypeAmount, Value: dec(100)},
			want:     []int64{50, 50},
		},
		{
			name: "restricted line receives nothing",
			lines: []core.CartLineItem{
				{LineNo: 1, UnitPrice: dec(400), Quantity: 1, TaxCode: "01"},
				{LineNo: 2, UnitPrice: dec(600), Quantity: 1, TaxCode: "01", IsDiscountRestricted: true},
			},
			discount: core.Discount{SeqNo: 1, Type: core.DiscountTypeAmount, Value: dec(100)},
			want:     []int64{100, 0},
		},
		{
			name: "percentage resolves against the discountable subtotal",
			lines: []core.CartLineItem{
				{LineNo: 1, UnitPrice: dec(800), Quantity: 1, TaxCode: "01"},
				{LineNo: 2, UnitPrice: dec(200), Quantity: 1, TaxCode: "01"},
			},
			discount: core.Discount{SeqNo: 1, Type: core.DiscountTypePercentage, Value: dec(10)},
			want:     []int64{80, 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := &core.Cart{
				LineItems:         tt.lines,
				SubtotalDiscounts: []core.Discount{tt.discount},
			}
			if err := cart.Recompute(taxMasters(), core.RoundingFloor); err != nil {
				t.Fatalf("recompute: %v", err)
			}

			total := decimal.Zero
			for i := range cart.LineItems {
				got := cart.LineItems[i].AllocatedTotal()
				if !got.Equal(dec(tt.want[i])) {
					t.Errorf("line %d allocated = %s, want %d", i+1, got, tt.want[i])
				}
				total = total.Add(got)
			}
			if !total.Equal(cart.SubtotalDiscounts[0].Amount) {
				t.Errorf("allocated sum %s != discount amount %s", total, cart.SubtotalDiscounts[0].Amount)
			}
		})
	}
}

func TestRecompute_AllocationFailsWithoutEligibleLines(t *testing.T) {
	cart := &core.Cart{
		LineItems: []core.CartLineItem{
			{LineNo: 1, UnitPrice: dec(100), Quantity: 1, TaxCode: "01", IsDiscountRestricted: true},
		},
		SubtotalDiscounts: []core.Discount{{SeqNo: 1, Type: core.DiscountTypeAmount, Value: dec(50)}},
	}
	err := cart.Recompute(taxMasters(), core.RoundingFloor)
	if err == nil {
		t.Fatal("expected allocation error, got nil")
	}
	if e := core.AsError(err); e == nil || e.Code != "DISCOUNT_ALLOCATION" {
		t.Errorf("error = %v, want DISCOUNT_ALLOCATION", err)
	}
}

func TestRecompute_ExternalTax(t *testing.T) {
	cart := &core.Cart{
		LineItems: []core.CartLineItem{
			{LineNo: 1, UnitPrice: dec(1000), Quantity: 1, TaxCode: "01"},
			{LineNo: 2, UnitPrice: dec(500), Quantity: 1, TaxCode: "02"},
		},
	}
	if err := cart.Recompute(taxMasters(), core.RoundingFloor); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if len(cart.Taxes) != 2 {
		t.Fatalf("tax rows = %d, want 2", len(cart.Taxes))
	}
	if got := cart.Taxes[0].TaxAmount; !got.Equal(dec(100)) {
		t.Errorf("10%% tax = %s, want 100", got)
	}
	if got := cart.Taxes[1].TaxAmount; !got.Equal(dec(40)) {
		t.Errorf("8%% tax = %s, want 40", got)
	}
	if got := cart.Sales.TotalAmountWithTax; !got.Equal(dec(1640)) {
		t.Errorf("total with tax = %s, want 1640", got)
	}
	if got := cart.Balance; !got.Equal(dec(1640)) {
		t.Errorf("balance = %s, want 1640", got)
	}
}

func TestRecompute_InternalTaxIsCarvedOut(t *testing.T) {
	cart := &core.Cart{
		LineItems: []core.CartLineItem{
			{LineNo: 1, UnitPrice: dec(1100), Quantity: 1, TaxCode: "11"},
		},
	}
	if err := cart.Recompute(taxMasters(), core.RoundingFloor); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	// 1100 inclusive at 10%: tax = 1100 × 10 / 110 = 100
	if got := cart.Taxes[0].TaxAmount; !got.Equal(dec(100)) {
		t.Errorf("internal tax = %s, want 100", got)
	}
	if got := cart.Sales.InternalTaxAmount; !got.Equal(dec(100)) {
		t.Errorf("internal tax rollup = %s, want 100", got)
	}
	// Internal tax never inflates the total.
	if got := cart.Sales.TotalAmountWithTax; !got.Equal(dec(1100)) {
		t.Errorf("total with tax = %s, want 1100", got)
	}
	if got := cart.Sales.TaxAmount; !got.IsZero() {
		t.Errorf("external tax rollup = %s, want 0", got)
	}
}

func TestRecompute_TaxAfterSubtotalDiscount(t *testing.T) {
	cart := &core.Cart{
		LineItems: []core.CartLineItem{
			{LineNo: 1, UnitPrice: dec(1000), Quantity: 1, TaxCode: "01"},
		},
		SubtotalDiscounts: []core.Discount{{SeqNo: 1, Type: core.DiscountTypeAmount, Value: dec(100)}},
	}
	if err := cart.Recompute(taxMasters(), core.RoundingFloor); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	// Tax target is the post-allocation amount: (1000 − 100) × 10% = 90.
	if got := cart.Taxes[0].TargetAmount; !got.Equal(dec(900)) {
		t.Errorf("tax target = %s, want 900", got)
	}
	if got := cart.Taxes[0].TaxAmount; !got.Equal(dec(90)) {
		t.Errorf("tax = %s, want 90", got)
	}
	if got := cart.Sales.TotalAmountWithTax; !got.Equal(dec(990)) {
		t.Errorf("total with tax = %s, want 990", got)
	}
}

func TestRecompute_UnknownTaxCode(t *testing.T) {
	cart := &core.Cart{
		LineItems: []core.CartLineItem{
			{LineNo: 1, UnitPrice: dec(100), Quantity: 1, TaxCode: "99"},
		},
	}
	err := cart.Recompute(taxMasters(), core.RoundingFloor)
	if e := core.AsError(err); e == nil || e.Code != "TAX_NOT_FOUND" {
		t.Errorf("error = %v, want TAX_NOT_FOUND", err)
	}
}
