package core_test

import (
	"testing"

	"pos-backend/internal/core"
)

func TestCanFire(t *testing.T) {
	tests := []struct {
		status core.CartStatus
		event  core.CartEvent
		want   bool
	}{
		{core.CartStatusInitial, core.EventCreate, true},
		{core.CartStatusInitial, core.EventCancelCart, true},
		{core.CartStatusInitial, core.EventAddItems, false},
		{core.CartStatusInitial, core.EventBill, false},

		{core.CartStatusIdle, core.EventCreate, false},
		{core.CartStatusIdle, core.EventAddItems, true},
		{core.CartStatusIdle, core.EventCancelCart, true},
		{core.CartStatusIdle, core.EventSubtotal, false},
		{core.CartStatusIdle, core.EventBill, false},

		{core.CartStatusEnteringItem, core.EventAddItems, true},
		{core.CartStatusEnteringItem, core.EventCancelLine, true},
		{core.CartStatusEnteringItem, core.EventUnitPriceOverride, true},
		{core.CartStatusEnteringItem, core.EventAddLineDiscount, true},
		{core.CartStatusEnteringItem, core.EventSubtotal, true},
		{core.CartStatusEnteringItem, core.EventAddPayment, false},
		{core.CartStatusEnteringItem, core.EventAddSubtotalDiscount, false},
		{core.CartStatusEnteringItem, core.EventBill, false},

		{core.CartStatusPaying, core.EventAddSubtotalDiscount, true},
		{core.CartStatusPaying, core.EventAddPayment, true},
		{core.CartStatusPaying, core.EventResumeItemEntry, true},
		{core.CartStatusPaying, core.EventBill, true},
		{core.CartStatusPaying, core.EventCancelCart, true},
		{core.CartStatusPaying, core.EventAddItems, false},
		{core.CartStatusPaying, core.EventAddLineDiscount, false},

		{core.CartStatusCompleted, core.EventAddItems, false},
		{core.CartStatusCompleted, core.EventCancelCart, false},
		{core.CartStatusCancelled, core.EventAddItems, false},
	}

	for _, tt := range tests {
		if got := core.CanFire(tt.status, tt.event); got != tt.want {
			t.Errorf("CanFire(%s, %s) = %v, want %v", tt.status, tt.event, got, tt.want)
		}
	}
}

func TestCartIsTerminal(t *testing.T) {
	for status, want := range map[core.CartStatus]bool{
		core.CartStatusInitial:      false,
		core.CartStatusIdle:         false,
		core.CartStatusEnteringItem: false,
		core.CartStatusPaying:       false,
		core.CartStatusCompleted:    true,
		core.CartStatusCancelled:    true,
	} {
		cart := &core.Cart{Status: status}
		if got := cart.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}
