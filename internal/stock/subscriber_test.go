package stock

import (
	"testing"

	"pos-backend/internal/core"
)

func TestEffect(t *testing.T) {
	tests := []struct {
		tranType   core.TransactionType
		wantSign   int64
		wantUpdate string
		wantOK     bool
	}{
		{core.TransactionTypeNormalSales, -1, UpdateTypeSale, true},
		{core.TransactionTypeVoidSales, +1, UpdateTypeVoid, true},
		{core.TransactionTypeReturnSales, +1, UpdateTypeReturn, true},
		{core.TransactionTypeVoidReturn, -1, UpdateTypeVoidReturn, true},
		{core.TransactionTypeNormalSalesCancel, 0, "", false},
		{core.TransactionTypeOpen, 0, "", false},
		{core.TransactionTypeClose, 0, "", false},
		{core.TransactionTypeCashIn, 0, "", false},
		{core.TransactionTypeCashOut, 0, "", false},
	}

	for _, tt := range tests {
		sign, updateType, ok := effect(tt.tranType)
		if sign != tt.wantSign || updateType != tt.wantUpdate || ok != tt.wantOK {
			t.Errorf("effect(%d) = (%d, %q, %v), want (%d, %q, %v)",
				tt.tranType, sign, updateType, ok, tt.wantSign, tt.wantUpdate, tt.wantOK)
		}
	}
}
