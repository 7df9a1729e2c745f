package core_test

import (
	"testing"

	"pos-backend/internal/core"
)

func TestTopicForType(t *testing.T) {
	tests := []struct {
		tranType core.TransactionType
		want     string
	}{
		{core.TransactionTypeNormalSales, core.TopicTranlog},
		{core.TransactionTypeNormalSalesCancel, core.TopicTranlog},
		{core.TransactionTypeReturnSales, core.TopicTranlog},
		{core.TransactionTypeVoidSales, core.TopicTranlog},
		{core.TransactionTypeVoidReturn, core.TopicTranlog},
		{core.TransactionTypeCashIn, core.TopicCashlog},
		{core.TransactionTypeCashOut, core.TopicCashlog},
		{core.TransactionTypeOpen, core.TopicOpenCloseLog},
		{core.TransactionTypeClose, core.TopicOpenCloseLog},
	}
	for _, tt := range tests {
		if got := core.TopicForType(tt.tranType); got != tt.want {
			t.Errorf("TopicForType(%d) = %q, want %q", tt.tranType, got, tt.want)
		}
	}
}
