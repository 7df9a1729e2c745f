package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/core"
	"pos-backend/internal/pubsub"
)

// Subscriber applies transaction events to the stock ledger. It is the
// handler behind the tranlog consumer; dedupe happens upstream.
type Subscriber struct {
	stocks *Service
	log    *logrus.Entry
}

func NewSubscriber(stocks *Service, log *logrus.Entry) *Subscriber {
	return &Subscriber{stocks: stocks, log: log}
}

// effect maps a transaction type to the quantity sign and history type of
// its stock effect. A sale takes stock out; void and return put it back;
// voiding a return takes it out again.
func effect(t core.TransactionType) (int64, string, bool) {
	switch t {
	case core.TransactionTypeNormalSales:
		return -1, UpdateTypeSale, true
	case core.TransactionTypeVoidSales:
		return +1, UpdateTypeVoid, true
	case core.TransactionTypeReturnSales:
		return +1, UpdateTypeReturn, true
	case core.TransactionTypeVoidReturn:
		return -1, UpdateTypeVoidReturn, true
	default:
		return 0, "", false
	}
}

// Handle processes one deduplicated transaction event.
func (s *Subscriber) Handle(ctx context.Context, event pubsub.Event) error {
	var log core.TransactionLog
	if err := json.Unmarshal(event.Payload, &log); err != nil {
		return fmt.Errorf("failed to decode transaction payload: %w", err)
	}
	if log.Sales.IsCancelled {
		return nil
	}
	sign, updateType, ok := effect(log.TransactionType)
	if !ok {
		return nil
	}

	for _, line := range log.LineItems {
		if line.IsCancelled || line.Quantity <= 0 {
			continue
		}
		change := decimal.NewFromInt(sign * int64(line.Quantity))
		_, err := s.stocks.Update(ctx, event.TenantID, log.StoreCode, line.ItemCode,
			change, updateType, strconv.FormatInt(log.TransactionNo, 10), log.Staff.ID, "")
		if err != nil {
			return fmt.Errorf("stock update for item %s failed: %w", line.ItemCode, err)
		}
	}
	return nil
}
