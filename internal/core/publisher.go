package core

import "context"

// Bus topics carrying finalized transaction logs.
const (
	TopicTranlog      = "topic-tranlog"
	TopicCashlog      = "topic-cashlog"
	TopicOpenCloseLog = "topic-opencloselog"
)

// TopicForType maps a transaction type to the topic it is published on.
func TopicForType(t TransactionType) string {
	switch t {
	case TransactionTypeCashIn, TransactionTypeCashOut:
		return TopicCashlog
	case TransactionTypeOpen, TransactionTypeClose:
		return TopicOpenCloseLog
	default:
		return TopicTranlog
	}
}

// EventPublisher hands a finalized transaction log to the delivery pipeline.
// Implementations record a delivery-status row before touching the bus and
// report success to the caller even when the bus write fails; the
// republisher picks those up later.
type EventPublisher interface {
	Publish(ctx context.Context, tenantID string, log *TransactionLog) error
}

// NopPublisher drops events. Used by tests and the seed tool.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, *TransactionLog) error { return nil }

// OpsNotifier receives best-effort operational alerts for failures that
// need human attention, such as a transaction log that could not be
// persisted. Implementations must never block the caller.
type OpsNotifier interface {
	Post(text string)
}
