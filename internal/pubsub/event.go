package pubsub

import (
	"encoding/json"
	"time"
)

// Delivery states of one event and of one subscriber within it.
const (
	StatusPublished          = "published"
	StatusDelivered          = "delivered"
	StatusPartiallyDelivered = "partially_delivered"
	StatusFailed             = "failed"
	StatusPending            = "pending"
)

// Event is the bus envelope. Payload is the full transaction log; consumers
// dedupe by EventID.
type Event struct {
	EventID  string          `json:"eventId"`
	TenantID string          `json:"tenantId"`
	Topic    string          `json:"topic"`
	Payload  json.RawMessage `json:"payload"`
}

// ServiceStatus tracks one subscriber's acknowledgement of one event.
type ServiceStatus struct {
	ServiceName string     `json:"serviceName"`
	Status      string     `json:"status"`
	ReceivedAt  *time.Time `json:"receivedAt,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// DeliveryStatus is the per-event delivery record kept in the commons
// namespace. Overall status is recomputed from the service entries: all
// delivered means delivered, any failure means partially delivered, any
// pending leaves it published.
type DeliveryStatus struct {
	EventID       string          `json:"eventId"`
	Topic         string          `json:"topic"`
	TenantID      string          `json:"tenantId"`
	Payload       json.RawMessage `json:"payload"`
	Services      []ServiceStatus `json:"services"`
	Status        string          `json:"status"`
	PublishedAt   time.Time       `json:"publishedAt"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
}

// OverallStatus derives the event status from its per-service entries.
func OverallStatus(services []ServiceStatus) string {
	if len(services) == 0 {
		return StatusDelivered
	}
	status := StatusDelivered
	for _, s := range services {
		switch s.Status {
		case StatusFailed:
			return StatusPartiallyDelivered
		case StatusPending:
			status = StatusPublished
		}
	}
	return status
}
