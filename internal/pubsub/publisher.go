package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/core"
	"pos-backend/internal/notify"
)

// DefaultSubscribers maps each topic to the services expected to
// acknowledge its events.
var DefaultSubscribers = map[string][]string{
	core.TopicTranlog:      {"stock", "journal"},
	core.TopicCashlog:      {"journal"},
	core.TopicOpenCloseLog: {"journal"},
}

// BusWriter is the slice of kafka.Writer the publisher needs.
type BusWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher implements core.EventPublisher with guaranteed-delivery
// bookkeeping: the delivery-status record is written before the bus is
// touched, and a bus failure is swallowed so the caller's storage
// transaction still commits. The republisher re-emits anything the
// subscribers have not acknowledged.
type Publisher struct {
	store       *DeliveryStore
	writer      BusWriter
	subscribers map[string][]string
	slack       *notify.SlackNotifier
	log         *logrus.Entry
}

func NewPublisher(store *DeliveryStore, writer BusWriter, subscribers map[string][]string, slack *notify.SlackNotifier, log *logrus.Entry) *Publisher {
	if subscribers == nil {
		subscribers = DefaultSubscribers
	}
	return &Publisher{store: store, writer: writer, subscribers: subscribers, slack: slack, log: log}
}

// NewKafkaWriter builds the shared bus writer. Topic is set per message so
// one writer serves every topic.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 20 * time.Millisecond,
	}
}

func (p *Publisher) Publish(ctx context.Context, tenantID string, log *core.TransactionLog) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to encode transaction log: %w", err)
	}

	topic := core.TopicForType(log.TransactionType)
	eventID := uuid.NewString()

	var services []ServiceStatus
	for _, name := range p.subscribers[topic] {
		services = append(services, ServiceStatus{ServiceName: name, Status: StatusPending})
	}
	ds := &DeliveryStatus{
		EventID:     eventID,
		Topic:       topic,
		TenantID:    tenantID,
		Payload:     payload,
		Services:    services,
		Status:      OverallStatus(services),
		PublishedAt: time.Now(),
	}
	if err := p.store.Create(ctx, ds); err != nil {
		return err
	}

	if err := p.emit(ctx, eventID, tenantID, topic, payload); err != nil {
		// The delivery record exists; the republisher retries the bus write.
		p.log.WithError(err).WithFields(logrus.Fields{
			"eventId": eventID,
			"topic":   topic,
		}).Warn("bus publish failed, deferred to republisher")
		p.slack.Post(fmt.Sprintf("[pubsub] bus publish failed for event %s on %s: %v", eventID, topic, err))
	}
	return nil
}

func (p *Publisher) emit(ctx context.Context, eventID, tenantID, topic string, payload json.RawMessage) error {
	event := Event{EventID: eventID, TenantID: tenantID, Topic: topic, Payload: payload}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event envelope: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(tenantID),
		Value: value,
	})
}
