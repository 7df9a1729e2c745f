package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/notify"
)

// Handler processes one deduplicated event.
type Handler func(ctx context.Context, event Event) error

// Consumer reads one topic in a consumer group, claims each event through
// the dedupe store, runs the handler and acknowledges back to the
// publisher. A repeated event is acked without re-running the handler.
type Consumer struct {
	serviceName string
	reader      *kafka.Reader
	dedupe      *Dedupe
	notifier    Notifier
	handler     Handler
	slack       *notify.SlackNotifier
	log         *logrus.Entry
}

func NewConsumer(brokers []string, topic, groupID, serviceName string, dedupe *Dedupe, notifier Notifier, handler Handler, slack *notify.SlackNotifier, log *logrus.Entry) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Consumer{
		serviceName: serviceName,
		reader:      reader,
		dedupe:      dedupe,
		notifier:    notifier,
		handler:     handler,
		slack:       slack,
		log:         log,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.Process(ctx, msg.Value)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			c.log.WithError(err).Warn("commit failed")
		}
	}
}

// Process handles one raw bus message. Malformed messages are dropped; a
// handler failure releases the dedupe claim and reports failed so the
// republisher retries.
func (c *Consumer) Process(ctx context.Context, raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		c.log.WithError(err).Warn("dropping malformed event")
		return
	}
	logger := c.log.WithFields(logrus.Fields{"eventId": event.EventID, "topic": event.Topic})

	claimed, err := c.dedupe.Claim(ctx, c.serviceName, event.EventID)
	if err != nil {
		logger.WithError(err).Warn("dedupe claim failed, skipping")
		return
	}
	if !claimed {
		// Already processed; repeats are acknowledged only.
		return
	}

	if err := c.handler(ctx, event); err != nil {
		logger.WithError(err).Error("event handler failed")
		c.slack.Post(fmt.Sprintf("[pubsub] %s handler failed for event %s on %s: %v",
			c.serviceName, event.EventID, event.Topic, err))
		if rerr := c.dedupe.Release(ctx, c.serviceName, event.EventID); rerr != nil {
			logger.WithError(rerr).Warn("failed to release dedupe claim")
		}
		c.ack(ctx, logger, event.EventID, StatusFailed, err.Error())
		return
	}
	c.ack(ctx, logger, event.EventID, StatusDelivered, "")
}

func (c *Consumer) ack(ctx context.Context, logger *logrus.Entry, eventID, status, message string) {
	err := c.notifier.Notify(ctx, AckRequest{
		EventID:     eventID,
		ServiceName: c.serviceName,
		Status:      status,
		Message:     message,
	})
	if err != nil {
		logger.WithError(err).Warn("delivery callback failed")
	}
}
