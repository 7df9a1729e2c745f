package pubsub

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Republisher periodically re-emits events whose delivery status has not
// reached delivered within the window. Per-service statuses are left
// untouched; subscribers that already acknowledged dedupe the repeat.
type Republisher struct {
	store    *DeliveryStore
	emitter  *Publisher
	interval time.Duration
	window   time.Duration
	log      *logrus.Entry
}

func NewRepublisher(store *DeliveryStore, emitter *Publisher, interval, window time.Duration, log *logrus.Entry) *Republisher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Republisher{store: store, emitter: emitter, interval: interval, window: window, log: log}
}

// Run loops until ctx is cancelled.
func (r *Republisher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.RunOnce(ctx); err != nil {
				r.log.WithError(err).Warn("republish pass failed")
			} else if n > 0 {
				r.log.WithField("count", n).Info("republished undelivered events")
			}
		}
	}
}

// RunOnce re-emits every undelivered event in the window and returns how
// many were pushed to the bus.
func (r *Republisher) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.store.ListUndelivered(ctx, r.window, 0)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, ds := range pending {
		if err := r.emitter.emit(ctx, ds.EventID, ds.TenantID, ds.Topic, ds.Payload); err != nil {
			r.log.WithError(err).WithField("eventId", ds.EventID).Warn("republish failed")
			continue
		}
		sent++
	}
	return sent, nil
}
