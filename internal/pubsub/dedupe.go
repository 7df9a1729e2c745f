package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedupe claims event processing atomically so subscribers stay idempotent
// across process restarts and multiple instances. Keys outlive the
// republisher window so a late repeat still hits the claim.
type Dedupe struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDedupe(rdb *redis.Client, ttl time.Duration) *Dedupe {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Dedupe{rdb: rdb, ttl: ttl}
}

// Claim returns true when this caller is the first to process the event for
// the given service. SET NX is the atomic claim.
func (d *Dedupe) Claim(ctx context.Context, serviceName, eventID string) (bool, error) {
	key := fmt.Sprintf("dedupe:%s:%s", serviceName, eventID)
	ok, err := d.rdb.SetNX(ctx, key, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// Release forgets a claim so a failed handler can be retried by the
// republisher.
func (d *Dedupe) Release(ctx context.Context, serviceName, eventID string) error {
	key := fmt.Sprintf("dedupe:%s:%s", serviceName, eventID)
	if err := d.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release event %s: %w", eventID, err)
	}
	return nil
}
