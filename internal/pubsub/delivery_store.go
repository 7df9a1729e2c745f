package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pos-backend/internal/db"
)

// DeliveryStore persists delivery-status records in the commons schema,
// shared by every tenant's publisher.
type DeliveryStore struct {
	gateway *db.Gateway
}

func NewDeliveryStore(gateway *db.Gateway) *DeliveryStore {
	return &DeliveryStore{gateway: gateway}
}

func (d *DeliveryStore) table() string {
	return d.gateway.CommonsSchema() + ".delivery_statuses"
}

// Create records a freshly published event with every subscriber pending.
func (d *DeliveryStore) Create(ctx context.Context, ds *DeliveryStatus) error {
	services, err := json.Marshal(ds.Services)
	if err != nil {
		return fmt.Errorf("failed to encode service statuses: %w", err)
	}
	_, err = d.gateway.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (event_id, topic, tenant_id, payload, services, status, published_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, d.table()),
		ds.EventID, ds.Topic, ds.TenantID, ds.Payload, services, ds.Status, ds.PublishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert delivery status %s: %w", ds.EventID, err)
	}
	return nil
}

// Get loads one delivery record.
func (d *DeliveryStore) Get(ctx context.Context, eventID string) (*DeliveryStatus, error) {
	ds := &DeliveryStatus{}
	var services []byte
	err := d.gateway.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT event_id, topic, tenant_id, payload, services, status, published_at, last_updated_at
		FROM %s WHERE event_id = $1
	`, d.table()), eventID).Scan(
		&ds.EventID, &ds.Topic, &ds.TenantID, &ds.Payload, &services, &ds.Status, &ds.PublishedAt, &ds.LastUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("delivery status %s not found", eventID)
		}
		return nil, fmt.Errorf("failed to fetch delivery status %s: %w", eventID, err)
	}
	if err := json.Unmarshal(services, &ds.Services); err != nil {
		return nil, fmt.Errorf("failed to decode service statuses: %w", err)
	}
	return ds, nil
}

// MarkService records one subscriber's callback and recomputes the overall
// status. The row is locked so concurrent callbacks from different
// subscribers do not lose updates.
func (d *DeliveryStore) MarkService(ctx context.Context, eventID, serviceName, status, message string) (*DeliveryStatus, error) {
	tx, err := d.gateway.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ds := &DeliveryStatus{}
	var raw []byte
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT event_id, topic, tenant_id, payload, services, status, published_at, last_updated_at
		FROM %s WHERE event_id = $1 FOR UPDATE
	`, d.table()), eventID).Scan(
		&ds.EventID, &ds.Topic, &ds.TenantID, &ds.Payload, &raw, &ds.Status, &ds.PublishedAt, &ds.LastUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("delivery status %s not found", eventID)
		}
		return nil, fmt.Errorf("failed to lock delivery status %s: %w", eventID, err)
	}
	if err := json.Unmarshal(raw, &ds.Services); err != nil {
		return nil, fmt.Errorf("failed to decode service statuses: %w", err)
	}

	now := time.Now()
	found := false
	for i := range ds.Services {
		if ds.Services[i].ServiceName == serviceName {
			ds.Services[i].Status = status
			ds.Services[i].ReceivedAt = &now
			ds.Services[i].Message = message
			found = true
			break
		}
	}
	if !found {
		ds.Services = append(ds.Services, ServiceStatus{
			ServiceName: serviceName, Status: status, ReceivedAt: &now, Message: message,
		})
	}
	ds.Status = OverallStatus(ds.Services)
	ds.LastUpdatedAt = now

	services, err := json.Marshal(ds.Services)
	if err != nil {
		return nil, fmt.Errorf("failed to encode service statuses: %w", err)
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET services = $2, status = $3, last_updated_at = $4 WHERE event_id = $1
	`, d.table()), eventID, services, ds.Status, now)
	if err != nil {
		return nil, fmt.Errorf("failed to update delivery status %s: %w", eventID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delivery status %s: %w", eventID, err)
	}
	return ds, nil
}

// ListUndelivered returns events published within the window that have not
// reached delivered status. Republisher input.
func (d *DeliveryStore) ListUndelivered(ctx context.Context, window time.Duration, limit int) ([]DeliveryStatus, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := d.gateway.Pool().Query(ctx, fmt.Sprintf(`
		SELECT event_id, topic, tenant_id, payload, services, status, published_at, last_updated_at
		FROM %s
		WHERE status <> $1 AND published_at > $2
		ORDER BY published_at
		LIMIT $3
	`, d.table()), StatusDelivered, time.Now().Add(-window), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query undelivered events: %w", err)
	}
	defer rows.Close()

	var out []DeliveryStatus
	for rows.Next() {
		var ds DeliveryStatus
		var services []byte
		if err := rows.Scan(&ds.EventID, &ds.Topic, &ds.TenantID, &ds.Payload, &services,
			&ds.Status, &ds.PublishedAt, &ds.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery status: %w", err)
		}
		if err := json.Unmarshal(services, &ds.Services); err != nil {
			return nil, fmt.Errorf("failed to decode service statuses: %w", err)
		}
		out = append(out, ds)
	}
	return out, nil
}

// Sweep removes delivery records older than the retention window.
func (d *DeliveryStore) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := d.gateway.Pool().Exec(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE published_at < $1", d.table()), time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep delivery statuses: %w", err)
	}
	return tag.RowsAffected(), nil
}
