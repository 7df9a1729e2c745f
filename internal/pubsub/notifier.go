package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AckRequest is the subscriber callback body posted to the publisher's
// delivery-status endpoint.
type AckRequest struct {
	EventID     string `json:"eventId"`
	ServiceName string `json:"serviceName"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

// Notifier reports a subscriber's processing outcome back to the publisher.
type Notifier interface {
	Notify(ctx context.Context, ack AckRequest) error
}

// StoreNotifier acknowledges directly against the delivery store. Used when
// publisher and subscriber cohabit one process.
type StoreNotifier struct {
	store *DeliveryStore
}

func NewStoreNotifier(store *DeliveryStore) *StoreNotifier {
	return &StoreNotifier{store: store}
}

func (n *StoreNotifier) Notify(ctx context.Context, ack AckRequest) error {
	_, err := n.store.MarkService(ctx, ack.EventID, ack.ServiceName, ack.Status, ack.Message)
	return err
}

// HTTPNotifier posts the callback to a remote publisher's delivery-status
// endpoint, authenticated by the shared notify API key.
type HTTPNotifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPNotifier(baseURL, apiKey string) *HTTPNotifier {
	return &HTTPNotifier{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, ack AckRequest) error {
	body, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("failed to encode ack: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		n.baseURL+"/api/v1/delivery-status", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build ack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post ack for event %s: %w", ack.EventID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ack for event %s rejected with status %d", ack.EventID, resp.StatusCode)
	}
	return nil
}
