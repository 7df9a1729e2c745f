package pubsub_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pos-backend/internal/pubsub"
)

func TestHTTPNotifierPostsCallback(t *testing.T) {
	var got pubsub.AckRequest
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-KEY")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := pubsub.NewHTTPNotifier(srv.URL, "notify-key")
	err := n.Notify(context.Background(), pubsub.AckRequest{
		EventID:     "evt-1",
		ServiceName: "stock",
		Status:      pubsub.StatusDelivered,
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if gotPath != "/api/v1/delivery-status" {
		t.Errorf("path = %q, want /api/v1/delivery-status", gotPath)
	}
	if gotKey != "notify-key" {
		t.Errorf("X-API-KEY = %q, want notify-key", gotKey)
	}
	if got.EventID != "evt-1" || got.ServiceName != "stock" || got.Status != pubsub.StatusDelivered {
		t.Errorf("ack body = %+v", got)
	}
}

func TestHTTPNotifierRejectedCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := pubsub.NewHTTPNotifier(srv.URL, "wrong-key")
	err := n.Notify(context.Background(), pubsub.AckRequest{EventID: "evt-2", ServiceName: "journal", Status: pubsub.StatusFailed})
	if err == nil {
		t.Fatal("Notify succeeded against a rejecting endpoint")
	}
}
