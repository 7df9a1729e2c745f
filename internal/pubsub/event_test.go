package pubsub_test

import (
	"testing"
	"time"

	"pos-backend/internal/pubsub"
)

func ptime() *time.Time {
	t := time.Now()
	return &t
}

func TestOverallStatus(t *testing.T) {
	now := ptime()

	tests := []struct {
		name     string
		services []pubsub.ServiceStatus
		want     string
	}{
		{
			name:     "no subscribers means nothing left to deliver",
			services: nil,
			want:     pubsub.StatusDelivered,
		},
		{
			name: "all pending",
			services: []pubsub.ServiceStatus{
				{ServiceName: "stock", Status: pubsub.StatusPending},
				{ServiceName: "journal", Status: pubsub.StatusPending},
			},
			want: pubsub.StatusPublished,
		},
		{
			name: "partially acknowledged",
			services: []pubsub.ServiceStatus{
				{ServiceName: "stock", Status: pubsub.StatusDelivered, ReceivedAt: now},
				{ServiceName: "journal", Status: pubsub.StatusPending},
			},
			want: pubsub.StatusPublished,
		},
		{
			name: "all delivered",
			services: []pubsub.ServiceStatus{
				{ServiceName: "stock", Status: pubsub.StatusDelivered, ReceivedAt: now},
				{ServiceName: "journal", Status: pubsub.StatusDelivered, ReceivedAt: now},
			},
			want: pubsub.StatusDelivered,
		},
		{
			name: "any failure dominates",
			services: []pubsub.ServiceStatus{
				{ServiceName: "stock", Status: pubsub.StatusFailed, Message: "handler error"},
				{ServiceName: "journal", Status: pubsub.StatusDelivered, ReceivedAt: now},
			},
			want: pubsub.StatusPartiallyDelivered,
		},
		{
			name: "failure beats pending",
			services: []pubsub.ServiceStatus{
				{ServiceName: "stock", Status: pubsub.StatusFailed},
				{ServiceName: "journal", Status: pubsub.StatusPending},
			},
			want: pubsub.StatusPartiallyDelivered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pubsub.OverallStatus(tt.services); got != tt.want {
				t.Errorf("OverallStatus = %q, want %q", got, tt.want)
			}
		})
	}
}
