package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// SlackNotifier posts operational messages to an incoming webhook. It is
// best effort: failures are logged and never surfaced to the caller, and a
// notifier with no webhook configured is a no-op.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	log        *logrus.Entry
}

func NewSlackNotifier(webhookURL string, log *logrus.Entry) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		log:        log,
	}
}

// Post sends one message. Safe to call from any goroutine.
func (n *SlackNotifier) Post(text string) {
	if n == nil || n.webhookURL == "" {
		return
	}
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return
	}
	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		n.log.WithError(err).Warn("slack notification failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.log.WithField("status", resp.StatusCode).Warn("slack webhook rejected notification")
	}
}
