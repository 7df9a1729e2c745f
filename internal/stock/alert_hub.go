package stock

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/notify"
)

// Alert message types pushed over the stream.
const (
	AlertTypeLowStock = "low_stock"
	AlertTypeReorder  = "reorder_point"
)

// Alert is one threshold notification pushed to connected clients.
type Alert struct {
	Type            string          `json:"type"`
	StoreCode       string          `json:"storeCode"`
	ItemCode        string          `json:"itemCode"`
	CurrentQuantity json.Number     `json:"currentQuantity"`
	Threshold       json.Number     `json:"threshold"`
	Timestamp       time.Time       `json:"timestamp"`
}

// AlertHub fans threshold alerts out to the websocket clients subscribed to
// each tenant's stream. Disconnected clients are dropped silently; there is
// no replay.
type AlertHub struct {
	mu       sync.Mutex
	clients  map[string]map[*websocket.Conn]bool
	lastSent map[string]time.Time
	cooldown time.Duration
	slack    *notify.SlackNotifier
	log      *logrus.Entry
}

func NewAlertHub(cooldown time.Duration, slack *notify.SlackNotifier, log *logrus.Entry) *AlertHub {
	return &AlertHub{
		clients:  map[string]map[*websocket.Conn]bool{},
		lastSent: map[string]time.Time{},
		cooldown: cooldown,
		slack:    slack,
		log:      log,
	}
}

// Subscribe attaches a client connection to a tenant's stream.
func (h *AlertHub) Subscribe(tenantID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[tenantID] == nil {
		h.clients[tenantID] = map[*websocket.Conn]bool{}
	}
	h.clients[tenantID][conn] = true
}

// Unsubscribe detaches and closes a client connection.
func (h *AlertHub) Unsubscribe(tenantID string, conn *websocket.Conn) {
	h.mu.Lock()
	if set := h.clients[tenantID]; set != nil {
		delete(set, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

// ClientCount reports how many clients a tenant's stream has.
func (h *AlertHub) ClientCount(tenantID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[tenantID])
}

// Evaluate checks thresholds against the post-image of a stock mutation and
// pushes alerts for any crossing. A per-item cooldown suppresses repeats.
func (h *AlertHub) Evaluate(tenantID string, st *Stock) {
	if st.MinimumQuantity.Sign() > 0 && st.CurrentQuantity.LessThanOrEqual(st.MinimumQuantity) {
		h.push(tenantID, Alert{
			Type:            AlertTypeLowStock,
			StoreCode:       st.StoreCode,
			ItemCode:        st.ItemCode,
			CurrentQuantity: json.Number(st.CurrentQuantity.String()),
			Threshold:       json.Number(st.MinimumQuantity.String()),
			Timestamp:       time.Now(),
		})
	} else if st.ReorderPoint.Sign() > 0 && st.CurrentQuantity.LessThanOrEqual(st.ReorderPoint) {
		h.push(tenantID, Alert{
			Type:            AlertTypeReorder,
			StoreCode:       st.StoreCode,
			ItemCode:        st.ItemCode,
			CurrentQuantity: json.Number(st.CurrentQuantity.String()),
			Threshold:       json.Number(st.ReorderPoint.String()),
			Timestamp:       time.Now(),
		})
	}
}

func (h *AlertHub) push(tenantID string, alert Alert) {
	key := fmt.Sprintf("%s:%s:%s:%s", tenantID, alert.StoreCode, alert.ItemCode, alert.Type)

	h.mu.Lock()
	if h.cooldown > 0 {
		if last, ok := h.lastSent[key]; ok && time.Since(last) < h.cooldown {
			h.mu.Unlock()
			return
		}
		h.lastSent[key] = alert.Timestamp
	}
	conns := make([]*websocket.Conn, 0, len(h.clients[tenantID]))
	for conn := range h.clients[tenantID] {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	payload, err := json.Marshal(alert)
	if err != nil {
		h.log.WithError(err).Warn("failed to encode alert")
		return
	}
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.Unsubscribe(tenantID, conn)
		}
	}

	if h.slack != nil {
		h.slack.Post(fmt.Sprintf("[%s] %s alert: %s/%s at %s (threshold %s)",
			tenantID, alert.Type, alert.StoreCode, alert.ItemCode,
			alert.CurrentQuantity, alert.Threshold))
	}
}
