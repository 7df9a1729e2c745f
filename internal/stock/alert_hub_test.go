package stock

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// dialHub wires a real websocket pair: the server side is subscribed to the
// hub, the returned client side reads what the hub pushes.
func dialHub(t *testing.T, hub *AlertHub, tenantID string) (client, server *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Subscribe(tenantID, conn)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	select {
	case server = <-serverConns:
	case <-time.After(2 * time.Second):
		t.Fatal("client never registered")
	}
	return conn, server
}

func TestAlertHub_PushesLowStockAlert(t *testing.T) {
	hub := NewAlertHub(0, nil, testLog())
	conn, _ := dialHub(t, hub, "T0001")

	hub.Evaluate("T0001", &Stock{
		StoreCode:       "5678",
		ItemCode:        "49010",
		CurrentQuantity: decimal.NewFromInt(3),
		MinimumQuantity: decimal.NewFromInt(5),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var alert Alert
	if err := json.Unmarshal(payload, &alert); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if alert.Type != AlertTypeLowStock || alert.ItemCode != "49010" {
		t.Errorf("alert = %+v, want low_stock for 49010", alert)
	}
}

func TestAlertHub_ReorderOnlyWhenAboveMinimum(t *testing.T) {
	hub := NewAlertHub(0, nil, testLog())
	conn, _ := dialHub(t, hub, "T0001")

	// Above minimum but at the reorder point.
	hub.Evaluate("T0001", &Stock{
		StoreCode:       "5678",
		ItemCode:        "49027",
		CurrentQuantity: decimal.NewFromInt(10),
		MinimumQuantity: decimal.NewFromInt(5),
		ReorderPoint:    decimal.NewFromInt(10),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var alert Alert
	if err := json.Unmarshal(payload, &alert); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if alert.Type != AlertTypeReorder {
		t.Errorf("alert type = %s, want %s", alert.Type, AlertTypeReorder)
	}
}

func TestAlertHub_CooldownSuppressesRepeats(t *testing.T) {
	hub := NewAlertHub(time.Hour, nil, testLog())
	conn, _ := dialHub(t, hub, "T0001")

	st := &Stock{
		StoreCode:       "5678",
		ItemCode:        "49010",
		CurrentQuantity: decimal.NewFromInt(3),
		MinimumQuantity: decimal.NewFromInt(5),
	}
	hub.Evaluate("T0001", st)
	hub.Evaluate("T0001", st)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("first alert: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("second alert delivered inside cooldown window")
	}
}

func TestAlertHub_NoAlertAboveThresholds(t *testing.T) {
	hub := NewAlertHub(0, nil, testLog())
	conn, _ := dialHub(t, hub, "T0001")

	hub.Evaluate("T0001", &Stock{
		StoreCode:       "5678",
		ItemCode:        "49010",
		CurrentQuantity: decimal.NewFromInt(50),
		MinimumQuantity: decimal.NewFromInt(5),
		ReorderPoint:    decimal.NewFromInt(10),
	})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("alert delivered for healthy stock")
	}
}

func TestAlertHub_UnsubscribeDropsClient(t *testing.T) {
	hub := NewAlertHub(0, nil, testLog())
	_, server := dialHub(t, hub, "T0001")

	if got := hub.ClientCount("T0001"); got != 1 {
		t.Fatalf("client count = %d, want 1", got)
	}
	hub.Unsubscribe("T0001", server)
	if got := hub.ClientCount("T0001"); got != 0 {
		t.Errorf("client count after unsubscribe = %d, want 0", got)
	}
}
