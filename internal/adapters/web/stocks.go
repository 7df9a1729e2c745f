package web

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"pos-backend/internal/core"
	"pos-backend/internal/stock"
)

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	limit := intQuery(r, "limit", 100)
	page := intQuery(r, "page", 1)
	stocks, total, err := h.stocks.List(r.Context(), tenantID, urlParam(r, "store_code"), limit, page)
	if err != nil {
		writeError(w, r, "list_stock", err)
		return
	}
	writeList(w, "list_stock", stocks, PageMetadata{Total: total, Limit: limit, Page: page})
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	st, err := h.stocks.Get(r.Context(), tenantID, urlParam(r, "store_code"), urlParam(r, "item_code"))
	if err != nil {
		writeError(w, r, "get_stock", err)
		return
	}
	writeJSON(w, "get_stock", st)
}

type thresholdsRequest struct {
	MinimumQuantity decimal.Decimal `json:"minimumQuantity"`
	ReorderPoint    decimal.Decimal `json:"reorderPoint"`
	ReorderQuantity decimal.Decimal `json:"reorderQuantity"`
}

func (h *Handler) setThresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdsRequest
	if !decodeJSON(w, r, "set_stock_thresholds", &req) {
		return
	}
	tenantID := tenantFromContext(r.Context())
	st, err := h.stocks.SetThresholds(r.Context(), tenantID,
		urlParam(r, "store_code"), urlParam(r, "item_code"),
		req.MinimumQuantity, req.ReorderPoint, req.ReorderQuantity)
	if err != nil {
		writeError(w, r, "set_stock_thresholds", err)
		return
	}
	writeJSON(w, "set_stock_thresholds", st)
}

type stockUpdateRequest struct {
	Change      decimal.Decimal `json:"change"`
	UpdateType  string          `json:"updateType"`
	ReferenceID string          `json:"referenceId"`
	OperatorID  string          `json:"operatorId"`
	Note        string          `json:"note"`
}

// updateStock applies a manual quantity adjustment, purchase receipt, or
// initial load.
func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	var req stockUpdateRequest
	if !decodeJSON(w, r, "update_stock", &req) {
		return
	}
	switch req.UpdateType {
	case stock.UpdateTypePurchase, stock.UpdateTypeAdjustment, stock.UpdateTypeInitial:
	default:
		writeError(w, r, "update_stock", core.ErrValidation.Withf("unknown update type %q", req.UpdateType))
		return
	}
	tenantID := tenantFromContext(r.Context())
	st, err := h.stocks.Update(r.Context(), tenantID,
		urlParam(r, "store_code"), urlParam(r, "item_code"),
		req.Change, req.UpdateType, req.ReferenceID, req.OperatorID, req.Note)
	if err != nil {
		writeError(w, r, "update_stock", err)
		return
	}
	writeJSON(w, "update_stock", st)
}

func (h *Handler) stockHistory(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	limit := intQuery(r, "limit", 100)
	page := intQuery(r, "page", 1)
	updates, total, err := h.stocks.History(r.Context(), tenantID,
		urlParam(r, "store_code"), urlParam(r, "item_code"), limit, page)
	if err != nil {
		writeError(w, r, "stock_history", err)
		return
	}
	writeList(w, "stock_history", updates, PageMetadata{Total: total, Limit: limit, Page: page})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	stocks, err := h.stocks.LowStock(r.Context(), tenantID, urlParam(r, "store_code"))
	if err != nil {
		writeError(w, r, "low_stock", err)
		return
	}
	writeJSON(w, "low_stock", stocks)
}

func (h *Handler) reorderAlerts(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	stocks, err := h.stocks.ReorderAlerts(r.Context(), tenantID, urlParam(r, "store_code"))
	if err != nil {
		writeError(w, r, "reorder_alerts", err)
		return
	}
	writeJSON(w, "reorder_alerts", stocks)
}

func (h *Handler) takeSnapshot(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	snap, err := h.stocks.TakeSnapshot(r.Context(), tenantID, urlParam(r, "store_code"))
	if err != nil {
		writeError(w, r, "take_snapshot", err)
		return
	}
	writeJSON(w, "take_snapshot", snap)
}

func (h *Handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	from, to, err := snapshotRange(r)
	if err != nil {
		writeError(w, r, "list_snapshots", core.ErrValidation.WithCause(err))
		return
	}
	snaps, err := h.stocks.ListSnapshots(r.Context(), tenantID, urlParam(r, "store_code"),
		from, to, intQuery(r, "limit", 100))
	if err != nil {
		writeError(w, r, "list_snapshots", err)
		return
	}
	writeJSON(w, "list_snapshots", snaps)
}

// snapshotRange parses the date_from/date_to query window, defaulting to the
// last 30 days.
func snapshotRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now
	if v := r.URL.Query().Get("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		from = t
	}
	if v := r.URL.Query().Get("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		to = t.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func (h *Handler) getSnapshotSchedule(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromContext(r.Context())
	sc, err := h.stocks.GetSchedule(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, "get_snapshot_schedule", err)
		return
	}
	writeJSON(w, "get_snapshot_schedule", sc)
}

func (h *Handler) putSnapshotSchedule(w http.ResponseWriter, r *http.Request) {
	var sc stock.Schedule
	if !decodeJSON(w, r, "put_snapshot_schedule", &sc) {
		return
	}
	tenantID := tenantFromContext(r.Context())
	if err := h.stocks.PutSchedule(r.Context(), tenantID, sc); err != nil {
		writeError(w, r, "put_snapshot_schedule", err)
		return
	}
	writeJSON(w, "put_snapshot_schedule", sc)
}

// streamAlerts upgrades to a websocket and registers the client for stock
// alert pushes. The token arrives as a query parameter because browser
// websocket clients cannot set headers.
func (h *Handler) streamAlerts(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	claims, err := h.accounts.VerifyToken(token)
	if err != nil {
		writeAuthError(w, "stream_alerts")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.alerts.Subscribe(claims.TenantID, conn)
	go func() {
		defer func() {
			h.alerts.Unsubscribe(claims.TenantID, conn)
			conn.Close()
		}()
		for {
			// Drain control frames; the hub only pushes.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
