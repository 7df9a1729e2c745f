package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"pos-backend/internal/core"
)

// ── Settings ─────────────────────────────────────────────────────────────────

func (h *Handler) listSettings(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "list_settings")
	if !ok {
		return
	}
	settings, err := svc.settings.List(r.Context())
	if err != nil {
		writeError(w, r, "list_settings", err)
		return
	}
	writeJSON(w, "list_settings", settings)
}

func (h *Handler) getSetting(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "get_setting")
	if !ok {
		return
	}
	setting, err := svc.settings.Get(r.Context(), urlParam(r, "name"))
	if err != nil {
		writeError(w, r, "get_setting", err)
		return
	}
	writeJSON(w, "get_setting", setting)
}

func (h *Handler) putSetting(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "put_setting")
	if !ok {
		return
	}
	var value json.RawMessage
	if !decodeJSON(w, r, "put_setting", &value) {
		return
	}
	setting := core.Setting{Name: urlParam(r, "name"), Value: value}
	if err := svc.settings.Put(r.Context(), setting); err != nil {
		writeError(w, r, "put_setting", err)
		return
	}
	writeJSON(w, "put_setting", setting)
}

func (h *Handler) deleteSetting(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "delete_setting")
	if !ok {
		return
	}
	if err := svc.settings.Delete(r.Context(), urlParam(r, "name")); err != nil {
		writeError(w, r, "delete_setting", err)
		return
	}
	writeJSON(w, "delete_setting", nil)
}

// ── Journals ─────────────────────────────────────────────────────────────────

func (h *Handler) searchJournals(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "search_journals")
	if !ok {
		return
	}
	q := r.URL.Query()
	query := core.JournalQuery{
		StoreCode:  q.Get("store_code"),
		TerminalID: q.Get("terminal_id"),
		DateFrom:   q.Get("date_from"),
		DateTo:     q.Get("date_to"),
		Limit:      intQuery(r, "limit", 100),
		Page:       intQuery(r, "page", 1),
	}
	if types := q.Get("transaction_types"); types != "" {
		for _, part := range strings.Split(types, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				query.TransactionTypes = append(query.TransactionTypes, core.TransactionType(n))
			}
		}
	}
	entries, total, err := svc.journals.Search(r.Context(), query)
	if err != nil {
		writeError(w, r, "search_journals", err)
		return
	}
	writeList(w, "search_journals", entries, PageMetadata{Total: total, Limit: query.Limit, Page: query.Page})
}

// ── Sales reports ────────────────────────────────────────────────────────────

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "sales_report")
	if !ok {
		return
	}
	q := r.URL.Query()
	scope := core.ReportScope(q.Get("scope"))
	if scope == "" {
		scope = core.ReportScopeFlash
	}
	if scope != core.ReportScopeFlash && scope != core.ReportScopeDaily {
		writeError(w, r, "sales_report", core.ErrValidation.Withf("unknown report scope %q", scope))
		return
	}
	report, err := svc.reports.SalesReport(r.Context(),
		q.Get("store_code"), q.Get("business_date"), q.Get("terminal_id"), scope)
	if err != nil {
		writeError(w, r, "sales_report", err)
		return
	}
	writeJSON(w, "sales_report", report)
}
