package web

import (
	"net/http"
	"strconv"
	"strings"

	"pos-backend/internal/core"
)

// tranQueryFromRequest builds the listing filter from query parameters.
func tranQueryFromRequest(r *http.Request) core.TranQuery {
	q := r.URL.Query()
	query := core.TranQuery{
		StoreCode:    q.Get("store_code"),
		TerminalID:   q.Get("terminal_id"),
		BusinessDate: q.Get("business_date"),
		Limit:        intQuery(r, "limit", 100),
		Page:         intQuery(r, "page", 1),
	}
	if types := q.Get("transaction_types"); types != "" {
		for _, part := range strings.Split(types, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				query.TransactionTypes = append(query.TransactionTypes, core.TransactionType(n))
			}
		}
	}
	return query
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "list_transactions")
	if !ok {
		return
	}
	query := tranQueryFromRequest(r)
	logs, total, err := svc.trans.List(r.Context(), query)
	if err != nil {
		writeError(w, r, "list_transactions", err)
		return
	}
	writeList(w, "list_transactions", logs, PageMetadata{Total: total, Limit: query.Limit, Page: query.Page})
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "get_transaction")
	if !ok {
		return
	}
	tranNo, ok := tranNoParam(w, r, "get_transaction")
	if !ok {
		return
	}
	log, err := svc.trans.Get(r.Context(),
		r.URL.Query().Get("store_code"), r.URL.Query().Get("terminal_id"), tranNo)
	if err != nil {
		writeError(w, r, "get_transaction", err)
		return
	}
	writeJSON(w, "get_transaction", log)
}

type compensateRequest struct {
	StoreCode  string         `json:"storeCode"`
	TerminalID string         `json:"terminalId"`
	Staff      core.StaffRef  `json:"staff"`
	Payments   []core.Payment `json:"payments"`
}

// fill defaults terminal identity from the authenticated terminal when the
// request omits it.
func (c *compensateRequest) fill(r *http.Request) {
	if term := terminalFromContext(r.Context()); term != nil {
		if c.TerminalID == "" {
			c.TerminalID = term.TerminalID
		}
		if c.StoreCode == "" {
			c.StoreCode = term.StoreCode
		}
		if c.Staff.ID == "" {
			c.Staff = term.Staff
		}
	}
}

func (h *Handler) voidTransaction(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "void_transaction")
	if !ok {
		return
	}
	tranNo, ok := tranNoParam(w, r, "void_transaction")
	if !ok {
		return
	}
	var req compensateRequest
	if !decodeJSON(w, r, "void_transaction", &req) {
		return
	}
	req.fill(r)
	log, err := svc.trans.Void(r.Context(), core.VoidRequest{
		StoreCode:     req.StoreCode,
		TerminalID:    req.TerminalID,
		TransactionNo: tranNo,
		Staff:         req.Staff,
		Payments:      req.Payments,
	})
	if err != nil {
		writeError(w, r, "void_transaction", err)
		return
	}
	writeJSON(w, "void_transaction", log)
}

func (h *Handler) returnTransaction(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "return_transaction")
	if !ok {
		return
	}
	tranNo, ok := tranNoParam(w, r, "return_transaction")
	if !ok {
		return
	}
	var req compensateRequest
	if !decodeJSON(w, r, "return_transaction", &req) {
		return
	}
	req.fill(r)
	log, err := svc.trans.Return(r.Context(), core.ReturnRequest{
		StoreCode:     req.StoreCode,
		TerminalID:    req.TerminalID,
		TransactionNo: tranNo,
		Staff:         req.Staff,
		Payments:      req.Payments,
	})
	if err != nil {
		writeError(w, r, "return_transaction", err)
		return
	}
	writeJSON(w, "return_transaction", log)
}

func tranNoParam(w http.ResponseWriter, r *http.Request, operation string) (int64, bool) {
	n, err := strconv.ParseInt(urlParam(r, "transaction_no"), 10, 64)
	if err != nil || n < 1 {
		writeError(w, r, operation, core.ErrValidation.Withf("invalid transaction number %q", urlParam(r, "transaction_no")))
		return 0, false
	}
	return n, true
}

// intQuery parses an integer query parameter with a fallback.
func intQuery(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
