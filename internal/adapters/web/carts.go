package web

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"pos-backend/internal/core"
)

// createCart starts a cart on the authenticated terminal.
func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "create_cart")
	if !ok {
		return
	}
	term := terminalFromContext(r.Context())
	cart, err := svc.carts.Create(r.Context(), term.TerminalID)
	if err != nil {
		writeError(w, r, "create_cart", err)
		return
	}
	writeJSON(w, "create_cart", cart)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "get_cart")
	if !ok {
		return
	}
	cart, err := svc.carts.Get(r.Context(), urlParam(r, "cart_id"))
	if err != nil {
		writeError(w, r, "get_cart", err)
		return
	}
	writeJSON(w, "get_cart", cart)
}

func (h *Handler) addLineItems(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "add_line_items")
	if !ok {
		return
	}
	var req []core.AddItemRequest
	if !decodeJSON(w, r, "add_line_items", &req) {
		return
	}
	cart, err := svc.carts.AddItems(r.Context(), urlParam(r, "cart_id"), req)
	if err != nil {
		writeError(w, r, "add_line_items", err)
		return
	}
	writeJSON(w, "add_line_items", cart)
}

func (h *Handler) cancelLineItem(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "cancel_line_item")
	if !ok {
		return
	}
	lineNo, ok := lineNoParam(w, r, "cancel_line_item")
	if !ok {
		return
	}
	cart, err := svc.carts.CancelLine(r.Context(), urlParam(r, "cart_id"), lineNo)
	if err != nil {
		writeError(w, r, "cancel_line_item", err)
		return
	}
	writeJSON(w, "cancel_line_item", cart)
}

type unitPriceRequest struct {
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (h *Handler) overrideUnitPrice(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "override_unit_price")
	if !ok {
		return
	}
	lineNo, ok := lineNoParam(w, r, "override_unit_price")
	if !ok {
		return
	}
	var req unitPriceRequest
	if !decodeJSON(w, r, "override_unit_price", &req) {
		return
	}
	cart, err := svc.carts.OverrideUnitPrice(r.Context(), urlParam(r, "cart_id"), lineNo, req.UnitPrice)
	if err != nil {
		writeError(w, r, "override_unit_price", err)
		return
	}
	writeJSON(w, "override_unit_price", cart)
}

func (h *Handler) addLineDiscount(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "add_line_discount")
	if !ok {
		return
	}
	lineNo, ok := lineNoParam(w, r, "add_line_discount")
	if !ok {
		return
	}
	var req core.DiscountRequest
	if !decodeJSON(w, r, "add_line_discount", &req) {
		return
	}
	cart, err := svc.carts.AddLineDiscount(r.Context(), urlParam(r, "cart_id"), lineNo, req)
	if err != nil {
		writeError(w, r, "add_line_discount", err)
		return
	}
	writeJSON(w, "add_line_discount", cart)
}

func (h *Handler) subtotal(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "subtotal")
	if !ok {
		return
	}
	cart, err := svc.carts.Subtotal(r.Context(), urlParam(r, "cart_id"))
	if err != nil {
		writeError(w, r, "subtotal", err)
		return
	}
	writeJSON(w, "subtotal", cart)
}

func (h *Handler) addSubtotalDiscount(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "add_subtotal_discount")
	if !ok {
		return
	}
	var req core.DiscountRequest
	if !decodeJSON(w, r, "add_subtotal_discount", &req) {
		return
	}
	cart, err := svc.carts.AddSubtotalDiscount(r.Context(), urlParam(r, "cart_id"), req)
	if err != nil {
		writeError(w, r, "add_subtotal_discount", err)
		return
	}
	writeJSON(w, "add_subtotal_discount", cart)
}

func (h *Handler) addPayments(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "add_payments")
	if !ok {
		return
	}
	var req []core.PaymentRequest
	if !decodeJSON(w, r, "add_payments", &req) {
		return
	}
	cart, err := svc.carts.AddPayments(r.Context(), urlParam(r, "cart_id"), req)
	if err != nil {
		writeError(w, r, "add_payments", err)
		return
	}
	writeJSON(w, "add_payments", cart)
}

func (h *Handler) resumeItemEntry(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "resume_item_entry")
	if !ok {
		return
	}
	cart, err := svc.carts.ResumeItemEntry(r.Context(), urlParam(r, "cart_id"))
	if err != nil {
		writeError(w, r, "resume_item_entry", err)
		return
	}
	writeJSON(w, "resume_item_entry", cart)
}

// bill finalizes the cart into an immutable transaction log.
func (h *Handler) bill(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "bill")
	if !ok {
		return
	}
	cart, log, err := svc.carts.Bill(r.Context(), urlParam(r, "cart_id"))
	if err != nil {
		writeError(w, r, "bill", err)
		return
	}
	writeJSON(w, "bill", map[string]any{"cart": cart, "transaction": log})
}

func (h *Handler) cancelCart(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "cancel_cart")
	if !ok {
		return
	}
	cart, err := svc.carts.Cancel(r.Context(), urlParam(r, "cart_id"))
	if err != nil {
		writeError(w, r, "cancel_cart", err)
		return
	}
	writeJSON(w, "cancel_cart", cart)
}

func lineNoParam(w http.ResponseWriter, r *http.Request, operation string) (int, bool) {
	lineNo, err := strconv.Atoi(urlParam(r, "line_no"))
	if err != nil || lineNo < 1 {
		writeError(w, r, operation, core.ErrValidation.Withf("invalid line number %q", urlParam(r, "line_no")))
		return 0, false
	}
	return lineNo, true
}
