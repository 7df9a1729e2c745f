package web

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"pos-backend/internal/core"
)

// ── Items ────────────────────────────────────────────────────────────────────

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "list_items")
	if !ok {
		return
	}
	limit := intQuery(r, "limit", 100)
	page := intQuery(r, "page", 1)
	items, total, err := svc.masters.ListItems(r.Context(), limit, page)
	if err != nil {
		writeError(w, r, "list_items", err)
		return
	}
	writeList(w, "list_items", items, PageMetadata{Total: total, Limit: limit, Page: page})
}

func (h *Handler) upsertItem(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "upsert_item")
	if !ok {
		return
	}
	var item core.Item
	if !decodeJSON(w, r, "upsert_item", &item) {
		return
	}
	saved, err := svc.masters.UpsertItem(r.Context(), item)
	if err != nil {
		writeError(w, r, "upsert_item", err)
		return
	}
	writeJSON(w, "upsert_item", saved)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "get_item")
	if !ok {
		return
	}
	item, err := svc.masters.GetItem(r.Context(), urlParam(r, "item_code"))
	if err != nil {
		writeError(w, r, "get_item", err)
		return
	}
	writeJSON(w, "get_item", item)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "delete_item")
	if !ok {
		return
	}
	if err := svc.masters.DeleteItem(r.Context(), urlParam(r, "item_code")); err != nil {
		writeError(w, r, "delete_item", err)
		return
	}
	writeJSON(w, "delete_item", nil)
}

// ── Taxes ────────────────────────────────────────────────────────────────────

func (h *Handler) listTaxes(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "list_taxes")
	if !ok {
		return
	}
	taxes, err := svc.masters.ListTaxes(r.Context())
	if err != nil {
		writeError(w, r, "list_taxes", err)
		return
	}
	writeJSON(w, "list_taxes", taxes)
}

func (h *Handler) upsertTax(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "upsert_tax")
	if !ok {
		return
	}
	var tax core.TaxMaster
	if !decodeJSON(w, r, "upsert_tax", &tax) {
		return
	}
	saved, err := svc.masters.UpsertTax(r.Context(), tax)
	if err != nil {
		writeError(w, r, "upsert_tax", err)
		return
	}
	writeJSON(w, "upsert_tax", saved)
}

func (h *Handler) deleteTax(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "delete_tax")
	if !ok {
		return
	}
	if err := svc.masters.DeleteTax(r.Context(), urlParam(r, "tax_code")); err != nil {
		writeError(w, r, "delete_tax", err)
		return
	}
	writeJSON(w, "delete_tax", nil)
}

// ── Payment methods ──────────────────────────────────────────────────────────

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "list_payment_methods")
	if !ok {
		return
	}
	payments, err := svc.masters.ListPayments(r.Context())
	if err != nil {
		writeError(w, r, "list_payment_methods", err)
		return
	}
	writeJSON(w, "list_payment_methods", payments)
}

func (h *Handler) upsertPayment(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "upsert_payment_method")
	if !ok {
		return
	}
	var p core.PaymentMaster
	if !decodeJSON(w, r, "upsert_payment_method", &p) {
		return
	}
	saved, err := svc.masters.UpsertPayment(r.Context(), p)
	if err != nil {
		writeError(w, r, "upsert_payment_method", err)
		return
	}
	writeJSON(w, "upsert_payment_method", saved)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "delete_payment_method")
	if !ok {
		return
	}
	if err := svc.masters.DeletePayment(r.Context(), urlParam(r, "payment_code")); err != nil {
		writeError(w, r, "delete_payment_method", err)
		return
	}
	writeJSON(w, "delete_payment_method", nil)
}

// ── Categories ───────────────────────────────────────────────────────────────

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "list_categories")
	if !ok {
		return
	}
	cats, err := svc.masters.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, "list_categories", err)
		return
	}
	writeJSON(w, "list_categories", cats)
}

func (h *Handler) upsertCategory(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "upsert_category")
	if !ok {
		return
	}
	var cat core.Category
	if !decodeJSON(w, r, "upsert_category", &cat) {
		return
	}
	saved, err := svc.masters.UpsertCategory(r.Context(), cat)
	if err != nil {
		writeError(w, r, "upsert_category", err)
		return
	}
	writeJSON(w, "upsert_category", saved)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "delete_category")
	if !ok {
		return
	}
	if err := svc.masters.DeleteCategory(r.Context(), urlParam(r, "category_code")); err != nil {
		writeError(w, r, "delete_category", err)
		return
	}
	writeJSON(w, "delete_category", nil)
}

// ── Staff ────────────────────────────────────────────────────────────────────

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "list_staff")
	if !ok {
		return
	}
	staff, err := svc.masters.ListStaff(r.Context())
	if err != nil {
		writeError(w, r, "list_staff", err)
		return
	}
	writeJSON(w, "list_staff", staff)
}

type upsertStaffRequest struct {
	StaffID   string `json:"staffId"`
	StaffName string `json:"staffName"`
	Pin       string `json:"pin"`
}

// upsertStaff registers a staff member. The PIN is hashed before it is
// stored; an empty PIN keeps the existing one.
func (h *Handler) upsertStaff(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "upsert_staff")
	if !ok {
		return
	}
	var req upsertStaffRequest
	if !decodeJSON(w, r, "upsert_staff", &req) {
		return
	}
	staff := core.Staff{StaffID: req.StaffID, StaffName: req.StaffName}
	if req.Pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, r, "upsert_staff", core.ErrStorage.WithCause(err))
			return
		}
		staff.PinHash = string(hash)
	}
	saved, err := svc.masters.UpsertStaff(r.Context(), staff)
	if err != nil {
		writeError(w, r, "upsert_staff", err)
		return
	}
	writeJSON(w, "upsert_staff", saved)
}

func (h *Handler) deleteStaff(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "delete_staff")
	if !ok {
		return
	}
	if err := svc.masters.DeleteStaff(r.Context(), urlParam(r, "staff_id")); err != nil {
		writeError(w, r, "delete_staff", err)
		return
	}
	writeJSON(w, "delete_staff", nil)
}
