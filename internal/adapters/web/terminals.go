package web

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"pos-backend/internal/core"
)

type createTerminalRequest struct {
	StoreCode    string `json:"storeCode"`
	TerminalNo   int    `json:"terminalNo"`
	FunctionMode string `json:"functionMode"`
}

// createTerminal registers a terminal and returns its API key. The key is
// shown exactly once.
func (h *Handler) createTerminal(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "create_terminal")
	if !ok {
		return
	}
	var req createTerminalRequest
	if !decodeJSON(w, r, "create_terminal", &req) {
		return
	}
	term, err := svc.terminals.Create(r.Context(), req.StoreCode, req.TerminalNo, req.FunctionMode)
	if err != nil {
		writeError(w, r, "create_terminal", err)
		return
	}
	writeJSON(w, "create_terminal", term)
}

func (h *Handler) listTerminals(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "list_terminals")
	if !ok {
		return
	}
	terms, err := svc.terminals.List(r.Context(), r.URL.Query().Get("store_code"))
	if err != nil {
		writeError(w, r, "list_terminals", err)
		return
	}
	writeJSON(w, "list_terminals", terms)
}

func (h *Handler) getTerminal(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "get_terminal")
	if !ok {
		return
	}
	term, err := svc.terminals.Get(r.Context(), urlParam(r, "terminal_id"))
	if err != nil {
		writeError(w, r, "get_terminal", err)
		return
	}
	term.APIKey = ""
	writeJSON(w, "get_terminal", term)
}

func (h *Handler) deleteTerminal(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "delete_terminal")
	if !ok {
		return
	}
	if err := svc.terminals.Delete(r.Context(), urlParam(r, "terminal_id")); err != nil {
		writeError(w, r, "delete_terminal", err)
		return
	}
	writeJSON(w, "delete_terminal", nil)
}

type signInRequest struct {
	StaffID string `json:"staffId"`
	Pin     string `json:"pin"`
}

// signIn attaches a staff member to the terminal. Staff with a registered
// PIN must present it.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "terminal_sign_in")
	if !ok {
		return
	}
	var req signInRequest
	if !decodeJSON(w, r, "terminal_sign_in", &req) {
		return
	}
	staff, err := svc.masters.GetStaff(r.Context(), req.StaffID)
	if err != nil {
		writeError(w, r, "terminal_sign_in", err)
		return
	}
	if staff.PinHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(staff.PinHash), []byte(req.Pin)); err != nil {
			writeAuthError(w, "terminal_sign_in")
			return
		}
	}
	term, err := svc.terminals.SignIn(r.Context(), urlParam(r, "terminal_id"),
		core.StaffRef{ID: staff.StaffID, Name: staff.StaffName})
	if err != nil {
		writeError(w, r, "terminal_sign_in", err)
		return
	}
	term.APIKey = ""
	writeJSON(w, "terminal_sign_in", term)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "terminal_sign_out")
	if !ok {
		return
	}
	term, err := svc.terminals.SignOut(r.Context(), urlParam(r, "terminal_id"))
	if err != nil {
		writeError(w, r, "terminal_sign_out", err)
		return
	}
	term.APIKey = ""
	writeJSON(w, "terminal_sign_out", term)
}

type openTerminalRequest struct {
	InitialAmount decimal.Decimal `json:"initialAmount"`
}

func (h *Handler) openTerminal(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "terminal_open")
	if !ok {
		return
	}
	var req openTerminalRequest
	if !decodeJSON(w, r, "terminal_open", &req) {
		return
	}
	term, log, err := svc.terminals.Open(r.Context(), urlParam(r, "terminal_id"), req.InitialAmount)
	if err != nil {
		writeError(w, r, "terminal_open", err)
		return
	}
	term.APIKey = ""
	writeJSON(w, "terminal_open", map[string]any{"terminal": term, "report": log})
}

type closeTerminalRequest struct {
	PhysicalAmount decimal.Decimal `json:"physicalAmount"`
}

func (h *Handler) closeTerminal(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.services(w, r, "terminal_close")
	if !ok {
		return
	}
	var req closeTerminalRequest
	if !decodeJSON(w, r, "terminal_close", &req) {
		return
	}
	term, log, err := svc.terminals.Close(r.Context(), urlParam(r, "terminal_id"), req.PhysicalAmount)
	if err != nil {
		writeError(w, r, "terminal_close", err)
		return
	}
	term.APIKey = ""
	writeJSON(w, "terminal_close", map[string]any{"terminal": term, "report": log})
}

type cashMoveRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

func (h *Handler) cashIn(w http.ResponseWriter, r *http.Request) {
	h.cashMove(w, r, "terminal_cash_in", core.TerminalService.CashIn)
}

func (h *Handler) cashOut(w http.ResponseWriter, r *http.Request) {
	h.cashMove(w, r, "terminal_cash_out", core.TerminalService.CashOut)
}

func (h *Handler) cashMove(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	move func(core.TerminalService, context.Context, string, decimal.Decimal, string) (*core.TransactionLog, error),
) {
	svc, ok := h.services(w, r, operation)
	if !ok {
		return
	}
	var req cashMoveRequest
	if !decodeJSON(w, r, operation, &req) {
		return
	}
	log, err := move(svc.terminals, r.Context(), urlParam(r, "terminal_id"), req.Amount, req.Note)
	if err != nil {
		writeError(w, r, operation, err)
		return
	}
	writeJSON(w, operation, log)
}
