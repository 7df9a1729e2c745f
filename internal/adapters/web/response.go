package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"pos-backend/internal/core"
)

// UserError is the localized message surfaced to the cashier for
// validation and business-rule failures.
type UserError struct {
	Message   string `json:"message"`
	MessageJa string `json:"messageJa,omitempty"`
}

// ApiResponse is the envelope every endpoint answers with.
type ApiResponse struct {
	Success   bool       `json:"success"`
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Data      any        `json:"data,omitempty"`
	Metadata  any        `json:"metadata,omitempty"`
	UserError *UserError `json:"userError,omitempty"`
	Operation string     `json:"operation"`
}

// PageMetadata reports pagination totals on list responses.
type PageMetadata struct {
	Total int `json:"total"`
	Limit int `json:"limit"`
	Page  int `json:"page"`
}

func writeResponse(w http.ResponseWriter, status int, resp ApiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON answers success with the given payload.
func writeJSON(w http.ResponseWriter, operation string, data any) {
	writeResponse(w, http.StatusOK, ApiResponse{
		Success:   true,
		Code:      "OK",
		Message:   "success",
		Data:      data,
		Operation: operation,
	})
}

// writeList answers success with payload and pagination metadata.
func writeList(w http.ResponseWriter, operation string, data any, meta PageMetadata) {
	writeResponse(w, http.StatusOK, ApiResponse{
		Success:   true,
		Code:      "OK",
		Message:   "success",
		Data:      data,
		Metadata:  meta,
		Operation: operation,
	})
}

// writeRawJSON emits v without the envelope. The token endpoint uses it to
// stay wire-compatible with OAuth2 clients.
func writeRawJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// statusForKind maps the error classification to an HTTP status.
func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindValidation, core.KindInvalidState, core.KindBusinessRule:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict:
		return http.StatusConflict
	case core.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError serializes a domain error into the envelope. Validation-class
// failures carry a localized user message; everything else stays
// machine-facing.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var domainErr *core.Error
	if !errors.As(err, &domainErr) {
		writeResponse(w, http.StatusInternalServerError, ApiResponse{
			Code:      "INTERNAL",
			Message:   err.Error(),
			Operation: operation,
		})
		return
	}

	resp := ApiResponse{
		Code:      domainErr.Code,
		Message:   domainErr.Error(),
		Operation: operation,
	}
	switch domainErr.Kind {
	case core.KindValidation, core.KindInvalidState, core.KindBusinessRule, core.KindConflict:
		resp.UserError = &UserError{Message: domainErr.Message, MessageJa: domainErr.MessageJa}
	}
	writeResponse(w, statusForKind(domainErr.Kind), resp)
}

// writeAuthError answers 401 without leaking detail.
func writeAuthError(w http.ResponseWriter, operation string) {
	writeResponse(w, http.StatusUnauthorized, ApiResponse{
		Code:      "UNAUTHORIZED",
		Message:   "authentication required",
		Operation: operation,
	})
}

// decodeJSON decodes the request body, answering 400 on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, operation string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeResponse(w, http.StatusRequestEntityTooLarge, ApiResponse{
				Code:      "REQUEST_TOO_LARGE",
				Message:   "request body too large",
				Operation: operation,
			})
			return false
		}
		writeResponse(w, http.StatusBadRequest, ApiResponse{
			Code:      "BAD_REQUEST",
			Message:   "invalid JSON body: " + err.Error(),
			Operation: operation,
		})
		return false
	}
	return true
}
