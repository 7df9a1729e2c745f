package web

import (
	"net/http"
	"strings"
	"time"
)

type registerTenantRequest struct {
	TenantID string `json:"tenantId"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// registerTenant provisions a tenant schema and its first superuser.
func (h *Handler) registerTenant(w http.ResponseWriter, r *http.Request) {
	var req registerTenantRequest
	if !decodeJSON(w, r, "register_tenant", &req) {
		return
	}
	user, err := h.accounts.RegisterTenant(r.Context(), req.TenantID, req.Username, req.Password)
	if err != nil {
		writeError(w, r, "register_tenant", err)
		return
	}
	writeJSON(w, "register_tenant", map[string]any{
		"tenantId": req.TenantID,
		"user":     user,
	})
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// issueToken implements the password grant. The tenant ID travels in
// client_id; scope "superuser" demands a superuser account.
func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeResponse(w, http.StatusBadRequest, ApiResponse{
			Code: "BAD_REQUEST", Message: "invalid form body", Operation: "issue_token",
		})
		return
	}
	if gt := r.PostFormValue("grant_type"); gt != "" && gt != "password" {
		writeResponse(w, http.StatusBadRequest, ApiResponse{
			Code: "UNSUPPORTED_GRANT", Message: "only the password grant is supported", Operation: "issue_token",
		})
		return
	}
	tenantID := r.PostFormValue("client_id")
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	var (
		token string
		err   error
	)
	if strings.Contains(r.PostFormValue("scope"), "superuser") {
		token, _, err = h.accounts.AuthenticateSuperuser(r.Context(), tenantID, username, password)
	} else {
		token, _, err = h.accounts.Authenticate(r.Context(), tenantID, username, password)
	}
	if err != nil {
		writeAuthError(w, "issue_token")
		return
	}

	expiresIn := int64(0)
	if claims, verr := h.accounts.VerifyToken(token); verr == nil && claims.ExpiresAt != nil {
		expiresIn = int64(time.Until(claims.ExpiresAt.Time).Seconds())
	}
	writeRawJSON(w, tokenResponse{AccessToken: token, TokenType: "bearer", ExpiresIn: expiresIn})
}

type createUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	IsSuperuser bool   `json:"isSuperuser"`
}

// createUser adds an operator account. Only superusers may do this.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil || !claims.IsSuperuser {
		writeAuthError(w, "create_user")
		return
	}
	var req createUserRequest
	if !decodeJSON(w, r, "create_user", &req) {
		return
	}
	user, err := h.accounts.CreateUser(r.Context(), claims.TenantID, req.Username, req.Password, req.IsSuperuser)
	if err != nil {
		writeError(w, r, "create_user", err)
		return
	}
	writeJSON(w, "create_user", user)
}
