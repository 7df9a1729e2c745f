package web

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/core"
	"pos-backend/internal/db"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	claimsKey    contextKey = "claims"
	terminalKey  contextKey = "terminal"
	tenantKey    contextKey = "tenant"
)

var validRequestID = regexp.MustCompile(`^[a-zA-Z0-9\-]{1,64}$`)

// requestIDFromContext returns the request ID from ctx, or empty string.
func requestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// tenantFromContext returns the tenant ID resolved by the auth middleware.
func tenantFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tenantKey).(string)
	return v
}

// claimsFromContext returns the verified token claims, or nil for API-key
// authenticated requests.
func claimsFromContext(ctx context.Context) *core.TokenClaims {
	v, _ := ctx.Value(claimsKey).(*core.TokenClaims)
	return v
}

// terminalFromContext returns the terminal resolved by apiKeyAuth, or nil.
func terminalFromContext(ctx context.Context) *core.Terminal {
	v, _ := ctx.Value(terminalKey).(*core.Terminal)
	return v
}

// RequestID injects a unique X-Request-ID header into each request and its context.
// Caller-supplied IDs are accepted only if they are safe alphanumeric/hyphen strings;
// anything else (absent, too long, unusual characters) gets a fresh server-generated UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger logs method, path, status, and duration for each request.
func Logger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"duration":   time.Since(start).String(),
				"request_id": requestIDFromContext(r.Context()),
			}).Info("request")
		})
	}
}

// Recoverer catches panics, logs them, and returns HTTP 500.
func Recoverer(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rv := recover(); rv != nil {
					log.WithField("panic", rv).Error("request panicked")
					writeResponse(w, http.StatusInternalServerError, ApiResponse{
						Code:      "INTERNAL",
						Message:   "internal server error",
						Operation: "panic",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS adds CORS headers only when ALLOWED_ORIGINS is explicitly configured and the
// request origin is in the list. An empty list means CORS is disabled entirely.
func CORS(allowedOrigins string) func(http.Handler) http.Handler {
	origins := splitAndTrim(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && len(origins) > 0 && contains(origins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-KEY, X-Request-ID")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestBodyLimit returns a middleware that caps the request body at maxBytes.
// Requests whose bodies exceed the limit receive HTTP 413 before any handler logic runs.
func RequestBodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// jwtAuth verifies the Authorization bearer token and stores the claims and
// resolved tenant in the request context.
func (h *Handler) jwtAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeAuthError(w, "auth")
			return
		}
		claims, err := h.accounts.VerifyToken(token)
		if err != nil {
			writeAuthError(w, "auth")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, tenantKey, claims.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// apiKeyAuth authenticates terminal-facing endpoints with the X-API-KEY
// issued at terminal creation. The terminal ID arrives as a path or query
// parameter and carries the tenant ID as its first segment.
func (h *Handler) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		terminalID := terminalIDFromRequest(r)
		tenantID, ok := tenantOfTerminalID(terminalID)
		if !ok {
			writeAuthError(w, "auth")
			return
		}
		svc, err := h.tenantServices(tenantID)
		if err != nil {
			writeAuthError(w, "auth")
			return
		}
		term, err := svc.terminals.ValidateAPIKey(r.Context(), terminalID, r.Header.Get("X-API-KEY"))
		if err != nil {
			writeAuthError(w, "auth")
			return
		}
		ctx := context.WithValue(r.Context(), terminalKey, term)
		ctx = context.WithValue(ctx, tenantKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// notifyKeyAuth guards the delivery-status callback with a shared key.
func (h *Handler) notifyKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.notifyAPIKey == "" || r.Header.Get("X-API-KEY") != h.notifyAPIKey {
			writeAuthError(w, "delivery_status")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// terminalIDFromRequest finds the terminal ID in the route or query string.
func terminalIDFromRequest(r *http.Request) string {
	if id := urlParam(r, "terminal_id"); id != "" {
		return id
	}
	return r.URL.Query().Get("terminal_id")
}

// tenantOfTerminalID extracts the tenant segment from "<tenant>-<store>-<no>".
func tenantOfTerminalID(terminalID string) (string, bool) {
	idx := strings.Index(terminalID, "-")
	if idx <= 0 {
		return "", false
	}
	tenantID := terminalID[:idx]
	if !db.ValidTenantID(tenantID) {
		return "", false
	}
	return tenantID, true
}

// statusRecorder wraps ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
