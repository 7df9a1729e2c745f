package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/core"
	"pos-backend/internal/db"
	"pos-backend/internal/pubsub"
	"pos-backend/internal/stock"
)

// Deps carries everything the HTTP layer needs. Tenant-scoped services are
// constructed per request from the gateway; the rest are process singletons.
type Deps struct {
	Gateway        *db.Gateway
	Accounts       core.AccountService
	Publisher      core.EventPublisher
	Delivery       *pubsub.DeliveryStore
	Stocks         *stock.Service
	Alerts         *stock.AlertHub
	Ops            core.OpsNotifier
	Rounding       core.Rounding
	UseItemCache   bool
	ItemCacheTTL   time.Duration
	NotifyAPIKey   string
	AllowedOrigins string
	Log            *logrus.Entry
}

// Handler wires the chi router over the domain services.
type Handler struct {
	gateway      *db.Gateway
	accounts     core.AccountService
	publisher    core.EventPublisher
	delivery     *pubsub.DeliveryStore
	stocks       *stock.Service
	alerts       *stock.AlertHub
	ops          core.OpsNotifier
	registry     *core.PaymentRegistry
	rounding     core.Rounding
	useCache     bool
	cacheTTL     time.Duration
	notifyAPIKey string
	log          *logrus.Entry
	upgrader     websocket.Upgrader
}

// tenantServices is the per-tenant service graph, built per request. The
// services are thin structs over the shared pool, so construction is cheap.
type tenantServices struct {
	tdb       *db.TenantDB
	masters   core.MasterService
	counters  core.CounterService
	trans     core.TransactionService
	terminals core.TerminalService
	carts     core.CartService
	journals  core.JournalService
	reports   core.ReportService
	settings  core.SettingsService
}

func (h *Handler) tenantServices(tenantID string) (*tenantServices, error) {
	tdb, err := h.gateway.Tenant(tenantID)
	if err != nil {
		return nil, err
	}
	masters := core.NewMasterService(tdb)
	counters := core.NewCounterService(tdb)
	trans := core.NewTransactionService(tdb, counters, masters, h.publisher, h.ops, h.log)
	terminals := core.NewTerminalService(tdb, counters, trans, h.log)
	carts := core.NewCartService(tdb, masters, terminals, counters, trans,
		h.registry, h.rounding, h.useCache, h.cacheTTL, h.log)
	return &tenantServices{
		tdb:       tdb,
		masters:   masters,
		counters:  counters,
		trans:     trans,
		terminals: terminals,
		carts:     carts,
		journals:  core.NewJournalService(tdb),
		reports:   core.NewReportService(tdb),
		settings:  core.NewSettingsService(tdb),
	}, nil
}

// services resolves the tenant from the request context and builds its
// service graph, writing the error response on failure.
func (h *Handler) services(w http.ResponseWriter, r *http.Request, operation string) (*tenantServices, bool) {
	tenantID := tenantFromContext(r.Context())
	svc, err := h.tenantServices(tenantID)
	if err != nil {
		writeError(w, r, operation, err)
		return nil, false
	}
	return svc, true
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(deps Deps) http.Handler {
	h := &Handler{
		gateway:      deps.Gateway,
		accounts:     deps.Accounts,
		publisher:    deps.Publisher,
		delivery:     deps.Delivery,
		stocks:       deps.Stocks,
		alerts:       deps.Alerts,
		ops:          deps.Ops,
		registry:     core.NewPaymentRegistry(),
		rounding:     deps.Rounding,
		useCache:     deps.UseItemCache,
		cacheTTL:     deps.ItemCacheTTL,
		notifyAPIKey: deps.NotifyAPIKey,
		log:          deps.Log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(deps.Log))
	r.Use(Recoverer(deps.Log))
	r.Use(CORS(deps.AllowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/health", h.health)

	// ── Accounts (public) ─────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20))
		r.Post("/api/v1/accounts/register", h.registerTenant)
		r.Post("/api/v1/accounts/token", h.issueToken)
	})

	// ── Delivery acknowledgement callback (shared-key auth) ───────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.notifyKeyAuth, RequestBodyLimit(1<<20))
		r.Post("/api/v1/delivery-status", h.deliveryStatus)
	})

	// ── Stock alert stream (token in query, upgraded to websocket) ────────────
	r.Get("/api/v1/stock/stream", h.streamAlerts)

	// ── Management endpoints (JWT) ────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.jwtAuth, RequestBodyLimit(1<<20))

		r.Post("/api/v1/accounts/users", h.createUser)

		r.Post("/api/v1/terminals", h.createTerminal)
		r.Get("/api/v1/terminals", h.listTerminals)
		r.Get("/api/v1/terminals/{terminal_id}", h.getTerminal)
		r.Delete("/api/v1/terminals/{terminal_id}", h.deleteTerminal)

		// Master maintenance
		r.Get("/api/v1/items", h.listItems)
		r.Post("/api/v1/items", h.upsertItem)
		r.Get("/api/v1/items/{item_code}", h.getItem)
		r.Delete("/api/v1/items/{item_code}", h.deleteItem)
		r.Get("/api/v1/taxes", h.listTaxes)
		r.Post("/api/v1/taxes", h.upsertTax)
		r.Delete("/api/v1/taxes/{tax_code}", h.deleteTax)
		r.Get("/api/v1/payment-methods", h.listPayments)
		r.Post("/api/v1/payment-methods", h.upsertPayment)
		r.Delete("/api/v1/payment-methods/{payment_code}", h.deletePayment)
		r.Get("/api/v1/categories", h.listCategories)
		r.Post("/api/v1/categories", h.upsertCategory)
		r.Delete("/api/v1/categories/{category_code}", h.deleteCategory)
		r.Get("/api/v1/staff", h.listStaff)
		r.Post("/api/v1/staff", h.upsertStaff)
		r.Delete("/api/v1/staff/{staff_id}", h.deleteStaff)

		r.Get("/api/v1/settings", h.listSettings)
		r.Get("/api/v1/settings/{name}", h.getSetting)
		r.Put("/api/v1/settings/{name}", h.putSetting)
		r.Delete("/api/v1/settings/{name}", h.deleteSetting)

		r.Get("/api/v1/journals", h.searchJournals)
		r.Get("/api/v1/reports/sales", h.salesReport)

		// Stock maintenance and snapshots
		r.Get("/api/v1/stock/snapshot-schedule", h.getSnapshotSchedule)
		r.Put("/api/v1/stock/snapshot-schedule", h.putSnapshotSchedule)
		r.Get("/api/v1/stock/{store_code}", h.listStock)
		r.Get("/api/v1/stock/{store_code}/low", h.lowStock)
		r.Get("/api/v1/stock/{store_code}/reorder-alerts", h.reorderAlerts)
		r.Post("/api/v1/stock/{store_code}/snapshot", h.takeSnapshot)
		r.Get("/api/v1/stock/{store_code}/snapshots", h.listSnapshots)
		r.Get("/api/v1/stock/{store_code}/{item_code}", h.getStock)
		r.Put("/api/v1/stock/{store_code}/{item_code}", h.setThresholds)
		r.Post("/api/v1/stock/{store_code}/{item_code}/update", h.updateStock)
		r.Get("/api/v1/stock/{store_code}/{item_code}/history", h.stockHistory)
	})

	// ── Terminal endpoints (X-API-KEY) ────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.apiKeyAuth, RequestBodyLimit(1<<20))

		r.Post("/api/v1/terminals/{terminal_id}/sign-in", h.signIn)
		r.Post("/api/v1/terminals/{terminal_id}/sign-out", h.signOut)
		r.Post("/api/v1/terminals/{terminal_id}/open", h.openTerminal)
		r.Post("/api/v1/terminals/{terminal_id}/close", h.closeTerminal)
		r.Post("/api/v1/terminals/{terminal_id}/cash-in", h.cashIn)
		r.Post("/api/v1/terminals/{terminal_id}/cash-out", h.cashOut)

		r.Post("/api/v1/carts", h.createCart)
		r.Get("/api/v1/carts/{cart_id}", h.getCart)
		r.Post("/api/v1/carts/{cart_id}/lineItems", h.addLineItems)
		r.Delete("/api/v1/carts/{cart_id}/lineItems/{line_no}", h.cancelLineItem)
		r.Patch("/api/v1/carts/{cart_id}/lineItems/{line_no}/unitPrice", h.overrideUnitPrice)
		r.Post("/api/v1/carts/{cart_id}/lineItems/{line_no}/discounts", h.addLineDiscount)
		r.Post("/api/v1/carts/{cart_id}/subtotal", h.subtotal)
		r.Post("/api/v1/carts/{cart_id}/subtotal/discounts", h.addSubtotalDiscount)
		r.Post("/api/v1/carts/{cart_id}/payments", h.addPayments)
		r.Post("/api/v1/carts/{cart_id}/resume-item-entry", h.resumeItemEntry)
		r.Post("/api/v1/carts/{cart_id}/bill", h.bill)
		r.Post("/api/v1/carts/{cart_id}/cancel", h.cancelCart)
	})

	// ── Transaction log (JWT or terminal key) ─────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.anyAuth, RequestBodyLimit(1<<20))
		r.Get("/api/v1/transactions", h.listTransactions)
		r.Get("/api/v1/transactions/{transaction_no}", h.getTransaction)
		r.Post("/api/v1/transactions/{transaction_no}/void", h.voidTransaction)
		r.Post("/api/v1/transactions/{transaction_no}/return", h.returnTransaction)
	})

	return r
}

// anyAuth accepts either a terminal API key or a bearer token. Terminal
// credentials win when both are present.
func (h *Handler) anyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "" && terminalIDFromRequest(r) != "" {
			h.apiKeyAuth(next).ServeHTTP(w, r)
			return
		}
		h.jwtAuth(next).ServeHTTP(w, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.Pool().Ping(r.Context()); err != nil {
		writeResponse(w, http.StatusServiceUnavailable, ApiResponse{
			Code:      "UNAVAILABLE",
			Message:   "database unreachable",
			Operation: "health",
		})
		return
	}
	writeJSON(w, "health", map[string]string{"status": "ok"})
}

// urlParam extracts a chi route parameter.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
