package db

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Tenant IDs are one uppercase letter followed by four digits. The format is
// validated before a tenant ID ever reaches a schema-qualified query, so
// interpolating the derived schema name into SQL is safe.
var tenantIDPattern = regexp.MustCompile(`^[A-Z][0-9]{4}$`)

// ValidTenantID reports whether id matches the tenant identifier format.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// Gateway hands out per-tenant schema handles over one shared pool.
type Gateway struct {
	pool   *pgxpool.Pool
	prefix string
}

func NewGateway(pool *pgxpool.Pool, prefix string) *Gateway {
	return &Gateway{pool: pool, prefix: prefix}
}

func (g *Gateway) Pool() *pgxpool.Pool { return g.pool }

// Schema returns the schema name owned by the given tenant.
func (g *Gateway) Schema(tenantID string) string {
	return fmt.Sprintf("%s_%s", g.prefix, tenantID)
}

// CommonsSchema returns the cross-tenant schema holding delivery status.
func (g *Gateway) CommonsSchema() string {
	return g.prefix + "_commons"
}

// Tenant returns a handle for the given tenant, or an error when the ID is
// malformed. It does not verify the schema exists; RegisterTenant does that.
func (g *Gateway) Tenant(tenantID string) (*TenantDB, error) {
	if !ValidTenantID(tenantID) {
		return nil, fmt.Errorf("invalid tenant id %q: must be one uppercase letter followed by four digits", tenantID)
	}
	return &TenantDB{pool: g.pool, tenantID: tenantID, schema: g.Schema(tenantID)}, nil
}

// RegisterTenant creates the tenant's schema with all collections and
// indexes. It is idempotent; re-registering an existing tenant is a no-op on
// the DDL level.
func (g *Gateway) RegisterTenant(ctx context.Context, tenantID string) (*TenantDB, error) {
	t, err := g.Tenant(tenantID)
	if err != nil {
		return nil, err
	}
	if err := createTenantSchema(ctx, g.pool, t.schema); err != nil {
		return nil, fmt.Errorf("failed to create schema for tenant %s: %w", tenantID, err)
	}
	return t, nil
}

// EnsureCommons creates the cross-tenant commons schema (delivery status,
// tenant registry). Called once at startup.
func (g *Gateway) EnsureCommons(ctx context.Context) error {
	if err := createCommonsSchema(ctx, g.pool, g.CommonsSchema()); err != nil {
		return fmt.Errorf("failed to create commons schema: %w", err)
	}
	return nil
}

// TenantDB is a handle scoped to one tenant's schema. Services format table
// references through T().
type TenantDB struct {
	pool     *pgxpool.Pool
	tenantID string
	schema   string
}

func (t *TenantDB) Pool() *pgxpool.Pool { return t.pool }
func (t *TenantDB) TenantID() string    { return t.tenantID }
func (t *TenantDB) Schema() string      { return t.schema }

// T returns the schema-qualified name of a table in this tenant's namespace.
func (t *TenantDB) T(table string) string {
	return t.schema + "." + table
}
