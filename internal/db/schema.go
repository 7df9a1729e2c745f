package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Tenant schema DDL. Every statement is idempotent so tenant registration can
// be retried safely. {{schema}} is replaced with the tenant's schema name,
// which is derived from a validated tenant ID.
const tenantDDL = `
CREATE SCHEMA IF NOT EXISTS {{schema}};

CREATE TABLE IF NOT EXISTS {{schema}}.users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_superuser  BOOLEAN NOT NULL DEFAULT false,
    is_active     BOOLEAN NOT NULL DEFAULT true,
    last_login_at TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS {{schema}}.stores (
    store_code    TEXT PRIMARY KEY,
    store_name    TEXT NOT NULL DEFAULT '',
    business_date TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS {{schema}}.staff (
    staff_id   TEXT PRIMARY KEY,
    staff_name TEXT NOT NULL DEFAULT '',
    pin_hash   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS {{schema}}.terminals (
    terminal_id      TEXT PRIMARY KEY,
    store_code       TEXT NOT NULL,
    terminal_no      INT  NOT NULL,
    function_mode    TEXT NOT NULL DEFAULT 'MainMenu',
    status           TEXT NOT NULL DEFAULT 'Idle',
    business_date    TEXT NOT NULL DEFAULT '',
    open_counter     INT  NOT NULL DEFAULT 0,
    business_counter INT  NOT NULL DEFAULT 0,
    staff_id         TEXT NOT NULL DEFAULT '',
    staff_name       TEXT NOT NULL DEFAULT '',
    api_key          TEXT NOT NULL DEFAULT '',
    initial_amount   NUMERIC(14,2) NOT NULL DEFAULT 0,
    physical_amount  NUMERIC(14,2) NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (store_code, terminal_no)
);

CREATE TABLE IF NOT EXISTS {{schema}}.terminal_counters (
    terminal_id  TEXT NOT NULL,
    counter_type TEXT NOT NULL,
    value        BIGINT NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (terminal_id, counter_type)
);

CREATE TABLE IF NOT EXISTS {{schema}}.items (
    item_code              TEXT PRIMARY KEY,
    description            TEXT NOT NULL DEFAULT '',
    description_short      TEXT NOT NULL DEFAULT '',
    unit_price             NUMERIC(14,2) NOT NULL DEFAULT 0,
    tax_code               TEXT NOT NULL DEFAULT '',
    category_code          TEXT NOT NULL DEFAULT '',
    is_discount_restricted BOOLEAN NOT NULL DEFAULT false,
    image_urls             JSONB NOT NULL DEFAULT '[]',
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS {{schema}}.categories (
    category_code TEXT PRIMARY KEY,
    description   TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS {{schema}}.taxes (
    tax_code     TEXT PRIMARY KEY,
    tax_no       INT  NOT NULL DEFAULT 0,
    tax_type     TEXT NOT NULL DEFAULT 'External',
    tax_name     TEXT NOT NULL DEFAULT '',
    rate         NUMERIC(8,4) NOT NULL DEFAULT 0,
    round_digit  INT  NOT NULL DEFAULT 0,
    round_method TEXT NOT NULL DEFAULT 'Floor',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS {{schema}}.payment_methods (
    payment_code     TEXT PRIMARY KEY,
    description      TEXT NOT NULL DEFAULT '',
    can_refund       BOOLEAN NOT NULL DEFAULT true,
    can_deposit_over BOOLEAN NOT NULL DEFAULT false,
    can_change       BOOLEAN NOT NULL DEFAULT false,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS {{schema}}.settings (
    name       TEXT PRIMARY KEY,
    value      JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS {{schema}}.carts (
    cart_id     UUID PRIMARY KEY,
    terminal_id TEXT NOT NULL,
    status      TEXT NOT NULL,
    body        JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS carts_terminal_idx ON {{schema}}.carts (terminal_id, status);

CREATE TABLE IF NOT EXISTS {{schema}}.transactions (
    id                 BIGSERIAL PRIMARY KEY,
    store_code         TEXT NOT NULL,
    terminal_id        TEXT NOT NULL,
    terminal_no        INT  NOT NULL,
    transaction_no     BIGINT NOT NULL,
    transaction_type   INT NOT NULL,
    receipt_no         BIGINT NOT NULL DEFAULT 0,
    business_date      TEXT NOT NULL,
    open_counter       INT NOT NULL DEFAULT 0,
    business_counter   INT NOT NULL DEFAULT 0,
    generate_date_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    body               JSONB NOT NULL,
    shard_key          TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS transactions_terminal_no_idx
    ON {{schema}}.transactions (terminal_id, transaction_no);
CREATE INDEX IF NOT EXISTS transactions_bizdate_idx
    ON {{schema}}.transactions (store_code, business_date, transaction_type);

CREATE TABLE IF NOT EXISTS {{schema}}.transaction_statuses (
    store_code            TEXT NOT NULL,
    terminal_id           TEXT NOT NULL,
    transaction_no        BIGINT NOT NULL,
    is_voided             BOOLEAN NOT NULL DEFAULT false,
    void_transaction_no   BIGINT,
    void_date_time        TIMESTAMPTZ,
    void_staff_id         TEXT NOT NULL DEFAULT '',
    is_refunded           BOOLEAN NOT NULL DEFAULT false,
    return_transaction_no BIGINT,
    return_date_time      TIMESTAMPTZ,
    return_staff_id       TEXT NOT NULL DEFAULT '',
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (store_code, terminal_id, transaction_no)
);

CREATE TABLE IF NOT EXISTS {{schema}}.journals (
    id                 BIGSERIAL PRIMARY KEY,
    store_code         TEXT NOT NULL,
    terminal_id        TEXT NOT NULL,
    terminal_no        INT  NOT NULL,
    transaction_no     BIGINT NOT NULL,
    transaction_type   INT NOT NULL,
    receipt_no         BIGINT NOT NULL DEFAULT 0,
    business_date      TEXT NOT NULL,
    open_counter       INT NOT NULL DEFAULT 0,
    amount             NUMERIC(14,2) NOT NULL DEFAULT 0,
    quantity           INT NOT NULL DEFAULT 0,
    staff_id           TEXT NOT NULL DEFAULT '',
    receipt_text       TEXT NOT NULL DEFAULT '',
    journal_text       TEXT NOT NULL DEFAULT '',
    generate_date_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    shard_key          TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS journals_query_idx
    ON {{schema}}.journals (store_code, business_date, terminal_id, transaction_type);

CREATE TABLE IF NOT EXISTS {{schema}}.stocks (
    store_code       TEXT NOT NULL,
    item_code        TEXT NOT NULL,
    current_quantity NUMERIC(14,4) NOT NULL DEFAULT 0,
    minimum_quantity NUMERIC(14,4) NOT NULL DEFAULT 0,
    reorder_point    NUMERIC(14,4) NOT NULL DEFAULT 0,
    reorder_quantity NUMERIC(14,4) NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (store_code, item_code)
);

CREATE TABLE IF NOT EXISTS {{schema}}.stock_updates (
    id              BIGSERIAL PRIMARY KEY,
    store_code      TEXT NOT NULL,
    item_code       TEXT NOT NULL,
    update_type     TEXT NOT NULL,
    quantity_change NUMERIC(14,4) NOT NULL,
    before_quantity NUMERIC(14,4) NOT NULL,
    after_quantity  NUMERIC(14,4) NOT NULL,
    reference_id    TEXT NOT NULL DEFAULT '',
    operator_id     TEXT NOT NULL DEFAULT '',
    note            TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS stock_updates_item_idx
    ON {{schema}}.stock_updates (store_code, item_code, created_at);

CREATE TABLE IF NOT EXISTS {{schema}}.stock_snapshots (
    id                 BIGSERIAL PRIMARY KEY,
    store_code         TEXT NOT NULL,
    stocks             JSONB NOT NULL,
    total_items        INT NOT NULL DEFAULT 0,
    generate_date_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS stock_snapshots_date_idx
    ON {{schema}}.stock_snapshots (store_code, generate_date_time);

CREATE TABLE IF NOT EXISTS {{schema}}.snapshot_schedules (
    id                 INT PRIMARY KEY DEFAULT 1,
    enabled            BOOLEAN NOT NULL DEFAULT false,
    snap_interval      TEXT NOT NULL DEFAULT 'daily',
    hour               INT NOT NULL DEFAULT 2,
    minute             INT NOT NULL DEFAULT 0,
    day_of_week        INT,
    day_of_month       INT,
    retention_days     INT NOT NULL DEFAULT 30,
    target_stores      JSONB NOT NULL DEFAULT '["all"]',
    last_executed_at   TIMESTAMPTZ,
    next_execution_at  TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (id = 1)
);
`

// Commons schema: cross-tenant delivery status and the tenant registry.
const commonsDDL = `
CREATE SCHEMA IF NOT EXISTS {{schema}};

CREATE TABLE IF NOT EXISTS {{schema}}.tenants (
    tenant_id  TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS {{schema}}.delivery_statuses (
    event_id        UUID PRIMARY KEY,
    topic           TEXT NOT NULL,
    tenant_id       TEXT NOT NULL DEFAULT '',
    payload         JSONB NOT NULL,
    services        JSONB NOT NULL DEFAULT '[]',
    status          TEXT NOT NULL DEFAULT 'published',
    published_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS delivery_statuses_pending_idx
    ON {{schema}}.delivery_statuses (status, published_at);
`

func createTenantSchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	return execDDL(ctx, pool, tenantDDL, schema)
}

func createCommonsSchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	return execDDL(ctx, pool, commonsDDL, schema)
}

func execDDL(ctx context.Context, pool *pgxpool.Pool, ddl, schema string) error {
	sql := strings.ReplaceAll(ddl, "{{schema}}", schema)
	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("schema %s bootstrap failed: %w", schema, err)
	}
	return nil
}
