package core

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	value   any
	loaded  time.Time
	missErr error
}

// CachedMasterLookup wraps a MasterLookup with a small in-memory TTL cache.
// One instance is created per cart so lookups within a single sale see a
// consistent view of the masters without a round trip per line item.
// Negative results are cached too; a deleted item stays missing for the
// whole cart rather than flickering back in mid-sale.
type CachedMasterLookup struct {
	inner MasterLookup
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCachedMasterLookup(inner MasterLookup, ttl time.Duration) *CachedMasterLookup {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &CachedMasterLookup{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedMasterLookup) lookup(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && time.Since(e.loaded) < c.ttl {
		c.mu.Unlock()
		return e.value, e.missErr
	}
	c.mu.Unlock()

	v, err := load(ctx)
	if err != nil && KindOf(err) != KindNotFound {
		// Storage and system failures are not cached.
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{value: v, loaded: time.Now(), missErr: err}
	c.mu.Unlock()
	return v, err
}

func (c *CachedMasterLookup) GetItem(ctx context.Context, itemCode string) (*Item, error) {
	v, err := c.lookup(ctx, "item:"+itemCode, func(ctx context.Context) (any, error) {
		return c.inner.GetItem(ctx, itemCode)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Item), nil
}

func (c *CachedMasterLookup) GetTax(ctx context.Context, taxCode string) (*TaxMaster, error) {
	v, err := c.lookup(ctx, "tax:"+taxCode, func(ctx context.Context) (any, error) {
		return c.inner.GetTax(ctx, taxCode)
	})
	if err != nil {
		return nil, err
	}
	return v.(*TaxMaster), nil
}

func (c *CachedMasterLookup) GetPayment(ctx context.Context, paymentCode string) (*PaymentMaster, error) {
	v, err := c.lookup(ctx, "payment:"+paymentCode, func(ctx context.Context) (any, error) {
		return c.inner.GetPayment(ctx, paymentCode)
	})
	if err != nil {
		return nil, err
	}
	return v.(*PaymentMaster), nil
}

func (c *CachedMasterLookup) GetCategory(ctx context.Context, categoryCode string) (*Category, error) {
	v, err := c.lookup(ctx, "category:"+categoryCode, func(ctx context.Context) (any, error) {
		return c.inner.GetCategory(ctx, categoryCode)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Category), nil
}
