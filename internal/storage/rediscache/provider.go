// Package rediscache wraps a catalog provider with a Redis read-through
// cache so repricing never waits on the remote catalog for hot facts.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/feastly/ordercore/internal/domain/catalog"
)

var _ catalog.Provider = (*Provider)(nil)

// Provider is a read-through cache over an inner catalog.Provider. Cache
// failures degrade to the inner provider; a cache outage never turns into a
// pricing failure.
type Provider struct {
	inner catalog.Provider
	rdb   *redis.Client
	ttl   time.Duration
}

// New creates a cached provider with the given TTL.
func New(inner catalog.Provider, rdb *redis.Client, ttl time.Duration) *Provider {
	return &Provider{inner: inner, rdb: rdb, ttl: ttl}
}

// GetVariant returns the cached variant or falls through to the inner
// provider.
func (p *Provider) GetVariant(ctx context.Context, ref string) (*catalog.Variant, error) {
	var v catalog.Variant
	if p.lookup(ctx, "catalog:variant:"+ref, &v) {
		return &v, nil
	}

	fresh, err := p.inner.GetVariant(ctx, ref)
	if err != nil {
		return nil, err
	}
	p.store(ctx, "catalog:variant:"+ref, fresh)
	return fresh, nil
}

// GetPromotion returns the cached promotion or falls through to the inner
// provider.
func (p *Provider) GetPromotion(ctx context.Context, ref string) (*catalog.Promotion, error) {
	var promo catalog.Promotion
	if p.lookup(ctx, "catalog:promotion:"+ref, &promo) {
		return &promo, nil
	}

	fresh, err := p.inner.GetPromotion(ctx, ref)
	if err != nil {
		return nil, err
	}
	p.store(ctx, "catalog:promotion:"+ref, fresh)
	return fresh, nil
}

// GetVoucher returns the cached voucher or falls through to the inner
// provider.
func (p *Provider) GetVoucher(ctx context.Context, ref string) (*catalog.Voucher, error) {
	var v catalog.Voucher
	if p.lookup(ctx, "catalog:voucher:"+ref, &v) {
		return &v, nil
	}

	fresh, err := p.inner.GetVoucher(ctx, ref)
	if err != nil {
		return nil, err
	}
	p.store(ctx, "catalog:voucher:"+ref, fresh)
	return fresh, nil
}

// lookup fetches and decodes a cached fact. It returns false on miss,
// decode failure, or cache error.
func (p *Provider) lookup(ctx context.Context, key string, out any) bool {
	raw, err := p.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zctx.From(ctx).Debug("Catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		zctx.From(ctx).Warn("Catalog cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// store writes a fact to the cache, best-effort.
func (p *Provider) store(ctx context.Context, key string, val any) {
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := p.rdb.Set(ctx, key, raw, p.ttl).Err(); err != nil {
		zctx.From(ctx).Debug("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
