// Package redis caches catalog lookups in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

const (
	keyPrefix  = "storefront:product:"
	DefaultTTL = 5 * time.Minute
)

type cmdable interface {
	Ping(ctx context.Context) *goredis.StatusCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// Connect parses a redis:// URL and verifies connectivity.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// CachedCatalog serves product lookups from Redis and falls back to the
// wrapped catalog on a miss. Cache failures never fail a lookup.
type CachedCatalog struct {
	next  cart.Catalog
	store cmdable
	ttl   time.Duration
	lg    *zap.Logger
}

var _ cart.Catalog = (*CachedCatalog)(nil)

// NewCachedCatalog wraps next. A non-positive ttl uses DefaultTTL.
func NewCachedCatalog(next cart.Catalog, client *goredis.Client, ttl time.Duration, lg *zap.Logger) *CachedCatalog {
	return newCachedCatalog(next, client, ttl, lg)
}

func newCachedCatalog(next cart.Catalog, store cmdable, ttl time.Duration, lg *zap.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &CachedCatalog{next: next, store: store, ttl: ttl, lg: lg}
}

// Product implements cart.Catalog.
func (c *CachedCatalog) Product(ctx context.Context, id string) (*cart.Product, error) {
	key := Key(id)

	raw, err := c.store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		p, decErr := decodeProduct(raw)
		if decErr == nil {
			return p, nil
		}
		c.lg.Warn("Dropping corrupt cache entry", zap.String("key", key), zap.Error(decErr))
		_ = c.store.Del(ctx, key).Err()
	case errors.Is(err, goredis.Nil):
	default:
		c.lg.Warn("Product cache read failed", zap.String("key", key), zap.Error(err))
	}

	p, err := c.next.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, encodeProduct(p), c.ttl).Err(); err != nil {
		c.lg.Warn("Product cache write failed", zap.String("key", key), zap.Error(err))
	}
	return p, nil
}

// Invalidate drops the cached entry for id.
func (c *CachedCatalog) Invalidate(ctx context.Context, id string) error {
	if err := c.store.Del(ctx, Key(id)).Err(); err != nil {
		return errors.Wrap(err, "delete cache entry")
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *CachedCatalog) Ping(ctx context.Context) error {
	return c.store.Ping(ctx).Err()
}

// Key returns the cache key of a product.
func Key(id string) string {
	return keyPrefix + id
}

func encodeProduct(p *cart.Product) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { e.Str(p.Price.String()) })
		e.Field("image_url", func(e *jx.Encoder) { e.Str(p.ImageURL) })
		e.Field("category_id", func(e *jx.Encoder) { e.Str(p.CategoryID) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
	})
	return e.Bytes()
}

func decodeProduct(raw []byte) (*cart.Product, error) {
	var p cart.Product
	err := jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "price":
			var s string
			if s, err = d.Str(); err == nil {
				p.Price, err = decimal.NewFromString(s)
			}
		case "image_url":
			p.ImageURL, err = d.Str()
		case "category_id":
			p.CategoryID, err = d.Str()
		case "stock":
			p.Stock, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cached product")
	}
	if p.ID == "" {
		return nil, errors.New("cached product has no id")
	}
	return &p, nil
}
