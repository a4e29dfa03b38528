// Package cache keeps backend responses for a short TTL so the UIs do not
// hit the backend on every redraw or page view.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
)

// Store holds encoded responses. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
	Purge(ctx context.Context) error
}

// Source is the subset of the backend client the cache reads through.
type Source interface {
	BaseURL() string
	Health(ctx context.Context) (*api.Health, error)
	FAQ(ctx context.Context, sort string) (*api.FAQList, error)
}

// Cache reads health and FAQ responses through a Store. Errors are never cached.
type Cache struct {
	store Store
	log   logrus.FieldLogger
}

// New wraps store.
func New(store Store, log logrus.FieldLogger) *Cache {
	return &Cache{store: store, log: log.WithField("component", "cache")}
}

func healthKey(baseURL string) string { return "health|" + baseURL }

func faqKey(baseURL, sort string) string { return "faq|" + baseURL + "|" + sort }

// Health returns the cached health payload or fetches it.
func (c *Cache) Health(ctx context.Context, src Source) (*api.Health, error) {
	return readThrough(ctx, c, healthKey(src.BaseURL()), func() (*api.Health, error) {
		return src.Health(ctx)
	})
}

// FAQ returns the cached FAQ list for sort or fetches it.
func (c *Cache) FAQ(ctx context.Context, src Source, sort string) (*api.FAQList, error) {
	return readThrough(ctx, c, faqKey(src.BaseURL(), sort), func() (*api.FAQList, error) {
		return src.FAQ(ctx, sort)
	})
}

func readThrough[T any](ctx context.Context, c *Cache, key string, fetch func() (*T, error)) (*T, error) {
	log := c.log.WithField("key", key)
	if data, ok := c.store.Get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			log.Debug("cache hit")
			return &v, nil
		}
		log.Warn("dropping undecodable cache entry")
	}
	log.Debug("cache miss")
	v, err := fetch()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		log.WithError(err).Warn("cache write failed")
	}
	return v, nil
}

// Clear drops every cached response.
func (c *Cache) Clear(ctx context.Context) {
	if err := c.store.Purge(ctx); err != nil {
		c.log.WithError(err).Warn("cache purge failed")
		return
	}
	c.log.Debug("cache cleared")
}

// Options selects the store implementation.
type Options struct {
	TTL       time.Duration
	Size      int
	RedisAddr string
}

// Open returns a Redis-backed cache when RedisAddr is set, an in-process LRU otherwise.
func Open(ctx context.Context, opts Options, log logrus.FieldLogger) (*Cache, func() error, error) {
	if opts.RedisAddr != "" {
		rs, err := NewRedisStore(ctx, opts.RedisAddr, opts.TTL)
		if err != nil {
			return nil, nil, err
		}
		return New(rs, log), rs.Close, nil
	}
	return New(NewLRUStore(opts.Size, opts.TTL), log), func() error { return nil }, nil
}
