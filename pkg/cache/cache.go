package cache

import (
	"canibuy/pkg/metrics"
	"canibuy/pkg/models"
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Entry is one cached search result. Entries are never modified after being written.
type Entry struct {
	Data      models.ScrapingResult `json:"data"`
	Timestamp time.Time             `json:"timestamp"`
	TTL       time.Duration         `json:"ttl"`
}

func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.Timestamp.Add(e.TTL))
}

// Store is a cache backend. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
	Name() string
}

// purger is implemented by stores that keep expired entries until asked to drop them.
type purger interface {
	Purge(ctx context.Context, now time.Time) (int, error)
}

// expirer drops key only if the entry stored under it is expired at now, so an entry
// written after the caller read a stale one survives.
type expirer interface {
	DeleteExpired(ctx context.Context, key string, now time.Time) (bool, error)
}

// Cache memoizes search results by normalized request for a fixed TTL.
type Cache struct {
	store   Store
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) { c.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{store: store, ttl: ttl, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key normalizes a request: lowercased query, min or 0, max or inf, sorted stores or "all".
func Key(req models.SearchRequest) string {
	min, max := "0", "inf"
	if req.MinBudget != nil {
		min = strconv.FormatFloat(*req.MinBudget, 'f', -1, 64)
	}
	if req.MaxBudget != nil {
		max = strconv.FormatFloat(*req.MaxBudget, 'f', -1, 64)
	}

	var stores []string
	for _, s := range req.Stores {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			stores = append(stores, s)
		}
	}
	slices.Sort(stores)
	stores = slices.Compact(stores)
	storeKey := "all"
	if len(stores) > 0 {
		storeKey = strings.Join(stores, ",")
	}

	return strings.Join([]string{strings.ToLower(strings.TrimSpace(req.Query)), min, max, storeKey}, "|")
}

func (c *Cache) Get(ctx context.Context, req models.SearchRequest) (models.ScrapingResult, bool) {
	key := Key(req)
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		c.metrics.CacheLookup(false)
		return models.ScrapingResult{}, false
	}
	if now := c.now(); !ok || e.Expired(now) {
		if x, can := c.store.(expirer); ok && can {
			if _, err := x.DeleteExpired(ctx, key, now); err != nil {
				c.log.Warn("cache eviction failed", zap.String("key", key), zap.Error(err))
			}
		}
		c.metrics.CacheLookup(false)
		return models.ScrapingResult{}, false
	}
	c.metrics.CacheLookup(true)
	return e.Data.Clone(), true
}

// Set stores result under req. An optional ttl overrides the cache default.
func (c *Cache) Set(ctx context.Context, req models.SearchRequest, result models.ScrapingResult, ttl ...time.Duration) {
	e := Entry{Data: result.Clone(), Timestamp: c.now(), TTL: c.ttl}
	if len(ttl) > 0 && ttl[0] > 0 {
		e.TTL = ttl[0]
	}
	key := Key(req)
	if err := c.store.Set(ctx, key, e); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

func (c *Cache) Backend() string {
	return c.store.Name()
}

func (c *Cache) Close() error {
	return c.store.Close()
}

// StartCleanup evicts expired entries every interval until ctx is done.
// Stores that expire entries on their own are left alone.
func (c *Cache) StartCleanup(ctx context.Context, interval time.Duration) {
	p, ok := c.store.(purger)
	if !ok || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := p.Purge(ctx, c.now())
				if err != nil {
					c.log.Warn("cache cleanup failed", zap.Error(err))
					continue
				}
				if n > 0 {
					c.log.Debug("evicted expired cache entries", zap.Int("count", n))
				}
			}
		}
	}()
}
