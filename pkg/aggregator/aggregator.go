// Package aggregator fans a search out to every selected source, waits for all of them
// to settle and merges what came back into one ranked list.
package aggregator

import (
	"canibuy/pkg/cache"
	"canibuy/pkg/logger"
	"canibuy/pkg/metrics"
	"canibuy/pkg/models"
	"canibuy/pkg/relevance"
	"cmp"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source is one retailer search. Scrape reports failures in the result, never by panicking,
// but a panic is still contained to the source.
type Source interface {
	Key() string
	Name() string
	// Timeout is the source's own budget, zero for the aggregator default.
	Timeout() time.Duration
	Scrape(ctx context.Context, req models.SearchRequest) models.ScrapingResult
}

type Options struct {
	DefaultTimeout time.Duration
	Dedupe         DedupeOptions
	Sort           SortOptions
}

func DefaultOptions() Options {
	return Options{
		DefaultTimeout: 8 * time.Second,
		Dedupe:         DefaultDedupeOptions(),
		Sort:           DefaultSortOptions(),
	}
}

type Aggregator struct {
	sources []Source
	cache   *cache.Cache
	opts    Options
	log     *zap.Logger
	hits    *logger.Deduplicator
	metrics *metrics.Metrics
}

// New keeps sources in the given order, which is also the merge order. A nil cache disables caching.
func New(sources []Source, c *cache.Cache, opts Options, log *zap.Logger, m *metrics.Metrics) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 8 * time.Second
	}
	return &Aggregator{
		sources: sources,
		cache:   c,
		opts:    opts,
		log:     log,
		hits:    logger.NewDeduplicator(log, 2*time.Second),
		metrics: m,
	}
}

func (a *Aggregator) Sources() []Source {
	return a.sources
}

// Select returns the sources named by key or display name, case-insensitively, in merge order.
// No names selects every source.
func (a *Aggregator) Select(names []string) []Source {
	if len(names) == 0 {
		return a.sources
	}
	var out []Source
	for _, src := range a.sources {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if strings.EqualFold(name, src.Key()) || strings.EqualFold(name, src.Name()) {
				out = append(out, src)
				break
			}
		}
	}
	return out
}

// ScrapeAll searches every selected source and returns the merged result. It succeeds when
// at least one product was found. Per-source failures are reported as "<store>: <reason>".
func (a *Aggregator) ScrapeAll(ctx context.Context, req models.SearchRequest) models.ScrapingResult {
	if err := req.Validate(); err != nil {
		return models.Failure(err.Error())
	}
	if res, ok := a.cached(ctx, req); ok {
		return res
	}

	sources := a.Select(req.Stores)
	if len(sources) == 0 {
		return models.Failure("no matching stores")
	}

	start := time.Now()
	slots := make([]settled, len(sources))
	for s := range a.fanOut(ctx, req, sources) {
		slots[s.index] = s
	}

	res := a.merge(ctx, req, slots)
	a.log.Info("search completed",
		zap.String("query", req.Query),
		zap.Int("sources", len(sources)),
		zap.Int("products", len(res.Products)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

// Close flushes pending log lines.
func (a *Aggregator) Close() {
	a.hits.Sync()
}

func (a *Aggregator) cached(ctx context.Context, req models.SearchRequest) (models.ScrapingResult, bool) {
	if a.cache == nil {
		return models.ScrapingResult{}, false
	}
	res, ok := a.cache.Get(ctx, req)
	if ok {
		a.hits.Printf("serving cached result for %q", cache.Key(req))
	}
	return res, ok
}

type settled struct {
	index    int
	source   Source
	result   models.ScrapingResult
	elapsed  time.Duration
	timedOut bool
}

// fanOut starts one task per source. Each outcome is sent once; the channel closes when all settled.
func (a *Aggregator) fanOut(ctx context.Context, req models.SearchRequest, sources []Source) <-chan settled {
	out := make(chan settled, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			s := a.settle(ctx, src, req)
			s.index = i
			out <- s
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(out)
	}()
	return out
}

// settle races one scrape against its timeout. Leaving early cancels the scrape's context so
// the source can release its browser.
func (a *Aggregator) settle(ctx context.Context, src Source, req models.SearchRequest) settled {
	timeout := cmp.Or(src.Timeout(), a.opts.DefaultTimeout)
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	done := make(chan models.ScrapingResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("source panicked", zap.String("store", src.Key()), zap.Any("panic", r))
				done <- models.Failure(fmt.Sprintf("internal error: %v", r))
			}
		}()
		done <- src.Scrape(sctx, req)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	s := settled{source: src}
	select {
	case s.result = <-done:
	case <-timer.C:
		s.timedOut = true
		s.result = models.Failure(fmt.Errorf("%w after %s", models.ErrTimeout, timeout).Error())
		a.log.Warn("source timed out", zap.String("store", src.Key()), zap.Duration("timeout", timeout))
	case <-ctx.Done():
		s.result = models.Failure(ctx.Err().Error())
	}
	s.elapsed = time.Since(start)
	a.metrics.ObserveScrape(src.Key(), s.outcome(), s.elapsed)
	return s
}

func (s settled) outcome() string {
	switch {
	case s.timedOut:
		return "timeout"
	case !s.result.Success:
		return "failed"
	case len(s.result.Products) == 0:
		return "empty"
	default:
		return "success"
	}
}

// contribution returns the source's normalized products and its error entry, if any.
func (s settled) contribution(terms []string) ([]models.Product, string) {
	var errText string
	if msg := s.result.ErrorText(); msg != "" {
		errText = s.source.Name() + ": " + msg
	}
	if !s.result.Success {
		return nil, errText
	}
	return normalize(s.result.Products, s.source.Name(), terms), errText
}

// merge combines outcomes in slot order, then dedupes, sorts and caches.
func (a *Aggregator) merge(ctx context.Context, req models.SearchRequest, slots []settled) models.ScrapingResult {
	terms := relevance.Terms(req.Query)
	var (
		products []models.Product
		errs     []string
	)
	for _, s := range slots {
		p, errText := s.contribution(terms)
		products = append(products, p...)
		errs = append(errs, errText)
	}

	products = Dedupe(products, a.opts.Dedupe)
	Sort(products, a.opts.Sort)
	a.metrics.SearchCompleted(len(products))

	res := models.Success(products, errs...)
	res.Success = len(res.Products) > 0
	if res.Success && a.cache != nil {
		a.cache.Set(ctx, req, res)
	}
	return res
}

// normalize fills in signals and fields a source left out and drops invalid records.
func normalize(products []models.Product, store string, terms []string) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		p = p.Clone()
		if p.Store == "" {
			p.Store = store
		}
		if p.Currency == "" {
			p.Currency = models.DefaultCurrency
		}
		if p.Metadata.RelevancyScore == nil {
			p.Metadata.RelevancyScore = models.Float(relevance.Score(p.Title, terms))
		}
		if p.Metadata.IsAccessory == nil {
			p.Metadata.IsAccessory = models.Bool(relevance.IsAccessory(p.Title))
		}
		if !p.Valid() {
			continue
		}
		out = append(out, p)
	}
	return out
}
