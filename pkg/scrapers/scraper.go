package scrapers

import (
	"canibuy/pkg/extract"
	"canibuy/pkg/fetch"
	"canibuy/pkg/filter"
	"canibuy/pkg/models"
	"canibuy/pkg/relevance"
	"canibuy/pkg/retry"
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	Policy filter.Policy
	Retry  []retry.Option
	// DefaultRelevance ranks products without a score when a profile sorts by relevance.
	DefaultRelevance float64
	Logger           *zap.Logger
}

// Scraper runs a profile's search through a fetcher and turns the page into a result.
type Scraper struct {
	profile Profile
	fetcher fetch.Fetcher
	opts    Options
	log     *zap.Logger
}

func NewScraper(p Profile, f fetch.Fetcher, opts Options) *Scraper {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if p.Currency == "" {
		p.Currency = models.DefaultCurrency
	}
	if p.Sort == "" {
		p.Sort = SortByPrice
	}
	return &Scraper{profile: p, fetcher: f, opts: opts, log: log.With(zap.String("store", p.Key))}
}

func (s *Scraper) Key() string { return s.profile.Key }

func (s *Scraper) Name() string { return s.profile.Name }

func (s *Scraper) Profile() Profile { return s.profile }

// Timeout is the profile's own budget, zero when the caller's default applies.
func (s *Scraper) Timeout() time.Duration { return s.profile.Timeout }

// Scrape never returns an error. Failures come back as an unsuccessful result whose
// error text is the reason, without the store name. A page the store marks as empty
// is a successful result with no products. A page with no items and no such mark is
// retried, since lazy content is the usual cause.
func (s *Scraper) Scrape(ctx context.Context, req models.SearchRequest) (res models.ScrapingResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scraper panicked", zap.Any("panic", r))
			res = models.Failure(fmt.Sprintf("internal error: %v", r))
		}
	}()

	start := time.Now()
	terms := relevance.Terms(req.Query)
	target := s.profile.target(req.Query)

	opts := append([]retry.Option{
		retry.WithShouldRetry(func(err error) bool {
			return ctx.Err() == nil && !errors.Is(err, models.ErrNoResults)
		}),
		retry.WithLogger(s.log, s.profile.Key),
	}, s.opts.Retry...)

	extracted, err := retry.Do(ctx, func(ctx context.Context) (extract.Result, error) {
		return s.attempt(ctx, target, terms)
	}, opts...)
	if errors.Is(err, models.ErrNoResults) {
		s.log.Info("store reports no results", zap.String("url", target.URL), zap.Duration("elapsed", time.Since(start)))
		return models.Success(nil)
	}
	if err != nil {
		s.log.Warn("scrape failed", zap.String("url", target.URL), zap.Error(err))
		return models.Failure(err.Error())
	}

	products := s.opts.Policy.Apply(extracted.Products, terms)
	products = filter.Budget(products, req.MinBudget, req.MaxBudget)
	s.sort(products)

	s.log.Info("scrape completed",
		zap.Int("items", extracted.Items),
		zap.Int("kept", len(products)),
		zap.Bool("no_results", extracted.NoResults),
		zap.Duration("elapsed", time.Since(start)),
	)
	return models.Success(products)
}

func (s *Scraper) attempt(ctx context.Context, target fetch.Target, terms []string) (extract.Result, error) {
	page, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return extract.Result{}, err
	}

	res, err := extract.Extract(extract.Page{
		HTML:     page.HTML,
		URL:      cmp.Or(page.URL, target.URL, s.profile.BaseURL),
		Store:    s.profile.Name,
		Currency: s.profile.Currency,
	}, s.profile.Rule, terms, s.log)
	if err != nil {
		return extract.Result{}, err
	}

	switch {
	case len(res.Products) > 0:
		return res, nil
	case res.NoResults:
		return res, fmt.Errorf("%w for %q", models.ErrNoResults, target.URL)
	case res.Items > 0:
		return res, fmt.Errorf("%w: none of %d items could be parsed", models.ErrExtraction, res.Items)
	default:
		return res, fmt.Errorf("%w on %s", models.ErrNoItems, page.URL)
	}
}

func (s *Scraper) sort(products []models.Product) {
	if s.profile.Sort == SortByRelevance {
		def := s.opts.DefaultRelevance
		slices.SortStableFunc(products, func(a, b models.Product) int {
			if c := cmp.Compare(b.Relevance(def), a.Relevance(def)); c != 0 {
				return c
			}
			return cmp.Compare(a.Price, b.Price)
		})
		return
	}
	slices.SortStableFunc(products, func(a, b models.Product) int {
		return cmp.Compare(a.Price, b.Price)
	})
}
