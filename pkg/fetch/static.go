package fetch

import (
	"canibuy/pkg/models"
	"canibuy/pkg/proxy"
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	cproxy "github.com/gocolly/colly/v2/proxy"
	"go.uber.org/zap"
)

type StaticOptions struct {
	Timeout time.Duration
	// UserAgent overrides the rotating desktop user agents.
	UserAgent string
	Proxy     *proxy.Manager
}

// Static fetches pages with a single GET through a fresh colly collector.
type Static struct {
	opts StaticOptions
	log  *zap.Logger
}

func NewStatic(opts StaticOptions, log *zap.Logger) *Static {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Static{opts: opts, log: log}
}

func (s *Static) collector(ctx context.Context) (*colly.Collector, error) {
	ua := s.opts.UserAgent
	if ua == "" {
		ua = s.opts.Proxy.UserAgent()
	}

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(ua),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	c.DisableCookies()
	c.SetRequestTimeout(s.opts.Timeout)

	if s.opts.Proxy.Enabled() {
		fn, err := cproxy.RoundRobinProxySwitcher(s.opts.Proxy.Proxies()...)
		if err != nil {
			return nil, fmt.Errorf("configure proxy: %w", err)
		}
		c.SetProxyFunc(fn)
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-GH,en-US;q=0.9,en;q=0.8")
		r.Headers.Set("Cache-Control", "no-cache")
		r.Headers.Set("Pragma", "no-cache")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})
	return c, nil
}

func (s *Static) Fetch(ctx context.Context, t Target) (*Page, error) {
	c, err := s.collector(ctx)
	if err != nil {
		return nil, &models.FetchError{URL: t.URL, Err: err}
	}

	var (
		page   *Page
		status int
		reqErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		page = &Page{HTML: string(r.Body), URL: r.Request.URL.String(), Via: StrategyStatic}
	})
	c.OnError(func(r *colly.Response, err error) {
		reqErr = err
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	if err := c.Visit(t.URL); err != nil && reqErr == nil {
		reqErr = err
	}
	s.log.Debug("static fetch",
		zap.String("url", t.URL),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
	)

	if page != nil && IsBlocked(page.HTML, t.BlockMarkers) {
		return nil, fmt.Errorf("%w: %s (status %d)", models.ErrBlocked, t.URL, status)
	}
	if reqErr != nil {
		return nil, &models.FetchError{URL: t.URL, StatusCode: status, Err: reqErr}
	}
	if page == nil {
		return nil, &models.FetchError{URL: t.URL, Err: fmt.Errorf("empty response")}
	}
	if status < 200 || status > 299 {
		return nil, &models.FetchError{URL: t.URL, StatusCode: status}
	}
	return page, nil
}
