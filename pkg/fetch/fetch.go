// Package fetch obtains raw search result pages, either with a plain HTTP request or
// by driving a headless browser.
package fetch

import (
	"canibuy/pkg/models"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

type Strategy string

const (
	StrategyStatic  Strategy = "static"
	StrategyBrowser Strategy = "browser"
)

// Target is one page to fetch.
type Target struct {
	URL string
	// FallbackURL is fetched statically when the primary fetch hits a block page.
	FallbackURL string
	// ReadySelector and EmptySelector tell a browser when results (or the lack of them) rendered.
	ReadySelector string
	EmptySelector string
	BlockMarkers  []string
}

type Page struct {
	HTML string
	URL  string
	Via  Strategy
}

// Fetcher never retries internally. It reports models.FetchError, models.ErrNavigationTimeout
// or models.ErrBlocked so the caller can decide.
type Fetcher interface {
	Fetch(ctx context.Context, t Target) (*Page, error)
}

type FetcherFunc func(ctx context.Context, t Target) (*Page, error)

func (f FetcherFunc) Fetch(ctx context.Context, t Target) (*Page, error) { return f(ctx, t) }

var blockTitleMarkers = []string{
	"just a moment",
	"attention required",
	"access denied",
	"are you a robot",
	"security check",
	"verify you are human",
	"captcha",
}

var blockBodyMarkers = []string{
	"cf-browser-verification",
	"cf-challenge-running",
	`id="challenge-form"`,
	"px-captcha",
	"captcha-delivery.com",
	"_incapsula_resource",
	"please enable js and disable any ad blocker",
}

// IsBlocked reports whether html looks like a bot challenge instead of real content.
func IsBlocked(html string, extra []string) bool {
	lower := strings.ToLower(html)
	for _, markers := range [][]string{blockBodyMarkers, extra} {
		for _, marker := range markers {
			if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
				return true
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	for _, marker := range blockTitleMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

type fallback struct {
	primary   Fetcher
	secondary Fetcher
	log       *zap.Logger
}

// WithFallback fetches t.FallbackURL with secondary when primary reports a block page.
func WithFallback(primary, secondary Fetcher, log *zap.Logger) Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &fallback{primary: primary, secondary: secondary, log: log}
}

func (f *fallback) Fetch(ctx context.Context, t Target) (*Page, error) {
	page, err := f.primary.Fetch(ctx, t)
	if err == nil || t.FallbackURL == "" || !errors.Is(err, models.ErrBlocked) {
		return page, err
	}

	f.log.Info("primary fetch blocked, trying fallback URL",
		zap.String("url", t.URL),
		zap.String("fallback", t.FallbackURL),
	)
	alt := t
	alt.URL = t.FallbackURL
	alt.FallbackURL = ""

	page, ferr := f.secondary.Fetch(ctx, alt)
	if ferr != nil {
		return nil, fmt.Errorf("%w; fallback: %w", err, ferr)
	}
	return page, nil
}
