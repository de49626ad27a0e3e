// Package scrapers runs one search against one retailer. Retailers are described by
// declarative profiles in the subpackages and all share the same Scraper.
package scrapers

import (
	"canibuy/pkg/extract"
	"canibuy/pkg/fetch"
	"net/url"
	"strings"
	"time"
)

type SortOrder string

const (
	SortByPrice     SortOrder = "price"
	SortByRelevance SortOrder = "relevance"
)

const queryPlaceholder = "{query}"

// Profile describes one retailer.
type Profile struct {
	// Key is the lowercase identifier used in requests and config, e.g. "jumia".
	Key  string
	Name string
	// BaseURL resolves relative product links.
	BaseURL string
	// SearchURL contains {query}, replaced by the escaped search text.
	SearchURL   string
	FallbackURL string
	Strategy    fetch.Strategy
	Rule        extract.Rule
	Currency    string
	Sort        SortOrder
	// Timeout overrides the aggregator's per-source default when set.
	Timeout      time.Duration
	BlockMarkers []string
	// Priority orders sources when results are merged. Lower goes first.
	Priority int
}

func (p Profile) SearchURLFor(query string) string {
	return expand(p.SearchURL, query)
}

func (p Profile) FallbackURLFor(query string) string {
	if p.FallbackURL == "" {
		return ""
	}
	return expand(p.FallbackURL, query)
}

// Matches reports whether name selects this profile by key or display name.
func (p Profile) Matches(name string) bool {
	name = strings.TrimSpace(name)
	return strings.EqualFold(name, p.Key) || strings.EqualFold(name, p.Name)
}

func (p Profile) target(query string) fetch.Target {
	return fetch.Target{
		URL:           p.SearchURLFor(query),
		FallbackURL:   p.FallbackURLFor(query),
		ReadySelector: p.Rule.Item,
		EmptySelector: p.Rule.NoResults,
		BlockMarkers:  p.BlockMarkers,
	}
}

func expand(template, query string) string {
	return strings.ReplaceAll(template, queryPlaceholder, url.QueryEscape(strings.TrimSpace(query)))
}
