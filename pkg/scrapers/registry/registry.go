// Package registry lists the supported retailers and builds scrapers for them.
package registry

import (
	"canibuy/pkg/fetch"
	"canibuy/pkg/scrapers"
	"canibuy/pkg/scrapers/compughana"
	"canibuy/pkg/scrapers/electroland"
	"canibuy/pkg/scrapers/franko"
	"canibuy/pkg/scrapers/jiji"
	"canibuy/pkg/scrapers/jumia"
	"canibuy/pkg/scrapers/melcom"
	"canibuy/pkg/scrapers/telefonika"
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// All returns every known profile ordered by priority.
func All() []scrapers.Profile {
	profiles := []scrapers.Profile{
		jumia.Profile(),
		jiji.Profile(),
		melcom.Profile(),
		compughana.Profile(),
		franko.Profile(),
		telefonika.Profile(),
		electroland.Profile(),
	}
	slices.SortStableFunc(profiles, func(a, b scrapers.Profile) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return profiles
}

// Enabled filters All by key or name. An empty list enables everything.
func Enabled(names []string) ([]scrapers.Profile, error) {
	all := All()
	if len(names) == 0 {
		return all, nil
	}

	var (
		out     []scrapers.Profile
		unknown []string
	)
	for _, name := range names {
		if !slices.ContainsFunc(all, func(p scrapers.Profile) bool { return p.Matches(name) }) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown stores: %s", strings.Join(unknown, ", "))
	}
	for _, p := range all {
		if slices.ContainsFunc(names, p.Matches) {
			out = append(out, p)
		}
	}
	return out, nil
}

type Config struct {
	Static  fetch.Fetcher
	Browser fetch.Fetcher
	// SourceTimeout and BrowserSourceTimeout apply to profiles without their own timeout.
	SourceTimeout        time.Duration
	BrowserSourceTimeout time.Duration
	Scraper              scrapers.Options
	Logger               *zap.Logger
}

// Build creates one scraper per profile. Browser profiles fall back to a static fetch of
// their fallback URL when the browser is blocked.
func Build(profiles []scrapers.Profile, c Config) []*scrapers.Scraper {
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if c.Scraper.Logger == nil {
		c.Scraper.Logger = log
	}

	out := make([]*scrapers.Scraper, 0, len(profiles))
	for _, p := range profiles {
		var f fetch.Fetcher = c.Static
		timeout := c.SourceTimeout
		if p.Strategy == fetch.StrategyBrowser {
			f = fetch.WithFallback(c.Browser, c.Static, log)
			timeout = c.BrowserSourceTimeout
		}
		if p.Timeout == 0 {
			p.Timeout = timeout
		}
		out = append(out, scrapers.NewScraper(p, f, c.Scraper))
		log.Debug("registered store",
			zap.String("store", p.Key),
			zap.String("strategy", string(p.Strategy)),
			zap.Duration("timeout", p.Timeout),
		)
	}
	return out
}
