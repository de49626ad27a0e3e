// Package jiji describes Jiji Ghana, a classifieds marketplace. Its search page is rendered
// client-side and challenges plain HTTP clients, so it needs a browser.
package jiji

import (
	"canibuy/pkg/extract"
	"canibuy/pkg/fetch"
	"canibuy/pkg/scrapers"
	"time"
)

const (
	Source  = "Jiji"
	BaseURL = "https://jiji.com.gh"
)

func Profile() scrapers.Profile {
	return scrapers.Profile{
		Key:         "jiji",
		Name:        Source,
		BaseURL:     BaseURL,
		SearchURL:   BaseURL + "/search?query={query}",
		FallbackURL: "https://m.jiji.com.gh/search?query={query}",
		Strategy:    fetch.StrategyBrowser,
		Rule: extract.Rule{
			Mode:          extract.ModeCSS,
			Item:          "div.b-list-advert__gallery__item, div.masonry-item",
			Title:         ".b-advert-title-inner, .qa-advert-title",
			Price:         ".qa-advert-price, .b-list-advert__price",
			Link:          "a",
			Image:         "img",
			NoResults:     ".b-no-results, .qa-no-results",
			NoResultsText: []string{"No results found", "We couldn't find anything"},
		},
		Sort:         scrapers.SortByRelevance,
		Timeout:      45 * time.Second,
		BlockMarkers: []string{"jiji-shield", "checking your browser"},
		Priority:     20,
	}
}
