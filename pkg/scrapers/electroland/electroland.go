package electroland

import (
	"canibuy/pkg/extract"
	"canibuy/pkg/fetch"
	"canibuy/pkg/scrapers"
	"time"
)

const (
	Source  = "Electroland"
	BaseURL = "https://electrolandgh.com"
)

// Profile needs a browser because product tiles are rendered by a storefront script.
func Profile() scrapers.Profile {
	return scrapers.Profile{
		Key:       "electroland",
		Name:      Source,
		BaseURL:   BaseURL,
		SearchURL: BaseURL + "/search?q={query}",
		Strategy:  fetch.StrategyBrowser,
		Rule: extract.Rule{
			Mode:          extract.ModeCSS,
			Item:          "div.product-item, div.product-card",
			Title:         ".product-item__title, .product-card__title",
			Price:         ".price--highlight, .price",
			Link:          "a",
			Image:         "img",
			OutOfStock:    ".product-item__inventory--out",
			NoResultsText: []string{"No results could be found"},
		},
		Sort:     scrapers.SortByPrice,
		Timeout:  40 * time.Second,
		Priority: 70,
	}
}
