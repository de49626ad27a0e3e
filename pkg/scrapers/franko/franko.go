package franko

import (
	"canibuy/pkg/extract"
	"canibuy/pkg/fetch"
	"canibuy/pkg/scrapers"
)

const (
	Source  = "Franko Trading"
	BaseURL = "https://www.frankotrading.com"
)

func Profile() scrapers.Profile {
	return scrapers.Profile{
		Key:       "franko",
		Name:      Source,
		BaseURL:   BaseURL,
		SearchURL: BaseURL + "/search?q={query}",
		Strategy:  fetch.StrategyStatic,
		Rule: extract.Rule{
			Mode:          extract.ModeCSS,
			Item:          "div.product-card, div.product-item",
			Title:         ".product-title, .product-name",
			Price:         ".product-price, .price",
			Link:          "a",
			Image:         "img",
			OutOfStock:    ".out-of-stock",
			NoResultsText: []string{"No products found"},
		},
		Sort:     scrapers.SortByPrice,
		Priority: 50,
	}
}
