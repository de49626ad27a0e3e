package compughana

import (
	"canibuy/pkg/extract"
	"canibuy/pkg/fetch"
	"canibuy/pkg/scrapers"
)

const (
	Source  = "CompuGhana"
	BaseURL = "https://compughana.com"
)

func Profile() scrapers.Profile {
	return scrapers.Profile{
		Key:       "compughana",
		Name:      Source,
		BaseURL:   BaseURL,
		SearchURL: BaseURL + "/catalogsearch/result/?q={query}",
		Strategy:  fetch.StrategyStatic,
		Rule: extract.Rule{
			Mode:          extract.ModeCSS,
			Item:          "li.product-item, div.product-item-info",
			Title:         ".product-item-name a",
			Price:         "span[data-price-type=finalPrice]",
			PriceAttr:     "data-price-amount",
			Link:          ".product-item-name a",
			Image:         "img.product-image-photo",
			Rating:        ".rating-result",
			Reviews:       ".reviews-actions a",
			OutOfStock:    ".stock.unavailable",
			NoResultsText: []string{"Your search returned no results"},
		},
		Sort:     scrapers.SortByPrice,
		Priority: 40,
	}
}
