package melcom

import (
	"canibuy/pkg/extract"
	"canibuy/pkg/fetch"
	"canibuy/pkg/scrapers"
)

const (
	Source  = "Melcom"
	BaseURL = "https://melcom.com"
)

// Profile is the Magento catalog search of Melcom's online shop.
func Profile() scrapers.Profile {
	return scrapers.Profile{
		Key:       "melcom",
		Name:      Source,
		BaseURL:   BaseURL,
		SearchURL: BaseURL + "/catalogsearch/result/?q={query}",
		Strategy:  fetch.StrategyStatic,
		Rule: extract.Rule{
			Mode:          extract.ModeCSS,
			Item:          "li.product-item",
			Title:         "a.product-item-link",
			Price:         "span[data-price-type=finalPrice]",
			PriceAttr:     "data-price-amount",
			Link:          "a.product-item-link",
			Image:         "img.product-image-photo",
			OutOfStock:    ".stock.unavailable",
			NoResultsText: []string{"Your search returned no results"},
		},
		Sort:     scrapers.SortByPrice,
		Priority: 30,
	}
}
