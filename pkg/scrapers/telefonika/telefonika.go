// Package telefonika describes Telefonika, a WooCommerce shop. Its result pages embed
// schema.org Product data, which is read before the product grid.
package telefonika

import (
	"canibuy/pkg/extract"
	"canibuy/pkg/fetch"
	"canibuy/pkg/scrapers"
)

const (
	Source  = "Telefonika"
	BaseURL = "https://telefonika.com"
)

func Profile() scrapers.Profile {
	return scrapers.Profile{
		Key:       "telefonika",
		Name:      Source,
		BaseURL:   BaseURL,
		SearchURL: BaseURL + "/?s={query}&post_type=product",
		Strategy:  fetch.StrategyStatic,
		Rule: extract.Rule{
			Mode:          extract.ModeJSONLD,
			Item:          "li.product",
			Title:         ".woocommerce-loop-product__title",
			Price:         ".price ins .amount, .price .amount",
			Link:          "a.woocommerce-LoopProduct-link",
			Image:         "img",
			Rating:        ".star-rating",
			OutOfStock:    ".outofstock",
			NoResults:     ".woocommerce-no-products-found",
			NoResultsText: []string{"No products were found matching your selection"},
		},
		Sort:     scrapers.SortByPrice,
		Priority: 60,
	}
}
