package jumia

import (
	"canibuy/pkg/extract"
	"canibuy/pkg/fetch"
	"canibuy/pkg/scrapers"
)

const (
	Source  = "Jumia"
	BaseURL = "https://www.jumia.com.gh"
)

func Profile() scrapers.Profile {
	return scrapers.Profile{
		Key:       "jumia",
		Name:      Source,
		BaseURL:   BaseURL,
		SearchURL: BaseURL + "/catalog/?q={query}",
		Strategy:  fetch.StrategyStatic,
		Rule: extract.Rule{
			Mode:          extract.ModeCSS,
			Item:          "article.prd",
			Title:         "h3.name",
			Price:         "div.prc",
			Link:          "a.core",
			Image:         "img.img",
			ID:            "data-sku",
			Rating:        "div.stars._s",
			Reviews:       "div.rev",
			OutOfStock:    ".-oos",
			NoResults:     "section.-nrs",
			NoResultsText: []string{"There are no results for"},
		},
		Sort:     scrapers.SortByPrice,
		Priority: 10,
	}
}
