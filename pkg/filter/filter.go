package filter

import (
	"canibuy/pkg/models"
	"canibuy/pkg/relevance"
)

// Budget keeps products priced within [min, max]. Nil bounds are open. Order is preserved.
func Budget(products []models.Product, min, max *float64) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if min != nil && p.Price < *min {
			continue
		}
		if max != nil && p.Price > *max {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Policy is the relevance pre-filter every source applies before returning.
type Policy struct {
	MinRelevance       float64
	ExcludeAccessories bool
}

// Apply drops products under the relevance threshold and, when enabled, accessories.
// Signals already attached to a product are used as is, missing ones are computed from terms.
func (p Policy) Apply(products []models.Product, terms []string) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, prod := range products {
		score := relevance.Score(prod.Title, terms)
		if prod.Metadata.RelevancyScore != nil {
			score = *prod.Metadata.RelevancyScore
		}
		if score < p.MinRelevance {
			continue
		}

		accessory := relevance.IsAccessory(prod.Title)
		if prod.Metadata.IsAccessory != nil {
			accessory = *prod.Metadata.IsAccessory
		}
		if p.ExcludeAccessories && accessory {
			continue
		}
		out = append(out, prod)
	}
	return out
}
