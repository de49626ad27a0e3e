package aggregator

import (
	"canibuy/pkg/models"
	"cmp"
	"math"
	"slices"
	"strings"
)

type DedupeOptions struct {
	// PrefixLength is how many leading characters of a kept title must appear in a later title.
	PrefixLength int
	// PriceTolerance is the absolute price difference under which two listings can match.
	PriceTolerance float64
}

func DefaultDedupeOptions() DedupeOptions {
	return DedupeOptions{PrefixLength: 20, PriceTolerance: 100}
}

// Dedupe drops a product when an earlier kept product's lowercase title prefix is contained
// in its lowercase title and their prices differ by less than the tolerance. It is approximate
// and idempotent. The input is not modified.
func Dedupe(products []models.Product, opts DedupeOptions) []models.Product {
	if opts.PrefixLength <= 0 {
		opts.PrefixLength = DefaultDedupeOptions().PrefixLength
	}

	type key struct {
		prefix string
		price  float64
	}
	kept := make([]models.Product, 0, len(products))
	keys := make([]key, 0, len(products))

	for _, p := range products {
		title := strings.ToLower(strings.TrimSpace(p.Title))
		duplicate := slices.ContainsFunc(keys, func(k key) bool {
			return strings.Contains(title, k.prefix) && math.Abs(k.price-p.Price) < opts.PriceTolerance
		})
		if duplicate {
			continue
		}
		kept = append(kept, p)
		keys = append(keys, key{prefix: prefix(title, opts.PrefixLength), price: p.Price})
	}
	return kept
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type SortOptions struct {
	// RelevanceGap is the score difference above which relevance decides the order.
	RelevanceGap float64
	// DefaultRelevance stands in for a missing score.
	DefaultRelevance float64
}

func DefaultSortOptions() SortOptions {
	return SortOptions{RelevanceGap: 0.1, DefaultRelevance: 0.5}
}

// Sort orders products by relevance, highest first, when their scores are further apart
// than the gap and by price ascending otherwise. Equal products keep their order.
func Sort(products []models.Product, opts SortOptions) {
	slices.SortStableFunc(products, func(a, b models.Product) int {
		ra, rb := a.Relevance(opts.DefaultRelevance), b.Relevance(opts.DefaultRelevance)
		if math.Abs(ra-rb) > opts.RelevanceGap {
			return cmp.Compare(rb, ra)
		}
		return cmp.Compare(a.Price, b.Price)
	})
}
