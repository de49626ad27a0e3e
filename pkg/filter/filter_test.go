package filter

import (
	"canibuy/pkg/models"
	"canibuy/pkg/relevance"
	"testing"

	"github.com/stretchr/testify/assert"
)

func prices(products []models.Product) []float64 {
	out := make([]float64, 0, len(products))
	for _, p := range products {
		out = append(out, p.Price)
	}
	return out
}

func TestBudget(t *testing.T) {
	products := []models.Product{
		{Title: "a", Price: 450}, {Title: "b", Price: 500}, {Title: "c", Price: 1500},
		{Title: "d", Price: 2000}, {Title: "e", Price: 2500},
	}

	tests := []struct {
		name     string
		min, max *float64
		want     []float64
	}{
		{"inclusive bounds", models.Float(500), models.Float(2000), []float64{500, 1500, 2000}},
		{"min only", models.Float(1500), nil, []float64{1500, 2000, 2500}},
		{"max only", nil, models.Float(500), []float64{450, 500}},
		{"unbounded", nil, nil, []float64{450, 500, 1500, 2000, 2500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prices(Budget(products, tt.min, tt.max)))
		})
	}
}

func TestPolicy_Apply(t *testing.T) {
	terms := relevance.Terms("iphone 15 case")
	products := []models.Product{
		{Title: "iPhone 15 128GB", Price: 4500},
		{Title: "iPhone 15 Silicone Case", Price: 80},
		{Title: "Blender", Price: 300},
	}

	got := Policy{MinRelevance: 0.5, ExcludeAccessories: true}.Apply(products, terms)
	assert.Equal(t, []float64{4500}, prices(got))

	got = Policy{MinRelevance: 0.5}.Apply(products, terms)
	assert.Equal(t, []float64{4500, 80}, prices(got))

	got = Policy{}.Apply(products, terms)
	assert.Len(t, got, 3)
}

func TestPolicy_AttachedSignalsTakePrecedence(t *testing.T) {
	products := []models.Product{
		{Title: "Unrelated title", Price: 10, Metadata: models.Metadata{RelevancyScore: models.Float(0.9)}},
		{Title: "Phone Case", Price: 10, Metadata: models.Metadata{RelevancyScore: models.Float(1), IsAccessory: models.Bool(false)}},
	}

	got := Policy{MinRelevance: 0.5, ExcludeAccessories: true}.Apply(products, relevance.Terms("phone"))
	assert.Len(t, got, 2)
}
