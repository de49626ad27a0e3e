package models

import (
	"maps"
	"strings"
)

const DefaultCurrency = "GHS"

type Product struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	ProductURL   string   `json:"productUrl"`
	ImageURL     string   `json:"imageUrl"`
	Store        string   `json:"store"`
	Rating       *float64 `json:"rating"`
	Reviews      *int     `json:"reviews"`
	Availability bool     `json:"availability"`
	Metadata     Metadata `json:"metadata"`
}

// Metadata holds scoring signals and source-specific extras.
// A nil signal means it was not computed yet.
type Metadata struct {
	RelevancyScore *float64          `json:"relevancyScore,omitempty"`
	IsAccessory    *bool             `json:"isAccessory,omitempty"`
	RawPrice       string            `json:"rawPrice,omitempty"`
	Extras         map[string]string `json:"extras,omitempty"`
}

// Relevance returns the attached relevancy score or def when none is set.
func (p Product) Relevance(def float64) float64 {
	if p.Metadata.RelevancyScore == nil {
		return def
	}
	return *p.Metadata.RelevancyScore
}

func (p Product) Accessory() bool {
	return p.Metadata.IsAccessory != nil && *p.Metadata.IsAccessory
}

// Valid reports whether the product satisfies the record invariants.
func (p Product) Valid() bool {
	return p.Price > 0 && strings.TrimSpace(p.Title) != "" && strings.TrimSpace(p.Store) != ""
}

func (p Product) Clone() Product {
	c := p
	if p.Rating != nil {
		r := *p.Rating
		c.Rating = &r
	}
	if p.Reviews != nil {
		n := *p.Reviews
		c.Reviews = &n
	}
	if p.Metadata.RelevancyScore != nil {
		s := *p.Metadata.RelevancyScore
		c.Metadata.RelevancyScore = &s
	}
	if p.Metadata.IsAccessory != nil {
		a := *p.Metadata.IsAccessory
		c.Metadata.IsAccessory = &a
	}
	if p.Metadata.Extras != nil {
		c.Metadata.Extras = maps.Clone(p.Metadata.Extras)
	}
	return c
}

func Float(v float64) *float64 { return &v }

func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }
