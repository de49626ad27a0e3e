package extract

import (
	"canibuy/pkg/models"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// fromJSONLD reads every schema.org Product found in ld+json blocks, including ones
// nested in ItemList or @graph containers.
func (x *extractor) fromJSONLD(doc *goquery.Document) Result {
	var nodes []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			x.log.Debug("failed to parse JSON-LD", zap.String("store", x.page.Store), zap.Error(err))
			return
		}
		nodes = collectProducts(data, nodes)
	})

	var res Result
	for i, node := range nodes {
		res.Items++
		p, err := x.jsonLDProduct(i, node)
		if err != nil {
			res.Skipped++
			x.log.Debug("item skipped", zap.String("store", x.page.Store), zap.Error(err))
			continue
		}
		res.Products = append(res.Products, p)
	}
	return res
}

func collectProducts(v any, out []map[string]any) []map[string]any {
	switch t := v.(type) {
	case []any:
		for _, child := range t {
			out = collectProducts(child, out)
		}
	case map[string]any:
		if hasType(t["@type"], "Product") {
			return append(out, t)
		}
		for _, key := range []string{"@graph", "itemListElement", "item", "mainEntity"} {
			if child, ok := t[key]; ok {
				out = collectProducts(child, out)
			}
		}
	}
	return out
}

func (x *extractor) jsonLDProduct(i int, node map[string]any) (p models.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: json-ld item %d: panic: %v", models.ErrExtraction, i, r)
		}
	}()

	title := x.stripSuffixes(collapse(str(node["name"])))
	if title == "" {
		return p, fmt.Errorf("%w: json-ld item %d: missing name", models.ErrExtraction, i)
	}

	offer := first(node["offers"])
	// Price can be a string or a number, AggregateOffer only has lowPrice.
	rawPrice := str(offer["price"])
	if rawPrice == "" {
		rawPrice = str(offer["lowPrice"])
	}
	price, err := CleanPrice(rawPrice)
	if err != nil {
		return p, fmt.Errorf("%w: json-ld item %d (%s): %v", models.ErrExtraction, i, title, err)
	}

	link := resolve(x.base, str(node["url"]))
	if link == "" {
		link = resolve(x.base, str(offer["url"]))
	}
	if link == "" {
		return p, fmt.Errorf("%w: json-ld item %d (%s): missing url", models.ErrExtraction, i, title)
	}

	image := ""
	switch img := node["image"].(type) {
	case string:
		image = img
	case []any:
		if len(img) > 0 {
			image = str(img[0])
			if m, ok := img[0].(map[string]any); ok {
				image = str(m["url"])
			}
		}
	case map[string]any:
		image = str(img["url"])
	}

	p = x.newProduct(str(node["sku"]), title, price, link, resolve(x.base, image))
	p.Metadata.RawPrice = rawPrice
	if currency := str(offer["priceCurrency"]); currency != "" {
		p.Currency = strings.ToUpper(currency)
	}
	if avail := strings.ToLower(str(offer["availability"])); strings.Contains(avail, "outofstock") || strings.Contains(avail, "soldout") {
		p.Availability = false
	}
	if rating := first(node["aggregateRating"]); rating != nil {
		p.Rating = parseRating(str(rating["ratingValue"]))
		p.Reviews = parseReviews(str(rating["reviewCount"]))
		if p.Reviews == nil {
			p.Reviews = parseReviews(str(rating["ratingCount"]))
		}
	}
	return p, nil
}

func hasType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// first returns v as an object, taking the first element when v is a list.
func first(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		if len(t) > 0 {
			m, _ := t[0].(map[string]any)
			return m
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}
