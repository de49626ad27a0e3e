// Package extract turns a fetched search results page into product records.
//
// Extraction works on an HTML string, so it is the same whether the page came from a
// static request or a browser snapshot, and it can be tested with fixture HTML.
package extract

import (
	"canibuy/pkg/models"
	"canibuy/pkg/relevance"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Mode int

const (
	// ModeCSS reads repeated item nodes with CSS selectors.
	ModeCSS Mode = iota
	// ModeJSONLD reads schema.org Product data first and falls back to the CSS selectors.
	ModeJSONLD
)

// Rule describes where product fields live on one source's results page.
type Rule struct {
	Mode Mode

	Item  string
	Title string
	Price string
	// PriceAttr reads the price from an attribute of the Price node instead of its text.
	PriceAttr string
	Link      string
	Image     string
	// ID names an attribute on the item node holding the source's own identifier.
	ID         string
	Rating     string
	Reviews    string
	OutOfStock string

	NoResults     string
	NoResultsText []string
	TitleSuffixes []string
}

type Page struct {
	HTML     string
	URL      string
	Store    string
	Currency string
}

type Result struct {
	Products  []models.Product
	NoResults bool
	Items     int
	Skipped   int
}

var defaultSuffixes = []string{"- Sponsored", "| Sponsored", "(Sponsored)", "Sponsored"}

// Extract applies rule to page. Malformed items are logged and skipped.
func Extract(page Page, rule Rule, terms []string, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: page url %q: %v", models.ErrExtraction, page.URL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return Result{}, fmt.Errorf("%w: parse html: %v", models.ErrExtraction, err)
	}
	if page.Currency == "" {
		page.Currency = models.DefaultCurrency
	}

	x := &extractor{page: page, rule: rule, base: base, terms: terms, log: log}
	var res Result

	if rule.Mode == ModeJSONLD {
		res = x.fromJSONLD(doc)
	}
	if len(res.Products) == 0 && rule.Item != "" {
		res = x.fromSelectors(doc)
	}
	res.NoResults = hasNoResultsMarker(doc, rule)

	if res.Skipped > 0 {
		log.Info("skipped malformed items",
			zap.String("store", page.Store),
			zap.Int("skipped", res.Skipped),
			zap.Int("items", res.Items),
		)
	}
	return res, nil
}

type extractor struct {
	page  Page
	rule  Rule
	base  *url.URL
	terms []string
	log   *zap.Logger
}

func (x *extractor) fromSelectors(doc *goquery.Document) Result {
	var res Result
	doc.Find(x.rule.Item).Each(func(i int, s *goquery.Selection) {
		res.Items++
		p, err := x.item(i, s)
		if err != nil {
			res.Skipped++
			x.log.Debug("item skipped", zap.String("store", x.page.Store), zap.Error(err))
			return
		}
		res.Products = append(res.Products, p)
	})
	return res
}

func (x *extractor) item(i int, s *goquery.Selection) (p models.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: item %d: panic: %v", models.ErrExtraction, i, r)
		}
	}()

	title := x.title(s)
	if title == "" {
		return p, fmt.Errorf("%w: item %d: missing title", models.ErrExtraction, i)
	}

	priceNode := pick(s, x.rule.Price)
	rawPrice := strings.TrimSpace(priceNode.Text())
	if x.rule.PriceAttr != "" {
		rawPrice = strings.TrimSpace(priceNode.AttrOr(x.rule.PriceAttr, rawPrice))
	}
	price, err := CleanPrice(rawPrice)
	if err != nil {
		return p, fmt.Errorf("%w: item %d (%s): %v", models.ErrExtraction, i, title, err)
	}

	link := x.link(s)
	if link == "" {
		return p, fmt.Errorf("%w: item %d (%s): missing link", models.ErrExtraction, i, title)
	}

	id := ""
	if x.rule.ID != "" {
		id = strings.TrimSpace(s.AttrOr(x.rule.ID, ""))
	}

	available := true
	if x.rule.OutOfStock != "" && (s.Is(x.rule.OutOfStock) || s.Find(x.rule.OutOfStock).Length() > 0) {
		available = false
	}

	p = x.newProduct(id, title, price, link, x.image(s))
	p.Metadata.RawPrice = rawPrice
	p.Availability = available
	if x.rule.Rating != "" {
		p.Rating = parseRating(s.Find(x.rule.Rating).First().Text())
	}
	if x.rule.Reviews != "" {
		p.Reviews = parseReviews(s.Find(x.rule.Reviews).First().Text())
	}
	return p, nil
}

func (x *extractor) newProduct(id, title string, price float64, link, image string) models.Product {
	if id == "" {
		id = uuid.NewString()
	}
	p := models.Product{
		ID:           id,
		Title:        title,
		Price:        price,
		Currency:     x.page.Currency,
		ProductURL:   link,
		ImageURL:     image,
		Store:        x.page.Store,
		Availability: true,
	}
	if len(x.terms) > 0 {
		p.Metadata.RelevancyScore = models.Float(relevance.Score(title, x.terms))
	}
	p.Metadata.IsAccessory = models.Bool(relevance.IsAccessory(title))
	return p
}

func (x *extractor) title(s *goquery.Selection) string {
	node := pick(s, x.rule.Title)
	title := collapse(node.Text())
	if title == "" {
		title = collapse(node.AttrOr("title", ""))
	}
	if title == "" {
		title = collapse(pick(s, x.rule.Link).AttrOr("title", ""))
	}
	if title == "" {
		title = collapse(s.Find("img").First().AttrOr("alt", ""))
	}
	return x.stripSuffixes(title)
}

func (x *extractor) stripSuffixes(title string) string {
	suffixes := append(append([]string{}, x.rule.TitleSuffixes...), defaultSuffixes...)
	for changed := true; changed && title != ""; {
		changed = false
		for _, suffix := range suffixes {
			cut := len(title) - len(suffix)
			if cut >= 0 && strings.EqualFold(title[cut:], suffix) && wordBoundary(title[:cut], suffix) {
				title = strings.TrimSpace(title[:cut])
				changed = true
			}
		}
	}
	return title
}

// wordBoundary reports whether suffix starts a new word after head, so "Sponsored"
// is not cut from "Unsponsored".
func wordBoundary(head, suffix string) bool {
	first, _ := utf8.DecodeRuneInString(suffix)
	if !isWordRune(first) || head == "" {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(head)
	return !isWordRune(last)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (x *extractor) link(s *goquery.Selection) string {
	href := ""
	if x.rule.Link != "" {
		href = s.Find(x.rule.Link).First().AttrOr("href", "")
		if href == "" && s.Is(x.rule.Link) {
			href = s.AttrOr("href", "")
		}
	}
	if href == "" && goquery.NodeName(s) == "a" {
		href = s.AttrOr("href", "")
	}
	if href == "" {
		href = s.Find("a[href]").First().AttrOr("href", "")
	}
	return resolve(x.base, href)
}

var lazyAttrs = []string{"data-src", "data-original", "data-lazy-src", "data-lazy"}

func (x *extractor) image(s *goquery.Selection) string {
	img := s.Find("img").First()
	if x.rule.Image != "" {
		img = s.Find(x.rule.Image).First()
	}
	if img.Length() == 0 {
		return ""
	}

	if src := strings.TrimSpace(img.AttrOr("src", "")); usableImage(src) {
		return resolve(x.base, src)
	}
	for _, attr := range lazyAttrs {
		if src := strings.TrimSpace(img.AttrOr(attr, "")); usableImage(src) {
			return resolve(x.base, src)
		}
	}
	for _, attr := range []string{"srcset", "data-srcset"} {
		if src := firstSrcset(img.AttrOr(attr, "")); src != "" {
			return resolve(x.base, src)
		}
	}
	return ""
}

func firstSrcset(srcset string) string {
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 && usableImage(fields[0]) {
			return fields[0]
		}
	}
	return ""
}

func usableImage(src string) bool {
	if src == "" || strings.HasPrefix(src, "data:") {
		return false
	}
	lower := strings.ToLower(src)
	for _, marker := range []string{"placeholder", "blank.gif", "spacer.gif", "loader.gif", "loading.gif", "1x1"} {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func hasNoResultsMarker(doc *goquery.Document, rule Rule) bool {
	if rule.NoResults != "" && doc.Find(rule.NoResults).Length() > 0 {
		return true
	}
	if len(rule.NoResultsText) == 0 {
		return false
	}
	text := strings.ToLower(doc.Find("body").Text())
	for _, marker := range rule.NoResultsText {
		if strings.Contains(text, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// pick returns the first match of sel under s, or s itself when sel is empty.
func pick(s *goquery.Selection, sel string) *goquery.Selection {
	if sel == "" {
		return s
	}
	return s.Find(sel).First()
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "javascript:") || ref == "#" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseRating(text string) *float64 {
	m := numberPattern.FindString(text)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

func parseReviews(text string) *int {
	m := reviewPattern.FindString(text)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}
