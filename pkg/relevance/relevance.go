// Package relevance scores how well a listing title matches a search query and
// flags listings that are accessories rather than the product searched for.
package relevance

import (
	"strings"
	"unicode"
)

// brandContext are tokens that make a bare number in the query meaningful,
// so "15" only matches titles that also name a phone or console line.
var brandContext = []string{
	"iphone", "ipad", "macbook", "apple",
	"samsung", "galaxy",
	"pixel", "google",
	"tecno", "infinix", "itel",
	"xiaomi", "redmi", "poco",
	"oppo", "vivo", "realme", "huawei", "honor", "nokia", "motorola", "oneplus",
	"playstation", "ps", "xbox",
	"hp", "dell", "lenovo", "asus", "acer", "thinkpad",
	"lg", "sony", "hisense", "tcl", "nasco", "bruhm",
}

var accessoryKeywords = []string{
	"case", "cover", "charger", "cable", "screen protector", "protector",
	"tempered glass", "stand", "holder", "adapter", "pouch", "sleeve",
	"skin", "strap", "mount", "car kit", "power bank", "powerbank",
	"lens protector", "stylus", "dock",
}

// Terms splits a query into lowercase whitespace-delimited terms.
func Terms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Score is the fraction of terms found inside some title token, in [0,1].
func Score(title string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	tokens := strings.Fields(strings.ToLower(title))
	hasBrand := hasBrandContext(tokens)

	matched := 0
	for _, term := range terms {
		if isNumeric(term) && !hasBrand {
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(tok, term) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(terms))
}

// IsAccessory reports whether the title names an accessory such as a case or cable.
func IsAccessory(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range accessoryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// hasBrandContext matches brands against whole title words. A word may carry a model
// number straight after the brand, as in "iphone15" or "ps5".
func hasBrandContext(tokens []string) bool {
	for _, tok := range tokens {
		for _, word := range strings.FieldsFunc(tok, isSeparator) {
			for _, brand := range brandContext {
				if word == brand || modelSuffixed(word, brand) {
					return true
				}
			}
		}
	}
	return false
}

func modelSuffixed(word, brand string) bool {
	rest, ok := strings.CutPrefix(word, brand)
	if !ok || rest == "" {
		return false
	}
	r := []rune(rest)[0]
	return unicode.IsDigit(r)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
