package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNoPrice      = errors.New("no price in text")
	ErrInvalidPrice = errors.New("price must be positive")
)

var (
	// digits with optional comma or space thousand groups and an optional fraction
	pricePattern  = regexp.MustCompile(`\d+(?:[,\s]\d{3})*(?:\.\d+)?`)
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	reviewPattern = regexp.MustCompile(`\d[\d,]*`)
)

// CleanPrice parses the first price in text, ignoring currency symbols and thousand
// separators: "GH₵ 1,250.50" is 1250.50 and "₵899" is 899.
func CleanPrice(text string) (float64, error) {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	token := pricePattern.FindString(text)
	if token == "" {
		return 0, fmt.Errorf("%w: %q", ErrNoPrice, text)
	}
	token = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, token)

	d, err := decimal.NewFromString(token)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", token, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, text)
	}
	return d.InexactFloat64(), nil
}
