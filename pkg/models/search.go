package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyQuery    = errors.New("query is required")
	ErrInvalidBudget = errors.New("invalid budget")
)

type SearchRequest struct {
	Query     string   `json:"query"`
	MinBudget *float64 `json:"minBudget,omitempty"`
	MaxBudget *float64 `json:"maxBudget,omitempty"`
	Stores    []string `json:"stores,omitempty"`
}

func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if r.MinBudget != nil && *r.MinBudget < 0 {
		return fmt.Errorf("%w: minBudget must not be negative", ErrInvalidBudget)
	}
	if r.MaxBudget != nil && *r.MaxBudget < 0 {
		return fmt.Errorf("%w: maxBudget must not be negative", ErrInvalidBudget)
	}
	if r.MinBudget != nil && r.MaxBudget != nil && *r.MinBudget > *r.MaxBudget {
		return fmt.Errorf("%w: minBudget %.2f exceeds maxBudget %.2f", ErrInvalidBudget, *r.MinBudget, *r.MaxBudget)
	}
	return nil
}

type ScrapingResult struct {
	Success  bool      `json:"success"`
	Products []Product `json:"products"`
	Error    *string   `json:"error"`
}

// Success builds a successful result. Non-empty errs are joined with "; ".
func Success(products []Product, errs ...string) ScrapingResult {
	if products == nil {
		products = []Product{}
	}
	return ScrapingResult{Success: true, Products: products, Error: joinErrors(errs)}
}

func Failure(msg string) ScrapingResult {
	return ScrapingResult{Success: false, Products: []Product{}, Error: &msg}
}

// ErrorText returns the error message or an empty string.
func (r ScrapingResult) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

func (r ScrapingResult) Clone() ScrapingResult {
	c := ScrapingResult{Success: r.Success, Products: make([]Product, len(r.Products))}
	for i, p := range r.Products {
		c.Products[i] = p.Clone()
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return c
}

func joinErrors(errs []string) *string {
	var parts []string
	for _, e := range errs {
		if e = strings.TrimSpace(e); e != "" {
			parts = append(parts, e)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, "; ")
	return &joined
}

// JoinErrors joins non-empty messages with "; ", returning nil when there are none.
func JoinErrors(errs ...string) *string {
	return joinErrors(errs)
}
