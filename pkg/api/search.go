package api

import (
	"canibuy/pkg/aggregator"
	"canibuy/pkg/models"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// SearchBody is the body of POST /api/search. Budget is the highest acceptable price.
type SearchBody struct {
	Query    string   `json:"query"`
	Budget   *float64 `json:"budget,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

// SearchResponse echoes the requested currency. Prices stay in each store's currency.
type SearchResponse struct {
	models.ScrapingResult
	Currency string `json:"currency"`
}

func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.SearchRequest{Query: strings.TrimSpace(q.Get("q"))}

	var err error
	if req.MinBudget, err = parseBudget(q.Get("min"), "min"); err != nil {
		WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}
	if req.MaxBudget, err = parseBudget(q.Get("max"), "max"); err != nil {
		WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}
	for _, store := range strings.Split(q.Get("stores"), ",") {
		if store = strings.TrimSpace(store); store != "" {
			req.Stores = append(req.Stores, store)
		}
	}

	if err := req.Validate(); err != nil {
		WriteBadRequest(w, validationDetail(err, "q"), r.URL.Path)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.search.ScrapeAll(r.Context(), req))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body SearchBody
	if err := decodeBody(r, &body); err != nil {
		WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}

	req := models.SearchRequest{Query: strings.TrimSpace(body.Query), MaxBudget: body.Budget}
	if err := req.Validate(); err != nil {
		WriteBadRequest(w, validationDetail(err, "query"), r.URL.Path)
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(body.Currency))
	if currency == "" {
		currency = s.opts.DefaultCurrency
	}
	s.writeJSON(w, r, http.StatusOK, SearchResponse{
		ScrapingResult: s.search.ScrapeAll(r.Context(), req),
		Currency:       currency,
	})
}

func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := decodeBody(r, &req); err != nil {
		WriteBadRequest(w, err.Error(), r.URL.Path)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := req.Validate(); err != nil {
		WriteBadRequest(w, validationDetail(err, "query"), r.URL.Path)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	broken := false
	s.search.Stream(r.Context(), req, func(e aggregator.Event) {
		if broken {
			return
		}
		if err := writeEvent(w, e); err != nil {
			broken = true
			s.log.Debug("stream client went away", zap.Error(err))
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			broken = true
		}
	})
}

func writeEvent(w io.Writer, e aggregator.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("Request body is required")
		}
		return fmt.Errorf("Invalid JSON body: %v", err)
	}
	return nil
}

func parseBudget(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("Invalid %s: %q is not a number", name, raw)
	}
	return &v, nil
}

func validationDetail(err error, queryParam string) string {
	if errors.Is(err, models.ErrEmptyQuery) {
		return fmt.Sprintf("Missing search query. Provide %q.", queryParam)
	}
	return err.Error()
}
