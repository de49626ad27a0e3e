package api

import (
	"bufio"
	"canibuy/pkg/aggregator"
	"canibuy/pkg/cache"
	"canibuy/pkg/models"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubSearcher struct {
	mu     sync.Mutex
	last   models.SearchRequest
	result models.ScrapingResult
	events []aggregator.Event
}

func (s *stubSearcher) ScrapeAll(ctx context.Context, req models.SearchRequest) models.ScrapingResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = req
	return s.result
}

func (s *stubSearcher) Stream(ctx context.Context, req models.SearchRequest, emit func(aggregator.Event)) {
	s.mu.Lock()
	s.last = req
	s.mu.Unlock()
	for _, e := range s.events {
		emit(e)
	}
}

func (s *stubSearcher) lastRequest() models.SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func newTestServer(t *testing.T, search Searcher, c *cache.Cache) *httptest.Server {
	stores := []StoreInfo{{Key: "jumia", Name: "Jumia", Strategy: "static", BaseURL: "https://www.jumia.com.gh"}}
	srv := NewServer(search, c, stores, Options{Gatherer: prometheus.NewRegistry()}, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func phoneResult() models.ScrapingResult {
	return models.Success([]models.Product{{
		ID: "AP123MP", Title: "Apple iPhone 15 128GB", Price: 11999, Currency: "GHS",
		ProductURL: "https://www.jumia.com.gh/iphone.html", Store: "Jumia", Availability: true,
	}}, "Jiji: blocked by bot protection")
}

func TestProblemResponses(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
		expectedDetail string
	}{
		{
			name:           "Missing query",
			method:         http.MethodGet,
			path:           "/api/search-products",
			expectedStatus: http.StatusBadRequest,
			expectedDetail: `Missing search query. Provide "q".`,
		},
		{
			name:           "Budget not a number",
			method:         http.MethodGet,
			path:           "/api/search-products?q=tv&max=cheap",
			expectedStatus: http.StatusBadRequest,
			expectedDetail: `Invalid max: "cheap" is not a number`,
		},
		{
			name:           "Inverted budget",
			method:         http.MethodGet,
			path:           "/api/search-products?q=tv&min=2000&max=500",
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "invalid budget",
		},
		{
			name:           "Negative budget",
			method:         http.MethodPost,
			path:           "/api/search",
			body:           `{"query":"tv","budget":-5}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "maxBudget must not be negative",
		},
		{
			name:           "Malformed JSON",
			method:         http.MethodPost,
			path:           "/api/search",
			body:           `{"query":`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Invalid JSON body",
		},
		{
			name:           "Empty stream body",
			method:         http.MethodPost,
			path:           "/api/search-stream",
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Request body is required",
		},
		{
			name:           "Blank stream query",
			method:         http.MethodPost,
			path:           "/api/search-stream",
			body:           `{"query":"   "}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: `Missing search query. Provide "query".`,
		},
		{
			name:           "Unknown route",
			method:         http.MethodGet,
			path:           "/stores/spar/products/123",
			expectedStatus: http.StatusNotFound,
			expectedDetail: "No route for GET /stores/spar/products/123",
		},
		{
			name:           "Wrong method",
			method:         http.MethodGet,
			path:           "/api/search",
			expectedStatus: http.StatusMethodNotAllowed,
			expectedDetail: "GET is not supported here",
		},
		{
			name:           "Cache disabled",
			method:         http.MethodDelete,
			path:           "/api/cache",
			expectedStatus: http.StatusNotFound,
			expectedDetail: "Caching is disabled",
		},
	}

	ts := newTestServer(t, &stubSearcher{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

			var pd ProblemDetails
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&pd))
			assert.Equal(t, "about:blank", pd.Type)
			assert.Equal(t, tt.expectedStatus, pd.Status)
			assert.Contains(t, pd.Detail, tt.expectedDetail)
		})
	}
}

func TestSearchProducts(t *testing.T) {
	search := &stubSearcher{result: phoneResult()}
	ts := newTestServer(t, search, nil)

	resp, err := http.Get(ts.URL + "/api/search-products?q=iphone+15&min=500&max=20000&stores=jumia,%20jiji")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "Jiji: blocked by bot protection", got["error"])
	products := got["products"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, "https://www.jumia.com.gh/iphone.html", products[0].(map[string]any)["productUrl"])

	req := search.lastRequest()
	assert.Equal(t, "iphone 15", req.Query)
	assert.Equal(t, 500.0, *req.MinBudget)
	assert.Equal(t, 20000.0, *req.MaxBudget)
	assert.Equal(t, []string{"jumia", "jiji"}, req.Stores)
}

func TestSearch_BudgetIsUpperBound(t *testing.T) {
	search := &stubSearcher{result: phoneResult()}
	ts := newTestServer(t, search, nil)

	resp, err := http.Post(ts.URL+"/api/search", "application/json", strings.NewReader(`{"query":"iphone 15","budget":12000,"currency":"usd"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Success)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, 11999.0, got.Products[0].Price)

	req := search.lastRequest()
	assert.Nil(t, req.MinBudget)
	require.NotNil(t, req.MaxBudget)
	assert.Equal(t, 12000.0, *req.MaxBudget)
}

func TestSearchStream(t *testing.T) {
	errText := "Jiji: source timed out after 30s"
	search := &stubSearcher{events: []aggregator.Event{
		{Type: aggregator.EventStatus, Store: "Jumia", Status: aggregator.StatusStarted},
		{Type: aggregator.EventStatus, Store: "Jumia", Status: aggregator.StatusCompleted, Progress: 0.5, Total: 1},
		{Type: aggregator.EventProducts, Store: "Jumia", Progress: 0.5, Products: phoneResult().Products, Total: 1, Success: true},
		{Type: aggregator.EventComplete, Progress: 1, Total: 1, Success: true, Error: &errText},
	}}
	ts := newTestServer(t, search, nil)

	resp, err := http.Post(ts.URL+"/api/search-stream", "application/json",
		strings.NewReader(`{"query":"iphone","minBudget":100,"stores":["jumia","jiji"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var names []string
	var last aggregator.Event
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			require.NoError(t, json.Unmarshal([]byte(data), &last))
		}
	}
	require.NoError(t, sc.Err())

	assert.Equal(t, []string{"status", "status", "products", "complete"}, names)
	assert.Equal(t, 1, last.Total)
	assert.Equal(t, errText, *last.Error)
	assert.Equal(t, []string{"jumia", "jiji"}, search.lastRequest().Stores)
	assert.Equal(t, 100.0, *search.lastRequest().MinBudget)
}

func TestStoresAndHealth(t *testing.T) {
	c := cache.New(cache.NewMemory(), time.Minute)
	ts := newTestServer(t, &stubSearcher{}, c)

	resp, err := http.Get(ts.URL + "/api/stores")
	require.NoError(t, err)
	var stores []StoreInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stores))
	resp.Body.Close()
	require.Len(t, stores, 1)
	assert.Equal(t, "jumia", stores[0].Key)

	resp, err = http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "memory", health["cache"])
}

func TestClearCache(t *testing.T) {
	c := cache.New(cache.NewMemory(), time.Minute)
	req := models.SearchRequest{Query: "tv"}
	c.Set(context.Background(), req, phoneResult())
	ts := newTestServer(t, &stubSearcher{}, c)

	httpReq, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/cache", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok := c.Get(context.Background(), req)
	assert.False(t, ok)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{}, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
