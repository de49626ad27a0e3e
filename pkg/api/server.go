// Package api exposes product search over HTTP.
package api

import (
	"canibuy/pkg/aggregator"
	"canibuy/pkg/cache"
	"canibuy/pkg/models"
	"context"
	"fmt"
	"net/http"
	"time"

	scalargo "github.com/bdpiprava/scalar-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Searcher runs product searches. *aggregator.Aggregator implements it.
type Searcher interface {
	ScrapeAll(ctx context.Context, req models.SearchRequest) models.ScrapingResult
	Stream(ctx context.Context, req models.SearchRequest, emit func(aggregator.Event))
}

type StoreInfo struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
	BaseURL  string `json:"baseUrl"`
}

type Options struct {
	AllowedOrigins []string
	// SpecDir holds api.yaml for the docs page.
	SpecDir         string
	DefaultCurrency string
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
	// RequestTimeout bounds every request, streams included.
	RequestTimeout time.Duration
}

type Server struct {
	search Searcher
	cache  *cache.Cache
	stores []StoreInfo
	opts   Options
	log    *zap.Logger
}

// NewServer builds the HTTP API. c may be nil when caching is disabled.
func NewServer(search Searcher, c *cache.Cache, stores []StoreInfo, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SpecDir == "" {
		opts.SpecDir = "./"
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = models.DefaultCurrency
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{search: search, cache: c, stores: stores, opts: opts, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, fmt.Sprintf("No route for %s %s", r.Method, r.URL.Path), r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteMethodNotAllowed(w, fmt.Sprintf("%s is not supported here", r.Method), r.URL.Path)
	})

	r.Get("/", s.handleDocs)
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stores", s.handleStores)
		r.Get("/search-products", s.handleSearchProducts)
		r.Post("/search", s.handleSearch)
		r.Post("/search-stream", s.handleSearchStream)
		r.Delete("/cache", s.handleClearCache)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir(s.opts.SpecDir),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("Can I Buy? API"),
		),
	)
	if err != nil {
		WriteInternalServerError(w, err, r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backend := "disabled"
	if s.cache != nil {
		backend = s.cache.Backend()
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "ok",
		"cache":  backend,
		"stores": len(s.stores),
	})
}

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	stores := s.stores
	if stores == nil {
		stores = []StoreInfo{}
	}
	s.writeJSON(w, r, http.StatusOK, stores)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		WriteNotFound(w, "Caching is disabled", r.URL.Path)
		return
	}
	if err := s.cache.Clear(r.Context()); err != nil {
		s.log.Error("failed to clear cache", zap.Error(err))
		WriteInternalServerError(w, fmt.Errorf("failed to clear cache"), r.URL.Path)
		return
	}
	s.log.Info("cache cleared", zap.String("backend", s.cache.Backend()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := WriteJSON(w, status, v); err != nil {
		s.log.Warn("failed to encode response", zap.String("path", r.URL.Path), zap.Error(err))
	}
}
