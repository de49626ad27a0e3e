package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ScrapesTotal     *prometheus.CounterVec
	ScrapeDuration   *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	BrowserSessions  prometheus.Gauge
	ProductsReturned prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScrapesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canibuy_scrapes_total",
			Help: "The total number of source scrapes by outcome",
		}, []string{"store", "outcome"}), // success, empty, failed, timeout
		ScrapeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canibuy_scrape_duration_seconds",
			Help:    "Time spent scraping a single source",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"store"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canibuy_cache_lookups_total",
			Help: "Result cache lookups by result",
		}, []string{"result"}),
		BrowserSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "canibuy_browser_sessions_active",
			Help: "Number of open headless browser sessions",
		}),
		ProductsReturned: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "canibuy_search_products_returned",
			Help:    "Products in each merged search result",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		}),
	}
}

func (m *Metrics) ObserveScrape(store, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScrapesTotal.WithLabelValues(store, outcome).Inc()
	m.ScrapeDuration.WithLabelValues(store).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) BrowserSessionOpened() {
	if m == nil {
		return
	}
	m.BrowserSessions.Inc()
}

func (m *Metrics) BrowserSessionClosed() {
	if m == nil {
		return
	}
	m.BrowserSessions.Dec()
}

func (m *Metrics) SearchCompleted(products int) {
	if m == nil {
		return
	}
	m.ProductsReturned.Observe(float64(products))
}
