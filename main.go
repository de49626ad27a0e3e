package main

import (
	"canibuy/pkg/aggregator"
	"canibuy/pkg/api"
	"canibuy/pkg/cache"
	"canibuy/pkg/config"
	"canibuy/pkg/fetch"
	"canibuy/pkg/filter"
	"canibuy/pkg/logger"
	"canibuy/pkg/metrics"
	"canibuy/pkg/proxy"
	"canibuy/pkg/retry"
	"canibuy/pkg/scrapers"
	"canibuy/pkg/scrapers/registry"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, err := newCacheStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	resultCache := cache.New(store, cfg.CacheTTL, cache.WithLogger(log), cache.WithMetrics(m))
	defer resultCache.Close()
	resultCache.StartCleanup(ctx, cfg.CacheCleanupInterval)
	log.Info("cache initialized", zap.String("backend", store.Name()), zap.Duration("ttl", cfg.CacheTTL))

	proxies, err := proxy.NewManager(cfg.ProxyService, cfg.ProxyAPIKey, cfg.ProxyURLs)
	if err != nil {
		return fmt.Errorf("initialize proxy: %w", err)
	}
	if proxies.Enabled() {
		log.Info("routing static fetches through proxies", zap.String("service", cfg.ProxyService), zap.Int("proxies", len(proxies.Proxies())))
	}

	profiles, err := registry.Enabled(cfg.EnabledStores)
	if err != nil {
		return err
	}
	built := registry.Build(profiles, registry.Config{
		Static: fetch.NewStatic(fetch.StaticOptions{Timeout: cfg.HTTPTimeout, Proxy: proxies}, log),
		Browser: fetch.NewBrowser(fetch.BrowserOptions{
			Headless:       cfg.BrowserHeadless,
			NoSandbox:      cfg.BrowserNoSandbox,
			ExecPath:       cfg.BrowserExecPath,
			NavTimeout:     cfg.BrowserNavTimeout,
			SettleDelay:    cfg.BrowserSettleDelay,
			BlockResources: cfg.BrowserBlockResources,
			MaxSessions:    int64(cfg.BrowserMaxSessions),
			DebugDir:       cfg.DebugDumpDir,
		}, log, m),
		SourceTimeout:        cfg.SourceTimeout,
		BrowserSourceTimeout: cfg.BrowserSourceTimeout,
		Scraper: scrapers.Options{
			Policy: filter.Policy{MinRelevance: cfg.MinRelevance, ExcludeAccessories: cfg.ExcludeAccessories},
			Retry: []retry.Option{
				retry.WithMaxAttempts(cfg.RetryMaxAttempts),
				retry.WithBaseDelay(cfg.RetryBaseDelay),
				retry.WithBackoffFactor(cfg.RetryBackoffFactor),
			},
			DefaultRelevance: cfg.DefaultRelevance,
			Logger:           log,
		},
		Logger: log,
	})

	sources := make([]aggregator.Source, len(built))
	stores := make([]api.StoreInfo, len(built))
	for i, s := range built {
		sources[i] = s
		p := s.Profile()
		stores[i] = api.StoreInfo{Key: p.Key, Name: p.Name, Strategy: string(p.Strategy), BaseURL: p.BaseURL}
	}

	agg := aggregator.New(sources, resultCache, aggregator.Options{
		DefaultTimeout: cfg.SourceTimeout,
		Dedupe: aggregator.DedupeOptions{
			PrefixLength:   cfg.DedupePrefixLength,
			PriceTolerance: cfg.DedupePriceTolerance,
		},
		Sort: aggregator.SortOptions{
			RelevanceGap:     cfg.SortRelevanceGap,
			DefaultRelevance: cfg.DefaultRelevance,
		},
	}, log, m)
	defer agg.Close()

	srv := api.NewServer(agg, resultCache, stores, api.Options{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultCurrency: cfg.DefaultCurrency,
		Gatherer:        reg,
	}, log)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if ip := GetOutboundIP(); ip != nil {
		log.Info("local network URL", zap.String("url", fmt.Sprintf("http://%s:%s", ip, cfg.ServerPort)))
	} else {
		log.Warn("could not determine local IP address")
	}
	log.Info("listening",
		zap.String("url", "http://localhost:"+cfg.ServerPort),
		zap.String("docs", "http://localhost:"+cfg.ServerPort+"/"),
		zap.Int("stores", len(sources)),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newCacheStore opens the backend selected by CACHE_BACKEND.
func newCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "sqlite":
		return cache.NewSQLite(cfg.CacheDBPath)
	case "redis":
		r := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			r.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return r, nil
	case "memory", "":
		return cache.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func GetOutboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		addrs, _ := net.InterfaceAddrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					return ipnet.IP
				}
			}
		}
		return nil
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP
}
