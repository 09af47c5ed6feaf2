// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/autospot-crawl/internal/auth"
	"github.com/law-makers/autospot-crawl/internal/cache"
	"github.com/law-makers/autospot-crawl/internal/config"
	"github.com/law-makers/autospot-crawl/internal/engine"
	"github.com/law-makers/autospot-crawl/internal/fetch"
	"github.com/law-makers/autospot-crawl/internal/ratelimit"
	"github.com/law-makers/autospot-crawl/internal/retry"
	"github.com/law-makers/autospot-crawl/internal/store"
	"github.com/law-makers/autospot-crawl/internal/useragent"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Cache       cache.Cache
	RateLimiter *ratelimit.HostLimiter
	Agents      *useragent.Pool
	Fetcher     *fetch.Fetcher
	Tokens      *auth.TokenProvider
	startTime   time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures the global logger from the config
//   - Creates the response cache unless disabled
//   - Creates the per-host rate limiter and the user agent pool
//   - Creates the resilient fetcher and the token provider on top of it
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := setupLogger(cfg, os.Stderr)

	var pageCache cache.Cache
	if !cfg.NoCache {
		pageCache = cache.NewMemoryCache(cfg.CacheMaxSizeBytes)
		logger.Debug().
			Int64("max_size_bytes", cfg.CacheMaxSizeBytes).
			Dur("ttl", cfg.CacheTTL).
			Msg("Response cache initialized")
	}

	limiter := ratelimit.NewHostLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	defaultHeaders := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		defaultHeaders[k] = v
	}
	var agents *useragent.Pool
	if cfg.UserAgent != "" {
		defaultHeaders["User-Agent"] = cfg.UserAgent
	} else {
		agents = useragent.NewPool(cfg.UserAgents, useragent.Strategy(cfg.UserAgentStrategy))
		logger.Debug().Int("agents", agents.Len()).Str("strategy", cfg.UserAgentStrategy).Msg("User agent rotation enabled")
	}

	fetcher := fetch.New(fetch.Options{
		Timeout:        cfg.HTTPTimeout,
		Proxy:          cfg.Proxy,
		Retry:          RetryConfig(cfg),
		Limiter:        limiter,
		Cache:          pageCache,
		CacheTTL:       cfg.CacheTTL,
		Agents:         agents,
		DefaultHeaders: defaultHeaders,
	})
	logger.Debug().
		Dur("timeout", cfg.HTTPTimeout).
		Str("proxy", cfg.Proxy).
		Msg("Fetcher initialized")

	tokens := auth.NewTokenProvider(fetcher, auth.Options{
		RootURL: cfg.RootURL,
		TTL:     cfg.TokenTTL,
	})

	a := &Application{
		Config:      cfg,
		Logger:      logger,
		Cache:       pageCache,
		RateLimiter: limiter,
		Agents:      agents,
		Fetcher:     fetcher,
		Tokens:      tokens,
		startTime:   time.Now(),
	}

	logger.Debug().Msg("Application initialized successfully")
	return a, nil
}

// setupLogger configures the global zerolog logger and returns it
func setupLogger(cfg *config.Config, out io.Writer) *zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = out
	if !cfg.JSONLog {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	logger := log.Logger
	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")
	return &logger
}

// RetryConfig builds the retry policy from cfg
func RetryConfig(cfg *config.Config) retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.RetryMaxAttempts
	rc.InitialBackoff = cfg.RetryInitialBackoff
	rc.MaxBackoff = cfg.RetryMaxBackoff
	if len(cfg.RetryStatusCodes) > 0 {
		rc.RetryableStatusCodes = append([]int(nil), cfg.RetryStatusCodes...)
	}
	return rc
}

// OpenStore opens the output collection
func (a *Application) OpenStore() (*store.JSONStore, error) {
	return store.Open(a.Config.Output, store.Options{SaveEach: a.Config.SaveEach})
}

// NewController builds a crawl controller writing to sink
func (a *Application) NewController(sink engine.Sink) *engine.Controller {
	cfg := a.Config

	var sources []engine.CategorySource
	for _, cat := range cfg.ParsedCategories() {
		sources = append(sources, engine.CategorySource{
			Category:    cat,
			URLTemplate: cfg.ListingURL(cat),
			SeedMaxPage: cfg.SeedMaxPage,
		})
	}

	return engine.NewController(a.Fetcher, a.Tokens, sink, engine.Config{
		Sources:            sources,
		DetailConcurrency:  cfg.Concurrency,
		ListingConcurrency: cfg.ListingConcurrency,
		MaxPages:           cfg.MaxPages,
		FullSizePhotos:     cfg.FullSizePhotos,
	})
}

// NewDetailProcessor builds a single-page processor
func (a *Application) NewDetailProcessor() *engine.DetailProcessor {
	return engine.NewDetailProcessor(a.Fetcher, a.Config.FullSizePhotos)
}

// Close gracefully shuts down the application and all its resources.
//
// It closes the cache and releases idle connections.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	if a.Cache != nil {
		if mc, ok := a.Cache.(*cache.MemoryCache); ok {
			stats := mc.Stats()
			a.Logger.Debug().
				Uint64("hits", stats.Hits).
				Uint64("misses", stats.Misses).
				Float64("hit_rate", stats.HitRate()).
				Msg("Cache statistics")
		}
		a.Cache.Close()
	}

	if a.Fetcher != nil {
		a.Fetcher.Close()
	}

	a.Logger.Debug().
		Dur("uptime", a.Uptime()).
		Int64("requests", a.Fetcher.Requests()).
		Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
