package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/spf13/cobra"

	"github.com/law-makers/autospot-crawl/internal/crawlerr"
	"github.com/law-makers/autospot-crawl/internal/utils/headers"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "AUTOSPOT_"

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// HTTP
	HTTPTimeout       time.Duration
	UserAgent         string
	UserAgents        []string
	UserAgentStrategy string
	Proxy             string
	Headers           map[string]string

	// Rate Limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Retry
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryStatusCodes    []int

	// Caching
	NoCache           bool
	CacheTTL          time.Duration
	CacheMaxSizeBytes int64

	// Site
	RootURL        string
	UsedListingURL string
	NewListingURL  string
	SeedMaxPage    int
	TokenTTL       time.Duration

	// Crawl
	Categories         []string
	Concurrency        int
	ListingConcurrency int
	MaxPages           int
	FullSizePhotos     bool
	CrawlTimeout       time.Duration

	// Output
	Output   string
	SaveEach bool
}

// Defaults returns a Config populated with the default values
func Defaults() *Config {
	return &Config{
		LogLevel:            DefaultLogLevel,
		JSONLog:             DefaultJSONLog,
		HTTPTimeout:         DefaultHTTPTimeout,
		UserAgentStrategy:   DefaultUserAgentStrategy,
		Headers:             headers.Merge(headers.SiteDefaults),
		RateLimitRPS:        DefaultRateLimitRPS,
		RateLimitBurst:      DefaultRateLimitBurst,
		RetryMaxAttempts:    DefaultRetryMaxAttempts,
		RetryInitialBackoff: DefaultRetryInitialBackoff,
		RetryMaxBackoff:     DefaultRetryMaxBackoff,
		RetryStatusCodes:    append([]int(nil), DefaultRetryStatusCodes...),
		CacheTTL:            DefaultCacheTTL,
		CacheMaxSizeBytes:   DefaultCacheMaxSizeBytes,
		RootURL:             DefaultRootURL,
		UsedListingURL:      DefaultUsedListingURL,
		NewListingURL:       DefaultNewListingURL,
		SeedMaxPage:         DefaultSeedMaxPage,
		TokenTTL:            DefaultTokenTTL,
		Categories:          append([]string(nil), DefaultCategories...),
		Concurrency:         DefaultConcurrency,
		ListingConcurrency:  DefaultListingConcurrency,
		Output:              DefaultOutput,
	}
}

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// Caller should pass the executing *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	path := os.Getenv(EnvPrefix + "CONFIG")
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			path = f.Value.String()
		}
	}
	if path != "" {
		file, err := ReadFile(path)
		if err != nil {
			return nil, crawlerr.Config("read config file", err).WithDetail("path", path)
		}
		partial, err := file.toConfig()
		if err != nil {
			return nil, crawlerr.Config("invalid config file", err).WithDetail("path", path)
		}
		if err := mergo.Merge(cfg, partial, mergo.WithOverride); err != nil {
			return nil, crawlerr.Config("merge config file", err).WithDetail("path", path)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, crawlerr.Config("invalid environment", err)
	}

	if cmd != nil {
		if err := applyFlags(cmd, cfg); err != nil {
			return nil, crawlerr.Config("invalid flag", err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, crawlerr.Config("invalid config", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	env := func(name string) (string, bool) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := env("USER_AGENT"); ok {
		cfg.UserAgent = v
	}
	if v, ok := env("PROXY"); ok {
		cfg.Proxy = v
	}
	if v, ok := env("OUTPUT"); ok {
		cfg.Output = v
	}
	if v, ok := env("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := env("ROOT_URL"); ok {
		cfg.RootURL = v
	}
	if v, ok := env("USED_URL"); ok {
		cfg.UsedListingURL = v
	}
	if v, ok := env("NEW_URL"); ok {
		cfg.NewListingURL = v
	}
	if v, ok := env("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
		cfg.HTTPTimeout = d
	}
	if v, ok := env("CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCONCURRENCY: %w", EnvPrefix, err)
		}
		cfg.Concurrency = n
	}
	if v, ok := env("MAX_PAGES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_PAGES: %w", EnvPrefix, err)
		}
		cfg.MaxPages = n
	}
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("verbose") {
		if v, _ := flags.GetBool("verbose"); v {
			cfg.LogLevel = "debug"
		}
	}
	if changed("quiet") {
		if v, _ := flags.GetBool("quiet"); v {
			cfg.LogLevel = "error"
		}
	}
	if changed("json") {
		cfg.JSONLog, _ = flags.GetBool("json")
	}
	if changed("user-agent") {
		cfg.UserAgent, _ = flags.GetString("user-agent")
	}
	if changed("proxy") {
		cfg.Proxy, _ = flags.GetString("proxy")
	}
	if changed("timeout") {
		d, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.HTTPTimeout = d
	}
	if changed("header") {
		hs, _ := flags.GetStringArray("header")
		cfg.Headers = headers.Merge(cfg.Headers, headers.ParseHeaders(hs))
	}
	if changed("output") {
		cfg.Output, _ = flags.GetString("output")
	}
	if changed("category") {
		cfg.Categories, _ = flags.GetStringSlice("category")
	}
	if changed("max-pages") {
		cfg.MaxPages, _ = flags.GetInt("max-pages")
	}
	if changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if changed("listing-concurrency") {
		cfg.ListingConcurrency, _ = flags.GetInt("listing-concurrency")
	}
	if changed("full-size-photos") {
		cfg.FullSizePhotos, _ = flags.GetBool("full-size-photos")
	}
	if changed("save-each") {
		cfg.SaveEach, _ = flags.GetBool("save-each")
	}
	if changed("no-cache") {
		cfg.NoCache, _ = flags.GetBool("no-cache")
	}
	if changed("cache-ttl") {
		d, err := flags.GetDuration("cache-ttl")
		if err != nil {
			return err
		}
		cfg.CacheTTL = d
	}
	if changed("crawl-timeout") {
		d, err := flags.GetDuration("crawl-timeout")
		if err != nil {
			return err
		}
		cfg.CrawlTimeout = d
	}
	if changed("retry-max") {
		cfg.RetryMaxAttempts, _ = flags.GetInt("retry-max")
	}
	if changed("rate") {
		cfg.RateLimitRPS, _ = flags.GetFloat64("rate")
	}
	return nil
}
