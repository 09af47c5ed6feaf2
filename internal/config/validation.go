package config

import (
	"fmt"

	"github.com/law-makers/autospot-crawl/internal/useragent"
	urlutil "github.com/law-makers/autospot-crawl/internal/utils/url"
	"github.com/law-makers/autospot-crawl/pkg/models"
)

func validate(c *Config) error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.Concurrency <= 0 || c.Concurrency > DefaultMaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d", DefaultMaxConcurrency)
	}
	if c.ListingConcurrency <= 0 || c.ListingConcurrency > DefaultMaxListingWorkers {
		return fmt.Errorf("listing concurrency must be between 1 and %d", DefaultMaxListingWorkers)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages must be >= 0")
	}
	if c.SeedMaxPage < 1 {
		return fmt.Errorf("seed max page must be >= 1")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must be >= 0")
	}
	if c.RetryInitialBackoff <= 0 || c.RetryMaxBackoff < c.RetryInitialBackoff {
		return fmt.Errorf("retry backoff must satisfy 0 < initial <= max")
	}
	for _, code := range c.RetryStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("retry status code %d is not an HTTP status", code)
		}
	}
	if !c.NoCache && (c.CacheTTL <= 0 || c.CacheMaxSizeBytes <= 0) {
		return fmt.Errorf("cache ttl and max size must be > 0")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be > 0")
	}
	if c.CrawlTimeout < 0 {
		return fmt.Errorf("crawl timeout must be >= 0")
	}
	if c.Output == "" {
		return fmt.Errorf("output path is required")
	}
	switch useragent.Strategy(c.UserAgentStrategy) {
	case useragent.StrategyRandom, useragent.StrategyRoundRobin:
	default:
		return fmt.Errorf("unknown user agent strategy %q", c.UserAgentStrategy)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	for name, u := range map[string]string{"root url": c.RootURL, "used listing url": c.UsedListingURL, "new listing url": c.NewListingURL} {
		if err := urlutil.ValidateURL(u); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if len(c.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	for _, cat := range c.Categories {
		if _, err := models.ParseCategory(cat); err != nil {
			return err
		}
	}
	return nil
}

// ParsedCategories returns the configured categories in crawl order,
// dropping repeats
func (c *Config) ParsedCategories() []models.Category {
	var out []models.Category
	seen := map[models.Category]bool{}
	for _, s := range c.Categories {
		cat, err := models.ParseCategory(s)
		if err != nil || seen[cat] {
			continue
		}
		seen[cat] = true
		out = append(out, cat)
	}
	return out
}

// ListingURL returns the listing template of category
func (c *Config) ListingURL(cat models.Category) string {
	if cat == models.CategoryNew {
		return c.NewListingURL
	}
	return c.UsedListingURL
}
