package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel            = "info"
	DefaultJSONLog             = false
	DefaultHTTPTimeout         = 30 * time.Second
	DefaultUserAgentStrategy   = "random"
	DefaultRateLimitRPS        = 4.0
	DefaultRateLimitBurst      = 8
	DefaultRetryMaxAttempts    = 0 // unbounded
	DefaultRetryInitialBackoff = time.Second
	DefaultRetryMaxBackoff     = 60 * time.Second
	DefaultCacheTTL            = time.Hour
	DefaultCacheMaxSizeBytes   = 256 * 1024 * 1024 // 256MB
	DefaultRootURL             = "https://autospot.ru/"
	DefaultUsedListingURL      = "https://autospot.ru/used-car/?sort=-views_count&limit=12&page="
	DefaultNewListingURL       = "https://autospot.ru/filters/?sort=-percent_discount&limit=12&page="
	DefaultSeedMaxPage         = 1
	DefaultConcurrency         = 8
	DefaultMaxConcurrency      = 32
	DefaultListingConcurrency  = 4
	DefaultMaxListingWorkers   = 16
	DefaultOutput              = "auto_data.json"
	DefaultTokenTTL            = 23 * time.Hour
)

// DefaultCategories is the crawl order when none is configured
var DefaultCategories = []string{"used", "new"}

// DefaultRetryStatusCodes are the HTTP statuses retried with backoff
var DefaultRetryStatusCodes = []int{504}
