package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/rs/zerolog/log"
	"github.com/titanous/json5"
)

// File is the on-disk configuration. Every field is optional; unset fields
// keep the value of the layer below.
type File struct {
	LogLevel string `json:"log_level"`
	JSONLog  bool   `json:"json_log"`

	Timeout           string            `json:"timeout"`
	UserAgent         string            `json:"user_agent"`
	UserAgents        []string          `json:"user_agents"`
	UserAgentStrategy string            `json:"user_agent_strategy"`
	Proxy             string            `json:"proxy"`
	Headers           map[string]string `json:"headers"`

	RateLimitRPS   float64 `json:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst"`

	RetryMaxAttempts    int    `json:"retry_max_attempts"`
	RetryInitialBackoff string `json:"retry_initial_backoff"`
	RetryMaxBackoff     string `json:"retry_max_backoff"`
	RetryStatusCodes    []int  `json:"retry_status_codes"`

	NoCache           bool   `json:"no_cache"`
	CacheTTL          string `json:"cache_ttl"`
	CacheMaxSizeBytes int64  `json:"cache_max_size_bytes"`

	RootURL        string `json:"root_url"`
	UsedListingURL string `json:"used_listing_url"`
	NewListingURL  string `json:"new_listing_url"`
	SeedMaxPage    int    `json:"seed_max_page"`
	TokenTTL       string `json:"token_ttl"`

	Categories         []string `json:"categories"`
	Concurrency        int      `json:"concurrency"`
	ListingConcurrency int      `json:"listing_concurrency"`
	MaxPages           int      `json:"max_pages"`
	FullSizePhotos     bool     `json:"full_size_photos"`
	CrawlTimeout       string   `json:"crawl_timeout"`

	Output   string `json:"output"`
	SaveEach bool   `json:"save_each"`
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// localPath returns the override file next to name: <name>.local.<ext>
func localPath(name string) string {
	prefix, ext := splitExt(filepath.Base(name))
	if ext == "" {
		return filepath.Join(filepath.Dir(name), prefix+".local")
	}
	return filepath.Join(filepath.Dir(name), fmt.Sprintf("%s.local.%s", prefix, ext))
}

// ReadFile reads a JSON5 config file and merges the sibling
// <name>.local.<ext> over it. It fails with os.ErrNotExist only when
// neither file exists.
func ReadFile(name string) (File, error) {
	var out File
	found := false

	base, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &out); err != nil {
			return out, fmt.Errorf("%s: %w", name, err)
		}
		found = true
	}

	local := localPath(name)
	override, err := os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(override) > 0 {
		var o File
		if err := json5.Unmarshal(override, &o); err != nil {
			return out, fmt.Errorf("%s: %w", local, err)
		}
		if err := mergo.Merge(&out, o, mergo.WithOverride); err != nil {
			return out, err
		}
		log.Debug().Str("local", local).Msg("Merging config with local overrides")
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// toConfig converts the file into a partial Config, parsing durations
func (f File) toConfig() (*Config, error) {
	c := &Config{
		LogLevel:           f.LogLevel,
		JSONLog:            f.JSONLog,
		UserAgent:          f.UserAgent,
		UserAgents:         f.UserAgents,
		UserAgentStrategy:  f.UserAgentStrategy,
		Proxy:              f.Proxy,
		Headers:            f.Headers,
		RateLimitRPS:       f.RateLimitRPS,
		RateLimitBurst:     f.RateLimitBurst,
		RetryMaxAttempts:   f.RetryMaxAttempts,
		RetryStatusCodes:   f.RetryStatusCodes,
		NoCache:            f.NoCache,
		CacheMaxSizeBytes:  f.CacheMaxSizeBytes,
		RootURL:            f.RootURL,
		UsedListingURL:     f.UsedListingURL,
		NewListingURL:      f.NewListingURL,
		SeedMaxPage:        f.SeedMaxPage,
		Categories:         f.Categories,
		Concurrency:        f.Concurrency,
		ListingConcurrency: f.ListingConcurrency,
		MaxPages:           f.MaxPages,
		FullSizePhotos:     f.FullSizePhotos,
		Output:             f.Output,
		SaveEach:           f.SaveEach,
	}

	durations := []struct {
		name string
		in   string
		out  *time.Duration
	}{
		{"timeout", f.Timeout, &c.HTTPTimeout},
		{"retry_initial_backoff", f.RetryInitialBackoff, &c.RetryInitialBackoff},
		{"retry_max_backoff", f.RetryMaxBackoff, &c.RetryMaxBackoff},
		{"cache_ttl", f.CacheTTL, &c.CacheTTL},
		{"token_ttl", f.TokenTTL, &c.TokenTTL},
		{"crawl_timeout", f.CrawlTimeout, &c.CrawlTimeout},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.in) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.in))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.out = v
	}
	return c, nil
}
