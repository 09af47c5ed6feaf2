// Package fetch issues GET requests with pacing, caching and retry.
package fetch

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/autospot-crawl/internal/cache"
	"github.com/law-makers/autospot-crawl/internal/crawlerr"
	"github.com/law-makers/autospot-crawl/internal/ratelimit"
	"github.com/law-makers/autospot-crawl/internal/retry"
	"github.com/law-makers/autospot-crawl/internal/useragent"
)

// Response is a fully read HTTP response
type Response struct {
	URL        string
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	FromCache  bool
	Attempts   int
}

// OK reports a 200 response
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// Options configures a Fetcher
type Options struct {
	Timeout        time.Duration
	Proxy          string
	Retry          retry.Config
	Limiter        ratelimit.RateLimiter
	Cache          cache.Cache
	CacheTTL       time.Duration
	Agents         *useragent.Pool
	DefaultHeaders map[string]string
}

// Fetcher is the resilient GET client shared by the whole crawl
type Fetcher struct {
	client   *resty.Client
	opts     Options
	requests atomic.Int64
}

// New creates a Fetcher on top of a fresh resty client
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}

	return &Fetcher{client: client, opts: opts}
}

// Requests returns how many network attempts the fetcher has made
func (f *Fetcher) Requests() int64 {
	return f.requests.Load()
}

// Close releases idle connections
func (f *Fetcher) Close() {
	f.client.GetClient().CloseIdleConnections()
}

// Fetch GETs url. Network errors and the configured retry statuses are
// retried with backoff; any other status is returned to the caller as-is.
// With a finite retry cap a *crawlerr.Error of class FETCH_ERROR is returned
// once the cap is exhausted. Requests with an Authorization header or a
// Cache-Control of no-cache/no-store skip the response cache.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	hdrs := f.buildHeaders(headers)
	cacheable := f.opts.Cache != nil && hdrs["Authorization"] == "" && !bypassCache(hdrs["Cache-Control"])

	if cacheable {
		if page, ok := f.opts.Cache.Get(url); ok {
			return &Response{
				URL:        page.URL,
				StatusCode: page.StatusCode,
				Status:     http.StatusText(page.StatusCode),
				Body:       page.Body,
				FromCache:  true,
			}, nil
		}
	}

	var result *Response
	err := retry.Do(ctx, f.opts.Retry, func(attempt int) error {
		if f.opts.Limiter != nil {
			if err := f.opts.Limiter.Wait(ctx, url); err != nil {
				return err
			}
		}

		f.requests.Add(1)
		start := time.Now()
		resp, err := f.client.R().
			SetContext(ctx).
			SetHeaders(hdrs).
			Get(url)
		if err != nil {
			log.Debug().Err(err).Str("url", url).Int("attempt", attempt).Msg("Request failed")
			return err
		}

		log.Debug().
			Str("url", url).
			Int("status", resp.StatusCode()).
			Int("attempt", attempt).
			Dur("elapsed", time.Since(start)).
			Msg("Response received")

		if retry.IsRetryableStatus(f.opts.Retry, resp.StatusCode()) {
			return retry.NewHTTPError(resp.StatusCode(), resp.Status(), "")
		}

		result = &Response{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Header:     resp.Header(),
			Body:       resp.Body(),
			Attempts:   attempt,
		}
		return nil
	})
	if err != nil {
		return nil, crawlerr.Fetch("GET failed", err).WithDetail("url", url)
	}

	if cacheable && result.OK() {
		_ = f.opts.Cache.Set(url, &cache.Page{
			URL:        url,
			StatusCode: result.StatusCode,
			Body:       result.Body,
			FetchedAt:  time.Now(),
		}, f.opts.CacheTTL)
	}

	return result, nil
}

func bypassCache(cacheControl string) bool {
	cc := strings.ToLower(cacheControl)
	return strings.Contains(cc, "no-cache") || strings.Contains(cc, "no-store")
}

func (f *Fetcher) buildHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(f.opts.DefaultHeaders)+len(headers)+1)
	for k, v := range f.opts.DefaultHeaders {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range headers {
		out[http.CanonicalHeaderKey(k)] = v
	}
	if f.opts.Agents != nil && strings.TrimSpace(out["User-Agent"]) == "" {
		out["User-Agent"] = f.opts.Agents.Pick()
	}
	return out
}
