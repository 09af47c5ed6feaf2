// Package auth obtains the bearer token the marketplace hands to its own
// front end and keeps it for reuse across requests.
package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/law-makers/autospot-crawl/internal/crawlerr"
	"github.com/law-makers/autospot-crawl/internal/fetch"
	"github.com/law-makers/autospot-crawl/internal/stateblob"
	"github.com/law-makers/autospot-crawl/internal/utils/headers"
	"github.com/law-makers/autospot-crawl/pkg/models"
)

const (
	// DefaultTTL is how long an acquired token is trusted
	DefaultTTL = 23 * time.Hour
	// TokenFragment identifies the OAuth route inside the state blob
	TokenFragment = "rest/oauth2/token"

	// refreshTimeout bounds a shared refresh once it no longer follows any
	// single caller's context
	refreshTimeout = 5 * time.Minute
)

// noCache keeps the root page out of response caches so every refresh
// reads a new token
var noCache = map[string]string{"Cache-Control": "no-cache"}

// Getter issues GET requests
type Getter interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*fetch.Response, error)
}

// Options configures a TokenProvider
type Options struct {
	RootURL string
	Headers map[string]string
	TTL     time.Duration
}

// TokenProvider caches the bearer token and refreshes it at most once at a time
type TokenProvider struct {
	getter Getter
	opts   Options

	mu    sync.RWMutex
	state models.TokenState

	group     singleflight.Group
	refreshes atomic.Int64
	now       func() time.Time
}

// NewTokenProvider creates a provider reading tokens from opts.RootURL
func NewTokenProvider(getter Getter, opts Options) *TokenProvider {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &TokenProvider{
		getter: getter,
		opts:   opts,
		now:    time.Now,
	}
}

// Token returns a valid token. A cached token younger than the TTL is
// returned without network I/O unless force is set. Concurrent callers
// needing a refresh share a single request to the site root.
func (p *TokenProvider) Token(ctx context.Context, force bool) (string, error) {
	if !force {
		if token, ok := p.cached(); ok {
			return token, nil
		}
	}

	// The flight runs detached so one caller giving up does not fail the
	// others; each caller still stops waiting on its own ctx.
	ch := p.group.DoChan("token", func() (interface{}, error) {
		if !force {
			if token, ok := p.cached(); ok {
				return token, nil
			}
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return p.refresh(fctx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Debug().Msg("Joined in-flight token refresh")
		}
		return res.Val.(string), nil
	}
}

// State returns a copy of the cached token state
func (p *TokenProvider) State() models.TokenState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Refreshes returns how many times the token was fetched from the site
func (p *TokenProvider) Refreshes() int64 {
	return p.refreshes.Load()
}

func (p *TokenProvider) cached() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state.Valid(p.now(), p.opts.TTL) {
		return p.state.Token, true
	}
	return "", false
}

func (p *TokenProvider) refresh(ctx context.Context) (string, error) {
	p.refreshes.Add(1)
	log.Info().Str("url", p.opts.RootURL).Msg("Fetching access token")

	resp, err := p.getter.Fetch(ctx, p.opts.RootURL, headers.Merge(p.opts.Headers, noCache))
	if err != nil {
		return "", crawlerr.Auth("site root unreachable", err).WithDetail("url", p.opts.RootURL)
	}
	if !resp.OK() {
		return "", crawlerr.Auth(fmt.Sprintf("site root returned status %d", resp.StatusCode), nil).
			WithDetail("url", p.opts.RootURL)
	}

	blob, err := stateblob.Extract(resp.Body)
	if err != nil {
		return "", crawlerr.Auth("no state blob on site root", err).WithDetail("url", p.opts.RootURL)
	}
	if _, _, ok := blob.Find(TokenFragment); !ok {
		return "", crawlerr.Auth("token key not found in state blob", nil).WithDetail("url", p.opts.RootURL)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if _, err := blob.DecodeBody(TokenFragment, &body); err != nil {
		return "", crawlerr.Auth("malformed token body", err).WithDetail("url", p.opts.RootURL)
	}
	if body.AccessToken == "" {
		return "", crawlerr.Auth("access token missing or empty", nil).WithDetail("url", p.opts.RootURL)
	}

	p.mu.Lock()
	p.state = models.TokenState{Token: body.AccessToken, AcquiredAt: p.now()}
	p.mu.Unlock()

	log.Info().Msg("Obtained new access token")
	return body.AccessToken, nil
}
