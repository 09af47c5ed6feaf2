package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/autospot-crawl/internal/cache"
	"github.com/law-makers/autospot-crawl/internal/crawlerr"
	"github.com/law-makers/autospot-crawl/internal/fetch"
)

const rootPage = `<html><body><script id="serverApp-state" type="application/json">` +
	`{"G.https://api.autospot.ru/rest/oauth2/token":{"body":{"access_token":"T1","expires_in":86400}}}` +
	`</script></body></html>`

type fakeGetter struct {
	calls  atomic.Int32
	status int
	body   string
	err    error
	gate   chan struct{}
}

func (g *fakeGetter) Fetch(ctx context.Context, url string, headers map[string]string) (*fetch.Response, error) {
	g.calls.Add(1)
	if g.gate != nil {
		<-g.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.err != nil {
		return nil, g.err
	}
	status := g.status
	if status == 0 {
		status = http.StatusOK
	}
	return &fetch.Response{URL: url, StatusCode: status, Body: []byte(g.body)}, nil
}

func newProvider(g *fakeGetter) (*TokenProvider, *time.Time) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	p := NewTokenProvider(g, Options{RootURL: "https://autospot.ru/"})
	p.now = func() time.Time { return now }
	return p, &now
}

func TestToken_CachedWithinTTL(t *testing.T) {
	g := &fakeGetter{body: rootPage}
	p, now := newProvider(g)

	token, err := p.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "T1", token)

	*now = now.Add(22 * time.Hour)
	token, err = p.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "T1", token)

	assert.EqualValues(t, 1, g.calls.Load())
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), p.State().AcquiredAt)
}

func TestToken_ExpiredRefreshesOnce(t *testing.T) {
	g := &fakeGetter{body: rootPage}
	p, now := newProvider(g)

	_, err := p.Token(context.Background(), false)
	require.NoError(t, err)

	*now = now.Add(23 * time.Hour)
	_, err = p.Token(context.Background(), false)
	require.NoError(t, err)
	_, err = p.Token(context.Background(), false)
	require.NoError(t, err)

	assert.EqualValues(t, 2, g.calls.Load())
	assert.Equal(t, *now, p.State().AcquiredAt)
}

func TestToken_ForceAlwaysFetches(t *testing.T) {
	g := &fakeGetter{body: rootPage}
	p, _ := newProvider(g)

	_, err := p.Token(context.Background(), false)
	require.NoError(t, err)
	_, err = p.Token(context.Background(), true)
	require.NoError(t, err)

	assert.EqualValues(t, 2, g.calls.Load())
	assert.EqualValues(t, 2, p.Refreshes())
}

func TestToken_ConcurrentRefreshIsSingleFlight(t *testing.T) {
	g := &fakeGetter{body: rootPage, gate: make(chan struct{})}
	p, _ := newProvider(g)

	const callers = 16
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = p.Token(context.Background(), false)
		}(i)
	}

	// Let the first fetch start, then release it
	require.Eventually(t, func() bool { return g.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(g.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "T1", tokens[i])
	}
	assert.EqualValues(t, 1, g.calls.Load())
}

func TestToken_Failures(t *testing.T) {
	tests := []struct {
		name   string
		getter *fakeGetter
	}{
		{"root unreachable", &fakeGetter{err: crawlerr.Fetch("GET failed", errors.New("connection refused"))}},
		{"non-200", &fakeGetter{status: http.StatusServiceUnavailable, body: rootPage}},
		{"no blob", &fakeGetter{body: `<html><body>maintenance</body></html>`}},
		{"no token key", &fakeGetter{body: `<script id="serverApp-state" type="application/json">{"rest/car/base-info":{"body":{}}}</script>`}},
		{"empty token", &fakeGetter{body: `<script id="serverApp-state" type="application/json">{"rest/oauth2/token":{"body":{"access_token":""}}}</script>`}},
		{"no body", &fakeGetter{body: `<script id="serverApp-state" type="application/json">{"rest/oauth2/token":{"status":500}}</script>`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newProvider(tt.getter)

			token, err := p.Token(context.Background(), false)
			require.Error(t, err)
			assert.Empty(t, token)
			assert.True(t, errors.Is(err, crawlerr.ErrAuth))
			assert.Empty(t, p.State().Token)
		})
	}
}

func TestToken_FailureKeepsPreviousToken(t *testing.T) {
	g := &fakeGetter{body: rootPage}
	p, _ := newProvider(g)

	_, err := p.Token(context.Background(), false)
	require.NoError(t, err)

	g.body = "<html></html>"
	_, err = p.Token(context.Background(), true)
	require.Error(t, err)

	token, err := p.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "T1", token)
}

func TestToken_ForcedRefreshBypassesResponseCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		fmt.Fprintf(w, `<script id="serverApp-state" type="application/json">`+
			`{"G.https://api.autospot.ru/rest/oauth2/token":{"body":{"access_token":"T%d"}}}</script>`, n)
	}))
	defer server.Close()

	mc := cache.NewMemoryCache(0)
	defer mc.Close()
	f := fetch.New(fetch.Options{Timeout: 5 * time.Second, Cache: mc, CacheTTL: time.Hour})
	p := NewTokenProvider(f, Options{RootURL: server.URL + "/"})

	first, err := p.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "T1", first)

	forced, err := p.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "T2", forced)
	assert.EqualValues(t, 2, hits.Load())
	assert.EqualValues(t, 2, p.Refreshes())
}

func TestToken_CancelledCallerDoesNotFailOthers(t *testing.T) {
	g := &fakeGetter{body: rootPage, gate: make(chan struct{})}
	p, _ := newProvider(g)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := p.Token(leaderCtx, false)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return g.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		token string
		err   error
	}
	joined := make(chan result, 1)
	go func() {
		token, err := p.Token(context.Background(), false)
		joined <- result{token, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	assert.True(t, errors.Is(<-leaderErr, context.Canceled))

	close(g.gate)
	r := <-joined
	require.NoError(t, r.err)
	assert.Equal(t, "T1", r.token)
	assert.EqualValues(t, 1, g.calls.Load())
}
