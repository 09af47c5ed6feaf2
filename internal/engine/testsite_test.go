package engine

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/law-makers/autospot-crawl/internal/auth"
	"github.com/law-makers/autospot-crawl/internal/cache"
	"github.com/law-makers/autospot-crawl/internal/fetch"
	"github.com/law-makers/autospot-crawl/internal/retry"
	"github.com/law-makers/autospot-crawl/internal/store"
)

// testSite is a synthetic marketplace serving a token page, listing pages
// and detail pages
type testSite struct {
	server *httptest.Server

	mu sync.Mutex
	// listings maps category path and page to the detail paths on that page
	listings map[string]map[int][]string
	// maxPage is the page count the pagination widget shows, per category path
	maxPage map[string]int
	// pageMax overrides maxPage for a single "path#page"
	pageMax map[string]int
	// failPages answers with the given status for a listing page
	failPages map[string]int
	// rejectToken answers 401 to listing requests carrying this token
	rejectToken string
	tokens      []string

	hits map[string]int
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	s := &testSite{
		listings:  make(map[string]map[int][]string),
		maxPage:   make(map[string]int),
		pageMax:   make(map[string]int),
		failPages: make(map[string]int),
		tokens:    []string{"T1", "T2", "T3"},
		hits:      make(map[string]int),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *testSite) listingTemplate(path string) string {
	return s.server.URL + path + "?sort=-views_count&limit=12&page="
}

func (s *testSite) hitCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

func (s *testSite) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.URL.Path == "/":
		s.hits["root"]++
		token := s.tokens[0]
		if len(s.tokens) > 1 {
			s.tokens = s.tokens[1:]
		}
		fmt.Fprintf(w, `<html><body><script id="serverApp-state" type="application/json">`+
			`{"G.https://api.autospot.ru/rest/oauth2/token":{"body":{"access_token":%q}}}</script></body></html>`, token)

	case strings.HasPrefix(r.URL.Path, "/car/"):
		s.hits[r.URL.Path]++
		id := strings.TrimPrefix(r.URL.Path, "/car/")
		fmt.Fprint(w, detailPage(id))

	default:
		pages, ok := s.listings[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		key := fmt.Sprintf("%s#%d", r.URL.Path, page)
		s.hits[key]++

		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if s.rejectToken != "" && r.Header.Get("Authorization") == "Bearer "+s.rejectToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status, ok := s.failPages[key]; ok {
			w.WriteHeader(status)
			return
		}
		maxPage := s.maxPage[r.URL.Path]
		if m, ok := s.pageMax[key]; ok {
			maxPage = m
		}
		fmt.Fprint(w, listingPage(pages[page], maxPage))
	}
}

func listingPage(detailPaths []string, maxPage int) string {
	var b strings.Builder
	b.WriteString("<html><body><auto-listing>")
	for _, p := range detailPaths {
		fmt.Fprintf(&b, `<auto-car-card><article><div><header><h3><a href="%s">car</a></h3></header></div></article></auto-car-card>`, p)
	}
	b.WriteString("</auto-listing>")
	if maxPage > 0 {
		b.WriteString(`<auto-pagination><nav><ul><li><a>‹</a></li>`)
		for i := 1; i <= maxPage; i++ {
			fmt.Fprintf(&b, "<li> %d </li>", i)
		}
		b.WriteString(`<li>…</li></ul></nav></auto-pagination>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func detailPage(id string) string {
	return `<html><body>
<auto-gallery><img src="https://img.test/` + id + `-0x320.jpg?v=1"><img src="https://img.test/` + id + `-0x320.jpg?v=2"></auto-gallery>
<script id="serverApp-state" type="application/json">{
"G.https://api.autospot.ru/rest/v2/used-car/cars/` + id + `":{"body":{"brand_name":"Brand` + id + `","model_name":"M","prices":{"price":100},"year":2020,"run":1000,"display_dealer_phone":"+7"}},
"G.https://api.autospot.ru/rest/car/base-info/` + id + `":{"body":{"brand_name":"New` + id + `","model_name":"N"}},
"G.https://api.autospot.ru/rest/car/price-block/` + id + `":{"body":{"prices":{"price":200}}},
"G.https://api.autospot.ru/rest/car/all-characteristics/` + id + `":{"body":{"id":"` + id + `"}},
"G.https://api.autospot.ru/rest/used-car/options-two-column/` + id + `":{"body":{"columns":[]}},
"G.https://api.autospot.ru/rest/car/all-options-two-column/` + id + `":{"body":{"columns":[]}},
"G.https://api.autospot.ru/rest/dealer/direct-offer/` + id + `":{"body":{"items":[{"dealer_group_name":"D","phone":"+7 1"}]}}
}</script></body></html>`
}

// testStack wires the real fetcher, token provider and store against site
func testStack(t *testing.T, site *testSite) (*fetch.Fetcher, *auth.TokenProvider, *store.JSONStore) {
	t.Helper()
	return testStackWithCache(t, site, nil)
}

// testStackWithCache is testStack with a response cache in front of the fetcher
func testStackWithCache(t *testing.T, site *testSite, pages cache.Cache) (*fetch.Fetcher, *auth.TokenProvider, *store.JSONStore) {
	t.Helper()

	rc := retry.DefaultConfig()
	rc.MaxAttempts = 2
	rc.InitialBackoff = time.Millisecond
	rc.Jitter = time.Millisecond

	f := fetch.New(fetch.Options{Timeout: 5 * time.Second, Retry: rc, Cache: pages, CacheTTL: time.Hour})
	tokens := auth.NewTokenProvider(f, auth.Options{RootURL: site.server.URL + "/"})
	st, err := store.Open(t.TempDir()+"/auto_data.json", store.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return f, tokens, st
}
