package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/law-makers/autospot-crawl/internal/crawlerr"
	"github.com/law-makers/autospot-crawl/internal/fetch"
	"github.com/law-makers/autospot-crawl/internal/utils/headers"
	urlutil "github.com/law-makers/autospot-crawl/internal/utils/url"
	"github.com/law-makers/autospot-crawl/pkg/models"
)

// CategorySource is one listing tree to crawl
type CategorySource struct {
	Category models.Category
	// URLTemplate ends in "page=" and gets the page number appended
	URLTemplate string
	// SeedMaxPage is the page count assumed before the first listing page
	// reports one
	SeedMaxPage int
}

// Config configures a Controller
type Config struct {
	Sources []CategorySource
	// DetailConcurrency bounds concurrent detail fetches
	DetailConcurrency int
	// ListingConcurrency bounds concurrent listing fetches after page 1
	ListingConcurrency int
	// MaxPages caps pages per category, 0 for no cap
	MaxPages int
	// FullSizePhotos rewrites gallery URLs to the original resolution
	FullSizePhotos bool
}

// DetailResult reports the outcome of one detail page
type DetailResult struct {
	URL      string
	Category models.Category
	Page     int
	Record   *models.CarRecord
	Inserted bool
	Err      error
}

// CategoryStats summarizes one category
type CategoryStats struct {
	Category      models.Category
	MaxPage       int
	ListingPages  int
	ListingErrors int
	DetailURLs    int
	Records       int
}

// Summary is reported when the crawl is done
type Summary struct {
	Categories         []CategoryStats
	Inserted           int
	Updated            int
	Duplicates         int
	DetailErrors       int
	ProjectionWarnings int
	Elapsed            time.Duration
}

// Records returns the number of upserted records
func (s Summary) Records() int {
	return s.Inserted + s.Updated
}

// Controller crawls the configured categories one after the other
type Controller struct {
	getter Getter
	tokens TokenSource
	sink   Sink
	detail *DetailProcessor
	cfg    Config

	// OnDetail is called from worker goroutines after every detail page
	OnDetail func(DetailResult)

	state atomic.Int32

	mu      sync.Mutex
	seen    map[string]bool
	summary Summary
	current *CategoryStats
}

// NewController creates a controller
func NewController(getter Getter, tokens TokenSource, sink Sink, cfg Config) *Controller {
	if cfg.ListingConcurrency <= 0 {
		cfg.ListingConcurrency = 4
	}
	return &Controller{
		getter: getter,
		tokens: tokens,
		sink:   sink,
		detail: NewDetailProcessor(getter, cfg.FullSizePhotos),
		cfg:    cfg,
		seen:   make(map[string]bool),
	}
}

// State returns the current phase
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	if State(c.state.Swap(int32(s))) != s {
		log.Debug().Str("state", s.String()).Msg("Controller state")
	}
}

// Run crawls every category, then flushes the sink. Page level failures
// are logged and skipped. The returned error is the context error when the
// crawl was cut short, or a flush failure.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	for i, src := range c.cfg.Sources {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			c.setState(StateSwitchingCategory)
			log.Info().Str("category", string(src.Category)).Msg("Switching category")
		}
		c.crawlCategory(ctx, src)
	}

	c.setState(StateDone)

	c.mu.Lock()
	c.summary.Elapsed = time.Since(start)
	summary := c.summary
	summary.Categories = append([]CategoryStats(nil), c.summary.Categories...)
	c.mu.Unlock()

	flushErr := c.sink.Flush()
	if flushErr != nil {
		log.Error().Err(flushErr).Msg("Failed to save records")
	}

	log.Info().
		Int("records", summary.Records()).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("duplicates", summary.Duplicates).
		Int("detail_errors", summary.DetailErrors).
		Dur("elapsed", summary.Elapsed).
		Msg("Crawl finished")

	if flushErr != nil {
		return summary, flushErr
	}
	return summary, ctx.Err()
}

// crawlCategory fetches listing page 1 to learn the page count, then the
// remaining pages concurrently. Pages reporting a larger count extend the
// crawl.
func (c *Controller) crawlCategory(ctx context.Context, src CategorySource) {
	seed := src.SeedMaxPage
	if seed <= 0 {
		seed = 1
	}
	cursor := models.CrawlCursor{Category: src.Category, CurrentPage: 1, MaxPage: seed}

	c.mu.Lock()
	c.summary.Categories = append(c.summary.Categories, CategoryStats{Category: src.Category, MaxPage: seed})
	c.current = &c.summary.Categories[len(c.summary.Categories)-1]
	c.mu.Unlock()

	logger := log.With().Str("category", string(src.Category)).Logger()
	logger.Info().Msg("Crawling category")

	pool := newDetailPool(c.cfg.DetailConcurrency, c.handleDetail)
	pool.start(ctx)
	defer pool.close()

	var cursorMu sync.Mutex
	observe := func(maxPage int) {
		cursorMu.Lock()
		defer cursorMu.Unlock()
		if cursor.Observe(maxPage) {
			logger.Info().Int("max_page", cursor.MaxPage).Msg("Discovered page count")
			c.updateStats(func(s *CategoryStats) { s.MaxPage = cursor.MaxPage })
		}
	}
	maxPage := func() int {
		cursorMu.Lock()
		defer cursorMu.Unlock()
		return c.capPages(cursor.MaxPage)
	}

	c.setState(StateFetchingListing)
	links, err := c.listingPage(ctx, src, 1, observe)
	switch {
	case err != nil:
		c.logListingError(err, src, 1)
	case len(links) == 0:
		logger.Warn().Int("page", 1).Msg("No listings found, category exhausted")
		return
	default:
		c.dispatch(ctx, pool, src.Category, 1, links)
	}

	next := 2
	for next <= maxPage() && ctx.Err() == nil {
		last := maxPage()
		c.setState(StateFetchingDetail)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.ListingConcurrency)
		for page := next; page <= last; page++ {
			g.Go(func() error {
				cursorMu.Lock()
				if page > cursor.CurrentPage {
					cursor.CurrentPage = page
				}
				cursorMu.Unlock()

				links, err := c.listingPage(gctx, src, page, observe)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					c.logListingError(err, src, page)
					return nil
				}
				if len(links) == 0 {
					logger.Warn().Int("page", page).Msg("No listings found on page")
					return nil
				}
				c.dispatch(gctx, pool, src.Category, page, links)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			logger.Warn().Err(err).Msg("Listing fan-out interrupted")
		}

		next = last + 1
		c.setState(StateAdvancing)
	}

	logger.Info().Int("max_page", maxPage()).Msg("Category listing complete, waiting for detail pages")
}

// listingPage fetches one listing page with a bearer token and returns its
// detail URLs. A 401 or 403 forces one token refresh and one retry.
func (c *Controller) listingPage(ctx context.Context, src CategorySource, page int, observe func(int)) ([]string, error) {
	url := urlutil.PageURL(src.URLTemplate, page)

	resp, err := c.authorizedGet(ctx, url, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("Listing rejected token, refreshing")
		resp, err = c.authorizedGet(ctx, url, true)
		if err != nil {
			return nil, err
		}
	}
	if !resp.OK() {
		return nil, crawlerr.Fetch(fmt.Sprintf("listing returned status %d", resp.StatusCode), nil).WithDetail("url", url)
	}

	c.setState(StateExtractingDetailURLs)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, crawlerr.Parse("parse listing page", err).WithDetail("url", url)
	}

	if n, ok := ParseMaxPage(doc); ok {
		observe(n)
	}
	links := ParseDetailURLs(doc, url)

	c.updateStats(func(s *CategoryStats) { s.ListingPages++ })
	log.Info().
		Str("category", string(src.Category)).
		Int("page", page).
		Int("links", len(links)).
		Msg("Listing page processed")

	return links, nil
}

func (c *Controller) authorizedGet(ctx context.Context, url string, force bool) (*fetch.Response, error) {
	token, err := c.tokens.Token(ctx, force)
	if err != nil {
		return nil, err
	}
	return c.getter.Fetch(ctx, url, headers.Bearer(token))
}

// dispatch queues unseen detail URLs
func (c *Controller) dispatch(ctx context.Context, pool *detailPool, category models.Category, page int, links []string) {
	for _, link := range links {
		if !c.markSeen(link) {
			c.mu.Lock()
			c.summary.Duplicates++
			c.mu.Unlock()
			log.Debug().Str("url", link).Msg("Skipping duplicate detail page")
			continue
		}
		c.updateStats(func(s *CategoryStats) { s.DetailURLs++ })
		if !pool.submit(ctx, detailJob{url: link, category: category, page: page}) {
			return
		}
	}
}

func (c *Controller) handleDetail(ctx context.Context, job detailJob) {
	result := DetailResult{URL: job.url, Category: job.category, Page: job.page}

	record, problems, err := c.detail.Process(ctx, job.url, job.category)
	if err == nil {
		result.Inserted, err = c.sink.Upsert(record)
		result.Record = &record
	}
	result.Err = err

	c.mu.Lock()
	c.summary.ProjectionWarnings += len(problems)
	switch {
	case err != nil:
		c.summary.DetailErrors++
	case result.Inserted:
		c.summary.Inserted++
	default:
		c.summary.Updated++
	}
	if err == nil && c.current != nil {
		c.current.Records++
	}
	c.mu.Unlock()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error().
				Err(err).
				Str("url", job.url).
				Str("category", string(job.category)).
				Int("page", job.page).
				Msg("Detail page skipped")
		}
	} else {
		log.Info().
			Str("url", job.url).
			Str("category", string(job.category)).
			Bool("new", result.Inserted).
			Msg("Record saved")
	}

	if c.OnDetail != nil {
		c.OnDetail(result)
	}
}

func (c *Controller) markSeen(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[url] {
		return false
	}
	c.seen[url] = true
	return true
}

func (c *Controller) updateStats(fn func(s *CategoryStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		fn(c.current)
	}
}

func (c *Controller) capPages(maxPage int) int {
	if c.cfg.MaxPages > 0 && maxPage > c.cfg.MaxPages {
		return c.cfg.MaxPages
	}
	return maxPage
}

func (c *Controller) logListingError(err error, src CategorySource, page int) {
	c.updateStats(func(s *CategoryStats) { s.ListingErrors++ })
	log.Error().
		Err(err).
		Str("code", string(crawlerr.CodeOf(err))).
		Str("category", string(src.Category)).
		Int("page", page).
		Str("url", urlutil.PageURL(src.URLTemplate, page)).
		Msg("Listing page skipped")
}
