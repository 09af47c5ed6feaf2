package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/autospot-crawl/internal/config"
	"github.com/law-makers/autospot-crawl/internal/engine"
	"github.com/law-makers/autospot-crawl/internal/reqctx"
	"github.com/law-makers/autospot-crawl/internal/ui"
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl every listing page and save one record per car",
	Long: `Crawl walks each category's listing pages, follows every car link and
upserts the projected records into the output file.

Categories are crawled in the given order. Listing and car pages that fail
are logged and skipped. Interrupting the crawl still saves what was collected.`,
	Example: `  # Crawl used and new cars into auto_data.json
  autospot crawl

  # Only the first 3 pages of used cars
  autospot crawl -c used --max-pages 3

  # Stop after 30 minutes and write every record as it arrives
  autospot crawl --crawl-timeout 30m --save-each -o cars.json`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	config.RegisterCrawlFlags(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	cfg := a.Config

	ctx := reqctx.WithRunContext(cmd.Context())
	if cfg.CrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.CrawlTimeout)
		defer cancel()
	}
	run := reqctx.GetRunContext(ctx)
	defer useRunLogger(run.RunID)()

	st, err := a.OpenStore()
	if err != nil {
		return reqctx.NewRunError(ctx, err)
	}
	before := st.Len()

	log.Info().
		Strs("categories", cfg.Categories).
		Str("output", st.Path()).
		Int("existing", before).
		Int("concurrency", cfg.Concurrency).
		Msg("Starting crawl")

	bar := newProgressBar(cmd.ErrOrStderr(), cfg.LogLevel != "error" && !cfg.JSONLog && ui.Enabled)
	controller := a.NewController(st)
	controller.OnDetail = func(r engine.DetailResult) {
		bar.Describe(fmt.Sprintf("%s page %d", r.Category, r.Page))
		_ = bar.Add(1)
	}

	summary, err := controller.Run(ctx)
	_ = bar.Finish()

	out := cmd.OutOrStdout()
	printSummary(out, summary)

	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		ui.Statusf(out, true, "Crawl timeout reached after %s, partial results saved", summary.Elapsed.Round(time.Second))
	case errors.Is(err, context.Canceled):
		ui.Statusf(out, true, "Crawl interrupted, partial results saved")
	default:
		return reqctx.NewRunError(ctx, err)
	}

	ui.Statusf(out, true, "%d records in %s (%d new)", st.Len(), st.Path(), st.Len()-before)
	return nil
}

// useRunLogger tags every event logged during the run with its id and
// returns a func restoring the previous logger
func useRunLogger(runID string) func() {
	prev := log.Logger
	log.Logger = log.With().Str("run_id", runID).Logger()
	return func() { log.Logger = prev }
}

func newProgressBar(w io.Writer, visible bool) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetDescription("crawling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("cars"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

// printSummary renders per-category counts as a table
func printSummary(w io.Writer, s engine.Summary) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Category", "Pages", "Listing pages", "Listing errors", "Cars found", "Records"})
	for _, c := range s.Categories {
		t.AppendRow(table.Row{c.Category, c.MaxPage, c.ListingPages, c.ListingErrors, c.DetailURLs, c.Records})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Inserted", s.Inserted})
	t.AppendFooter(table.Row{"", "", "", "", "Updated", s.Updated})
	t.AppendFooter(table.Row{"", "", "", "", "Duplicates", s.Duplicates})
	t.AppendFooter(table.Row{"", "", "", "", "Failed", s.DetailErrors})
	t.Render()
}
