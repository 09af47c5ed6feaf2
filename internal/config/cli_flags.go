package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Log in JSON format")
	cmd.PersistentFlags().String("proxy", "", "Set HTTP/SOCKS5 proxy (e.g., http://localhost:8080)")
	cmd.PersistentFlags().Duration("timeout", DefaultHTTPTimeout, "Per-request timeout")
	cmd.PersistentFlags().String("user-agent", "", "Fixed user agent string (disables rotation)")
	cmd.PersistentFlags().StringArrayP("header", "H", nil, "Extra request header (\"Key: Value\"), repeatable")
	cmd.PersistentFlags().Bool("no-cache", false, "Disable the response cache")
	cmd.PersistentFlags().Duration("cache-ttl", DefaultCacheTTL, "Response cache lifetime")
	cmd.PersistentFlags().Int("retry-max", DefaultRetryMaxAttempts, "Maximum attempts per request (0 retries forever)")
	cmd.PersistentFlags().Float64("rate", DefaultRateLimitRPS, "Requests per second per host (0 for unlimited)")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (optional)")
}

// RegisterCrawlFlags registers the flags of the crawl command
func RegisterCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", DefaultOutput, "Output JSON file")
	cmd.Flags().StringSliceP("category", "c", DefaultCategories, "Categories to crawl in order (used, new)")
	cmd.Flags().Int("max-pages", 0, "Maximum listing pages per category (0 for all)")
	cmd.Flags().Int("concurrency", DefaultConcurrency, "Concurrent detail page fetches")
	cmd.Flags().Int("listing-concurrency", DefaultListingConcurrency, "Concurrent listing page fetches")
	cmd.Flags().Bool("full-size-photos", false, "Rewrite photo URLs to the original resolution")
	cmd.Flags().Bool("save-each", false, "Rewrite the output file after every record")
	cmd.Flags().Duration("crawl-timeout", 0, "Bound the whole crawl (0 for none)")
}
