package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/law-makers/autospot-crawl/internal/config"
	"github.com/law-makers/autospot-crawl/internal/crawlerr"
	"github.com/law-makers/autospot-crawl/internal/ui"
	"github.com/law-makers/autospot-crawl/internal/utils/output"
)

var (
	exportFormat string
	exportTo     string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Convert the saved records to CSV or JSON",
	Long: `Export reads the records saved by crawl and writes them sorted by URL,
either as CSV with one row per car or as JSON.`,
	Example: `  # Print the saved records as CSV
  autospot export

  # Export a different output file to cars.csv
  autospot export -o cars.json --to cars.csv`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", config.DefaultOutput, "Records file written by crawl")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Export format: csv or json")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Destination file (stdout when empty)")
}

func runExport(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	format := strings.ToLower(exportFormat)
	if format != "csv" && format != "json" {
		return crawlerr.Config(fmt.Sprintf("unknown export format %q", exportFormat), nil)
	}

	st, err := a.OpenStore()
	if err != nil {
		return err
	}
	records := st.Records()
	output.SortByURL(records)

	var w io.Writer = cmd.OutOrStdout()
	if exportTo != "" {
		f, err := os.Create(exportTo)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportTo, err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		err = output.WriteCSV(w, records)
	} else {
		err = output.WriteJSON(w, records)
	}
	if err != nil {
		return fmt.Errorf("export records: %w", err)
	}

	if exportTo != "" {
		ui.Statusf(cmd.OutOrStdout(), true, "Exported %d records to %s", len(records), exportTo)
	}
	return nil
}
