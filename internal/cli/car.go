package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/law-makers/autospot-crawl/internal/crawlerr"
	"github.com/law-makers/autospot-crawl/internal/ui"
	"github.com/law-makers/autospot-crawl/internal/utils/output"
	urlutil "github.com/law-makers/autospot-crawl/internal/utils/url"
	"github.com/law-makers/autospot-crawl/pkg/models"
)

var carCategory string

// carCmd represents the car command
var carCmd = &cobra.Command{
	Use:   "car <url>",
	Short: "Fetch a single car page and print its record",
	Long: `Car fetches one car detail page, projects it into a record and prints it
as JSON. Nothing is written to the output file.

When --category is not given it is guessed from the URL.`,
	Example: `  # Print the record of a used car
  autospot car https://autospot.ru/used-car/kia/rio/12345

  # Force the new car layout
  autospot car https://autospot.ru/brands/kia/rio/sedan/12345 -c new`,
	Args: cobra.ExactArgs(1),
	RunE: runCar,
}

func init() {
	rootCmd.AddCommand(carCmd)
	carCmd.Flags().StringVarP(&carCategory, "category", "c", "", "Page layout: used or new (guessed from the URL when empty)")
	carCmd.Flags().Bool("full-size-photos", false, "Rewrite photo URLs to the original resolution")
}

func runCar(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	url := args[0]
	if err := urlutil.ValidateURL(url); err != nil {
		return crawlerr.Config("invalid car URL", err).WithDetail("url", url)
	}

	category, err := carPageCategory(url, carCategory)
	if err != nil {
		return crawlerr.Config("invalid category", err)
	}

	record, problems, err := a.NewDetailProcessor().Process(cmd.Context(), url, category)
	if err != nil {
		return err
	}

	if err := output.WriteJSON(cmd.OutOrStdout(), record); err != nil {
		return err
	}
	for _, p := range problems {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Warn("warning: ")+p.Error())
	}
	return nil
}

// carPageCategory resolves the category flag, falling back to the URL path
func carPageCategory(url, flag string) (models.Category, error) {
	if flag != "" {
		return models.ParseCategory(flag)
	}
	if strings.Contains(url, "/used-car/") {
		return models.CategoryUsed, nil
	}
	return models.CategoryNew, nil
}
