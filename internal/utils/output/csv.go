package output

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/law-makers/autospot-crawl/pkg/models"
)

// CSVHeader is the column order of WriteCSV
var CSVHeader = []string{
	"url", "category", "brand", "model", "generation", "price", "year",
	"mileage", "color", "city", "dealer", "photos", "options", "characteristics",
}

// WriteCSV flattens records into one row each. Photos are joined with
// spaces, a used car's dealer is its phone, options are written as "group: a; b" lines and the remaining
// nested values as compact JSON.
func WriteCSV(w io.Writer, records []models.CarRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row, err := csvRow(r)
		if err != nil {
			return err
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func csvRow(r models.CarRecord) ([]string, error) {
	dealer := deref(r.Dealer.Phone)
	if r.Dealer.Category == models.CategoryNew {
		b, err := json.Marshal(r.Dealer)
		if err != nil {
			return nil, err
		}
		dealer = string(b)
	}
	characteristics := "{}"
	if len(r.Characteristics) > 0 {
		characteristics = string(r.Characteristics)
	}

	return []string{
		r.URL,
		string(r.Category),
		deref(r.Brand),
		deref(r.Model),
		deref(r.Generation),
		formatFloat(r.Price),
		formatInt(r.Year),
		formatInt(r.Mileage),
		deref(r.Color),
		deref(r.City),
		dealer,
		strings.Join(r.Photos, " "),
		formatOptions(r.Options),
		characteristics,
	}, nil
}

func formatOptions(groups []models.OptionGroup) string {
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		lines = append(lines, g.Name+": "+strings.Join(g.List, "; "))
	}
	return strings.Join(lines, "\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

// SortByURL orders records by URL for stable exports
func SortByURL(records []models.CarRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].URL < records[j].URL })
}
