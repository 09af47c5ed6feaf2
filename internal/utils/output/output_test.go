package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/autospot-crawl/pkg/models"
)

func strp(s string) *string { return &s }

func TestWriteJSON_KeepsTextReadable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]string{"brand": "Škoda <Octavia> & Co"}))
	assert.Equal(t, "{\n  \"brand\": \"Škoda <Octavia> & Co\"\n}\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	price := 1250000.0
	year := 2019
	records := []models.CarRecord{
		{
			URL:             "https://autospot.ru/used-car/1",
			Category:        models.CategoryUsed,
			Brand:           strp("Kia"),
			Price:           &price,
			Year:            &year,
			Photos:          []string{"a.jpg", "b.jpg"},
			Dealer:          models.UsedDealer(strp("+7 495")),
			Options:         []models.OptionGroup{{Name: "Comfort", List: []string{"AC", "Heated seats"}}},
			Characteristics: json.RawMessage(`{"engine":"1.6"}`),
		},
		{
			URL:      "https://autospot.ru/new-car/2",
			Category: models.CategoryNew,
			Dealer:   models.NewDealer([]models.DealerOffer{{Name: strp("D"), Phone: strp("+7 1")}}),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])

	used := rows[1]
	assert.Equal(t, "used", used[1])
	assert.Equal(t, "Kia", used[2])
	assert.Equal(t, "1250000", used[5])
	assert.Equal(t, "2019", used[6])
	assert.Equal(t, "", used[7])
	assert.Equal(t, "+7 495", used[10])
	assert.Equal(t, "a.jpg b.jpg", used[11])
	assert.Equal(t, "Comfort: AC; Heated seats", used[12])
	assert.Equal(t, `{"engine":"1.6"}`, used[13])

	newCar := rows[2]
	assert.Equal(t, `[{"name_dealer":"D","phone_dealer":"+7 1"}]`, newCar[10])
	assert.Equal(t, "{}", newCar[13])
}

func TestSortByURL(t *testing.T) {
	records := []models.CarRecord{{URL: "b"}, {URL: "a"}, {URL: "c"}}
	SortByURL(records)
	assert.Equal(t, "a", records[0].URL)
	assert.Equal(t, "c", records[2].URL)
}
