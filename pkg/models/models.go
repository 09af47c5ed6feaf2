package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category identifies one of the two listing trees of the marketplace
type Category string

const (
	CategoryUsed Category = "used"
	CategoryNew  Category = "new"
)

// ParseCategory converts user input into a Category
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "used", "used-car", "used-cars":
		return CategoryUsed, nil
	case "new", "new-car", "new-cars":
		return CategoryNew, nil
	default:
		return "", fmt.Errorf("unknown category %q (must be used or new)", s)
	}
}

// OptionGroup is a named group of equipment options
type OptionGroup struct {
	Name string   `json:"name"`
	List []string `json:"list"`
}

// DealerOffer is one dealer offering a new car
type DealerOffer struct {
	Name  *string `json:"name_dealer"`
	Phone *string `json:"phone_dealer"`
}

// Dealer holds dealer contact information. Its JSON shape depends on the
// category: used cars carry a single phone string, new cars a list of offers.
type Dealer struct {
	Category Category
	Phone    *string
	Offers   []DealerOffer
}

// UsedDealer builds the dealer variant for a used car
func UsedDealer(phone *string) Dealer {
	return Dealer{Category: CategoryUsed, Phone: phone}
}

// NewDealer builds the dealer variant for a new car
func NewDealer(offers []DealerOffer) Dealer {
	if offers == nil {
		offers = []DealerOffer{}
	}
	return Dealer{Category: CategoryNew, Offers: offers}
}

// MarshalJSON implements json.Marshaler
func (d Dealer) MarshalJSON() ([]byte, error) {
	if d.Category == CategoryNew {
		offers := d.Offers
		if offers == nil {
			offers = []DealerOffer{}
		}
		return json.Marshal(offers)
	}
	return json.Marshal(d.Phone)
}

// UnmarshalJSON implements json.Unmarshaler. A string or null decodes as the
// used variant, an array as the new variant.
func (d *Dealer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var offers []DealerOffer
		if err := json.Unmarshal(trimmed, &offers); err != nil {
			return err
		}
		*d = NewDealer(offers)
		return nil
	}

	var phone *string
	if err := json.Unmarshal(trimmed, &phone); err != nil {
		return err
	}
	*d = UsedDealer(phone)
	return nil
}

// CarRecord is the normalized output unit, unique by URL
type CarRecord struct {
	URL             string          `json:"url"`
	Category        Category        `json:"category"`
	Brand           *string         `json:"brand"`
	Model           *string         `json:"model"`
	Generation      *string         `json:"generation"`
	Price           *float64        `json:"price"`
	Year            *int            `json:"year"`
	Mileage         *int            `json:"mileage"`
	Color           *string         `json:"color"`
	Characteristics json.RawMessage `json:"characteristics"`
	Photos          []string        `json:"photos"`
	City            *string         `json:"city"`
	Dealer          Dealer          `json:"dealer"`
	Options         []OptionGroup   `json:"options"`
}

// CrawlCursor tracks pagination progress inside one category
type CrawlCursor struct {
	Category    Category
	CurrentPage int
	MaxPage     int
}

// Observe records a page count reported by a listing page. The cursor only
// ever grows its max page.
func (c *CrawlCursor) Observe(maxPage int) bool {
	if maxPage > c.MaxPage {
		c.MaxPage = maxPage
		return true
	}
	return false
}

// TokenState is the cached bearer credential
type TokenState struct {
	Token      string
	AcquiredAt time.Time
}

// Valid reports whether the token is non-empty and younger than ttl at now
func (s TokenState) Valid(now time.Time, ttl time.Duration) bool {
	if s.Token == "" || s.AcquiredAt.IsZero() {
		return false
	}
	return now.Sub(s.AcquiredAt) < ttl
}
