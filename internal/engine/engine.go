// Package engine drives the paginated crawl: listing discovery, detail
// fetching, projection and persistence.
package engine

import (
	"context"

	"github.com/law-makers/autospot-crawl/internal/fetch"
	"github.com/law-makers/autospot-crawl/pkg/models"
)

// Getter issues GET requests
type Getter interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*fetch.Response, error)
}

// TokenSource hands out the bearer token for listing requests
type TokenSource interface {
	Token(ctx context.Context, force bool) (string, error)
}

// Sink receives projected records
type Sink interface {
	Upsert(record models.CarRecord) (bool, error)
	Flush() error
}

// State is the controller phase
type State int

const (
	StateIdle State = iota
	StateFetchingListing
	StateExtractingDetailURLs
	StateFetchingDetail
	StateAdvancing
	StateSwitchingCategory
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingListing:
		return "fetching-listing"
	case StateExtractingDetailURLs:
		return "extracting-detail-urls"
	case StateFetchingDetail:
		return "fetching-detail"
	case StateAdvancing:
		return "advancing"
	case StateSwitchingCategory:
		return "switching-category"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
