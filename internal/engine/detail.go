package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/autospot-crawl/internal/crawlerr"
	"github.com/law-makers/autospot-crawl/internal/projector"
	"github.com/law-makers/autospot-crawl/internal/stateblob"
	"github.com/law-makers/autospot-crawl/pkg/models"
)

// DetailProcessor turns a detail page into a CarRecord
type DetailProcessor struct {
	getter         Getter
	fullSizePhotos bool
}

// NewDetailProcessor creates a processor. With fullSizePhotos the gallery
// URLs are rewritten to the original resolution.
func NewDetailProcessor(getter Getter, fullSizePhotos bool) *DetailProcessor {
	return &DetailProcessor{getter: getter, fullSizePhotos: fullSizePhotos}
}

// Process fetches url without credentials and projects it. Projection
// problems are returned alongside a usable record; a fetch or parse failure
// returns an error and no record.
func (p *DetailProcessor) Process(ctx context.Context, url string, category models.Category) (models.CarRecord, []error, error) {
	resp, err := p.getter.Fetch(ctx, url, nil)
	if err != nil {
		return models.CarRecord{}, nil, err
	}
	if !resp.OK() {
		return models.CarRecord{}, nil, crawlerr.Fetch(fmt.Sprintf("detail page returned status %d", resp.StatusCode), nil).
			WithDetail("url", url).
			WithDetail("category", string(category))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return models.CarRecord{}, nil, crawlerr.Parse("parse detail page", err).WithDetail("url", url)
	}

	blob, err := stateblob.ExtractDocument(doc, resp.Body)
	if err != nil {
		return models.CarRecord{}, nil, crawlerr.Parse("extract state blob", err).
			WithDetail("url", url).
			WithDetail("category", string(category))
	}

	fullSize := ""
	if p.fullSizePhotos {
		fullSize = projector.FullSizeMarker
	}
	photos := projector.NormalizePhotos(projector.ExtractPhotoSources(doc), projector.MediumMarker, fullSize)

	record, problems := projector.Project(url, blob, category, photos)
	for _, problem := range problems {
		log.Warn().Err(problem).Str("url", url).Str("category", string(category)).Msg("Incomplete record")
	}

	log.Debug().
		Str("url", url).
		Int("keys", blob.Len()).
		Int("photos", len(photos)).
		Int("option_groups", len(record.Options)).
		Msg("Detail page projected")

	return record, problems, nil
}
