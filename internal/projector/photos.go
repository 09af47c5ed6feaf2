package projector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/law-makers/autospot-crawl/internal/utils/url"
)

const (
	// MediumMarker tags the gallery thumbnails worth keeping
	MediumMarker = "0x320"
	// FullSizeMarker requests the original resolution
	FullSizeMarker = "0x0"
)

// GallerySelector matches images in either gallery container
const GallerySelector = "auto-gallery img, auto-gallery-image img"

// ExtractPhotoSources returns the src of every gallery image in document order
func ExtractPhotoSources(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	var srcs []string
	doc.Find(GallerySelector).Each(func(i int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			srcs = append(srcs, src)
		}
	})
	return srcs
}

// NormalizePhotos keeps URLs containing marker, strips their query and
// drops duplicates, preserving first-seen order. A non-empty fullSize
// replaces marker in every kept URL before deduplication.
func NormalizePhotos(urls []string, marker, fullSize string) []string {
	out := []string{}
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if !strings.Contains(u, marker) {
			continue
		}
		clean := urlutil.StripQuery(u)
		if fullSize != "" {
			clean = strings.ReplaceAll(clean, marker, fullSize)
		}
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}
