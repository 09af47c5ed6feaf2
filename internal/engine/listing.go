package engine

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	urlutil "github.com/law-makers/autospot-crawl/internal/utils/url"
)

const (
	// PaginationSelector matches the items of the pagination widget
	PaginationSelector = "auto-pagination ul > li"
	// DetailLinkSelector matches the title link of every listing card
	DetailLinkSelector = "auto-car-card > article > div > header > h3 > a[href]"
)

// ParseMaxPage returns the largest page number shown in the pagination
// widget. ok is false when the widget holds no numeric text.
func ParseMaxPage(doc *goquery.Document) (maxPage int, ok bool) {
	doc.Find(PaginationSelector).Each(func(i int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			eachText(n, func(text string) {
				if page, isNum := pageNumber(text); isNum && page > maxPage {
					maxPage, ok = page, true
				}
			})
		}
	})
	return maxPage, ok
}

// ParseDetailURLs returns the absolute detail page URLs of the listing
// cards, in page order
func ParseDetailURLs(doc *goquery.Document, pageURL string) []string {
	var hrefs []string
	doc.Find(DetailLinkSelector).Each(func(i int, s *goquery.Selection) {
		if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" {
			hrefs = append(hrefs, href)
		}
	})
	return urlutil.ResolveAll(pageURL, hrefs)
}

func eachText(n *html.Node, fn func(string)) {
	if n.Type == html.TextNode {
		fn(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		eachText(c, fn)
	}
}

func pageNumber(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return n, true
}
