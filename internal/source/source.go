// Package source describes the crawlable paper sources: their listing
// URL shape, page size, politeness profile and parser.
package source

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/virtual-factory/paperline/internal/fetcher"
	"github.com/virtual-factory/paperline/internal/listing"
)

// Known source names.
const (
	GScholar = "gscholar"
	Arxiv    = "arxiv"
)

// browserAgents is rotated for sources that block non-browser clients.
var browserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.1.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:77.0) Gecko/20100101 Firefox/77.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:77.0) Gecko/20100101 Firefox/77.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36",
}

// Source describes one crawlable paper source.
type Source struct {
	Name         string
	DefaultQuery string
	PageSize     int // results per listing page
	Profile      fetcher.Profile

	parser      listing.Parser
	urlTemplate func(query string, start int) string
}

// ListingURL builds the listing page URL for the zero-based page index.
// An empty query falls back to the source default. Queries pass through
// verbatim, so they use pre-encoded form ("lithium+ion").
func (s Source) ListingURL(query string, page int) string {
	if query == "" {
		query = s.DefaultQuery
	}
	return s.urlTemplate(query, page*s.PageSize)
}

// Parser returns the listing parser for this source.
func (s Source) Parser() listing.Parser { return s.parser }

// Catalog returns the built-in sources keyed by name.
func Catalog() map[string]Source {
	return map[string]Source{
		GScholar: {
			Name:         GScholar,
			DefaultQuery: "lithium+ion",
			PageSize:     10,
			Profile:      fetcher.Profile{MinDelay: 200 * time.Millisecond},
			parser:       listing.ScholarParser{},
			urlTemplate: func(query string, start int) string {
				// Scholar results are restricted to arXiv hosts so the
				// download links point at fetchable PDFs.
				return fmt.Sprintf("https://scholar.google.com/scholar?start=%d&q=%s+site%%3Aarxiv.org&hl=en&as_sdt=0,5", start, query)
			},
		},
		Arxiv: {
			Name:         Arxiv,
			DefaultQuery: "lithium+ion+battery",
			PageSize:     200,
			Profile: fetcher.Profile{
				MinDelay:       1 * time.Second,
				MaxDelay:       3 * time.Second,
				UserAgents:     browserAgents,
				BrowserHeaders: true,
			},
			parser: listing.ArxivParser{},
			urlTemplate: func(query string, start int) string {
				return fmt.Sprintf("https://arxiv.org/search/?searchtype=all&query=%s&abstracts=hide&size=200&order=&start=%d", query, start)
			},
		},
	}
}

// Lookup resolves a source by name.
func Lookup(name string) (Source, error) {
	s, ok := Catalog()[name]
	if !ok {
		return Source{}, eris.Errorf("source: unknown source %q", name)
	}
	return s, nil
}
