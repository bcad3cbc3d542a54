// Package listing parses paper references out of search-result pages.
package listing

import (
	"io"
	"regexp"
	"strings"

	"github.com/virtual-factory/paperline/internal/model"
)

// Parser extracts paper references from one listing page.
type Parser interface {
	Parse(r io.Reader) ([]model.PaperReference, error)
}

// aggregatorHost marks links that point at an indexing mirror rather
// than a direct PDF. Those papers are stored without content.
const aggregatorHost = "core.ac.uk"

var bracketTagRe = regexp.MustCompile(`\[.*?\]`)

// cleanTitle drops inline markers like "[PDF]" or "[HTML]" and trims
// surrounding whitespace.
func cleanTitle(s string) string {
	return strings.TrimSpace(bracketTagRe.ReplaceAllString(s, ""))
}

func isAggregator(link string) bool {
	return strings.Contains(link, aggregatorHost)
}
