package listing

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/virtual-factory/paperline/internal/model"
)

// ArxivParser reads arXiv search listing pages. Results are card
// elements; a card without a PDF link is skipped rather than failing
// the page.
type ArxivParser struct{}

func (ArxivParser) Parse(r io.Reader) ([]model.PaperReference, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "listing: arxiv: parse html")
	}

	var papers []model.PaperReference
	doc.Find("li.arxiv-result").Each(func(_ int, card *goquery.Selection) {
		link, ok := card.Find("p.list-title span a").First().Attr("href")
		if !ok {
			return
		}
		papers = append(papers, model.PaperReference{
			Title:      cleanTitle(card.Find("p.title").First().Text()),
			Link:       link,
			Authors:    arxivAuthors(card.Find("p.authors").First().Text()),
			Aggregator: isAggregator(link),
		})
	})
	return papers, nil
}

// arxivAuthors strips the "Authors:" label and renders the names as a
// single comma-separated string.
func arxivAuthors(text string) string {
	text = strings.TrimPrefix(strings.TrimSpace(text), "Authors:")
	var authors []string
	for _, part := range strings.Split(text, ",") {
		if name := strings.TrimSpace(part); name != "" {
			authors = append(authors, name)
		}
	}
	return strings.Join(authors, ", ")
}
