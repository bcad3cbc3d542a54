package listing

import (
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/virtual-factory/paperline/internal/model"
)

// ScholarParser reads Google Scholar result pages. Each result exposes
// four parallel nodes: title, download link, author byline and the
// citation footer. A page where those lists disagree in length is
// malformed and rejected whole.
type ScholarParser struct{}

func (ScholarParser) Parse(r io.Reader) ([]model.PaperReference, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "listing: scholar: parse html")
	}

	titles := doc.Find("h3.gs_rt")
	links := doc.Find("div.gs_ggsd")
	bylines := doc.Find("div.gs_a")
	footers := doc.Find("div.gs_flb")

	n := titles.Length()
	if links.Length() != n || bylines.Length() != n || footers.Length() != n {
		return nil, eris.Errorf("listing: scholar: malformed page: %d titles, %d links, %d bylines, %d footers",
			n, links.Length(), bylines.Length(), footers.Length())
	}

	papers := make([]model.PaperReference, 0, n)
	for i := 0; i < n; i++ {
		link, ok := links.Eq(i).Find("a").First().Attr("href")
		if !ok {
			return nil, eris.Errorf("listing: scholar: result %d has no download href", i)
		}
		cited := citationCount(footers.Eq(i))
		papers = append(papers, model.PaperReference{
			Title:         cleanTitle(titles.Eq(i).Text()),
			Link:          link,
			Authors:       scholarAuthors(bylines.Eq(i).Text()),
			CitationCount: &cited,
			Aggregator:    isAggregator(link),
		})
	}
	return papers, nil
}

// citationCount finds the "Cited by N" anchor in a result footer and
// returns N, or 0 when the result has not been cited.
func citationCount(footer *goquery.Selection) int {
	count := 0
	footer.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := a.Text()
		if !strings.Contains(text, "Cited by") {
			return true
		}
		fields := strings.Fields(text)
		if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
			count = n
		}
		return false
	})
	return count
}

var ellipsisReplacer = strings.NewReplacer("…", "", "...", "")

// scholarAuthors turns a byline like "J Smith, A Jones… - Journal, 2020"
// into "J Smith, A Jones". Truncated fragments left behind by the
// ellipsis are dropped.
func scholarAuthors(byline string) string {
	head, _, _ := strings.Cut(byline, "-")
	var authors []string
	for _, part := range strings.Split(head, ",") {
		name := strings.TrimSpace(ellipsisReplacer.Replace(part))
		if utf8.RuneCountInString(strings.ReplaceAll(name, ".", "")) <= 1 {
			continue
		}
		authors = append(authors, name)
	}
	return strings.Join(authors, ", ")
}
