package listing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arxivPage = `<!DOCTYPE html><html><body><ol>
<li class="arxiv-result">
  <p class="list-title is-inline-block">
    <a href="https://arxiv.org/abs/2301.00001">arXiv:2301.00001</a>
    <span>&nbsp;[<a href="https://arxiv.org/pdf/2301.00001">pdf</a>, <a href="https://arxiv.org/format/2301.00001">other</a>]</span>
  </p>
  <p class="title is-5 mathjax">Fast-charging protocols for lithium-ion cells</p>
  <p class="authors"><span class="has-text-black-bis has-text-weight-semibold">Authors:</span>
    <a href="/a/doe_j_1">John Doe</a>,
    <a href="/a/roe_j_1">Jane Roe</a>
  </p>
</li>
<li class="arxiv-result">
  <p class="list-title is-inline-block">
    <a href="https://arxiv.org/abs/2301.00002">arXiv:2301.00002</a>
  </p>
  <p class="title is-5 mathjax">Withdrawn manuscript</p>
  <p class="authors"><span>Authors:</span> <a href="/a/x">Solo Author</a></p>
</li>
<li class="arxiv-result">
  <p class="list-title is-inline-block">
    <a href="https://arxiv.org/abs/2301.00003">arXiv:2301.00003</a>
    <span>&nbsp;[<a href="https://arxiv.org/pdf/2301.00003">pdf</a>]</span>
  </p>
  <p class="title is-5 mathjax">Electrolyte additives [v2]</p>
  <p class="authors"><span>Authors:</span> <a href="/a/y">Ada Lovelace</a></p>
</li>
</ol></body></html>`

func TestArxivParse(t *testing.T) {
	papers, err := ArxivParser{}.Parse(strings.NewReader(arxivPage))
	require.NoError(t, err)

	// The middle card offers no PDF link and is dropped.
	require.Len(t, papers, 2)

	assert.Equal(t, "Fast-charging protocols for lithium-ion cells", papers[0].Title)
	assert.Equal(t, "https://arxiv.org/pdf/2301.00001", papers[0].Link)
	assert.Equal(t, "John Doe, Jane Roe", papers[0].Authors)
	assert.Nil(t, papers[0].CitationCount)
	assert.False(t, papers[0].Aggregator)

	assert.Equal(t, "Electrolyte additives", papers[1].Title)
	assert.Equal(t, "https://arxiv.org/pdf/2301.00003", papers[1].Link)
	assert.Equal(t, "Ada Lovelace", papers[1].Authors)
}

func TestArxivParse_EmptyPage(t *testing.T) {
	papers, err := ArxivParser{}.Parse(strings.NewReader("<html><body><p>No results</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestArxivAuthors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"labelled", "Authors:\n  John Doe, \n  Jane Roe\n", "John Doe, Jane Roe"},
		{"single", "Authors: Solo Author", "Solo Author"},
		{"trailing comma", "Authors: A One, B Two,", "A One, B Two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, arxivAuthors(tt.text))
		})
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"pdf marker", "[PDF] Aging mechanisms", "Aging mechanisms"},
		{"html marker", "  [HTML][HTML] Cathode design  ", "Cathode design"},
		{"version marker", "Electrolyte additives [v2]", "Electrolyte additives"},
		{"plain", "No markers here", "No markers here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanTitle(tt.in))
		})
	}
}
