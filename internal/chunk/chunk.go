// Package chunk splits extracted paper text into fixed-size word windows
// for storage.
package chunk

import (
	"strings"

	"github.com/virtual-factory/paperline/internal/model"
)

// DefaultSize is the number of words per chunk.
const DefaultSize = 1000

// Split breaks content into consecutive windows of at most size words.
// Words are whitespace-delimited; empty content yields no chunks. A text
// of L words produces ceil(L/size) chunks, with the final chunk carrying
// the remainder. Invalid UTF-8 sequences are replaced with U+FFFD.
func Split(content string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		piece := strings.Join(words[start:end], " ")
		chunks = append(chunks, strings.ToValidUTF8(piece, "�"))
	}
	return chunks
}

// Build converts a scraped paper into storable chunk rows, numbered from
// zero in document order.
func Build(p model.ScrapedPaper, size int) []model.PaperChunk {
	pieces := Split(p.Content, size)
	chunks := make([]model.PaperChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, model.PaperChunk{
			Title:         p.Title,
			Link:          p.Link,
			Authors:       p.Authors,
			Content:       piece,
			ChunkNum:      i,
			CitationCount: p.CitationCount,
		})
	}
	return chunks
}
