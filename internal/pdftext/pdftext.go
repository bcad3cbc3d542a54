// Package pdftext extracts plain text from downloaded PDF documents.
package pdftext

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// Extract pulls the text of every page in order and concatenates it.
// NUL bytes in the output are replaced with U+FFFD so the text can be
// stored in a Postgres text column.
func Extract(data []byte) (text string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pdftext: parse: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", eris.Wrap(err, "pdftext: open document")
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", eris.Wrapf(err, "pdftext: page %d", i)
		}
		b.WriteString(content)
	}

	return normalize(b.String()), nil
}

func normalize(s string) string {
	return strings.ReplaceAll(s, "\x00", "�")
}
