package rag

import (
	"fmt"
	"strings"

	"github.com/virtual-factory/paperline/internal/model"
)

// prepareContext formats one retrieved row for the prompt. Rows carrying a
// citation count get it rendered between the authors and the content.
func prepareContext(h model.SearchHit) string {
	if h.CitationCount != nil {
		return fmt.Sprintf("Title of the paper:%s, Authors of the paper: %s, Citations of the paper: %d, Content of the paper: %s",
			h.Title, h.Authors, *h.CitationCount, h.Content)
	}
	return fmt.Sprintf("Title of the paper:%s, Authors of the paper: %s, Content of the paper: %s",
		h.Title, h.Authors, h.Content)
}

// buildContext keeps rows in rank order while the running word budget holds.
// The first row that would cross the budget is excluded whole and assembly
// stops there.
func buildContext(hits []model.SearchHit, maxWords int) []string {
	var docs []string
	words := 0
	for _, h := range hits {
		c := prepareContext(h)
		n := len(strings.Fields(c))
		if words+n >= maxWords {
			break
		}
		docs = append(docs, c)
		words += n
	}
	return docs
}

// buildUserPrompt wraps each document in triple quotes and appends the question.
func buildUserPrompt(docs []string, question string) string {
	return "Relevant Documents: " + `"""` + strings.Join(docs, `"""`) + `"""` + " \n\nQuestion: " + question
}
