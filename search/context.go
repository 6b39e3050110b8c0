package search

import (
	"strings"

	"github.com/poiesic/newsrag/core"
)

// MaxSnippetChars caps the article text quoted per result in a context block.
const MaxSnippetChars = 1000

// BuildContext renders the first limit results as the prompt context:
// one Title/URL/Content block per result, blank-line separated.
// Image results add an Image line naming the picture that matched.
func BuildContext(results []*core.RankedResult, limit int) string {
	if limit > len(results) {
		limit = len(results)
	}
	blocks := make([]string, 0, max(limit, 0))
	for _, r := range results[:max(limit, 0)] {
		meta := r.Record.Metadata
		var sb strings.Builder
		sb.WriteString("Title: ")
		sb.WriteString(meta.Title)
		sb.WriteString("\nURL: ")
		sb.WriteString(meta.URL)
		if r.Record.Modality == core.ModalityImage && meta.ImageURL != "" {
			sb.WriteString("\nImage: ")
			sb.WriteString(meta.ImageURL)
		}
		sb.WriteString("\nContent: ")
		sb.WriteString(truncate(meta.Snippet, MaxSnippetChars))
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
