package openai

import (
	"strings"
	"unicode/utf8"
)

// truncateRunes shortens s to at most n runes, cutting at the last space
// when one is close to the limit.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)[:n]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)*3/4 {
		cut = cut[:i]
	}
	return cut
}

// cleanAnswer trims whitespace and strips a leading "Answer:" echo that
// small models tend to produce.
func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Answer:")
	return strings.TrimSpace(s)
}
