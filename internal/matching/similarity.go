package matching

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"bookkeeping-go/internal/vectorstore"
)

// TextSimilarity is the normalized edit-distance ratio of a and b in [0,1],
// compared case-insensitively. Two empty strings are identical.
func TextSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return float64(maxLen-d) / float64(maxLen)
}

// CosineSimilarity of two embedding vectors.
func CosineSimilarity(a, b []float32) float64 {
	return vectorstore.Cosine(a, b)
}
