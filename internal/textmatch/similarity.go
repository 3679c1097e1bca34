package textmatch

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// maxSubstringRatio is the candidate/full length ratio above which a
// candidate is treated as the whole string rather than a sub-span of it.
const maxSubstringRatio = 0.99

// Similarity returns 1 - editDistance(a, b) / max(len(a), len(b)).
// It returns 0 when either string is empty. The score is symmetric but is not
// a metric.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	distance := matchr.Levenshtein(a, b)
	longest := max(len(a), len(b))
	return 1 - float64(distance)/float64(longest)
}

// IsMatch reports whether Similarity(a, b) reaches threshold.
func IsMatch(a, b string, threshold float64) bool {
	return Similarity(a, b) >= threshold
}

// IsPlausibleSubstring reports whether candidate is close enough to some
// contiguous run of whitespace-delimited tokens of full.
//
// A candidate that is empty, or longer than 99% of full, is rejected outright.
// Every span (i..j) of the tokens of full is rebuilt as a space-joined string
// and compared with [Similarity]; the first span scoring at least threshold
// wins. Cost is quadratic in the token count of full.
func IsPlausibleSubstring(full, candidate string, threshold float64) bool {
	if candidate == "" || float64(len(candidate)) > maxSubstringRatio*float64(len(full)) {
		return false
	}
	words := strings.Fields(full)
	for i := range words {
		span := words[i]
		if Similarity(span, candidate) >= threshold {
			return true
		}
		for j := i + 1; j < len(words); j++ {
			span += " " + words[j]
			if Similarity(span, candidate) >= threshold {
				return true
			}
		}
	}
	return false
}

// Spans returns every contiguous token span of full in enumeration order
// (by start token, then by end token). It exists for diagnostics and tests;
// [IsPlausibleSubstring] builds the same spans incrementally.
func Spans(full string) []string {
	words := strings.Fields(full)
	spans := make([]string, 0, len(words)*(len(words)+1)/2)
	for i := range words {
		span := words[i]
		spans = append(spans, span)
		for j := i + 1; j < len(words); j++ {
			span += " " + words[j]
			spans = append(spans, span)
		}
	}
	return spans
}
