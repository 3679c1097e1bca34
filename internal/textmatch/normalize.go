// Package textmatch canonicalises script and transcript text and scores how
// closely two canonical strings agree.
//
// Matching is purely lexical: a normalised edit-distance ratio for whole
// strings, plus an exhaustive contiguous-token-span search used to decide
// whether a short transcript fragment plausibly belongs to a longer script
// line. Script lines are sentence-scale, so the quadratic span enumeration in
// [IsPlausibleSubstring] is affordable; it is not suitable for paragraph-scale
// input.
package textmatch

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// markupPattern matches angle-bracket tags such as <i> or </b>.
	markupPattern = regexp.MustCompile(`<.*?>`)

	// directionPattern matches *stage directions* between asterisk pairs.
	directionPattern = regexp.MustCompile(`\*(.*?)\*`)
)

// Normalize returns the comparable form of raw: markup and *directions*
// removed, lower-cased, every rune that is not an ASCII letter, digit or
// whitespace deleted, and a single trailing space dropped. Non-ASCII
// whitespace such as NBSP becomes a plain space so it still separates words.
//
// Normalize never fails; it may return the empty string.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := markupPattern.ReplaceAllString(raw, "")
	s = directionPattern.ReplaceAllString(s, "")
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case isSpace(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	out := b.String()
	return strings.TrimSuffix(out, " ")
}

// isSpace reports whether r is ASCII whitespace.
func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
