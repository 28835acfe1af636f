// Package textnorm provides the text normalization shared by entity matching
// and cache keying: case folding, whitespace collapsing and accent folding.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldAccents removes diacritical marks ("mâle" -> "male").
func FoldAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize lowercases, accent-folds and collapses whitespace. Two queries
// that normalize identically share an embedding-cache key.
func Normalize(s string) string {
	s = strings.ToLower(FoldAccents(s))
	return strings.Join(strings.Fields(s), " ")
}

// ContainsPhrase reports whether phrase occurs in text on word boundaries.
// Both inputs are expected to be normalized already.
func ContainsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	start := 0
	for {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		idx += start
		if boundary(text, idx) && boundary(text, idx+len(phrase)) {
			return true
		}
		start = idx + 1
	}
}

func boundary(text string, i int) bool {
	if i <= 0 || i >= len(text) {
		return true
	}
	return !wordByte(text[i-1]) || !wordByte(text[i])
}

func wordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
