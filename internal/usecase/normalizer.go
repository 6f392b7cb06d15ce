package usecase

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TokenSet is the set of normalized words of a product name
type TokenSet map[string]struct{}

// Has reports whether the token is in the set
func (s TokenSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Intersect counts the tokens present in both sets
func (s TokenSet) Intersect(other TokenSet) int {
	n := 0
	for t := range s {
		if other.Has(t) {
			n++
		}
	}
	return n
}

// catalogLetters are the non-ASCII letters kept by the normalizer
const catalogLetters = "áéíóúñü"

// keepRune reports whether a lowercased rune survives normalization.
// Everything else, punctuation and other accented letters included, is dropped.
func keepRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case unicode.IsSpace(r):
		return true
	}
	return strings.ContainsRune(catalogLetters, r)
}

// newNormalizeChain builds a fresh transformer per call; transformers keep state
// and must not be shared between goroutines.
func newNormalizeChain() transform.Transformer {
	return transform.Chain(
		norm.NFC,
		cases.Lower(language.Und),
		runes.Remove(runes.Predicate(func(r rune) bool { return !keepRune(r) })),
	)
}

// cleanText lowercases the text and strips every character outside the catalog alphabet.
// Removed characters are not replaced by spaces, so "Coca-Cola" becomes "cocacola".
func cleanText(text string) string {
	if text == "" {
		return ""
	}
	cleaned, _, err := transform.String(newNormalizeChain(), text)
	if err != nil {
		var b strings.Builder
		for _, r := range strings.ToLower(text) {
			if keepRune(r) {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	return cleaned
}

// Normalize turns a product name into its set of lowercase words.
// Casing, punctuation, word order and repeats never change the result.
func Normalize(text string) TokenSet {
	words := strings.Fields(cleanText(text))
	set := make(TokenSet, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// OverlapFraction returns the share of target tokens also found in the candidate.
// ok is false when the target has no tokens at all.
func OverlapFraction(target, candidate string) (fraction float64, ok bool) {
	targetTokens := Normalize(target)
	if len(targetTokens) == 0 {
		return 0, false
	}
	shared := targetTokens.Intersect(Normalize(candidate))
	return float64(shared) / float64(len(targetTokens)), true
}

// TokenOverlap reports whether at least threshold of the target's words appear in the candidate.
// An empty target never overlaps, so blank sheet cells cannot match every line.
func TokenOverlap(target, candidate string, threshold float64) bool {
	fraction, ok := OverlapFraction(target, candidate)
	if !ok {
		return false
	}
	return fraction >= threshold
}
