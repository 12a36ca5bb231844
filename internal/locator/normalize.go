package locator

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldName canonicalizes a human-facing name for comparison: strips
// diacritics, uppercases, maps hyphens and underscores to spaces and
// collapses runs of whitespace. "Mega-Sena" and "MEGA  SENA" fold equal.
func FoldName(s string) string {
	folded, _, err := transform.String(deaccent, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToUpper(folded)
	folded = strings.Map(func(r rune) rune {
		switch r {
		case '-', '_':
			return ' '
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// NormalizeMoney reduces a displayed monetary amount to digits and the
// decimal comma, so "R$ 7,50" and "7,50" compare equal. It performs no
// arithmetic; amounts are compared as normalized strings.
func NormalizeMoney(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == ',' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
