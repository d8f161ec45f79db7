// CLAUDE:SUMMARY Label normalization strategies (compact, compact+strip-accents, none) for cluster synonym matching.
package galaxy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer transforms a label before indexing or lookup.
// The same function is applied to cluster values, synonyms and queries,
// so both sides of a lookup always collapse the same way.
type Normalizer func(string) string

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeCompact lowercases a label, strips every whitespace rune and
// removes joining punctuation, so "APT 28", "apt-28", "APT_28" and "apt28"
// all produce the key "apt28".
func NormalizeCompact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			continue
		}
		switch r {
		case '-', '_', '.', '\'', ',':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeCompactASCII is NormalizeCompact plus accent folding
// (e.g. "Machète" -> "machete").
func NormalizeCompactASCII(s string) string {
	folded, _, _ := transform.String(stripAccents, s)
	return NormalizeCompact(folded)
}

// NormalizeNone returns the label unchanged.
func NormalizeNone(s string) string {
	return s
}

// GetNormalizer returns the normalizer for the given mode.
// Default is compact.
func GetNormalizer(mode string) Normalizer {
	switch mode {
	case "compact":
		return NormalizeCompact
	case "compact_ascii":
		return NormalizeCompactASCII
	case "none":
		return NormalizeNone
	default:
		return NormalizeCompact
	}
}
