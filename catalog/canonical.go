package catalog

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Canonical folds a free-text label for lookup: uppercase, trimmed, accents
// removed from vowels and inner whitespace collapsed to single spaces.
// Other marks such as the tilde in Ñ are kept.
func Canonical(label string) string {
	upper := strings.ToUpper(strings.TrimSpace(label))
	if upper == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			continue
		}
		base, _ := utf8.DecodeRuneInString(norm.NFD.String(string(r)))
		if strings.ContainsRune("AEIOU", base) {
			b.WriteRune(base)
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
