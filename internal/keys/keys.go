// Package keys derives stable meta field keys from human labels.
package keys

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a label normalizes to nothing.
const Fallback = "field"

// Normalize lowercases label, strips diacritics and collapses every run of
// non-alphanumerics to a single underscore. "Titre du cours" becomes
// "titre_du_cours" and "Année scolaire" becomes "annee_scolaire".
func Normalize(label string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, label)
	if err != nil {
		stripped = label
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return Fallback
	}
	return b.String()
}
