// Package slug derives URL-safe identity tokens from display names.
//
// Category and subcategory identity in the catalog is the slug of the name,
// so every lookup by name must go through Make.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// special holds letters that NFD does not decompose into base + mark.
var special = strings.NewReplacer(
	"ł", "l", "Ł", "l",
	"ß", "ss", "ẞ", "ss",
	"æ", "ae", "Æ", "ae",
	"œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o",
	"đ", "d", "Đ", "d",
	"ħ", "h", "Ħ", "h",
	"ı", "i",
	"þ", "th", "Þ", "th",
)

// Make folds diacritics, lowercases, and collapses every run of characters
// outside [a-z0-9] into a single hyphen. Leading and trailing hyphens are
// trimmed. Make is total and idempotent: Make(Make(s)) == Make(s).
func Make(s string) string {
	s = special.Replace(s)

	// A fresh transformer per call; transform.Chain is not safe for concurrent use.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// Valid reports whether s is a non-empty, already normalized slug.
func Valid(s string) bool {
	return s != "" && Make(s) == s
}
