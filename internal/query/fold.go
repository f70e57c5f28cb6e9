// Package query filters and orders items for Fetch.
package query

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold maps s to a form where case and diacritics no longer matter:
// "Crème Brûlée" and "creme brulee" fold to the same string.
func Fold(s string) string {
	// transform.Chain carries state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}
