package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// pollutantCleaner strips every Unicode punctuation rune. The ECHO parameter
// descriptions appear in punctuation variants ("Nitrogen, total [as N]" vs
// "Nitrogen total [as N]"); the letters are stable, the punctuation is not.
var pollutantCleaner = runes.Remove(runes.In(unicode.P))

// NormalizePollutant canonicalizes a pollutant display name for comparison:
// punctuation removed, lowercased, runs of whitespace collapsed to one space.
func NormalizePollutant(s string) string {
	cleaned, _, err := transform.String(pollutantCleaner, s)
	if err != nil {
		cleaned = s
	}
	return strings.Join(strings.Fields(strings.ToLower(cleaned)), " ")
}
