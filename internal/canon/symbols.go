package canon

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// OrdinalIndicator is the canonical glyph for "nº".
const OrdinalIndicator = 'º'

// ordinalLookalikes are glyphs OCR and PDF fonts substitute for º.
var ordinalLookalikes = map[rune]bool{
	'°': true, // degree sign
	'˚': true, // ring above
	'ᵒ': true, // modifier small o
	'®': true,
	'¢': true,
}

func mapSymbol(r rune) rune {
	if ordinalLookalikes[r] {
		return OrdinalIndicator
	}
	return r
}

// NormalizeSymbols composes text to NFC and folds ordinal look-alikes onto º.
func NormalizeSymbols(text string) string {
	t := transform.Chain(norm.NFC, runes.Map(mapSymbol))
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}
