package fields

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/court-captions/internal/canon"
)

var (
	reHorizontalSpace = regexp.MustCompile(`[\t\f\v\p{Zs}]+`)
	reAnySpace        = regexp.MustCompile(`[\s\v\p{Zs}]+`)
)

// NormalizeWhitespace prepares text for line-bounded matching: symbols are
// normalized, line endings unified and horizontal whitespace runs collapsed
// to one space. Line breaks are kept.
func NormalizeWhitespace(text string) string {
	text = canon.NormalizeSymbols(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return reHorizontalSpace.ReplaceAllString(text, " ")
}

// Flatten prepares text for label-bounded matching: symbols are normalized
// and all whitespace, line breaks included, collapses to single spaces.
func Flatten(text string) string {
	text = canon.NormalizeSymbols(text)
	return strings.TrimSpace(reAnySpace.ReplaceAllString(text, " "))
}
