package canon

import (
	"fmt"
	"regexp"
)

// caseNumberRe matches the national unified number NNNNNNN-DD.AAAA.J.TR.OOOO,
// tolerating missing or space-padded separators as produced by OCR. The number
// must not be flanked by further digits.
var caseNumberRe = regexp.MustCompile(
	`(?:^|\D)(\d{7})\s*-?\s*(\d{2})\s*\.?\s*(\d{4})\s*\.?\s*(\d)\s*\.?\s*(\d{2})\s*\.?\s*(\d{4})(?:\D|$)`)

// CaseNumberLabel prefixes every canonical case number.
const CaseNumberLabel = "Nº"

// CaseNumber returns "Nº NNNNNNN-NN.NNNN.N.NN.NNNN" for the first case number
// found in raw, or raw unchanged when there is none.
func CaseNumber(raw string) string {
	m := caseNumberRe.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return fmt.Sprintf("%s %s-%s.%s.%s.%s.%s", CaseNumberLabel, m[1], m[2], m[3], m[4], m[5], m[6])
}
