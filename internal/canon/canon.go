// Package canon renders matched field values into their canonical text form.
// Every transform fails open: input it cannot interpret is returned unchanged.
package canon

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind tags a raw value with the canonicalizer that applies to it.
type Kind int

const (
	KindAuto Kind = iota // classify the value at canonicalization time
	KindText
	KindProcessNumber
	KindCurrency
)

var kindNames = map[Kind]string{
	KindAuto:          "auto",
	KindText:          "text",
	KindProcessNumber: "process_number",
	KindCurrency:      "currency",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	if s == "" {
		*k = KindAuto
		return nil
	}
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown value kind %q", s)
}

var (
	currencyMarker = regexp.MustCompile(`R\s?\$`)
	// 1.234,56 | 1234,56 | 1.234
	brazilianAmount = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?$|^\d+,\d{1,2}$`)
)

// Classify decides which canonicalizer a raw value needs.
func Classify(raw string) Kind {
	s := strings.TrimSpace(raw)
	switch {
	case caseNumberRe.MatchString(s):
		return KindProcessNumber
	case currencyMarker.MatchString(s), brazilianAmount.MatchString(s):
		return KindCurrency
	default:
		return KindText
	}
}

var dispatch = map[Kind]func(string) string{
	KindText:          strings.TrimSpace,
	KindProcessNumber: CaseNumber,
	KindCurrency:      Currency,
}

// Canonicalize classifies raw and applies the matching transform.
func Canonicalize(raw string) string {
	return As(Classify(raw), raw)
}

// As applies the transform for kind; KindAuto classifies first.
func As(kind Kind, raw string) string {
	if kind == KindAuto {
		kind = Classify(raw)
	}
	fn, ok := dispatch[kind]
	if !ok {
		return raw
	}
	return fn(raw)
}

var (
	canonicalCurrency   = regexp.MustCompile(`^R\$ -?\d{1,3}(?:\.\d{3})*,\d{2}$`)
	canonicalCaseNumber = regexp.MustCompile(`^Nº \d{7}-\d{2}\.\d{4}\.\d\.\d{2}\.\d{4}$`)
)

// IsCanonical reports whether s is already in the canonical form of kind.
// Plain text and auto values always are.
func IsCanonical(kind Kind, s string) bool {
	switch kind {
	case KindCurrency:
		return canonicalCurrency.MatchString(s)
	case KindProcessNumber:
		return canonicalCaseNumber.MatchString(s)
	default:
		return true
	}
}
