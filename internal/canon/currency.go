package canon

import (
	"regexp"
	"strconv"
	"strings"
)

var numericRun = regexp.MustCompile(`\d[\d.,]*\d|\d`)

// maxIntegerDigits keeps the cent value inside int64.
const maxIntegerDigits = 15

// Currency renders the first amount in raw as "R$ 1.234,56", reading '.' as
// the thousands separator and ',' as the decimal separator. Amounts that do
// not parse under that convention are returned unchanged.
func Currency(raw string) string {
	run := numericRun.FindString(raw)
	if run == "" {
		return raw
	}
	cents, ok := parseBRL(run)
	if !ok {
		return raw
	}
	return FormatBRL(cents)
}

// parseBRL converts "1.234,56" to 123456 cents.
func parseBRL(s string) (int64, bool) {
	intPart, frac, hasFrac := strings.Cut(s, ",")
	if hasFrac && (strings.ContainsAny(frac, ".,") || len(frac) == 0 || len(frac) > 2) {
		return 0, false
	}
	if strings.Contains(intPart, ".") {
		groups := strings.Split(intPart, ".")
		if len(groups[0]) == 0 || len(groups[0]) > 3 {
			return 0, false
		}
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return 0, false
			}
		}
		intPart = strings.Join(groups, "")
	}
	if len(intPart) == 0 || len(intPart) > maxIntegerDigits {
		return 0, false
	}
	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, false
	}
	var c int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		c, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, false
		}
	}
	return units*100 + c, true
}

// FormatBRL renders cents as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	digits := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	b.WriteString("R$ ")
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	frac := cents % 100
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}
