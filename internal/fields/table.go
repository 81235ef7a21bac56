package fields

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/court-captions/constants"
	"github.com/joseph-ayodele/court-captions/internal/canon"
	"github.com/joseph-ayodele/court-captions/internal/common"
)

// FieldPattern is a named regular expression with exactly one capturing
// group. Label is the stop-token expression other fields are truncated at in
// label-bounded mode; when empty it is derived from Name as `NAME\s*:`.
type FieldPattern struct {
	Name    string     `toml:"name" json:"name"`
	Pattern string     `toml:"pattern" json:"pattern"`
	Label   string     `toml:"label,omitempty" json:"label,omitempty"`
	Kind    canon.Kind `toml:"kind,omitempty" json:"kind,omitempty"`
}

// LabelExpr returns the effective stop-token expression.
func (p FieldPattern) LabelExpr() string {
	if p.Label != "" {
		return p.Label
	}
	return DefaultLabel(p.Name)
}

// DefaultLabel is `\bNAME\s*:` with NAME quoted.
func DefaultLabel(name string) string {
	return `\b` + regexp.QuoteMeta(name) + `\s*:`
}

// PartyPattern is the caption line pattern for a party label.
func PartyPattern(name string) string {
	return DefaultLabel(name) + `\s*(.+)`
}

// Table is an ordered list of field patterns with unique names.
type Table []FieldPattern

func (t Table) Names() []string {
	names := make([]string, len(t))
	for i, p := range t {
		names[i] = p.Name
	}
	return names
}

// Validate checks names only; expressions are checked by NewMatcher.
func (t Table) Validate() error {
	if len(t) == 0 {
		return common.NewAppError(common.CodePattern, "empty field table", common.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(t))
	for i, p := range t {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return common.NewAppError(common.CodePattern, fmt.Sprintf("field %d has no name", i), common.ErrInvalidInput)
		}
		if seen[name] {
			return common.NewAppError(common.CodePattern, fmt.Sprintf("duplicate field %q", name), common.ErrInvalidInput)
		}
		seen[name] = true
	}
	return nil
}

// caseNumberShape is the unified case number with its separators, tolerating
// single spaces OCR inserts around them.
const caseNumberShape = `\d{7}\s?-\s?\d{2}\s?\.\s?\d{4}\s?\.\s?\d\s?\.\s?\d{2}\s?\.\s?\d{4}`

// appealNumber follows "Apelação Cível"/"Apelação Criminal": an optional
// "nº"/"n."/"no" token, then the number. Like caseNumberShape it allows one
// space on each side of a separator.
const appealNumber = `\s*(?:n\s*[.ºo]{0,2}\s*)?:?\s*(\d+(?:\s?[.\-]\s?\d+)*)`

// DefaultTable returns the caption fields of appellate court decisions.
func DefaultTable() Table {
	t := make(Table, 0, len(constants.PartyFields)+4)
	for _, name := range constants.PartyFields {
		t = append(t, FieldPattern{Name: name, Pattern: PartyPattern(name), Kind: canon.KindText})
	}
	return append(t,
		FieldPattern{
			Name:    constants.FieldValor,
			Pattern: `R\s?\$\s*([\d.,]+)`,
			Label:   `R\s?\$`,
			Kind:    canon.KindCurrency,
		},
		FieldPattern{
			Name:    constants.FieldApelacaoCivel,
			Pattern: `Apela[cç][aã]o\s+C[ií]vel` + appealNumber,
			Label:   `Apela[cç][aã]o\s+C[ií]vel`,
			Kind:    canon.KindProcessNumber,
		},
		FieldPattern{
			Name:    constants.FieldApelacaoCrime,
			Pattern: `Apela[cç][aã]o\s+Criminal` + appealNumber,
			Label:   `Apela[cç][aã]o\s+Criminal`,
			Kind:    canon.KindProcessNumber,
		},
		FieldPattern{
			Name:    constants.FieldProcesso,
			Pattern: `(` + caseNumberShape + `)`,
			Label:   `\bPROCESSO\b`,
			Kind:    canon.KindProcessNumber,
		},
	)
}
