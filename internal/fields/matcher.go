// Package fields locates named caption fields inside page or OCR text.
package fields

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/court-captions/internal/canon"
	"github.com/joseph-ayodele/court-captions/internal/common"
)

// Mode selects how far a captured value runs.
type Mode int

const (
	// LineBounded values end at the next newline.
	LineBounded Mode = iota
	// LabelBounded values end where any other field label starts. Used for
	// OCR output, where line breaks are unreliable.
	LabelBounded
)

func (m Mode) String() string {
	switch m {
	case LineBounded:
		return "line"
	case LabelBounded:
		return "label"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "line", "line-bounded":
		*m = LineBounded
	case "label", "label-bounded":
		*m = LabelBounded
	default:
		return fmt.Errorf("unknown match mode %q", string(b))
	}
	return nil
}

// Matches maps field name to the trimmed captured value. Absent keys did not match.
type Matches map[string]string

func (m Matches) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

type compiledField struct {
	name    string
	kind    canon.Kind
	pattern *regexp.Regexp
	label   *regexp.Regexp
}

// Matcher is compiled once and safe for concurrent use.
type Matcher struct {
	mode   Mode
	fields []compiledField
}

// NewMatcher compiles every pattern and label case-insensitively. A pattern
// must have exactly one capturing group.
func NewMatcher(table Table, mode Mode) (*Matcher, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	m := &Matcher{mode: mode, fields: make([]compiledField, 0, len(table))}
	for _, p := range table {
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return nil, common.NewAppError(common.CodePattern, fmt.Sprintf("field %q: bad pattern", p.Name), err)
		}
		if n := re.NumSubexp(); n != 1 {
			return nil, common.NewAppError(common.CodePattern,
				fmt.Sprintf("field %q: pattern has %d capturing groups, want 1", p.Name, n), common.ErrInvalidInput)
		}
		label, err := regexp.Compile("(?i)" + p.LabelExpr())
		if err != nil {
			return nil, common.NewAppError(common.CodePattern, fmt.Sprintf("field %q: bad label", p.Name), err)
		}
		m.fields = append(m.fields, compiledField{name: p.Name, kind: p.Kind, pattern: re, label: label})
	}
	return m, nil
}

func (m *Matcher) Mode() Mode { return m.mode }

// Names returns the configured field names in table order.
func (m *Matcher) Names() []string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.name
	}
	return names
}

// Kind returns the canonicalization kind configured for name.
func (m *Matcher) Kind(name string) canon.Kind {
	for _, f := range m.fields {
		if f.name == name {
			return f.kind
		}
	}
	return canon.KindAuto
}

// Match searches the normalized text for every field. The first match of a
// pattern wins; a field with no match, or an empty capture, is absent.
func (m *Matcher) Match(text string) Matches {
	out := make(Matches)
	if strings.TrimSpace(text) == "" {
		return out
	}
	if m.mode == LabelBounded {
		text = Flatten(text)
	} else {
		text = NormalizeWhitespace(text)
	}
	for i, f := range m.fields {
		loc := f.pattern.FindStringSubmatchIndex(text)
		if loc == nil || loc[2] < 0 {
			continue
		}
		start, end := loc[2], loc[3]
		if m.mode == LabelBounded {
			end = m.stopAt(i, text, start, end)
		} else if nl := strings.IndexByte(text[start:end], '\n'); nl >= 0 {
			end = start + nl
		}
		if v := strings.TrimSpace(text[start:end]); v != "" {
			out[f.name] = v
		}
	}
	return out
}

// stopAt returns the earliest start of another field's label inside
// text[start:end], or end when there is none.
func (m *Matcher) stopAt(self int, text string, start, end int) int {
	span := text[start:end]
	for j, other := range m.fields {
		if j == self {
			continue
		}
		if loc := other.label.FindStringIndex(span); loc != nil && start+loc[0] < end {
			end = start + loc[0]
			span = text[start:end]
		}
	}
	return end
}
