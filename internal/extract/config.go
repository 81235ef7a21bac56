package extract

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/fields"
	"github.com/joseph-ayodele/court-captions/internal/imageproc"
	"github.com/joseph-ayodele/court-captions/internal/ocr"
)

// Policy decides when OCR runs after the text layer was read.
type Policy string

const (
	// PolicyFallback runs OCR only when the text layer produced no field.
	PolicyFallback Policy = "fallback"
	// PolicyAlways runs OCR on every document; OCR values only fill gaps.
	PolicyAlways Policy = "always"
	// PolicyNever reads the text layer only.
	PolicyNever Policy = "never"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyFallback, PolicyAlways, PolicyNever:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown ocr policy %q", common.ErrInvalidInput, s)
	}
}

// PipelineConfig is everything one extraction run needs besides its
// collaborators. It is read-only once handed to an Extractor and may be shared
// by concurrent extractions.
type PipelineConfig struct {
	Name       string             `toml:"name" json:"name"`
	PageIndex  int                `toml:"page_index" json:"page_index"`
	DPI        int                `toml:"dpi" json:"dpi"`
	Regions    []imageproc.Region `toml:"regions" json:"regions"`
	Enhance    imageproc.Enhancer `toml:"enhance" json:"enhance"`
	OCR        ocr.Options        `toml:"ocr" json:"ocr"`
	OCRTimeout common.Duration    `toml:"ocr_timeout" json:"ocr_timeout"`
	Policy     Policy             `toml:"policy" json:"policy"`
	TextMode   fields.Mode        `toml:"text_mode" json:"text_mode"`
	OCRMode    fields.Mode        `toml:"ocr_mode" json:"ocr_mode"`
	Fields     fields.Table       `toml:"fields" json:"fields,omitempty"` // empty -> fields.DefaultTable()
}

// Clone returns a copy that shares no slices with c.
func (c PipelineConfig) Clone() PipelineConfig {
	c.Regions = slices.Clone(c.Regions)
	c.Fields = slices.Clone(c.Fields)
	return c
}

// FieldTable returns the configured table or the default one.
func (c PipelineConfig) FieldTable() fields.Table {
	if len(c.Fields) == 0 {
		return fields.DefaultTable()
	}
	return c.Fields
}

func (c PipelineConfig) Validate() error {
	v := common.NewValidator()
	v.Field("name", c.Name, common.Required)
	v.Field("page_index", c.PageIndex, common.IntRange(0, 1<<16))
	v.Field("dpi", c.DPI, common.IntRange(50, 1200))
	v.Field("policy", string(c.Policy), common.OneOf(string(PolicyFallback), string(PolicyAlways), string(PolicyNever)))
	v.Field("enhance.threshold", c.Enhance.Threshold, common.IntRange(0, 255))
	v.Field("ocr.psm", c.OCR.PageSegMode, common.IntRange(0, 13))
	if c.Policy != PolicyNever && len(c.Regions) == 0 {
		v.Field("regions", "", common.Required)
	}
	if err := v.Error(); err != nil {
		return common.NewAppError(common.CodePreset, fmt.Sprintf("pipeline %q", c.Name), fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	for i, r := range c.Regions {
		if err := r.Validate(); err != nil {
			return common.NewAppError(common.CodePreset, fmt.Sprintf("pipeline %q region %d", c.Name, i), err)
		}
	}
	return c.FieldTable().Validate()
}
