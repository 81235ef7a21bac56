package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/joseph-ayodele/court-captions/constants"
	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/fields"
	"github.com/joseph-ayodele/court-captions/internal/imageproc"
	"github.com/joseph-ayodele/court-captions/internal/ocr"
)

// Preset names.
const (
	PresetTextOnly       = "text-only"
	PresetCaptionSparse  = "caption-sparse"
	PresetCaptionSharpen = "caption-sharpen"
	PresetFullPageBlock  = "full-page-block"

	DefaultPreset = PresetCaptionSparse
)

// CaptionRegions are the caption block crops of a page rendered at 200 DPI.
var CaptionRegions = []imageproc.Region{
	{Left: 0, Top: 250, Right: 1550, Bottom: 724},
	{Left: 0, Top: 250, Right: 1650, Bottom: 864},
	{Left: 0, Top: 250, Right: 1650, Bottom: 690},
	{Left: 0, Top: 250, Right: 1650, Bottom: 724},
}

// FullPage covers any page; the cropper clips it to the image.
var FullPage = imageproc.Region{Left: 0, Top: 0, Right: 100000, Bottom: 100000}

const defaultOCRTimeout = common.Duration(60 * time.Second)

func captionPipeline(name string) PipelineConfig {
	return PipelineConfig{
		Name:       name,
		PageIndex:  constants.DefaultPageIndex,
		DPI:        200,
		Regions:    slices.Clone(CaptionRegions),
		Enhance:    imageproc.Enhancer{Threshold: imageproc.DefaultThreshold},
		OCR:        ocr.DefaultOptions(),
		OCRTimeout: defaultOCRTimeout,
		Policy:     PolicyFallback,
		TextMode:   fields.LineBounded,
		OCRMode:    fields.LabelBounded,
	}
}

func builtinPresets() map[string]PipelineConfig {
	textOnly := captionPipeline(PresetTextOnly)
	textOnly.Regions = nil
	textOnly.Policy = PolicyNever

	sparse := captionPipeline(PresetCaptionSparse)

	sharpen := captionPipeline(PresetCaptionSharpen)
	sharpen.Enhance = imageproc.Enhancer{SharpenOnly: true}

	block := captionPipeline(PresetFullPageBlock)
	block.Regions = []imageproc.Region{FullPage}
	block.OCR.PageSegMode = constants.PSMSingleBlock

	return map[string]PipelineConfig{
		textOnly.Name: textOnly,
		sparse.Name:   sparse,
		sharpen.Name:  sharpen,
		block.Name:    block,
	}
}

// Presets is a set of named pipeline configurations.
type Presets map[string]PipelineConfig

// BuiltinPresets returns a fresh copy of the presets shipped with the binary.
func BuiltinPresets() Presets {
	return builtinPresets()
}

// Names returns the preset names, sorted.
func (p Presets) Names() []string {
	return slices.Sorted(maps.Keys(p))
}

// Get returns a private copy of the named preset.
func (p Presets) Get(name string) (PipelineConfig, error) {
	c, ok := p[name]
	if !ok {
		return PipelineConfig{}, common.NewAppError(common.CodePreset,
			fmt.Sprintf("unknown preset %q (have %v)", name, p.Names()), common.ErrInvalidInput)
	}
	return c.Clone(), nil
}

// LoadPresetsFile reads a TOML presets file and merges it over the builtins.
// Each [[preset]] may name a base preset whose values it starts from:
//
//	[[preset]]
//	name = "caption-low-threshold"
//	base = "caption-sparse"
//	enhance = { threshold = 120 }
func LoadPresetsFile(path string) (Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewAppError(common.CodePreset, "read presets file "+path, err)
	}
	return ParsePresets(data)
}

type presetHeader struct {
	Name string `json:"name"`
	Base string `json:"base"`
}

// ParsePresets decodes TOML presets, validates them against the presets
// schema and returns the builtins extended with them.
func ParsePresets(data []byte) (Presets, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, common.NewAppError(common.CodePreset, "parse presets", err)
	}
	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, common.NewAppError(common.CodePreset, "encode presets", err)
	}
	if err := ValidatePresetsJSON(doc); err != nil {
		return nil, common.NewAppError(common.CodePreset, "invalid presets", err)
	}

	var file struct {
		Preset []json.RawMessage `json:"preset"`
	}
	if err := json.Unmarshal(doc, &file); err != nil {
		return nil, common.NewAppError(common.CodePreset, "decode presets", err)
	}

	out := BuiltinPresets()
	for _, msg := range file.Preset {
		var h presetHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, common.NewAppError(common.CodePreset, "decode preset header", err)
		}
		cfg := captionPipeline(h.Name)
		if h.Base != "" {
			base, err := out.Get(h.Base)
			if err != nil {
				return nil, err
			}
			cfg = base
		}
		dec := json.NewDecoder(bytes.NewReader(msg))
		if err := dec.Decode(&cfg); err != nil {
			return nil, common.NewAppError(common.CodePreset, fmt.Sprintf("decode preset %q", h.Name), err)
		}
		cfg.Name = h.Name
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, err := fields.NewMatcher(cfg.FieldTable(), cfg.TextMode); err != nil {
			return nil, err
		}
		out[cfg.Name] = cfg
	}
	return out, nil
}

// Resolve picks the preset named by the configuration and applies the
// configured overrides on top of it.
func Resolve(cfg *common.Config) (PipelineConfig, error) {
	presets := BuiltinPresets()
	if cfg.Pipeline.PresetsFile != "" {
		p, err := LoadPresetsFile(cfg.Pipeline.PresetsFile)
		if err != nil {
			return PipelineConfig{}, err
		}
		presets = p
	}
	name := cfg.Pipeline.Preset
	if name == "" {
		name = DefaultPreset
	}
	pc, err := presets.Get(name)
	if err != nil {
		return PipelineConfig{}, err
	}

	if cfg.Pipeline.PageIndex >= 0 {
		pc.PageIndex = cfg.Pipeline.PageIndex
	}
	if cfg.Pipeline.Policy != "" {
		p, err := ParsePolicy(cfg.Pipeline.Policy)
		if err != nil {
			return PipelineConfig{}, common.NewAppError(common.CodeConfig, "pipeline.policy", err)
		}
		pc.Policy = p
	}
	if cfg.Pipeline.BinarizeThreshold > 0 {
		pc.Enhance.Threshold = cfg.Pipeline.BinarizeThreshold
	}
	if cfg.PDF.DPI > 0 {
		pc.DPI = cfg.PDF.DPI
	}
	if cfg.OCR.Language != "" {
		pc.OCR.Language = cfg.OCR.Language
	}
	if cfg.OCR.Timeout > 0 {
		pc.OCRTimeout = cfg.OCR.Timeout
	}
	if err := pc.Validate(); err != nil {
		return PipelineConfig{}, err
	}
	return pc, nil
}
