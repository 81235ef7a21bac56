package extract

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/court-captions/constants"
	"github.com/joseph-ayodele/court-captions/internal/canon"
	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/fields"
	"github.com/joseph-ayodele/court-captions/internal/imageproc"
)

func TestBuiltinPresets(t *testing.T) {
	p := BuiltinPresets()
	assert.Equal(t, []string{PresetCaptionSharpen, PresetCaptionSparse, PresetFullPageBlock, PresetTextOnly}, p.Names())

	for _, name := range p.Names() {
		t.Run(name, func(t *testing.T) {
			cfg, err := p.Get(name)
			require.NoError(t, err)
			assert.NoError(t, cfg.Validate())
			assert.Equal(t, constants.DefaultPageIndex, cfg.PageIndex)
		})
	}

	sparse, _ := p.Get(PresetCaptionSparse)
	assert.Equal(t, PolicyFallback, sparse.Policy)
	assert.Equal(t, CaptionRegions, sparse.Regions)
	assert.Equal(t, constants.PSMSparseText, sparse.OCR.PageSegMode)
	assert.Equal(t, fields.LabelBounded, sparse.OCRMode)

	block, _ := p.Get(PresetFullPageBlock)
	assert.Equal(t, constants.PSMSingleBlock, block.OCR.PageSegMode)

	sharpen, _ := p.Get(PresetCaptionSharpen)
	assert.True(t, sharpen.Enhance.SharpenOnly)

	textOnly, _ := p.Get(PresetTextOnly)
	assert.Equal(t, PolicyNever, textOnly.Policy)
	assert.Empty(t, textOnly.Regions)
}

func TestPresets_GetReturnsCopy(t *testing.T) {
	p := BuiltinPresets()
	a, err := p.Get(PresetCaptionSparse)
	require.NoError(t, err)
	a.Regions[0].Right = 1

	b, _ := p.Get(PresetCaptionSparse)
	assert.Equal(t, 1550, b.Regions[0].Right)
	assert.Equal(t, 1550, CaptionRegions[0].Right)

	_, err = p.Get("nope")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestParsePresets(t *testing.T) {
	data := []byte(`
[[preset]]
name = "low-threshold"
base = "caption-sparse"
policy = "always"
ocr_timeout = "15s"
enhance = { threshold = 120 }

[[preset]]
name = "money-only"
policy = "never"
regions = []

[[preset.fields]]
name = "VALOR"
pattern = 'valor da causa:\s*(.+)'
kind = "currency"
`)
	p, err := ParsePresets(data)
	require.NoError(t, err)
	assert.Contains(t, p.Names(), PresetCaptionSparse)

	low, err := p.Get("low-threshold")
	require.NoError(t, err)
	assert.Equal(t, PolicyAlways, low.Policy)
	assert.Equal(t, 120, low.Enhance.Threshold)
	assert.Equal(t, 15*time.Second, low.OCRTimeout.Std())
	assert.Equal(t, CaptionRegions, low.Regions)
	assert.Equal(t, constants.DefaultLanguage, low.OCR.Language)

	money, err := p.Get("money-only")
	require.NoError(t, err)
	require.Len(t, money.Fields, 1)
	assert.Equal(t, canon.KindCurrency, money.Fields[0].Kind)
	assert.Empty(t, money.Regions)

	x, err := New(money, Deps{TextLayer: &fakeText{text: "Valor da causa: 1.500,00", ok: true}})
	require.NoError(t, err)
	res, err := x.Extract(t.Context(), testDoc())
	require.NoError(t, err)
	v, _ := res.Get("VALOR")
	assert.Equal(t, "R$ 1.500,00", v)

	// builtins are untouched by a preset derived from them
	sparse, _ := BuiltinPresets().Get(PresetCaptionSparse)
	assert.Equal(t, imageproc.DefaultThreshold, sparse.Enhance.Threshold)
}

func TestParsePresets_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not toml", `[[preset`},
		{"no presets", `title = "x"`},
		{"unknown key", "[[preset]]\nname = \"a\"\ncolour = \"red\""},
		{"bad policy", "[[preset]]\nname = \"a\"\npolicy = \"sometimes\""},
		{"bad threshold", "[[preset]]\nname = \"a\"\nenhance = { threshold = 400 }"},
		{"bad region", "[[preset]]\nname = \"a\"\nregions = [{ left = 10, top = 0, right = 5, bottom = 10 }]"},
		{"unknown base", "[[preset]]\nname = \"a\"\nbase = \"missing\""},
		{"bad pattern", "[[preset]]\nname = \"a\"\n[[preset.fields]]\nname = \"X\"\npattern = 'no group'"},
		{"missing name", "[[preset]]\npolicy = \"never\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePresets([]byte(tt.data))
			require.Error(t, err)
			var appErr *common.AppError
			assert.ErrorAs(t, err, &appErr)
		})
	}
}

func TestLoadPresetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[preset]]\nname = \"p2\"\nbase = \"caption-sparse\"\npage_index = 2\n"), 0o600))

	p, err := LoadPresetsFile(path)
	require.NoError(t, err)
	cfg, err := p.Get("p2")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.PageIndex)

	_, err = LoadPresetsFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	cfg := common.NewDefaultConfig()
	pc, err := Resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, PresetCaptionSparse, pc.Name)
	assert.Equal(t, constants.DefaultPageIndex, pc.PageIndex)
	assert.Equal(t, 200, pc.DPI)

	cfg.Pipeline.Preset = PresetFullPageBlock
	cfg.Pipeline.PageIndex = 0
	cfg.Pipeline.Policy = "always"
	cfg.Pipeline.BinarizeThreshold = 100
	cfg.PDF.DPI = 300
	cfg.OCR.Timeout = common.Duration(5 * time.Second)
	cfg.OCR.Language = "por+eng"
	pc, err = Resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, pc.PageIndex)
	assert.Equal(t, PolicyAlways, pc.Policy)
	assert.Equal(t, 100, pc.Enhance.Threshold)
	assert.Equal(t, 300, pc.DPI)
	assert.Equal(t, 5*time.Second, pc.OCRTimeout.Std())
	assert.Equal(t, "por+eng", pc.OCR.Language)

	cfg.Pipeline.Policy = "sometimes"
	_, err = Resolve(cfg)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	cfg.Pipeline.Policy = ""
	cfg.Pipeline.Preset = "missing"
	_, err = Resolve(cfg)
	assert.Error(t, err)
}
