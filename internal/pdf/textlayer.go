package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/court-captions/internal/ocr"
)

// TextLayerConfig configures the pdftotext invocation.
type TextLayerConfig struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Layout    bool   // keep physical layout (columns on one line)
}

// TextLayer reads the embedded text of a single page.
type TextLayer struct {
	cfg    TextLayerConfig
	runner ocr.Runner
	logger *slog.Logger
}

func NewTextLayer(cfg TextLayerConfig, runner ocr.Runner, logger *slog.Logger) *TextLayer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if runner == nil {
		runner = ocr.ExecRunner{Logger: logger}
	}
	return &TextLayer{cfg: cfg, runner: runner, logger: logger}
}

// PageCount parses the document in memory with pdfcpu.
func (t *TextLayer) PageCount(_ context.Context, doc Document) (int, error) {
	b, err := doc.Bytes()
	if err != nil {
		return 0, err
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadContext(bytes.NewReader(b), conf)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", doc.Name, err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return 0, fmt.Errorf("validate %s: %w", doc.Name, err)
	}
	return pdfCtx.PageCount, nil
}

// Read returns the text layer of pageIndex (zero-based). The boolean is false
// when the page does not exist, has no text, or pdftotext cannot read it; the
// caller falls back to OCR in every one of those cases.
func (t *TextLayer) Read(ctx context.Context, doc Document, pageIndex int) (string, bool) {
	if pageIndex < 0 {
		return "", false
	}
	if n, err := t.PageCount(ctx, doc); err != nil {
		t.logger.Warn("page count failed, trying pdftotext anyway", "document", doc.Name, "error", err)
	} else if pageIndex >= n {
		t.logger.Debug("page not found", "document", doc.Name, "page_index", pageIndex, "pages", n)
		return "", false
	}

	path, cleanup, err := doc.file()
	if err != nil {
		t.logger.Warn("document not readable", "document", doc.Name, "error", err)
		return "", false
	}
	defer cleanup()

	page := strconv.Itoa(pageIndex + 1)
	// pdftotext -f N -l N -enc UTF-8 -eol unix [-layout] <path> -
	args := []string{"-f", page, "-l", page, "-enc", "UTF-8", "-eol", "unix"}
	if t.cfg.Layout {
		args = append(args, "-layout")
	}
	args = append(args, path, "-")
	out, _, err := t.runner.Run(ctx, t.cfg.Pdftotext, nil, args...)
	if err != nil {
		return "", false
	}
	text := strings.ReplaceAll(string(out), "\f", "")
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}
