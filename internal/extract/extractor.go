// Package extract turns one court document into an ExtractionResult: the text
// layer is read first and OCR over configured caption regions fills in what
// it could not provide.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/court-captions/constants"
	"github.com/joseph-ayodele/court-captions/internal/canon"
	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/fields"
	"github.com/joseph-ayodele/court-captions/internal/imageproc"
	"github.com/joseph-ayodele/court-captions/internal/ocr"
	"github.com/joseph-ayodele/court-captions/internal/pdf"
)

// Deps are the collaborators of an Extractor. Pages and Sink are optional;
// Rasterizer and Engine may be nil only with PolicyNever.
type Deps struct {
	TextLayer  TextLayerReader
	Pages      PageCounter
	Rasterizer Rasterizer
	Engine     ocr.Engine
	Sink       Sink
	Logger     *slog.Logger
}

// Extractor runs the pipeline for one document at a time. It holds no
// per-document state, so one Extractor may serve concurrent Extract calls.
type Extractor struct {
	cfg         PipelineConfig
	deps        Deps
	logger      *slog.Logger
	textMatcher *fields.Matcher
	ocrMatcher  *fields.Matcher
	cropper     imageproc.Cropper
}

func New(cfg PipelineConfig, deps Deps) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Policy != PolicyNever && (deps.Rasterizer == nil || deps.Engine == nil) {
		return nil, fmt.Errorf("%w: policy %q needs a rasterizer and an ocr engine", ocr.ErrEngineUnavailable, cfg.Policy)
	}
	table := cfg.FieldTable()
	textMatcher, err := fields.NewMatcher(table, cfg.TextMode)
	if err != nil {
		return nil, err
	}
	ocrMatcher, err := fields.NewMatcher(table, cfg.OCRMode)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:         cfg.Clone(),
		deps:        deps,
		logger:      deps.Logger,
		textMatcher: textMatcher,
		ocrMatcher:  ocrMatcher,
	}, nil
}

// Config returns a copy of the pipeline configuration.
func (e *Extractor) Config() PipelineConfig { return e.cfg.Clone() }

// Fields returns the configured field names in result order.
func (e *Extractor) Fields() []string { return e.textMatcher.Names() }

// Extract runs the text layer, then OCR as the policy requires, and returns
// the result. Recovered failures are recorded as diagnostics; the only error
// returned is ocr.ErrEngineUnavailable, which means no document can succeed.
func (e *Extractor) Extract(ctx context.Context, doc pdf.Document) (*Result, error) {
	res := newResult(doc.Name, doc.Path, e.cfg.Name, e.cfg.PageIndex, e.textMatcher.Names())
	logger := common.LoggerFromContext(ctx, e.logger).With("result_id", res.ID)
	if common.DocumentFromContext(ctx) == "" {
		logger = logger.With("document", doc.Name)
	}
	defer func() {
		res.Duration = time.Since(res.StartedAt)
		logger.Info("extraction finished",
			"state", res.State,
			"fields", res.Found(),
			"diagnostics", len(res.Diagnostics),
			"duration_ms", res.Duration.Milliseconds(),
		)
	}()

	if e.pageOutOfRange(ctx, doc, res, logger) {
		res.State = constants.StatePageOutOfRange
		return res, nil
	}

	res.State = constants.StateTextLayerAttempted
	e.readTextLayer(ctx, doc, res, logger)

	if !e.needsOCR(res) {
		res.State = constants.StateSatisfied
		return res, nil
	}
	res.State = constants.StateNeedsOCR
	if e.cfg.Policy == PolicyNever {
		res.State = constants.StateDone
		return res, nil
	}

	res.State = constants.StateOCRAttempted
	if err := e.runOCR(ctx, doc, res, logger); err != nil {
		return res, err
	}
	res.State = constants.StateDone
	return res, nil
}

func (e *Extractor) pageOutOfRange(ctx context.Context, doc pdf.Document, res *Result, logger *slog.Logger) bool {
	if e.deps.Pages == nil {
		return false
	}
	n, err := e.deps.Pages.PageCount(ctx, doc)
	if err != nil {
		logger.Warn("page count failed", "error", err)
		res.diag(StagePageCount, -1, err)
		return false
	}
	if e.cfg.PageIndex < n {
		return false
	}
	err = fmt.Errorf("%w: page %d of %d", common.ErrPageOutOfRange, e.cfg.PageIndex, n)
	logger.Info("page not found, all fields absent", "page_index", e.cfg.PageIndex, "pages", n)
	res.diag(StagePageCount, -1, err)
	return true
}

func (e *Extractor) readTextLayer(ctx context.Context, doc pdf.Document, res *Result, logger *slog.Logger) {
	if e.deps.TextLayer == nil {
		return
	}
	text, ok := e.deps.TextLayer.Read(ctx, doc, e.cfg.PageIndex)
	if !ok {
		logger.Debug("no text layer", "page_index", e.cfg.PageIndex)
		res.diag(StageTextLayer, -1, fmt.Errorf("%w: no text layer on page %d", common.ErrNoMatch, e.cfg.PageIndex))
		return
	}
	found := e.apply(res, e.textMatcher.Match(text), constants.SourceTextLayer, -1)
	logger.Debug("text layer matched", "chars", len(text), "fields", found)
}

func (e *Extractor) needsOCR(res *Result) bool {
	return e.cfg.Policy == PolicyAlways || res.Found() == 0
}

// apply canonicalizes matches and stores them into empty slots only, so the
// first source to provide a field keeps it.
func (e *Extractor) apply(res *Result, m fields.Matches, src constants.Source, region int) int {
	n := 0
	for _, name := range res.Order {
		raw, ok := m.Get(name)
		if !ok {
			continue
		}
		kind := e.textMatcher.Kind(name)
		value := canon.As(kind, raw)
		if !res.set(name, &FieldValue{Value: value, Raw: raw, Source: src, Region: region}) {
			continue
		}
		n++
		if !canon.IsCanonical(kind, value) {
			res.diag(StageCanon, region, fmt.Errorf("%w: %s %q kept as matched", common.ErrCanonicalization, name, raw))
		}
	}
	return n
}

func (e *Extractor) runOCR(ctx context.Context, doc pdf.Document, res *Result, logger *slog.Logger) error {
	page, err := e.deps.Rasterizer.Rasterize(ctx, doc, e.cfg.PageIndex, e.cfg.DPI)
	if err != nil {
		logger.Warn("rasterize failed, skipping ocr", "page_index", e.cfg.PageIndex, "error", err)
		if !errors.Is(err, common.ErrRasterize) {
			err = fmt.Errorf("%w: %v", common.ErrRasterize, err)
		}
		res.diag(StageRasterize, -1, err)
		return nil
	}

	res.RegionText = make([]string, len(e.cfg.Regions))
	for i, crop := range e.cropper.Crop(page, e.cfg.Regions) {
		if ctx.Err() != nil {
			res.diag(StageOCR, i, fmt.Errorf("%w: %v", common.ErrOCRFailure, ctx.Err()))
			break
		}
		if crop.Empty {
			res.diag(StageCrop, i, fmt.Errorf("%w: %s", common.ErrRegionOutOfBounds, crop.Region))
			continue
		}
		if crop.Clipped {
			logger.Debug("region clipped", "region", i, "bounds", crop.Bounds.String())
		}

		text, err := e.recognizeRegion(ctx, doc.Name, i, crop.Image, res)
		if err != nil {
			if errors.Is(err, ocr.ErrEngineUnavailable) {
				return err
			}
			logger.Warn("region ocr failed", "region", i, "error", err)
			res.diag(StageOCR, i, err)
			continue
		}
		res.RegionText[i] = text
		found := e.apply(res, e.ocrMatcher.Match(text), constants.SourceOCR, i)
		logger.Debug("region matched", "region", i, "chars", len(text), "fields", found)
	}
	return nil
}

// recognizeRegion enhances one crop and runs OCR under the per-region timeout.
// The enhanced image goes out of scope when it returns.
func (e *Extractor) recognizeRegion(ctx context.Context, document string, i int, img image.Image, res *Result) (string, error) {
	enhanced := e.cfg.Enhance.Enhance(img)
	if e.deps.Sink != nil {
		if err := e.deps.Sink.Save(ctx, document, i, enhanced); err != nil {
			res.diag(StageArtifact, i, err)
		}
	}

	rctx, cancel := common.WithTimeout(ctx, e.cfg.OCRTimeout.Std())
	defer cancel()
	text, err := e.deps.Engine.Recognize(rctx, enhanced, e.cfg.OCR)
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, ocr.ErrEngineUnavailable),
		errors.Is(err, common.ErrOCRTimeout),
		errors.Is(err, common.ErrOCRFailure):
		return "", err
	case errors.Is(rctx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("%w: %v", common.ErrOCRTimeout, err)
	default:
		return "", fmt.Errorf("%w: %v", common.ErrOCRFailure, err)
	}
}
