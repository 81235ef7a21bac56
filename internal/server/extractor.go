package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/court-captions/internal/artifacts"
	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/extract"
	"github.com/joseph-ayodele/court-captions/internal/ocr"
	"github.com/joseph-ayodele/court-captions/internal/pdf"
)

// BuildExtractor resolves the configured preset and wires the poppler tools,
// the OCR engine and the optional crop sink. The engine is verified here, so
// a missing or misconfigured OCR backend fails before any document is read.
func BuildExtractor(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*extract.Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := extract.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	runner := ocr.ExecRunner{Logger: logger}

	tl := pdf.NewTextLayer(pdf.TextLayerConfig{
		Pdftotext: cfg.PDF.PdftotextPath,
		Layout:    cfg.PDF.Layout,
	}, runner, logger)

	deps := extract.Deps{
		TextLayer: tl,
		Pages:     tl,
		Logger:    logger,
	}
	if pc.Policy != extract.PolicyNever {
		engine, err := ocr.New(ctx, ocr.Config{
			Backend:        cfg.OCR.Backend,
			ExecutablePath: cfg.OCR.ExecutablePath,
			TessdataDir:    cfg.OCR.TessdataDir,
			Language:       pc.OCR.Language,
		}, logger)
		if err != nil {
			return nil, err
		}
		deps.Engine = engine
		deps.Rasterizer = pdf.NewRasterizer(cfg.PDF.PdftoppmPath, runner, logger)
	}
	if cfg.Artifacts.Dir != "" {
		sink, err := artifacts.NewDirSink(cfg.Artifacts.Dir, logger)
		if err != nil {
			return nil, err
		}
		deps.Sink = sink
	}

	x, err := extract.New(pc, deps)
	if err != nil {
		return nil, err
	}
	logger.Info("extractor ready",
		"preset", pc.Name,
		"policy", pc.Policy,
		"page_index", pc.PageIndex,
		"regions", len(pc.Regions),
		"fields", len(x.Fields()),
	)
	return x, nil
}
