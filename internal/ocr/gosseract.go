//go:build gosseract

package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/court-captions/internal/common"
)

// GosseractEngine runs libtesseract in-process through cgo.
type GosseractEngine struct {
	cfg           Config
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

// NewGosseractEngine checks that the configured language has traineddata.
func NewGosseractEngine(cfg Config, logger *slog.Logger) (*GosseractEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language != "" {
		langs, err := gosseract.GetAvailableLanguages()
		if err != nil {
			return nil, fmt.Errorf("%w: list languages: %v", ErrEngineUnavailable, err)
		}
		found := false
		for _, l := range langs {
			if l == cfg.Language {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: language %q not installed", ErrEngineUnavailable, cfg.Language)
		}
	}
	logger.Info("gosseract engine ready", "version", gosseract.Version(), "language", cfg.Language)
	return &GosseractEngine{cfg: cfg, clientFactory: gosseract.NewClient, logger: logger}, nil
}

func (e *GosseractEngine) Name() string { return "gosseract" }

type gosseractResult struct {
	text string
	err  error
}

// Recognize cannot interrupt libtesseract; on deadline the call returns
// ErrOCRTimeout and the client is closed once recognition finishes.
func (e *GosseractEngine) Recognize(ctx context.Context, img image.Image, opts Options) (string, error) {
	opts = opts.withDefaults(e.cfg.Language)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("%w: encode png: %v", common.ErrOCRFailure, err)
	}

	done := make(chan gosseractResult, 1)
	go func() {
		c := e.clientFactory()
		defer c.Close()
		text, err := e.recognizeWithClient(c, buf.Bytes(), opts)
		done <- gosseractResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", common.ErrOCRTimeout
		}
		return "", fmt.Errorf("%w: %v", common.ErrOCRFailure, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("%w: %v", common.ErrOCRFailure, r.err)
		}
		return Normalize(r.text), nil
	}
}

func (e *GosseractEngine) recognizeWithClient(c *gosseract.Client, png []byte, opts Options) (string, error) {
	if e.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.cfg.TessdataDir); err != nil {
			return "", fmt.Errorf("set tessdata: %w", err)
		}
	}
	if err := c.SetLanguage(opts.Language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
		return "", fmt.Errorf("set psm: %w", err)
	}
	if opts.Whitelist != "" {
		if err := c.SetWhitelist(opts.Whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	if opts.PreserveInterwordSpacing {
		if err := c.SetVariable(gosseract.SettableVariable("preserve_interword_spaces"), strconv.Itoa(1)); err != nil {
			return "", fmt.Errorf("set preserve_interword_spaces: %w", err)
		}
	}
	if err := c.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	return c.Text()
}
