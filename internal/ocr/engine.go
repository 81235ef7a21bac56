package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/joseph-ayodele/court-captions/constants"
)

// ErrEngineUnavailable means the recognition backend cannot run at all. It is a
// start-up misconfiguration: callers abort the batch instead of skipping a region.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Engine recognizes text in a preprocessed image region.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, opts Options) (string, error)
}

// Config is resolved once at process start and injected into the engine.
type Config struct {
	Backend        string // tesseract | gosseract
	ExecutablePath string // tesseract binary; empty -> PATH and well-known locations
	TessdataDir    string
	Language       string // default language when Options.Language is empty
}

// Options are the per-call recognition settings.
type Options struct {
	Language                 string `toml:"language" json:"language,omitempty"`
	PageSegMode              int    `toml:"psm" json:"psm,omitempty"`
	EngineMode               int    `toml:"oem" json:"oem,omitempty"`
	Whitelist                string `toml:"whitelist" json:"whitelist,omitempty"`
	PreserveInterwordSpacing bool   `toml:"preserve_interword_spacing" json:"preserve_interword_spacing,omitempty"`
}

// DefaultOptions returns the caption-block settings: sparse text, Portuguese,
// domain whitelist.
func DefaultOptions() Options {
	return Options{
		Language:                 constants.DefaultLanguage,
		PageSegMode:              constants.PSMSparseText,
		EngineMode:               constants.OEMDefault,
		Whitelist:                constants.DefaultWhitelist,
		PreserveInterwordSpacing: true,
	}
}

func (o Options) withDefaults(lang string) Options {
	if o.Language == "" {
		o.Language = lang
	}
	if o.Language == "" {
		o.Language = constants.DefaultLanguage
	}
	if o.PageSegMode <= 0 {
		o.PageSegMode = constants.PSMSparseText
	}
	if o.EngineMode <= 0 {
		o.EngineMode = constants.OEMDefault
	}
	return o
}

// New builds the engine selected by cfg.Backend and verifies it can run.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case "", "tesseract":
		e, err := NewTesseractEngine(ctx, cfg, ExecRunner{Logger: logger}, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "gosseract":
		e, err := NewGosseractEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrEngineUnavailable, cfg.Backend)
	}
}
