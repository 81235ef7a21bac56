//go:build !gosseract

package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
)

// GosseractEngine is unavailable unless built with -tags gosseract.
type GosseractEngine struct{}

// NewGosseractEngine always fails in builds without the gosseract tag.
func NewGosseractEngine(Config, *slog.Logger) (*GosseractEngine, error) {
	return nil, fmt.Errorf("%w: gosseract backend not compiled in; rebuild with -tags gosseract", ErrEngineUnavailable)
}

func (e *GosseractEngine) Name() string { return "gosseract" }

func (e *GosseractEngine) Recognize(context.Context, image.Image, Options) (string, error) {
	return "", ErrEngineUnavailable
}
