package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/court-captions/internal/common"
)

// TesseractEngine drives the tesseract CLI, streaming PNG on stdin.
type TesseractEngine struct {
	cfg    Config
	path   string
	runner Runner
	logger *slog.Logger
}

// NewTesseractEngine resolves the executable and checks that the configured
// language is installed. Any failure is ErrEngineUnavailable.
func NewTesseractEngine(ctx context.Context, cfg Config, runner Runner, logger *slog.Logger) (*TesseractEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	path, err := ResolveExecutable(cfg.ExecutablePath)
	if err != nil {
		return nil, err
	}
	e := &TesseractEngine{cfg: cfg, path: path, runner: runner, logger: logger}
	if err := e.verify(ctx); err != nil {
		return nil, err
	}
	logger.Info("tesseract engine ready", "path", path, "language", cfg.Language)
	return e, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Path returns the resolved executable.
func (e *TesseractEngine) Path() string { return e.path }

func (e *TesseractEngine) verify(ctx context.Context) error {
	args := []string{"--list-langs"}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.path, nil, args...)
	if err != nil {
		return fmt.Errorf("%w: %s --list-langs: %v", ErrEngineUnavailable, e.path, err)
	}
	// older versions print the list on stderr
	langs := parseLangs(string(out) + "\n" + string(errb))
	want := e.cfg.Language
	if want == "" {
		return nil
	}
	for _, l := range strings.Split(want, "+") {
		if _, ok := langs[l]; !ok {
			return fmt.Errorf("%w: language %q not installed", ErrEngineUnavailable, l)
		}
	}
	return nil
}

func parseLangs(s string) map[string]struct{} {
	langs := map[string]struct{}{}
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" || strings.HasPrefix(ln, "List of available") || strings.Contains(ln, " ") {
			continue
		}
		langs[ln] = struct{}{}
	}
	return langs
}

// Args builds the tesseract command line for opts.
func (e *TesseractEngine) Args(opts Options) []string {
	opts = opts.withDefaults(e.cfg.Language)
	args := []string{"stdin", "stdout",
		"-l", opts.Language,
		"--psm", strconv.Itoa(opts.PageSegMode),
		"--oem", strconv.Itoa(opts.EngineMode),
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	if opts.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+opts.Whitelist)
	}
	if opts.PreserveInterwordSpacing {
		args = append(args, "-c", "preserve_interword_spaces=1")
	}
	return args
}

func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("%w: encode png: %v", common.ErrOCRFailure, err)
	}
	out, errb, err := e.runner.Run(ctx, e.path, &buf, e.Args(opts)...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", common.ErrOCRTimeout, err)
		}
		return "", fmt.Errorf("%w: tesseract: %v: %s", common.ErrOCRFailure, err, truncate(string(errb), 512))
	}
	return Normalize(string(out)), nil
}
