package pdf

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/ocr"
)

// DefaultDPI matches the pixel coordinates of the stock caption regions.
const DefaultDPI = 200

// Rasterizer renders one page to an image with pdftoppm.
type Rasterizer struct {
	pdftoppm string
	runner   ocr.Runner
	logger   *slog.Logger
}

func NewRasterizer(pdftoppm string, runner ocr.Runner, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if runner == nil {
		runner = ocr.ExecRunner{Logger: logger}
	}
	return &Rasterizer{pdftoppm: pdftoppm, runner: runner, logger: logger}
}

// Rasterize returns the decoded page image; nothing is left on disk.
func (r *Rasterizer) Rasterize(ctx context.Context, doc Document, pageIndex, dpi int) (image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	src, cleanup, err := doc.file()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRasterize, err)
	}
	defer cleanup()

	tmpDir, err := os.MkdirTemp("", "cc-pp-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRasterize, err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	page := strconv.Itoa(pageIndex + 1)
	// pdftoppm -f N -l N -r 200 -png -singlefile <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.pdftoppm, nil,
		"-f", page, "-l", page, "-r", strconv.Itoa(dpi), "-png", "-singlefile", src, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm: %v: %s", common.ErrRasterize, err, errb)
	}
	img, err := imaging.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("%w: decode page: %v", common.ErrRasterize, err)
	}
	return img, nil
}
