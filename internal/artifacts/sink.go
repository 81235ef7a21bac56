package artifacts

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// DirSink writes enhanced crops as {document}_cut_{region}.png under Dir.
// Files are written to a temp name and renamed so readers never see a partial
// PNG.
type DirSink struct {
	Dir    string
	logger *slog.Logger
}

func NewDirSink(dir string, logger *slog.Logger) (*DirSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return nil, fmt.Errorf("artifact dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &DirSink{Dir: dir, logger: logger}, nil
}

// FileName is the crop file name for a document and region.
func FileName(document string, region int) string {
	base := filepath.Base(strings.TrimSpace(document))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "document"
	}
	return fmt.Sprintf("%s_cut_%d.png", base, region)
}

func (s *DirSink) Save(ctx context.Context, document string, region int, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(s.Dir, FileName(document, region))

	tmp, err := os.CreateTemp(s.Dir, ".cut-*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_ = tmp.Close()

	if err := imaging.Save(img, tmpName); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write crop: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	s.logger.Debug("crop saved", "path", dst)
	return nil
}
