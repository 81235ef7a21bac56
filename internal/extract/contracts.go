package extract

import (
	"context"
	"image"

	"github.com/joseph-ayodele/court-captions/internal/pdf"
)

// TextLayerReader returns the embedded text of a page. The boolean is false
// when the page has no usable text layer, including when it does not exist.
type TextLayerReader interface {
	Read(ctx context.Context, doc pdf.Document, pageIndex int) (string, bool)
}

// PageCounter reports how many pages a document has. Optional: without one
// an out-of-range page surfaces as a rasterization failure instead.
type PageCounter interface {
	PageCount(ctx context.Context, doc pdf.Document) (int, error)
}

// Rasterizer renders a single page to an image.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc pdf.Document, pageIndex, dpi int) (image.Image, error)
}

// Sink receives every enhanced crop, keyed by document name and region index.
// It is a diagnostic side channel; failures never affect the result.
type Sink interface {
	Save(ctx context.Context, document string, region int, img image.Image) error
}
