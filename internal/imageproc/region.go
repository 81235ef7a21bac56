package imageproc

import (
	"fmt"
	"image"
	"iter"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/court-captions/internal/common"
)

// Region is a rectangle in pixel coordinates of a rasterized page.
// Right and Bottom are exclusive.
type Region struct {
	Left   int `toml:"left" json:"left"`
	Top    int `toml:"top" json:"top"`
	Right  int `toml:"right" json:"right"`
	Bottom int `toml:"bottom" json:"bottom"`
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// Validate enforces left < right and top < bottom. Regions larger than the
// page are valid; they are clipped when cropping.
func (r Region) Validate() error {
	if r.Left >= r.Right || r.Top >= r.Bottom {
		return fmt.Errorf("%w: region %s must satisfy left < right and top < bottom", common.ErrInvalidInput, r)
	}
	return nil
}

// Crop is one cropped region of a page.
type Crop struct {
	Region  Region
	Bounds  image.Rectangle // region clipped to the page
	Clipped bool            // region exceeded the page bounds
	Empty   bool            // region does not overlap the page at all
	Image   *image.NRGBA    // nil when Empty
}

// Cropper cuts configured regions out of a page image.
type Cropper struct{}

// Crop yields one Crop per region, in input order. Each image is produced only
// when the consumer pulls it, so a caller that processes crops one at a time
// never holds more than one in memory.
func (Cropper) Crop(page image.Image, regions []Region) iter.Seq2[int, Crop] {
	return func(yield func(int, Crop) bool) {
		pb := page.Bounds()
		for i, r := range regions {
			want := r.Rect().Canon().Add(pb.Min)
			clipped := want.Intersect(pb)
			c := Crop{
				Region:  r,
				Bounds:  clipped,
				Clipped: clipped != want,
			}
			if clipped.Empty() {
				c.Empty = true
			} else {
				c.Image = imaging.Crop(page, clipped)
			}
			if !yield(i, c) {
				return
			}
		}
	}
}
