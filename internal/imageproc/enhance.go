package imageproc

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// DefaultThreshold is the luminance cut used by binarization.
const DefaultThreshold = 160

var (
	sharpenKernel = [9]float64{
		-2, -2, -2,
		-2, 32, -2,
		-2, -2, -2,
	}
	edgeEnhanceKernel = [9]float64{
		-1, -1, -1,
		-1, 10, -1,
		-1, -1, -1,
	}
)

// Enhancer prepares a crop for OCR: grayscale, sharpen, edge-enhance, then
// binarize. The zero value is usable and applies the full chain with
// DefaultThreshold.
type Enhancer struct {
	Threshold   int  `toml:"threshold" json:"threshold"` // 0 -> DefaultThreshold
	Skip        bool `toml:"skip" json:"skip"`
	SharpenOnly bool `toml:"sharpen_only" json:"sharpen_only"`
}

// Enhance is a pure function of pixel content; the input is never modified.
func (e Enhancer) Enhance(img image.Image) *image.NRGBA {
	if e.Skip {
		return imaging.Clone(img)
	}
	out := imaging.Grayscale(img)
	out = imaging.Convolve3x3(out, sharpenKernel, &imaging.ConvolveOptions{Normalize: true})
	if e.SharpenOnly {
		return out
	}
	out = imaging.Convolve3x3(out, edgeEnhanceKernel, &imaging.ConvolveOptions{Normalize: true})
	return Binarize(out, e.threshold())
}

func (e Enhancer) threshold() uint8 {
	if e.Threshold <= 0 || e.Threshold > 255 {
		return DefaultThreshold
	}
	return uint8(e.Threshold)
}

// Binarize maps pixels with luminance below threshold to black and everything
// else to white.
func Binarize(img image.Image, threshold uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		// Grayscale input: R is the luminance
		y := c.R
		if c.R != c.G || c.G != c.B {
			y = color.GrayModel.Convert(c).(color.Gray).Y
		}
		if y < threshold {
			return color.NRGBA{A: 255}
		}
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})
}
