package export

import (
	"errors"
	"math"
)

// Pixel to physical conversion used for CSS pixels.
const (
	PixelsPerInch      = 96.0
	MillimetersPerInch = 25.4
	// PixelToMillimeter converts a CSS pixel length to millimeters.
	PixelToMillimeter = MillimetersPerInch / PixelsPerInch
)

// ErrInvalidDimensions is returned for images without a positive pixel size.
var ErrInvalidDimensions = errors.New("export: image dimensions must be positive")

// Placement is where an image is drawn on a page, in millimeters.
type Placement struct {
	X, Y          float64
	Width, Height float64
	Scale         float64 // applied to the image's physical size
}

// Fit scales an image of pxW x pxH pixels uniformly to the largest size that
// fits a pageW x pageH millimeter page, and centers it.
func Fit(pageW, pageH float64, pxW, pxH int) (Placement, error) {
	if pxW <= 0 || pxH <= 0 {
		return Placement{}, ErrInvalidDimensions
	}

	wMM := float64(pxW) * PixelToMillimeter
	hMM := float64(pxH) * PixelToMillimeter
	scale := math.Min(pageW/wMM, pageH/hMM)

	drawW := wMM * scale
	drawH := hMM * scale
	return Placement{
		X:      (pageW - drawW) / 2,
		Y:      (pageH - drawH) / 2,
		Width:  drawW,
		Height: drawH,
		Scale:  scale,
	}, nil
}
