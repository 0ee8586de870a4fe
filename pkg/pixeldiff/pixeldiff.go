// Package pixeldiff compares two equally sized rasters and renders the
// differences as an image.
package pixeldiff

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// ErrSizeMismatch is returned when the two images differ in width or height.
var ErrSizeMismatch = errors.New("pixeldiff: image sizes differ")

// ErrThreshold is returned for a threshold outside [0, 1].
var ErrThreshold = errors.New("pixeldiff: threshold must be within [0, 1]")

// Result is the outcome of a diff.
type Result struct {
	// DiffPixels is the number of pixels counted as different.
	DiffPixels int
	// Bounds encloses every counted pixel. Empty when DiffPixels is 0.
	Bounds image.Rectangle
	// Image has the size of the inputs, anchored at the origin.
	Image *image.RGBA
}

// Differ counts the pixels of actual that differ from expected by more than
// threshold. Raising the threshold must never raise the count.
type Differ interface {
	Diff(expected, actual image.Image, threshold float64) (*Result, error)
}

var (
	diffColor = color.RGBA{255, 0, 0, 255}
	aaColor   = color.RGBA{255, 255, 0, 255}
)

func checkInputs(expected, actual image.Image, threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: %v", ErrThreshold, threshold)
	}
	eb, ab := expected.Bounds(), actual.Bounds()
	if eb.Dx() != ab.Dx() || eb.Dy() != ab.Dy() {
		return fmt.Errorf("%w: expected %dx%d, actual %dx%d",
			ErrSizeMismatch, eb.Dx(), eb.Dy(), ab.Dx(), ab.Dy())
	}
	return nil
}

// toNRGBA returns img as non-premultiplied RGBA anchored at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

// grow extends r to include the pixel at (x, y).
func grow(r image.Rectangle, x, y int) image.Rectangle {
	return r.Union(image.Rect(x, y, x+1, y+1))
}
