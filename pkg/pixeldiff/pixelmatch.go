package pixeldiff

import (
	"fmt"
	"image"
	"image/color"

	"github.com/orisano/pixelmatch"
)

// DefaultAlpha is the opacity of unchanged pixels in the diff image.
const DefaultAlpha = 0.1

// Pixelmatch compares pixels by their distance in YIQ colour space using
// github.com/orisano/pixelmatch. A threshold of 0 requires exact equality; 1
// accepts any pair of colours.
//
// Pixels that differ only because of anti-aliasing are painted yellow and not
// counted unless IncludeAntiAlias is set.
type Pixelmatch struct {
	IncludeAntiAlias bool
	// Alpha dims unchanged pixels in the diff image. Zero means DefaultAlpha.
	Alpha float64
}

func (p Pixelmatch) options(threshold float64, out *image.Image) []pixelmatch.MatchOption {
	alpha := p.Alpha
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	opts := []pixelmatch.MatchOption{
		pixelmatch.Threshold(threshold),
		pixelmatch.Alpha(alpha),
		pixelmatch.DiffColor(diffColor),
		pixelmatch.AntiAliasedColor(aaColor),
		pixelmatch.WriteTo(out),
	}
	if p.IncludeAntiAlias {
		opts = append(opts, pixelmatch.IncludeAntiAlias)
	}
	return opts
}

func (p Pixelmatch) Diff(expected, actual image.Image, threshold float64) (*Result, error) {
	if err := checkInputs(expected, actual, threshold); err != nil {
		return nil, err
	}
	// pixelmatch wants identical bounds, not just identical sizes
	a, b := toNRGBA(expected), toNRGBA(actual)

	var out image.Image
	n, err := pixelmatch.MatchPixel(a, b, p.options(threshold, &out)...)
	if err != nil {
		return nil, fmt.Errorf("pixeldiff: pixelmatch: %w", err)
	}

	res := &Result{DiffPixels: n, Image: asRGBA(out, a.Rect)}
	if n > 0 {
		res.Bounds = colorBounds(res.Image, diffColor)
	}
	return res, nil
}

// asRGBA returns the diff image written by pixelmatch, or a blank one when
// the inputs were identical and nothing was written.
func asRGBA(img image.Image, r image.Rectangle) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba != nil {
		return rgba
	}
	return image.NewRGBA(r)
}

// colorBounds encloses the pixels of img painted exactly c.
func colorBounds(img *image.RGBA, c color.RGBA) image.Rectangle {
	var r image.Rectangle
	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == c {
				r = grow(r, x, y)
			}
		}
	}
	return r
}
