package pixeldiff

import (
	"image"
	"image/color"
	"math"
)

// Channel compares pixels by their largest per-channel difference. The
// threshold is scaled to a tolerance of round(threshold*255) on 8-bit
// channels.
type Channel struct {
	// FuzzyRadius lets a pixel match any expected pixel within this many
	// pixels. Useful when text shifts by a pixel or two between runs.
	FuzzyRadius int
}

func (c Channel) Diff(expected, actual image.Image, threshold float64) (*Result, error) {
	if err := checkInputs(expected, actual, threshold); err != nil {
		return nil, err
	}
	e, a := toNRGBA(expected), toNRGBA(actual)
	w, h := e.Rect.Dx(), e.Rect.Dy()
	tolerance := int(math.Round(threshold * 255))

	res := &Result{Image: image.NewRGBA(image.Rect(0, 0, w, h))}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if channelDelta(a.Pix, e.Pix, a.PixOffset(x, y), e.PixOffset(x, y)) <= tolerance ||
				(c.FuzzyRadius > 0 && fuzzyMatch(a, e, x, y, c.FuzzyRadius, tolerance)) {
				gray := a.Pix[a.PixOffset(x, y)]
				res.Image.SetRGBA(x, y, color.RGBA{gray, gray, gray, 255})
				continue
			}
			res.DiffPixels++
			res.Bounds = grow(res.Bounds, x, y)
			res.Image.SetRGBA(x, y, diffColor)
		}
	}
	return res, nil
}

func channelDelta(p1, p2 []uint8, i, j int) int {
	d := 0
	for c := 0; c < 4; c++ {
		d = max(d, absInt(int(p1[i+c])-int(p2[j+c])))
	}
	return d
}

// fuzzyMatch reports whether the actual pixel at (x, y) matches any expected
// pixel within radius.
func fuzzyMatch(actual, expected *image.NRGBA, x, y, radius, tolerance int) bool {
	w, h := actual.Rect.Dx(), actual.Rect.Dy()
	pos := actual.PixOffset(x, y)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			if channelDelta(actual.Pix, expected.Pix, pos, expected.PixOffset(nx, ny)) <= tolerance {
				return true
			}
		}
	}
	return false
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
