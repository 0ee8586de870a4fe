package pixeldiff

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

var (
	blue  = color.RGBA{0, 0, 255, 255}
	red   = color.RGBA{255, 0, 0, 255}
	white = color.RGBA{255, 255, 255, 255}
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// withPatch returns a copy of base with a w×h patch of c at (x, y).
func withPatch(base *image.RGBA, x, y, w, h int, c color.RGBA) *image.RGBA {
	out := image.NewRGBA(base.Rect)
	copy(out.Pix, base.Pix)
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			out.SetRGBA(px, py, c)
		}
	}
	return out
}

func differs() map[string]Differ {
	return map[string]Differ{
		"pixelmatch": Pixelmatch{},
		"channel":    Channel{},
		"fuzzy":      Channel{FuzzyRadius: 1},
	}
}

func TestIdenticalImages(t *testing.T) {
	img := withPatch(solid(20, 10, white), 3, 3, 4, 2, blue)
	for name, d := range differs() {
		res, err := d.Diff(img, img, 0)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.DiffPixels != 0 {
			t.Errorf("%s: DiffPixels = %d, want 0", name, res.DiffPixels)
		}
		if !res.Bounds.Empty() {
			t.Errorf("%s: Bounds = %v, want empty", name, res.Bounds)
		}
		if res.Image.Bounds() != image.Rect(0, 0, 20, 10) {
			t.Errorf("%s: diff image bounds = %v", name, res.Image.Bounds())
		}
	}
}

func TestRedPatchOnBlue(t *testing.T) {
	baseline := solid(50, 20, blue)
	candidate := withPatch(baseline, 10, 5, 2, 2, red)

	tests := []struct {
		threshold float64
		want      int
	}{
		{0, 4},
		{0.1, 4},
		{0.5, 4},
		{0.99, 0},
		{1, 0},
	}

	d := Pixelmatch{}
	for _, tt := range tests {
		res, err := d.Diff(baseline, candidate, tt.threshold)
		if err != nil {
			t.Fatalf("threshold %v: %v", tt.threshold, err)
		}
		if res.DiffPixels != tt.want {
			t.Errorf("threshold %v: DiffPixels = %d, want %d", tt.threshold, res.DiffPixels, tt.want)
		}
		if tt.want > 0 {
			if want := image.Rect(10, 5, 12, 7); res.Bounds != want {
				t.Errorf("threshold %v: Bounds = %v, want %v", tt.threshold, res.Bounds, want)
			}
			if got := res.Image.RGBAAt(10, 5); got != diffColor {
				t.Errorf("differing pixel painted %v, want %v", got, diffColor)
			}
			got := res.Image.RGBAAt(0, 0)
			if got.R != got.G || got.G != got.B || got.A != 255 {
				t.Errorf("matching pixel painted %v, want opaque gray", got)
			}
		}
	}
}

func TestThresholdMonotonic(t *testing.T) {
	baseline := solid(30, 30, white)
	candidate := withPatch(baseline, 2, 2, 5, 5, color.RGBA{250, 250, 250, 255})
	candidate = withPatch(candidate, 10, 10, 5, 5, color.RGBA{200, 180, 220, 255})
	candidate = withPatch(candidate, 20, 20, 5, 5, color.RGBA{20, 40, 60, 255})

	for name, d := range differs() {
		prev := math.MaxInt
		for i := 0; i <= 20; i++ {
			th := float64(i) / 20
			res, err := d.Diff(baseline, candidate, th)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			if res.DiffPixels > prev {
				t.Errorf("%s: count rose from %d to %d at threshold %v", name, prev, res.DiffPixels, th)
			}
			prev = res.DiffPixels
		}
		if prev != 0 {
			t.Errorf("%s: threshold 1 still reports %d pixels", name, prev)
		}
	}
}

func TestSizeMismatch(t *testing.T) {
	for name, d := range differs() {
		_, err := d.Diff(solid(10, 10, white), solid(10, 11, white), 0.1)
		if !errors.Is(err, ErrSizeMismatch) {
			t.Errorf("%s: error = %v, want ErrSizeMismatch", name, err)
		}
	}
}

func TestInvalidThreshold(t *testing.T) {
	img := solid(2, 2, white)
	for _, th := range []float64{-0.1, 1.5, math.NaN()} {
		if _, err := (Pixelmatch{}).Diff(img, img, th); !errors.Is(err, ErrThreshold) {
			t.Errorf("threshold %v: error = %v, want ErrThreshold", th, err)
		}
	}
}

func TestOffsetBounds(t *testing.T) {
	// images not anchored at the origin compare by relative position
	a := image.NewRGBA(image.Rect(5, 5, 15, 15))
	b := solid(10, 10, color.RGBA{})
	res, err := (Pixelmatch{}).Diff(a, b, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.DiffPixels != 0 {
		t.Errorf("DiffPixels = %d, want 0", res.DiffPixels)
	}
}

func TestAntiAliasedEdge(t *testing.T) {
	// A one-pixel grey column between white and black reads as an
	// anti-aliased edge when it moves.
	build := func(edge int) *image.RGBA {
		img := solid(12, 12, white)
		for y := 0; y < 12; y++ {
			img.SetRGBA(edge, y, color.RGBA{128, 128, 128, 255})
			for x := edge + 1; x < 12; x++ {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
		return img
	}
	expected := build(5)
	actual := withPatch(expected, 5, 0, 1, 12, white)

	ignored, err := Pixelmatch{}.Diff(expected, actual, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	counted, err := Pixelmatch{IncludeAntiAlias: true}.Diff(expected, actual, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if counted.DiffPixels != 12 {
		t.Errorf("IncludeAntiAlias: DiffPixels = %d, want 12", counted.DiffPixels)
	}
	if ignored.DiffPixels >= counted.DiffPixels {
		t.Errorf("anti-aliased pixels counted: %d vs %d", ignored.DiffPixels, counted.DiffPixels)
	}
	if got := ignored.Image.RGBAAt(5, 6); got != aaColor {
		t.Errorf("anti-aliased pixel painted %v, want %v", got, aaColor)
	}
}

func TestChannelTolerance(t *testing.T) {
	baseline := solid(4, 4, color.RGBA{100, 100, 100, 255})
	candidate := withPatch(baseline, 0, 0, 1, 1, color.RGBA{110, 100, 100, 255})

	// 10/255 ≈ 0.039
	tests := []struct {
		threshold float64
		want      int
	}{
		{0, 1},
		{0.03, 1},
		{0.04, 0},
	}
	for _, tt := range tests {
		res, err := Channel{}.Diff(baseline, candidate, tt.threshold)
		if err != nil {
			t.Fatal(err)
		}
		if res.DiffPixels != tt.want {
			t.Errorf("threshold %v: DiffPixels = %d, want %d", tt.threshold, res.DiffPixels, tt.want)
		}
	}
}

func TestChannelFuzzyRadius(t *testing.T) {
	expected := withPatch(solid(10, 10, white), 4, 4, 1, 1, red)
	actual := withPatch(solid(10, 10, white), 5, 4, 1, 1, red)

	strict, _ := Channel{}.Diff(expected, actual, 0)
	if strict.DiffPixels != 2 {
		t.Errorf("strict: DiffPixels = %d, want 2", strict.DiffPixels)
	}
	fuzzy, _ := Channel{FuzzyRadius: 1}.Diff(expected, actual, 0)
	if fuzzy.DiffPixels != 0 {
		t.Errorf("fuzzy: DiffPixels = %d, want 0", fuzzy.DiffPixels)
	}
}

func TestAnnotate(t *testing.T) {
	img := solid(40, 40, white)
	Annotate(img, image.Rect(10, 10, 20, 20))

	edge := img.RGBAAt(8, 15)
	if edge == white {
		t.Error("expected stroke on the left edge of the box")
	}
	if got := img.RGBAAt(15, 15); got != white {
		t.Errorf("interior changed to %v", got)
	}
	if got := img.RGBAAt(0, 0); got != white {
		t.Errorf("outside pixel changed to %v", got)
	}

	untouched := solid(5, 5, white)
	Annotate(untouched, image.Rectangle{})
	for i, v := range untouched.Pix {
		if v != 255 {
			t.Fatalf("empty rectangle modified byte %d", i)
		}
	}
}

func TestPixelmatchAlpha(t *testing.T) {
	baseline := solid(6, 6, blue)
	candidate := withPatch(baseline, 0, 0, 1, 1, red)

	faint, err := Pixelmatch{}.Diff(baseline, candidate, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	opaque, err := Pixelmatch{Alpha: 1}.Diff(baseline, candidate, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if faint.DiffPixels != 1 || opaque.DiffPixels != 1 {
		t.Fatalf("DiffPixels = %d and %d, want 1", faint.DiffPixels, opaque.DiffPixels)
	}
	// blue has a low luma, so a stronger alpha gives a darker gray
	f, o := faint.Image.RGBAAt(4, 4), opaque.Image.RGBAAt(4, 4)
	if o.R >= f.R {
		t.Errorf("Alpha 1 gray %v not darker than default %v", o, f)
	}
}
