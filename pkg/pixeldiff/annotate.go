package pixeldiff

import (
	"image"

	"github.com/fogleman/gg"
)

// Annotate strokes a rectangle around r on img, padded by a few pixels and
// clipped to the image. An empty r leaves img untouched.
func Annotate(img *image.RGBA, r image.Rectangle) {
	if r.Empty() {
		return
	}
	const pad = 2
	box := r.Inset(-pad).Intersect(img.Rect)

	dc := gg.NewContextForRGBA(img)
	dc.SetRGBA(1, 0, 1, 0.9)
	dc.SetLineWidth(2)
	dc.DrawRectangle(float64(box.Min.X)+0.5, float64(box.Min.Y)+0.5,
		float64(box.Dx())-1, float64(box.Dy())-1)
	dc.Stroke()
}
