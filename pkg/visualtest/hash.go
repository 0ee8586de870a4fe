package visualtest

import (
	"image"

	"github.com/corona10/goimagehash"
)

// perceptualDistance returns the Hamming distance between the perception
// hashes of a and b, or -1 if either cannot be hashed.
func perceptualDistance(a, b image.Image) int {
	ha, err := goimagehash.PerceptionHash(a)
	if err != nil {
		return -1
	}
	hb, err := goimagehash.PerceptionHash(b)
	if err != nil {
		return -1
	}
	d, err := ha.Distance(hb)
	if err != nil {
		return -1
	}
	return d
}
