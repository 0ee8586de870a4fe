// Package snapshot owns the on-disk layout of visual snapshots: baseline
// images keyed by a normalized name, and the per-run actual/diff artifacts.
package snapshot

import (
	"errors"
	"strings"
)

// Name is a normalized snapshot identifier. Two labels that normalize to the
// same Name share one baseline.
type Name string

// ErrEmptyName is returned when a label is empty.
var ErrEmptyName = errors.New("snapshot: empty name")

// NewName normalizes a caller-supplied label: ASCII letters are lowercased,
// digits are kept, and every other character becomes an underscore.
func NewName(label string) (Name, error) {
	if label == "" {
		return "", ErrEmptyName
	}
	return Name(Normalize(label)), nil
}

// Normalize maps label to its filesystem-safe form. Characters outside the
// Basic Multilingual Plane count as two UTF-16 code units and become "__", so
// names stay compatible with baselines written by JavaScript harnesses.
// Normalize is idempotent.
func Normalize(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r > 0xFFFF:
			b.WriteString("__")
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (n Name) String() string { return string(n) }
