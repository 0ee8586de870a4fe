// Package capture obtains raster screenshots for comparison.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrUnsupported is returned by capturers that cannot satisfy a request,
// such as an element capture from a static file.
var ErrUnsupported = errors.New("capture: unsupported")

// Capturer returns encoded images of a page or of one element on it.
type Capturer interface {
	FullPage(ctx context.Context) ([]byte, error)
	Element(ctx context.Context, selector string) ([]byte, error)
}

// File serves screenshots that were captured elsewhere and saved to disk.
type File struct {
	// Path is returned for full-page captures.
	Path string
	// Elements maps a selector to the file holding its capture.
	Elements map[string]string
}

func (f File) FullPage(ctx context.Context) ([]byte, error) {
	if f.Path == "" {
		return nil, fmt.Errorf("%w: no full-page file", ErrUnsupported)
	}
	return readFile(ctx, f.Path)
}

func (f File) Element(ctx context.Context, selector string) ([]byte, error) {
	p, ok := f.Elements[selector]
	if !ok {
		return nil, fmt.Errorf("%w: no file for selector %q", ErrUnsupported, selector)
	}
	return readFile(ctx, p)
}

func readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return data, nil
}
