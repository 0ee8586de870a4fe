// Package images decodes and encodes the raster formats snapshots are stored in.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrEmpty is returned when asked to decode zero bytes.
var ErrEmpty = errors.New("images: empty input")

// Codec converts between encoded image bytes and rasters.
type Codec interface {
	Decode(data []byte) (image.Image, error)
	DecodeConfig(data []byte) (image.Config, error)
	Encode(img image.Image) ([]byte, error)
	// Canonical returns data in the codec's stored format, re-encoding it
	// when it arrives in another one, along with its dimensions.
	Canonical(data []byte) ([]byte, image.Config, error)
	// Ext is the file extension of the encoded form, without the dot.
	Ext() string
}

// PNG decodes any registered format (png, gif, jpeg, bmp, tiff) and always
// encodes PNG.
type PNG struct {
	// Compression is passed to the png encoder. Zero is png.DefaultCompression.
	Compression png.CompressionLevel
}

func (c PNG) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("images: decode: %w", err)
	}
	return img, nil
}

func (c PNG) DecodeConfig(data []byte) (image.Config, error) {
	if len(data) == 0 {
		return image.Config{}, ErrEmpty
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, fmt.Errorf("images: decode config: %w", err)
	}
	return cfg, nil
}

func (c PNG) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: c.Compression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("images: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Canonical passes PNG input through untouched. Any other decodable format is
// re-encoded as PNG so stored baselines are always lossless.
func (c PNG) Canonical(data []byte) ([]byte, image.Config, error) {
	if len(data) == 0 {
		return nil, image.Config{}, ErrEmpty
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, image.Config{}, fmt.Errorf("images: decode config: %w", err)
	}
	if format == "png" {
		return data, cfg, nil
	}

	img, err := c.Decode(data)
	if err != nil {
		return nil, image.Config{}, err
	}
	out, err := c.Encode(img)
	if err != nil {
		return nil, image.Config{}, err
	}
	return out, cfg, nil
}

func (c PNG) Ext() string { return "png" }

// LoadFile reads and decodes the image at path.
func LoadFile(c Codec, path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.Decode(data)
}

// Dimensions returns the width and height of the encoded image without
// decoding its pixels.
func Dimensions(c Codec, data []byte) (width, height int, err error) {
	cfg, err := c.DecodeConfig(data)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
