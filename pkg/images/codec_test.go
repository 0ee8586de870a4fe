package images

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
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

func TestPNGRoundTrip(t *testing.T) {
	var c PNG
	src := solid(3, 2, color.RGBA{255, 0, 0, 255})

	data, err := c.Encode(src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("expected 3x2 image, got %dx%d", b.Dx(), b.Dy())
	}
	r, g, b, a := img.At(1, 1).RGBA()
	if r>>8 != 255 || g != 0 || b != 0 || a>>8 != 255 {
		t.Errorf("pixel = %d,%d,%d,%d, want red", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestPNGDecodeOtherFormats(t *testing.T) {
	var c PNG
	src := solid(4, 5, color.RGBA{0, 0, 255, 255})

	var bmpBuf, jpgBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, src); err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(&jpgBuf, src, nil); err != nil {
		t.Fatal(err)
	}

	for name, data := range map[string][]byte{"bmp": bmpBuf.Bytes(), "jpeg": jpgBuf.Bytes()} {
		w, h, err := Dimensions(c, data)
		if err != nil {
			t.Errorf("%s: Dimensions: %v", name, err)
			continue
		}
		if w != 4 || h != 5 {
			t.Errorf("%s: got %dx%d, want 4x5", name, w, h)
		}
	}
}

func TestPNGDecodeInvalid(t *testing.T) {
	var c PNG
	if _, err := c.Decode(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("Decode(nil) error = %v, want ErrEmpty", err)
	}
	if _, err := c.DecodeConfig([]byte{}); !errors.Is(err, ErrEmpty) {
		t.Errorf("DecodeConfig(empty) error = %v, want ErrEmpty", err)
	}
	if _, err := c.Decode([]byte("hello")); err == nil {
		t.Error("expected error decoding non-image bytes")
	}
	if _, err := c.DecodeConfig([]byte("hello")); err == nil {
		t.Error("expected error decoding non-image header")
	}
}

func TestLoadFile(t *testing.T) {
	var c PNG
	data, _ := c.Encode(solid(2, 2, color.RGBA{0, 255, 0, 255}))
	path := filepath.Join(t.TempDir(), "green.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := LoadFile(c, path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if img.Bounds().Dx() != 2 {
		t.Errorf("width = %d, want 2", img.Bounds().Dx())
	}

	if _, err := LoadFile(c, filepath.Join(t.TempDir(), "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile(missing) error = %v, want not-exist", err)
	}
}

func TestExt(t *testing.T) {
	if (PNG{}).Ext() != "png" {
		t.Errorf("Ext() = %q", PNG{}.Ext())
	}
}

func TestPNGCanonical(t *testing.T) {
	var c PNG
	src := solid(4, 5, color.RGBA{0, 0, 255, 255})

	pngData, err := c.Encode(src)
	if err != nil {
		t.Fatal(err)
	}
	out, cfg, err := c.Canonical(pngData)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if !bytes.Equal(out, pngData) {
		t.Error("png input was re-encoded")
	}
	if cfg.Width != 4 || cfg.Height != 5 {
		t.Errorf("png: got %dx%d, want 4x5", cfg.Width, cfg.Height)
	}

	var jpgBuf bytes.Buffer
	if err := jpeg.Encode(&jpgBuf, src, nil); err != nil {
		t.Fatal(err)
	}
	out, cfg, err = c.Canonical(jpgBuf.Bytes())
	if err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("jpeg input not converted to png")
	}
	if cfg.Width != 4 || cfg.Height != 5 {
		t.Errorf("jpeg: got %dx%d, want 4x5", cfg.Width, cfg.Height)
	}

	if _, _, err := c.Canonical(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("Canonical(nil) error = %v, want ErrEmpty", err)
	}
	if _, _, err := c.Canonical([]byte("not an image")); err == nil {
		t.Error("expected error for garbage input")
	}
}
