package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setupDirs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("SNAPSHOT_DIR", filepath.Join(root, "snapshots"))
	t.Setenv("REPORTS_DIR", filepath.Join(root, "reports"))
	t.Setenv("SNAPSHOT_INDEX", filepath.Join(root, "index.db"))
	t.Setenv("UPDATE_SNAPSHOTS", "")
	t.Setenv("SNAPVIS_CONFIG", "")
	return root
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCompareLifecycle(t *testing.T) {
	root := setupDirs(t)
	shot := filepath.Join(root, "shot.png")
	writePNG(t, shot, color.RGBA{0, 0, 255, 255})

	code, out, errOut := runCmd(t, "compare", "-name", "Home Page", "-file", shot)
	if code != 0 {
		t.Fatalf("first compare exit %d: %s", code, errOut)
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("output not JSON: %v\n%s", err, out)
	}
	if v["outcome"] != "baseline_created" || v["name"] != "home_page" {
		t.Errorf("verdict = %v", v)
	}

	if code, _, errOut := runCmd(t, "compare", "-name", "Home Page", "-file", shot); code != 0 {
		t.Errorf("matching compare exit %d: %s", code, errOut)
	}

	writePNG(t, shot, color.RGBA{255, 0, 0, 255})
	code, _, errOut = runCmd(t, "compare", "-name", "Home Page", "-file", shot)
	if code != 1 {
		t.Errorf("mismatch exit = %d, want 1", code)
	}
	if !strings.Contains(errOut, "VISUAL_MISMATCH") {
		t.Errorf("stderr = %q", errOut)
	}

	code, out, _ = runCmd(t, "list")
	if code != 0 || !strings.Contains(out, "home_page\tdiff") {
		t.Errorf("list exit %d output %q", code, out)
	}

	if code, _, errOut := runCmd(t, "approve", "-name", "Home Page"); code != 0 {
		t.Fatalf("approve exit %d: %s", code, errOut)
	}
	if code, _, errOut := runCmd(t, "compare", "-name", "Home Page", "-file", shot); code != 0 {
		t.Errorf("compare after approve exit %d: %s", code, errOut)
	}
}

func TestCompareUsageErrors(t *testing.T) {
	setupDirs(t)
	if code, _, _ := runCmd(t); code != 2 {
		t.Errorf("no args exit = %d, want 2", code)
	}
	if code, _, _ := runCmd(t, "frobnicate"); code != 2 {
		t.Errorf("unknown command exit = %d, want 2", code)
	}
	if code, _, _ := runCmd(t, "compare", "-name", "x"); code != 2 {
		t.Errorf("missing -file exit = %d, want 2", code)
	}
	if code, _, _ := runCmd(t, "approve"); code != 2 {
		t.Errorf("missing -name exit = %d, want 2", code)
	}
}

func TestCompareMissingFile(t *testing.T) {
	root := setupDirs(t)
	code, _, errOut := runCmd(t, "compare", "-name", "x", "-file", filepath.Join(root, "nope.png"))
	if code != 3 || !strings.Contains(errOut, "CAPTURE") {
		t.Errorf("exit %d stderr %q", code, errOut)
	}
}
