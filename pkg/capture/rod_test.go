package capture

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
)

const testPage = `<!doctype html><html><body style="margin:0;background:#fff">
<div id="box" style="width:40px;height:20px;background:#00f"></div>
</body></html>`

func launchTestBrowser(t *testing.T) *Browser {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no Chrome found")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	b, err := Launch(ctx, BrowserConfig{Headless: true, Width: 200, Height: 100})
	if err != nil {
		t.Skipf("chrome unavailable: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestTabCaptures(t *testing.T) {
	b := launchTestBrowser(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(testPage))
	}))
	defer srv.Close()

	ctx := context.Background()
	tab, err := b.Open(ctx, srv.URL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tab.Close()

	var _ Capturer = tab

	if err := tab.Eval(ctx, `() => { document.body.dataset.ready = "1" }`); err != nil {
		t.Fatalf("Eval: %v", err)
	}

	data, err := tab.Element(ctx, "#box")
	if err != nil {
		t.Fatalf("Element: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode element: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("element size = %dx%d, want 40x20", b.Dx(), b.Dy())
	}

	data, err = tab.FullPage(ctx)
	if err != nil {
		t.Fatalf("FullPage: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("decode page: %v", err)
	}
}
