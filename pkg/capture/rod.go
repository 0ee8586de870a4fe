package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserConfig configures a Chrome instance driven through Rod.
type BrowserConfig struct {
	// Remote is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local Chrome via launcher.
	Remote   string
	Headless bool
	Stealth  bool
	// Width and Height fix the viewport so screenshots are reproducible.
	Width, Height int
	// Timeout bounds navigation. Default: 30s.
	Timeout time.Duration
	Logger  *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser is a connected Chrome instance.
type Browser struct {
	cfg     BrowserConfig
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// Launch starts Chrome (or connects to cfg.Remote) and returns the handle.
func Launch(ctx context.Context, cfg BrowserConfig) (*Browser, error) {
	cfg.defaults()
	log := cfg.Logger

	b := &Browser{cfg: cfg}
	wsURL := cfg.Remote
	if wsURL != "" {
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Context(ctx).Headless(cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("capture: launch chrome: %w", err)
		}
		wsURL = u
		b.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headless", cfg.Headless)
	}

	rb := rod.New().Context(ctx).ControlURL(wsURL)
	if err := rb.Connect(); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("capture: connect: %w", err)
	}
	b.browser = rb
	return b, nil
}

// Open creates a tab, fixes its viewport and navigates to url.
func (b *Browser) Open(ctx context.Context, url string) (*Tab, error) {
	var (
		page *rod.Page
		err  error
	)
	if b.cfg.Stealth {
		page, err = stealth.Page(b.browser)
	} else {
		page, err = b.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("capture: create tab: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.cfg.Width,
		Height:            b.cfg.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("capture: set viewport: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("capture: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}

	return &Tab{Page: page, URL: url, timeout: b.cfg.Timeout}, nil
}

// Close shuts down Chrome.
func (b *Browser) Close() error {
	return b.cleanup()
}

func (b *Browser) cleanup() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return err
}

// Tab is one navigated page. It implements Capturer.
type Tab struct {
	Page    *rod.Page
	URL     string
	timeout time.Duration
}

// FullPage captures the whole scrollable page as PNG.
func (t *Tab) FullPage(ctx context.Context) ([]byte, error) {
	data, err := t.Page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot %s: %w", t.URL, err)
	}
	return data, nil
}

// Element waits for selector to become visible and captures it as PNG.
func (t *Tab) Element(ctx context.Context, selector string) ([]byte, error) {
	wctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	el, err := t.Page.Context(wctx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("capture: find %q: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return nil, fmt.Errorf("capture: wait visible %q: %w", selector, err)
	}
	data, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot %q: %w", selector, err)
	}
	return data, nil
}

// Eval runs a script on the page before capture, e.g. to hide volatile
// content. script is a JS function expression such as `() => {...}`.
func (t *Tab) Eval(ctx context.Context, script string) error {
	if _, err := t.Page.Context(ctx).Eval(script); err != nil {
		return fmt.Errorf("capture: eval on %s: %w", t.URL, err)
	}
	return nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
