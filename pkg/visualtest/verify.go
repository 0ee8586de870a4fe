package visualtest

import (
	"context"

	"snapvis/pkg/capture"
	"snapvis/pkg/snapshot"
)

// Default thresholds. Full pages tolerate more noise than single components.
const (
	DefaultFullPageThreshold  = 0.2
	DefaultComponentThreshold = 0.1
)

// Mode holds the per-run settings threaded into every comparison.
type Mode struct {
	Update             bool
	FullPageThreshold  float64
	ComponentThreshold float64
}

// DefaultMode returns normal mode with the default thresholds.
func DefaultMode() Mode {
	return Mode{
		FullPageThreshold:  DefaultFullPageThreshold,
		ComponentThreshold: DefaultComponentThreshold,
	}
}

// Checker captures screenshots and compares them under a fixed Mode.
type Checker struct {
	Comparator *Comparator
	Capturer   capture.Capturer
	Mode       Mode
}

// VerifyFullPage captures the whole page and compares it under the
// normalized label with the full-page threshold.
func (c *Checker) VerifyFullPage(ctx context.Context, label string) (*Verdict, error) {
	return c.VerifyFullPageWithThreshold(ctx, label, c.Mode.FullPageThreshold)
}

// VerifyFullPageWithThreshold is VerifyFullPage with an explicit threshold.
func (c *Checker) VerifyFullPageWithThreshold(ctx context.Context, label string, threshold float64) (*Verdict, error) {
	name, err := snapshot.NewName(label)
	if err != nil {
		return nil, wrapError(err, CodeInvalidInput, "invalid snapshot label")
	}
	data, err := c.Capturer.FullPage(ctx)
	if err != nil {
		return nil, wrapError(err, CodeCapture, "capture full page for %s", name)
	}
	return c.Comparator.Compare(data, Request{Name: name, Threshold: threshold, Update: c.Mode.Update})
}

// VerifyComponent captures the element matching selector and compares it
// under the normalized label with the component threshold.
func (c *Checker) VerifyComponent(ctx context.Context, selector, label string) (*Verdict, error) {
	return c.VerifyComponentWithThreshold(ctx, selector, label, c.Mode.ComponentThreshold)
}

// VerifyComponentWithThreshold is VerifyComponent with an explicit threshold.
func (c *Checker) VerifyComponentWithThreshold(ctx context.Context, selector, label string, threshold float64) (*Verdict, error) {
	name, err := snapshot.NewName(label)
	if err != nil {
		return nil, wrapError(err, CodeInvalidInput, "invalid snapshot label")
	}
	if selector == "" {
		return nil, newError(CodeInvalidInput, "empty selector for %s", name)
	}
	data, err := c.Capturer.Element(ctx, selector)
	if err != nil {
		return nil, wrapError(err, CodeCapture, "capture %q for %s", selector, name).
			WithMetadata("selector", selector)
	}
	return c.Comparator.Compare(data, Request{Name: name, Threshold: threshold, Update: c.Mode.Update})
}
