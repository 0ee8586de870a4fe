package runner

import (
	"context"
	"fmt"
	"log/slog"

	"snapvis/pkg/capture"
	"snapvis/pkg/config"
	"snapvis/pkg/visualtest"
)

// Page is an opened target ready for capture.
type Page interface {
	capture.Capturer
	Eval(ctx context.Context, script string) error
	Close() error
}

// PageOpener opens a URL for capture.
type PageOpener interface {
	Open(ctx context.Context, url string) (Page, error)
}

// BrowserOpener adapts a capture.Browser to PageOpener.
type BrowserOpener struct {
	Browser *capture.Browser
}

func (o BrowserOpener) Open(ctx context.Context, url string) (Page, error) {
	tab, err := o.Browser.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	return tab, nil
}

// Result is the outcome of one target.
type Result struct {
	Target  string              `json:"target"`
	Verdict *visualtest.Verdict `json:"verdict,omitempty"`
	Err     error               `json:"-"`
	Error   string              `json:"error,omitempty"`
}

// Summary aggregates a run.
type Summary struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

// OK reports whether no target failed.
func (s *Summary) OK() bool { return s.Failed == 0 }

// Runner captures and compares every configured target in order.
type Runner struct {
	Env    *Env
	Opener PageOpener
}

// Run processes all targets. A failing target does not stop the run; the
// returned error is non-nil only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	log := r.Env.Logger
	sum := &Summary{}

	for _, t := range r.Env.Config.Targets {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		v, err := r.runTarget(ctx, t)
		res := Result{Target: t.Name, Verdict: v, Err: err}
		if err != nil {
			res.Error = err.Error()
		}
		sum.Results = append(sum.Results, res)

		switch {
		case err != nil:
			sum.Failed++
			log.Error("target failed", "target", t.Name, "code", visualtest.CodeOf(err).String(), "error", err)
		case v.Outcome == visualtest.OutcomeBaselineCreated:
			sum.Created++
		case v.Outcome == visualtest.OutcomeBaselineUpdated:
			sum.Updated++
		default:
			sum.Passed++
		}
	}

	log.Info("run finished",
		"created", sum.Created, "updated", sum.Updated, "passed", sum.Passed, "failed", sum.Failed)
	return sum, nil
}

func (r *Runner) runTarget(ctx context.Context, t config.Target) (*visualtest.Verdict, error) {
	page, err := r.Opener.Open(ctx, t.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", t.URL, err)
	}
	defer page.Close()

	if t.Prepare != "" {
		if err := page.Eval(ctx, t.Prepare); err != nil {
			return nil, fmt.Errorf("prepare %s: %w", t.Name, err)
		}
	}

	checker := &visualtest.Checker{
		Comparator: r.Env.Comparator,
		Capturer:   page,
		Mode:       r.Env.Mode(),
	}
	threshold := r.Env.Config.ThresholdFor(t)
	r.Env.Logger.Debug("checking target", slog.String("target", t.Name), slog.Float64("threshold", threshold))
	if t.Selector != "" {
		return checker.VerifyComponentWithThreshold(ctx, t.Selector, t.Name, threshold)
	}
	return checker.VerifyFullPageWithThreshold(ctx, t.Name, threshold)
}
