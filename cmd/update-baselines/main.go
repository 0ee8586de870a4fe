// Command update-baselines re-captures every configured target and stores
// the result as its new baseline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"snapvis/pkg/capture"
	"snapvis/pkg/config"
	"snapvis/pkg/runner"
)

func main() {
	configPath := flag.String("config", "snapvis.yaml", "path to YAML configuration")
	only := flag.String("target", "", "update a single target by name")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Baseline generator for snapvis")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  update-baselines -config snapvis.yaml [-target name]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Or set UPDATE_SNAPSHOTS=true for a regular run.")
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := update(ctx, *configPath, *only, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func update(ctx context.Context, configPath, only string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Update = true
	cfg.Targets, err = selectTargets(cfg.Targets, only)
	if err != nil {
		return err
	}

	env, err := runner.NewEnv(cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	bc := cfg.Browser
	b, err := capture.Launch(ctx, capture.BrowserConfig{
		Remote: bc.Remote, Headless: bc.Headless, Stealth: bc.Stealth,
		Width: bc.Width, Height: bc.Height, Timeout: bc.Timeout, Logger: logger,
	})
	if err != nil {
		return err
	}
	defer b.Close()

	r := &runner.Runner{Env: env, Opener: runner.BrowserOpener{Browser: b}}
	sum, err := r.Run(ctx)
	if err != nil {
		return err
	}
	for _, res := range sum.Results {
		if res.Err != nil {
			fmt.Printf("✗ %s: %v\n", res.Target, res.Err)
			continue
		}
		fmt.Printf("✓ %s → %s\n", res.Target, res.Verdict.BaselinePath)
	}
	if !sum.OK() {
		return fmt.Errorf("%d of %d targets failed", sum.Failed, len(sum.Results))
	}
	return nil
}

// selectTargets narrows targets to the one named only, if set.
func selectTargets(targets []config.Target, only string) ([]config.Target, error) {
	if only == "" {
		return targets, nil
	}
	for _, t := range targets {
		if t.Name == only {
			return []config.Target{t}, nil
		}
	}
	return nil, fmt.Errorf("unknown target %q", only)
}
