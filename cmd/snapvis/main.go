// Command snapvis compares screenshots against stored baselines.
//
//	snapvis compare -name "Home Page" -file shot.png
//	snapvis run -config snapvis.yaml
//	snapvis approve -name home_page
//	snapvis list
//	snapvis serve -addr 127.0.0.1:8321
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"snapvis/pkg/capture"
	"snapvis/pkg/config"
	"snapvis/pkg/review"
	"snapvis/pkg/runner"
	"snapvis/pkg/snapshot"
	"snapvis/pkg/visualtest"
)

const usage = `usage: snapvis <command> [flags]

commands:
  compare   compare an image file against its baseline
  run       capture and compare every configured target
  approve   promote the last actual image of a snapshot to its baseline
  list      list stored baselines
  serve     start the review server
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// common holds the flags every command accepts.
type common struct {
	configPath string
	logLevel   string
	jsonLogs   bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", os.Getenv("SNAPVIS_CONFIG"), "path to YAML configuration")
	fs.StringVar(&c.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.BoolVar(&c.jsonLogs, "json-logs", false, "log as JSON")
}

func (c *common) logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.jsonLogs {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c *common) env(stderr io.Writer) (*runner.Env, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	return runner.NewEnv(cfg, c.logger(stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, args := args[0], args[1:]

	var err error
	switch cmd {
	case "compare":
		err = cmdCompare(args, stdout, stderr)
	case "run":
		err = cmdRun(ctx, args, stdout, stderr)
	case "approve":
		err = cmdApprove(args, stdout, stderr)
	case "list":
		err = cmdList(ctx, args, stdout, stderr)
	case "serve":
		err = cmdServe(ctx, args, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "snapvis: unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	case visualtest.IsCode(err, visualtest.CodeVisualMismatch),
		visualtest.IsCode(err, visualtest.CodeDimensionMismatch),
		errors.Is(err, errFailures):
		fmt.Fprintf(stderr, "snapvis: %v\n", err)
		return 1
	default:
		fmt.Fprintf(stderr, "snapvis: %v\n", err)
		return 3
	}
}

var (
	errUsage    = errors.New("usage error")
	errFailures = errors.New("targets failed")
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdCompare(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	label := fs.String("name", "", "snapshot label (normalized)")
	file := fs.String("file", "", "candidate image file")
	threshold := fs.Float64("threshold", -1, "colour-distance threshold in [0, 1]; default is the full-page threshold")
	component := fs.Bool("component", false, "use the component threshold by default")
	update := fs.Bool("update", false, "overwrite the baseline")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *label == "" || *file == "" {
		fmt.Fprintln(stderr, "compare: -name and -file are required")
		return errUsage
	}

	env, err := c.env(stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	mode := env.Mode()
	mode.Update = mode.Update || *update
	checker := &visualtest.Checker{
		Comparator: env.Comparator,
		Capturer:   capture.File{Path: *file},
		Mode:       mode,
	}

	th := *threshold
	if th < 0 {
		th = mode.FullPageThreshold
		if *component {
			th = mode.ComponentThreshold
		}
	}
	v, err := checker.VerifyFullPageWithThreshold(context.Background(), *label, th)
	if v != nil {
		printJSON(stdout, v)
	}
	return err
}

func cmdRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	update := fs.Bool("update", false, "overwrite every baseline")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := c.env(stderr)
	if err != nil {
		return err
	}
	defer env.Close()
	if *update {
		env.Config.Update = true
	}
	if len(env.Config.Targets) == 0 {
		fmt.Fprintln(stderr, "run: no targets configured")
		return errUsage
	}

	sum, err := runTargets(ctx, env)
	if err != nil {
		return err
	}
	printJSON(stdout, sum)
	if !sum.OK() {
		return fmt.Errorf("%w: %d of %d", errFailures, sum.Failed, len(sum.Results))
	}
	return nil
}

// runTargets launches the configured browser and runs every target.
func runTargets(ctx context.Context, env *runner.Env) (*runner.Summary, error) {
	bc := env.Config.Browser
	b, err := capture.Launch(ctx, capture.BrowserConfig{
		Remote:   bc.Remote,
		Headless: bc.Headless,
		Stealth:  bc.Stealth,
		Width:    bc.Width,
		Height:   bc.Height,
		Timeout:  bc.Timeout,
		Logger:   env.Logger,
	})
	if err != nil {
		return nil, err
	}
	defer b.Close()

	r := &runner.Runner{Env: env, Opener: runner.BrowserOpener{Browser: b}}
	return r.Run(ctx)
}

func cmdApprove(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	label := fs.String("name", "", "snapshot label")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name, err := snapshot.NewName(*label)
	if err != nil {
		fmt.Fprintln(stderr, "approve: -name is required")
		return errUsage
	}

	env, err := c.env(stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	v, err := env.Comparator.Approve(name)
	if err != nil {
		return err
	}
	return printJSON(stdout, v)
}

func cmdList(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := c.env(stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	names, err := env.Dir.List()
	if err != nil {
		return err
	}
	for _, n := range names {
		var flags []string
		if snapshot.Has(env.Artifacts.DiffPath(n)) {
			flags = append(flags, "diff")
		}
		if env.Index != nil {
			if e, err := env.Index.Get(ctx, n); err == nil {
				flags = append(flags, fmt.Sprintf("%dx%d", e.Width, e.Height))
			}
		}
		fmt.Fprintf(stdout, "%s\t%s\n", n, strings.Join(flags, ","))
	}
	return nil
}

func cmdServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	c.jsonLogs = true
	addr := fs.String("addr", "", "listen address (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := c.env(stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	if *addr == "" {
		*addr = env.Config.Review.Addr
	}
	srv := review.New(review.Options{
		Dir:        env.Dir,
		Artifacts:  env.Artifacts,
		Comparator: env.Comparator,
		Index:      env.Index,
		Logger:     env.Logger,
	})
	return srv.ListenAndServe(ctx, *addr)
}
