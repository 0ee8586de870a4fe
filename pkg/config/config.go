// Package config loads snapvis configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"gopkg.in/yaml.v3"

	"snapvis/pkg/snapshot"
)

// Differ names accepted in Config.Differ.
const (
	DifferPixelmatch = "pixelmatch"
	DifferChannel    = "channel"
)

// Config is the top-level snapvis configuration.
type Config struct {
	SnapshotDir string `yaml:"snapshot_dir"`
	ReportsDir  string `yaml:"reports_dir"`
	// IndexPath is the sqlite baseline index. Empty disables indexing.
	IndexPath string `yaml:"index_path"`

	Differ             string  `yaml:"differ"`
	FuzzyRadius        int     `yaml:"fuzzy_radius"`
	IncludeAntiAlias   bool    `yaml:"include_anti_alias"`
	// DiffAlpha is the opacity of unchanged pixels in diff images. Zero
	// keeps the differ's default.
	DiffAlpha          float64 `yaml:"diff_alpha"`
	FullPageThreshold  float64 `yaml:"full_page_threshold"`
	ComponentThreshold float64 `yaml:"component_threshold"`
	// PlainDiff disables the bounding box drawn on diff images.
	PlainDiff bool `yaml:"plain_diff"`

	// Update is read once at load time from UPDATE_SNAPSHOTS.
	Update bool `yaml:"update"`

	Browser BrowserConfig `yaml:"browser"`
	Review  ReviewConfig  `yaml:"review"`
	Targets []Target      `yaml:"targets"`
}

// BrowserConfig controls the Chrome used for captures.
type BrowserConfig struct {
	Remote   string        `yaml:"remote"`
	Headless bool          `yaml:"headless"`
	Stealth  bool          `yaml:"stealth"`
	Width    int           `yaml:"width"`
	Height   int           `yaml:"height"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ReviewConfig controls the review HTTP server.
type ReviewConfig struct {
	Addr string `yaml:"addr"`
}

// Target is one page or component to capture and compare.
type Target struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	// Selector captures a single element instead of the full page.
	Selector string `yaml:"selector"`
	// Threshold overrides the full-page or component default.
	Threshold *float64 `yaml:"threshold"`
	// Prepare is a JS function expression evaluated before capture.
	Prepare string `yaml:"prepare"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		SnapshotDir:        "snapshots",
		ReportsDir:         "reports",
		Differ:             DifferPixelmatch,
		FullPageThreshold:  0.2,
		ComponentThreshold: 0.1,
		Browser: BrowserConfig{
			Headless: true,
			Width:    1280,
			Height:   720,
			Timeout:  30 * time.Second,
		},
		Review: ReviewConfig{Addr: "127.0.0.1:8321"},
	}
}

// Load reads path (if not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Update = getEnvBool("UPDATE_SNAPSHOTS", c.Update)
	c.SnapshotDir = getEnv("SNAPSHOT_DIR", c.SnapshotDir)
	c.ReportsDir = getEnv("REPORTS_DIR", c.ReportsDir)
	c.IndexPath = getEnv("SNAPSHOT_INDEX", c.IndexPath)
	c.Differ = getEnv("SNAPSHOT_DIFFER", c.Differ)
	c.FullPageThreshold = getEnvFloat("FULL_PAGE_THRESHOLD", c.FullPageThreshold)
	c.ComponentThreshold = getEnvFloat("COMPONENT_THRESHOLD", c.ComponentThreshold)
	c.Browser.Remote = getEnv("BROWSER_REMOTE", c.Browser.Remote)
	c.Browser.Headless = getEnvBool("HEADLESS", c.Browser.Headless)
	c.Review.Addr = getEnv("REVIEW_ADDR", c.Review.Addr)
}

// Validate checks ranges, names and prepare scripts.
func (c *Config) Validate() error {
	var errs []error
	if c.SnapshotDir == "" {
		errs = append(errs, errors.New("snapshot_dir is empty"))
	}
	if c.ReportsDir == "" {
		errs = append(errs, errors.New("reports_dir is empty"))
	}
	switch c.Differ {
	case DifferPixelmatch, DifferChannel:
	default:
		errs = append(errs, fmt.Errorf("unknown differ %q", c.Differ))
	}
	if c.FuzzyRadius < 0 {
		errs = append(errs, fmt.Errorf("fuzzy_radius %d is negative", c.FuzzyRadius))
	}
	if !validThreshold(c.DiffAlpha) {
		errs = append(errs, fmt.Errorf("diff_alpha %v out of range [0, 1]", c.DiffAlpha))
	}
	if !validThreshold(c.FullPageThreshold) {
		errs = append(errs, fmt.Errorf("full_page_threshold %v out of range [0, 1]", c.FullPageThreshold))
	}
	if !validThreshold(c.ComponentThreshold) {
		errs = append(errs, fmt.Errorf("component_threshold %v out of range [0, 1]", c.ComponentThreshold))
	}

	// targets whose names normalize alike would share one baseline
	seen := make(map[string]string)
	for i, t := range c.Targets {
		key := snapshot.Normalize(t.Name)
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: name is empty", i))
		} else if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("targets[%d]: name %q collides with %q as snapshot %q", i, t.Name, prev, key))
		} else {
			seen[key] = t.Name
		}
		if t.URL == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: url is empty", i))
		}
		if t.Threshold != nil && !validThreshold(*t.Threshold) {
			errs = append(errs, fmt.Errorf("targets[%d]: threshold %v out of range [0, 1]", i, *t.Threshold))
		}
		if t.Prepare != "" {
			if err := CompileScript(t.Name, t.Prepare); err != nil {
				errs = append(errs, fmt.Errorf("targets[%d]: prepare: %w", i, err))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ThresholdFor returns the threshold a target is compared with.
func (c *Config) ThresholdFor(t Target) float64 {
	if t.Threshold != nil {
		return *t.Threshold
	}
	if t.Selector != "" {
		return c.ComponentThreshold
	}
	return c.FullPageThreshold
}

// CompileScript checks that script parses as a JS function expression.
func CompileScript(name, script string) error {
	_, err := goja.Compile(name, "("+script+")", true)
	return err
}

func validThreshold(t float64) bool {
	return !math.IsNaN(t) && t >= 0 && t <= 1
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		return v == "true" || v == "1"
	}
	return def
}
