// Package visualtest compares screenshots against stored baselines.
//
// A comparison either establishes a baseline (first run, or update mode) or
// diffs the candidate against the existing baseline. Failures carry the
// paths of the actual and diff artifacts so test reports can attach them.
package visualtest

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strconv"

	"snapvis/pkg/images"
	"snapvis/pkg/pixeldiff"
	"snapvis/pkg/snapshot"
)

// BaselineStore maps snapshot names to reference images.
type BaselineStore interface {
	Path(name snapshot.Name) string
	Exists(name snapshot.Name) (bool, error)
	// Read fails with an error wrapping snapshot.ErrNotFound when absent.
	Read(name snapshot.Name) ([]byte, error)
	Write(name snapshot.Name, data []byte) error
}

// ArtifactSink stores the per-run diagnostic images.
type ArtifactSink interface {
	ActualPath(name snapshot.Name) string
	DiffPath(name snapshot.Name) string
	WriteActual(name snapshot.Name, data []byte) (string, error)
	WriteDiff(name snapshot.Name, data []byte) (string, error)
	ReadActual(name snapshot.Name) ([]byte, error)
	RemoveDiff(name snapshot.Name) error
}

// Outcome is the kind of result a comparison produced.
type Outcome int

const (
	OutcomeBaselineCreated Outcome = iota + 1
	OutcomeBaselineUpdated
	OutcomeMatch
	OutcomeDimensionMismatch
	OutcomeVisualMismatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBaselineCreated:
		return "baseline_created"
	case OutcomeBaselineUpdated:
		return "baseline_updated"
	case OutcomeMatch:
		return "match"
	case OutcomeDimensionMismatch:
		return "dimension_mismatch"
	case OutcomeVisualMismatch:
		return "visual_mismatch"
	}
	return "unknown"
}

// Request describes one comparison.
type Request struct {
	Name snapshot.Name
	// Threshold is the perceptual colour-distance cutoff in [0, 1].
	Threshold float64
	// Update overwrites the baseline with the candidate unconditionally.
	Update bool
}

// Verdict is the result of a comparison. Paths are empty when the
// corresponding file was not written.
type Verdict struct {
	Name         snapshot.Name   `json:"name"`
	Outcome      Outcome         `json:"-"`
	OutcomeName  string          `json:"outcome"`
	Passed       bool            `json:"passed"`
	BaselinePath string          `json:"baseline_path"`
	ActualPath   string          `json:"actual_path,omitempty"`
	DiffPath     string          `json:"diff_path,omitempty"`
	DiffPixels   int             `json:"diff_pixels"`
	TotalPixels  int             `json:"total_pixels"`
	BaselineSize image.Point     `json:"baseline_size"`
	ActualSize   image.Point     `json:"actual_size"`
	DiffBounds   image.Rectangle `json:"diff_bounds"`
	// PerceptualDistance is the Hamming distance between perception hashes
	// of baseline and candidate, or -1 when not computed.
	PerceptualDistance int `json:"perceptual_distance"`
}

func (v *Verdict) setOutcome(o Outcome) {
	v.Outcome = o
	v.OutcomeName = o.String()
}

// Options configures a Comparator. Store and Artifacts are required.
type Options struct {
	Store     BaselineStore
	Artifacts ArtifactSink
	// Codec defaults to images.PNG.
	Codec images.Codec
	// Differ defaults to pixeldiff.Pixelmatch.
	Differ pixeldiff.Differ
	// Annotate draws the bounding box of the differing region on diff images.
	Annotate bool
	Logger   *slog.Logger
}

// Comparator establishes and checks baselines. It holds no mutable state;
// concurrent comparisons of different names are safe.
type Comparator struct {
	store     BaselineStore
	artifacts ArtifactSink
	codec     images.Codec
	differ    pixeldiff.Differ
	annotate  bool
	logger    *slog.Logger
}

// NewComparator validates opts and fills in defaults.
func NewComparator(opts Options) (*Comparator, error) {
	if opts.Store == nil {
		return nil, errors.New("visualtest: baseline store is required")
	}
	if opts.Artifacts == nil {
		return nil, errors.New("visualtest: artifact sink is required")
	}
	c := &Comparator{
		store:     opts.Store,
		artifacts: opts.Artifacts,
		codec:     opts.Codec,
		differ:    opts.Differ,
		annotate:  opts.Annotate,
		logger:    opts.Logger,
	}
	if c.codec == nil {
		c.codec = images.PNG{}
	}
	if c.differ == nil {
		c.differ = pixeldiff.Pixelmatch{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Compare checks candidate against the baseline for req.Name.
//
// Without a baseline, or in update mode, the candidate becomes the baseline
// and the verdict passes. Otherwise the candidate is written to the actual
// artifact path and diffed. A dimension or visual mismatch returns both a
// failing verdict and an *Error; other errors return a nil verdict.
//
// Baselines are stored in the codec's format; a candidate in another format
// is re-encoded before it is written. With an indexed store, the baseline file
// is in place even if recording it in the index fails; that failure is logged
// by the store and does not fail the comparison.
func (c *Comparator) Compare(candidate []byte, req Request) (*Verdict, error) {
	if err := validate(candidate, req); err != nil {
		return nil, err
	}
	name := req.Name
	log := c.logger.With("name", string(name))

	exists, err := c.store.Exists(name)
	if err != nil {
		return nil, wrapError(err, CodeIO, "check baseline %s", name)
	}
	if req.Update || !exists {
		return c.writeBaseline(candidate, name, exists, log)
	}

	v := &Verdict{
		Name:               name,
		BaselinePath:       c.store.Path(name),
		PerceptualDistance: -1,
	}

	baselineData, err := c.store.Read(name)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil, wrapError(err, CodeNotFound, "baseline %s disappeared", name)
	}
	if err != nil {
		return nil, wrapError(err, CodeIO, "read baseline %s", name)
	}

	v.ActualPath, err = c.artifacts.WriteActual(name, candidate)
	if err != nil {
		return nil, wrapError(err, CodeIO, "write actual artifact for %s", name)
	}

	baseline, err := c.codec.Decode(baselineData)
	if err != nil {
		return nil, wrapError(err, CodeDecode, "decode baseline %s", name).
			WithMetadata("image", "baseline").WithMetadata("path", v.BaselinePath)
	}
	actual, err := c.codec.Decode(candidate)
	if err != nil {
		return nil, wrapError(err, CodeDecode, "decode candidate %s", name).
			WithMetadata("image", "candidate").WithMetadata("path", v.ActualPath)
	}

	bb, ab := baseline.Bounds(), actual.Bounds()
	v.BaselineSize = image.Pt(bb.Dx(), bb.Dy())
	v.ActualSize = image.Pt(ab.Dx(), ab.Dy())
	v.TotalPixels = ab.Dx() * ab.Dy()

	if v.BaselineSize != v.ActualSize {
		v.setOutcome(OutcomeDimensionMismatch)
		log.Warn("snapshot dimensions differ",
			"baseline", sizeString(v.BaselineSize), "actual", sizeString(v.ActualSize))
		return v, newError(CodeDimensionMismatch,
			"screenshot dimensions differ for %s: baseline %s, actual %s",
			name, sizeString(v.BaselineSize), sizeString(v.ActualSize)).
			WithMetadata("baseline", sizeString(v.BaselineSize)).
			WithMetadata("actual", sizeString(v.ActualSize)).
			WithMetadata("actual_path", v.ActualPath)
	}

	res, err := c.differ.Diff(baseline, actual, req.Threshold)
	if err != nil {
		return nil, wrapError(err, CodeInternal, "diff %s", name)
	}
	v.DiffPixels = res.DiffPixels
	v.DiffBounds = res.Bounds

	if res.DiffPixels == 0 {
		if err := c.artifacts.RemoveDiff(name); err != nil {
			return nil, wrapError(err, CodeIO, "remove stale diff for %s", name)
		}
		v.setOutcome(OutcomeMatch)
		v.Passed = true
		log.Debug("snapshot matches baseline", "threshold", req.Threshold)
		return v, nil
	}

	if c.annotate {
		pixeldiff.Annotate(res.Image, res.Bounds)
	}
	diffData, err := c.codec.Encode(res.Image)
	if err != nil {
		return nil, wrapError(err, CodeInternal, "encode diff for %s", name)
	}
	v.DiffPath, err = c.artifacts.WriteDiff(name, diffData)
	if err != nil {
		return nil, wrapError(err, CodeIO, "write diff artifact for %s", name)
	}
	v.PerceptualDistance = perceptualDistance(baseline, actual)
	v.setOutcome(OutcomeVisualMismatch)

	log.Warn("snapshot differs from baseline",
		"pixels", res.DiffPixels, "threshold", req.Threshold, "path", v.DiffPath)
	return v, newError(CodeVisualMismatch,
		"screenshot comparison failed: %d pixels differ, diff saved to %s", res.DiffPixels, v.DiffPath).
		WithMetadata("pixels", strconv.Itoa(res.DiffPixels)).
		WithMetadata("diff_path", v.DiffPath).
		WithMetadata("actual_path", v.ActualPath)
}

func (c *Comparator) writeBaseline(candidate []byte, name snapshot.Name, existed bool, log *slog.Logger) (*Verdict, error) {
	data, cfg, err := c.codec.Canonical(candidate)
	if err != nil {
		return nil, wrapError(err, CodeDecode, "decode candidate %s", name).
			WithMetadata("image", "candidate")
	}
	if err := c.store.Write(name, data); err != nil {
		return nil, wrapError(err, CodeIO, "write baseline %s", name)
	}
	if err := c.artifacts.RemoveDiff(name); err != nil {
		return nil, wrapError(err, CodeIO, "remove stale diff for %s", name)
	}

	v := &Verdict{
		Name:               name,
		Passed:             true,
		BaselinePath:       c.store.Path(name),
		BaselineSize:       image.Pt(cfg.Width, cfg.Height),
		ActualSize:         image.Pt(cfg.Width, cfg.Height),
		TotalPixels:        cfg.Width * cfg.Height,
		PerceptualDistance: -1,
	}
	if existed {
		v.setOutcome(OutcomeBaselineUpdated)
		log.Info("baseline updated", "path", v.BaselinePath)
	} else {
		v.setOutcome(OutcomeBaselineCreated)
		log.Info("baseline created", "path", v.BaselinePath)
	}
	return v, nil
}

func validate(candidate []byte, req Request) error {
	if len(candidate) == 0 {
		return newError(CodeInvalidInput, "empty candidate image")
	}
	if req.Name == "" {
		return newError(CodeInvalidInput, "empty snapshot name")
	}
	if math.IsNaN(req.Threshold) || req.Threshold < 0 || req.Threshold > 1 {
		return newError(CodeInvalidInput, "threshold %v out of range [0, 1]", req.Threshold).
			WithMetadata("name", string(req.Name))
	}
	return nil
}

func sizeString(p image.Point) string {
	return fmt.Sprintf("%dx%d", p.X, p.Y)
}
