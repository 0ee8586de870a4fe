package visualtest

import (
	"errors"
	"image"

	"snapvis/pkg/snapshot"
)

// Approve promotes the last actual artifact of name to its baseline and
// clears the diff artifact. It is update mode for a single snapshot.
func (c *Comparator) Approve(name snapshot.Name) (*Verdict, error) {
	if name == "" {
		return nil, newError(CodeInvalidInput, "empty snapshot name")
	}
	data, err := c.artifacts.ReadActual(name)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil, wrapError(err, CodeNotFound, "nothing to approve for %s", name)
	}
	if err != nil {
		return nil, wrapError(err, CodeIO, "read actual artifact for %s", name)
	}

	data, cfg, err := c.codec.Canonical(data)
	if err != nil {
		return nil, wrapError(err, CodeDecode, "decode actual artifact %s", name).
			WithMetadata("image", "actual")
	}
	if err := c.store.Write(name, data); err != nil {
		return nil, wrapError(err, CodeIO, "write baseline %s", name)
	}
	if err := c.artifacts.RemoveDiff(name); err != nil {
		return nil, wrapError(err, CodeIO, "remove diff for %s", name)
	}

	v := &Verdict{
		Name:               name,
		Passed:             true,
		BaselinePath:       c.store.Path(name),
		ActualPath:         c.artifacts.ActualPath(name),
		BaselineSize:       image.Pt(cfg.Width, cfg.Height),
		ActualSize:         image.Pt(cfg.Width, cfg.Height),
		TotalPixels:        cfg.Width * cfg.Height,
		PerceptualDistance: -1,
	}
	v.setOutcome(OutcomeBaselineUpdated)
	c.logger.Info("baseline approved", "name", string(name), "path", v.BaselinePath)
	return v, nil
}
