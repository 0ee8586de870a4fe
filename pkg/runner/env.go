// Package runner builds the comparison environment from configuration and
// runs the configured capture targets.
package runner

import (
	"fmt"
	"log/slog"

	"snapvis/pkg/config"
	"snapvis/pkg/images"
	"snapvis/pkg/pixeldiff"
	"snapvis/pkg/snapshot"
	"snapvis/pkg/visualtest"
)

// Env bundles the stores and comparator shared by every command.
type Env struct {
	Config     *config.Config
	Store      visualtest.BaselineStore
	Dir        *snapshot.Dir
	Artifacts  *snapshot.Artifacts
	Index      *snapshot.Index
	Comparator *visualtest.Comparator
	Logger     *slog.Logger
}

// NewEnv opens the baseline store (indexed when cfg.IndexPath is set) and
// builds a comparator with the configured differ.
func NewEnv(cfg *config.Config, logger *slog.Logger) (*Env, error) {
	if logger == nil {
		logger = slog.Default()
	}
	codec := images.PNG{}
	env := &Env{
		Config:    cfg,
		Dir:       snapshot.NewDir(cfg.SnapshotDir, codec.Ext()),
		Artifacts: snapshot.NewArtifacts(cfg.ReportsDir, codec.Ext()),
		Logger:    logger,
	}
	env.Store = env.Dir

	if cfg.IndexPath != "" {
		idx, err := snapshot.OpenIndex(cfg.IndexPath)
		if err != nil {
			return nil, err
		}
		env.Index = idx
		env.Store = &snapshot.IndexedStore{Dir: env.Dir, Index: idx, Logger: logger}
		logger.Debug("baseline index open", "path", cfg.IndexPath, "run_id", idx.RunID())
	}

	differ, err := NewDiffer(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Comparator, err = visualtest.NewComparator(visualtest.Options{
		Store:     env.Store,
		Artifacts: env.Artifacts,
		Codec:     codec,
		Differ:    differ,
		Annotate:  !cfg.PlainDiff,
		Logger:    logger,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// NewDiffer returns the differ named by cfg.Differ.
func NewDiffer(cfg *config.Config) (pixeldiff.Differ, error) {
	switch cfg.Differ {
	case config.DifferPixelmatch, "":
		return pixeldiff.Pixelmatch{
			IncludeAntiAlias: cfg.IncludeAntiAlias,
			Alpha:            cfg.DiffAlpha,
		}, nil
	case config.DifferChannel:
		return pixeldiff.Channel{FuzzyRadius: cfg.FuzzyRadius}, nil
	}
	return nil, fmt.Errorf("runner: unknown differ %q", cfg.Differ)
}

// Mode returns the comparison mode configured for this run.
func (e *Env) Mode() visualtest.Mode {
	return visualtest.Mode{
		Update:             e.Config.Update,
		FullPageThreshold:  e.Config.FullPageThreshold,
		ComponentThreshold: e.Config.ComponentThreshold,
	}
}

// Close releases the index, if any.
func (e *Env) Close() error {
	if e.Index != nil {
		return e.Index.Close()
	}
	return nil
}
