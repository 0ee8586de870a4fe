package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ScreenshotsDir is the artifact subdirectory under the reports root.
const ScreenshotsDir = "screenshots"

// Artifacts lays out the diagnostic files of a comparison:
//
//	<root>/screenshots/<name>_actual.<ext>
//	<root>/screenshots/<name>_diff.<ext>
type Artifacts struct {
	Root string
	Ext  string
}

// NewArtifacts creates an artifact layout under the reports root.
func NewArtifacts(root, ext string) *Artifacts {
	if ext == "" {
		ext = DefaultExt
	}
	return &Artifacts{Root: root, Ext: strings.TrimPrefix(ext, ".")}
}

// Dir returns the directory holding the artifacts.
func (a *Artifacts) Dir() string {
	return filepath.Join(a.Root, ScreenshotsDir)
}

// ActualPath returns the path of the candidate captured for name.
func (a *Artifacts) ActualPath(name Name) string {
	return filepath.Join(a.Dir(), string(name)+"_actual."+a.Ext)
}

// DiffPath returns the path of the rendered diff for name.
func (a *Artifacts) DiffPath(name Name) string {
	return filepath.Join(a.Dir(), string(name)+"_diff."+a.Ext)
}

// WriteActual persists the candidate bytes and returns their path.
func (a *Artifacts) WriteActual(name Name, data []byte) (string, error) {
	p := a.ActualPath(name)
	if err := writeFileAtomic(p, data); err != nil {
		return "", err
	}
	return p, nil
}

// WriteDiff persists an encoded diff image and returns its path.
func (a *Artifacts) WriteDiff(name Name, data []byte) (string, error) {
	p := a.DiffPath(name)
	if err := writeFileAtomic(p, data); err != nil {
		return "", err
	}
	return p, nil
}

// ReadActual returns the last candidate written for name.
func (a *Artifacts) ReadActual(name Name) ([]byte, error) {
	data, err := os.ReadFile(a.ActualPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no actual artifact for %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read actual %s: %w", name, err)
	}
	return data, nil
}

// RemoveDiff deletes a stale diff artifact. A missing file is not an error.
func (a *Artifacts) RemoveDiff(name Name) error {
	err := os.Remove(a.DiffPath(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("snapshot: remove diff %s: %w", name, err)
	}
	return nil
}

// Has reports whether the artifact at path exists.
func Has(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
