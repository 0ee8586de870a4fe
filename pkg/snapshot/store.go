package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned by Read when no baseline exists for a name.
var ErrNotFound = fmt.Errorf("snapshot: baseline not found: %w", fs.ErrNotExist)

// DefaultExt is the file extension used for baselines and artifacts.
const DefaultExt = "png"

// Dir is a baseline store backed by a single directory.
type Dir struct {
	Root string
	Ext  string
}

// NewDir creates a Dir rooted at root. An empty ext means DefaultExt.
func NewDir(root, ext string) *Dir {
	if ext == "" {
		ext = DefaultExt
	}
	return &Dir{Root: root, Ext: strings.TrimPrefix(ext, ".")}
}

// Path returns the baseline path for name. It has no side effects.
func (d *Dir) Path(name Name) string {
	return filepath.Join(d.Root, string(name)+"."+d.Ext)
}

// Exists reports whether a baseline is stored for name.
func (d *Dir) Exists(name Name) (bool, error) {
	_, err := os.Stat(d.Path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("snapshot: stat %s: %w", name, err)
}

// Read returns the raw baseline bytes for name.
func (d *Dir) Read(name Name) ([]byte, error) {
	data, err := os.ReadFile(d.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	return data, nil
}

// Write stores data as the baseline for name, replacing any previous one.
func (d *Dir) Write(name Name, data []byte) error {
	return writeFileAtomic(d.Path(name), data)
}

// List returns the names of all stored baselines, sorted.
func (d *Dir) List() ([]Name, error) {
	entries, err := os.ReadDir(d.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: list %s: %w", d.Root, err)
	}

	suffix := "." + d.Ext
	var names []Name
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, Name(strings.TrimSuffix(e.Name(), suffix)))
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

// writeFileAtomic creates the parent directory, writes to a temp file next to
// path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("snapshot: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: rename %s: %w", path, err)
	}
	return nil
}
