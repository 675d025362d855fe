package cache

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore"
)

const (
	artifactSuffix = "_processed.json"
	dirPerm        = 0o755
)

// FileOptions configures a FileCache.
type FileOptions struct {
	// Dir holds the artifacts. Empty places each artifact next to its source file.
	Dir       string
	Staleness Staleness
	Now       Clock
	Logger    *slog.Logger
}

// FileCache keeps one JSON artifact per source file. Freshness is judged from the
// artifact's modification time.
type FileCache struct {
	dir       string
	staleness Staleness
	now       Clock
	logger    *slog.Logger
}

// NewFileCache creates a file cache. Missing options fall back to DefaultMaxAge and time.Now.
func NewFileCache(opts FileOptions) *FileCache {
	s, now := orDefaults(opts.Staleness, opts.Now)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCache{dir: opts.Dir, staleness: s, now: now, logger: logger}
}

// Path returns the artifact path for a source file: <dir>/<base>_processed.json.
func (c *FileCache) Path(key string) string {
	base := filepath.Base(key)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	dir := c.dir
	if dir == "" {
		dir = filepath.Dir(key)
	}
	return filepath.Join(dir, base+artifactSuffix)
}

func (c *FileCache) Get(key string) (*gocvcore.CycleDataset, bool, error) {
	path := c.Path(key)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(err, "stat cache artifact"), "path", path)
	}
	if c.staleness.Stale(info.ModTime(), c.now()) {
		c.logger.Debug("cache artifact stale", slog.String("path", path), slog.Time("mtime", info.ModTime()))
		return nil, false, nil
	}

	//nolint:gosec // path derived from the source path
	f, err := os.Open(path)
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(err, "open cache artifact"), "path", path)
	}
	defer f.Close()

	entry, err := Decode(f)
	if err != nil {
		return nil, false, zerr.With(err, "path", path)
	}
	if entry.Source != "" && entry.Source != key {
		// another source with the same base name wrote this artifact
		return nil, false, nil
	}
	return entry.Dataset, true, nil
}

// Put writes the artifact through a temporary file and a rename.
func (c *FileCache) Put(key string, ds *gocvcore.CycleDataset) error {
	path := c.Path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "create cache dir"), "dir", dir)
	}

	tmp, err := os.CreateTemp(dir, ".gocv-*.tmp")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "create temp artifact"), "dir", dir)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, Entry{Source: key, StoredAt: c.now(), Dataset: ds}); err != nil {
		tmp.Close()
		return zerr.With(err, "path", path)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "close temp artifact"), "path", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return zerr.With(zerr.Wrap(err, "rename artifact"), "path", path)
	}
	return nil
}

// Remove deletes the artifacts of the given sources. Missing artifacts are ignored.
func (c *FileCache) Remove(keys ...string) error {
	var errs error
	for _, key := range keys {
		path := c.Path(key)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, "remove artifact"), "path", path))
			continue
		}
		c.logger.Debug("cache artifact removed", slog.String("path", path))
	}
	return errs
}
