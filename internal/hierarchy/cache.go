package hierarchy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"curator/internal/drive"
)

const cacheVersion = 1

// errCacheMiss distinguishes "no usable cache" from real failures.
var errCacheMiss = errors.New("hierarchy cache miss")

// IsCacheMiss reports whether err means the cache is absent or stale rather
// than corrupt.
func IsCacheMiss(err error) bool {
	return errors.Is(err, errCacheMiss)
}

type cacheDocument struct {
	Version     int         `json:"version"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Root        *FolderNode `json:"root"`
}

// Cache persists tree snapshots as a JSON artifact.
type Cache struct {
	path string
}

// NewCache returns a cache over the given file path.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Load reads the cached snapshot. An absent file is a cache miss; a corrupt
// file is a structural error.
func (c *Cache) Load() (*Tree, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errCacheMiss, c.path)
		}
		return nil, fmt.Errorf("read hierarchy cache: %w", err)
	}

	var doc cacheDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, drive.Wrap(drive.ErrStructural, "hierarchy", "load_cache", c.path, err)
	}
	if doc.Root == nil {
		return nil, drive.Wrap(drive.ErrStructural, "hierarchy", "load_cache", "cache has no root node", nil)
	}
	if doc.Version != cacheVersion {
		return nil, fmt.Errorf("%w: version %d", errCacheMiss, doc.Version)
	}

	return NewTree(doc.Root, doc.LastUpdated, "cache"), nil
}

// LoadFresh loads the cached snapshot and treats anything older than maxAge
// as a miss.
func (c *Cache) LoadFresh(maxAge time.Duration) (*Tree, error) {
	tree, err := c.Load()
	if err != nil {
		return nil, err
	}
	if time.Since(tree.BuiltAt) > maxAge {
		return nil, fmt.Errorf("%w: snapshot from %s is stale", errCacheMiss, tree.BuiltAt.Format(time.RFC3339))
	}
	return tree, nil
}

// Save writes the snapshot atomically (temp file plus rename) so a crashed
// writer never leaves a truncated cache behind.
func (c *Cache) Save(tree *Tree) error {
	doc := cacheDocument{
		Version:     cacheVersion,
		LastUpdated: tree.BuiltAt,
		Root:        tree.Root,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal hierarchy cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".hierarchy-cache-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write hierarchy cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close hierarchy cache: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace hierarchy cache: %w", err)
	}
	return nil
}

// Clear removes the cache artifact. A missing file is not an error.
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear hierarchy cache: %w", err)
	}
	return nil
}
