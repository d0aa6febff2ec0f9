package discover

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"

	"github.com/bidsquery/bidsquery/api"
)

// Cache persists discovery results as a single JSON document mapping each
// scanned root to its dataset list and scan timestamp. Every write replaces
// the whole entry for a root; there is no partial reuse.
type Cache struct {
	FS   billy.Filesystem
	Path string
	Log  zerolog.Logger
}

type cacheEntry struct {
	Timestamp int64               `json:"timestamp"` // epoch seconds of the scan
	Datasets  []api.DatasetRecord `json:"datasets"`
}

func NewCache(fsys billy.Filesystem, path string, log zerolog.Logger) *Cache {
	return &Cache{FS: fsys, Path: path, Log: log}
}

// Lookup returns the cached dataset list for root if the entry exists, has
// not outlived ttl (when ttl > 0), and every cached dataset path still passes
// valid. Any single stale path invalidates the whole entry.
func (c *Cache) Lookup(root string, ttl time.Duration, valid func(string) bool) ([]api.DatasetRecord, bool) {
	doc := c.load()
	entry, ok := doc[root]
	if !ok {
		return nil, false
	}
	if ttl > 0 && time.Since(time.Unix(entry.Timestamp, 0)) > ttl {
		c.Log.Debug().Str("root", root).Msg("cache entry expired")
		return nil, false
	}
	for _, d := range entry.Datasets {
		if !valid(d.Path) {
			c.Log.Debug().Str("root", root).Str("dataset", d.Path).Msg("cached dataset no longer valid, forcing rescan")
			return nil, false
		}
	}
	return entry.Datasets, true
}

// Store overwrites the entry for root with datasets and the current time.
func (c *Cache) Store(root string, datasets []api.DatasetRecord) error {
	doc := c.load()
	doc[root] = cacheEntry{
		Timestamp: time.Now().Unix(),
		Datasets:  datasets,
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if dir := filepath.Dir(c.Path); dir != "." {
		if err := c.FS.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	if err := util.WriteFile(c.FS, c.Path, raw, 0o644); err != nil {
		return fmt.Errorf("write cache %s: %w", c.Path, err)
	}
	return nil
}

// Clear deletes the persisted cache document.
func (c *Cache) Clear() error {
	if err := c.FS.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache %s: %w", c.Path, err)
	}
	return nil
}

// load reads the cache document. A missing or corrupt file yields an empty
// document; corruption is logged and the next Store rewrites the file.
func (c *Cache) load() map[string]cacheEntry {
	doc := make(map[string]cacheEntry)
	raw, err := util.ReadFile(c.FS, c.Path)
	if err != nil {
		return doc
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.Log.Warn().Err(err).Str("path", c.Path).Msg("discarding corrupt scan cache")
		return make(map[string]cacheEntry)
	}
	return doc
}
