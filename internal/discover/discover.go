// Package discover locates BIDS dataset roots below a base directory and
// maintains the persisted scan cache.
package discover

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"
	"github.com/rs/zerolog"

	"github.com/bidsquery/bidsquery/api"
)

const (
	// DefaultMarker is the directory name that identifies a dataset root.
	DefaultMarker = "bids"
	// ManifestName is the optional metadata manifest read from each root.
	ManifestName = "dataset_description.json"
	// DefaultMaxDepth bounds the walk when the caller passes no limit.
	DefaultMaxDepth = 3
)

// Options controls a single Discover call.
type Options struct {
	MaxDepth     int
	UseCache     bool
	ForceRefresh bool
	TTL          time.Duration // zero means no expiry
}

// Scanner walks a filesystem looking for marker directories. The zero value
// is not usable; construct with NewScanner. Not safe for concurrent use.
type Scanner struct {
	FS     billy.Filesystem
	Cache  *Cache // optional; nil disables persistence entirely
	Log    zerolog.Logger
	Marker string

	walks int
}

func NewScanner(fsys billy.Filesystem, cache *Cache, log zerolog.Logger) *Scanner {
	return &Scanner{
		FS:     fsys,
		Cache:  cache,
		Log:    log,
		Marker: DefaultMarker,
	}
}

// Walks reports how many full directory walks this scanner has performed.
// Cache hits do not increment it.
func (s *Scanner) Walks() int { return s.walks }

// Discover returns one DatasetRecord per study below root, preferring the
// most-upstream marker directory within each study. A missing root is not an
// error: it logs a warning and yields an empty result.
func (s *Scanner) Discover(root string, opts Options) []api.DatasetRecord {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	info, err := s.FS.Stat(root)
	if err != nil || !info.IsDir() {
		s.Log.Warn().Str("root", root).Msg("base directory does not exist")
		return []api.DatasetRecord{}
	}

	if s.Cache != nil && opts.UseCache && !opts.ForceRefresh {
		if datasets, ok := s.Cache.Lookup(root, opts.TTL, s.markerValid); ok {
			s.Log.Debug().Str("root", root).Int("datasets", len(datasets)).Msg("cache hit")
			return datasets
		}
	}

	datasets := s.scan(root, opts.MaxDepth)

	if s.Cache != nil && opts.UseCache {
		// Empty results are cached too, so a directory confirmed to hold no
		// datasets is not rescanned until the TTL elapses.
		if err := s.Cache.Store(root, datasets); err != nil {
			s.Log.Warn().Err(err).Str("root", root).Msg("could not persist scan cache")
		}
	}
	return datasets
}

// scan performs the bounded breadth-first walk and most-upstream selection.
func (s *Scanner) scan(root string, maxDepth int) []api.DatasetRecord {
	s.walks++
	s.Log.Debug().Str("root", root).Int("max_depth", maxDepth).Msg("scanning for dataset roots")

	type dirent struct {
		path  string
		depth int // segments below root; root itself is 0
	}

	var candidates []dirent
	queue := []dirent{{path: root, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := s.FS.ReadDir(cur.path)
		if err != nil {
			s.Log.Warn().Err(err).Str("dir", cur.path).Msg("skipping unreadable directory")
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			child := dirent{path: s.FS.Join(cur.path, e.Name()), depth: cur.depth + 1}
			if strings.EqualFold(e.Name(), s.marker()) {
				candidates = append(candidates, child)
			}
			if child.depth < maxDepth {
				queue = append(queue, child)
			}
		}
	}

	// Deterministic precedence: shallower first, then lexicographic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].depth != candidates[j].depth {
			return candidates[i].depth < candidates[j].depth
		}
		return candidates[i].path < candidates[j].path
	})

	// Most-upstream wins: a candidate under the study directory of an
	// already-selected candidate is a nested duplicate and is skipped.
	var claimed []string
	datasets := make([]api.DatasetRecord, 0, len(candidates))
	for _, cand := range candidates {
		if underAny(cand.path, claimed) {
			continue
		}
		studyDir := filepath.Dir(cand.path)
		claimed = append(claimed, studyDir)
		datasets = append(datasets, api.DatasetRecord{
			Path:          cand.path,
			Name:          filepath.Base(studyDir),
			ProjectFolder: filepath.Dir(studyDir),
			Description:   s.readManifest(cand.path),
		})
	}

	s.Log.Info().Str("root", root).Int("datasets", len(datasets)).Msg("discovery complete")
	return datasets
}

// markerValid is the minimal existence check used for cache revalidation:
// the cached path must still be a directory carrying the marker name.
func (s *Scanner) markerValid(path string) bool {
	info, err := s.FS.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	return strings.EqualFold(filepath.Base(path), s.marker())
}

// readManifest parses the optional dataset_description.json next to the
// dataset root. Parse failures yield an empty map, never an abort.
func (s *Scanner) readManifest(datasetPath string) map[string]any {
	raw, err := util.ReadFile(s.FS, s.FS.Join(datasetPath, ManifestName))
	if err != nil {
		return map[string]any{}
	}
	parsed, err := oj.Parse(raw)
	if err != nil {
		s.Log.Warn().Err(err).Str("dataset", datasetPath).Msg("could not parse dataset manifest")
		return map[string]any{}
	}
	desc, ok := parsed.(map[string]any)
	if !ok {
		s.Log.Warn().Str("dataset", datasetPath).Msg("dataset manifest is not a JSON object")
		return map[string]any{}
	}
	return desc
}

func (s *Scanner) marker() string {
	if s.Marker == "" {
		return DefaultMarker
	}
	return s.Marker
}

func underAny(path string, bases []string) bool {
	for _, base := range bases {
		if path == base || strings.HasPrefix(path, base+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
