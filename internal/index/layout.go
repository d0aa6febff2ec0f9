// Package index builds and memoizes per-dataset entity indexes, and answers
// entity-filtered file lookups across datasets.
package index

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"
)

// File is one indexed data file with its extracted entities.
type File struct {
	Path      string
	Datatype  string
	Suffix    string
	Extension string
	Entities  map[string]string
}

// Layout is an in-memory entity index over one dataset root. It is built
// once by scanning the tree and parsing BIDS-style filenames
// (sub-<id>[_ses-<id>][_key-value...]_suffix.ext).
type Layout struct {
	fs    billy.Filesystem
	root  string
	files []File
}

// longhand entity names for the abbreviated filename keys.
var entityNames = map[string]string{
	"sub": "subject",
	"ses": "session",
	"acq": "acquisition",
}

// NewLayout scans root and indexes every file below a sub-* directory.
// It fails when root is missing or unreadable, so a malformed dataset can be
// reported as "no index available" by the caller.
func NewLayout(fsys billy.Filesystem, root string) (*Layout, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("dataset root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset root %s is not a directory", root)
	}

	l := &Layout{fs: fsys, root: root}
	if err := l.walk(root, nil); err != nil {
		return nil, fmt.Errorf("index dataset %s: %w", root, err)
	}
	return l, nil
}

func (l *Layout) walk(dir string, segments []string) error {
	entries, err := l.fs.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		path := l.fs.Join(dir, e.Name())
		if e.IsDir() {
			segs := make([]string, len(segments), len(segments)+1)
			copy(segs, segments)
			if err := l.walk(path, append(segs, e.Name())); err != nil {
				return err
			}
			continue
		}
		// Only files under a subject directory carry entities; top-level
		// files (participants.tsv, the manifest) are not subject data.
		if !hasSubjectSegment(segments) {
			continue
		}
		l.files = append(l.files, parseFile(path, e.Name(), segments))
	}
	return nil
}

func hasSubjectSegment(segments []string) bool {
	for _, s := range segments {
		if strings.HasPrefix(s, "sub-") {
			return true
		}
	}
	return false
}

// parseFile extracts entities from both the directory segments and the
// filename. Filename entities win over path-derived ones.
func parseFile(path, name string, segments []string) File {
	f := File{Path: path, Entities: make(map[string]string)}

	for _, s := range segments {
		switch {
		case strings.HasPrefix(s, "sub-"):
			f.Entities["subject"] = strings.TrimPrefix(s, "sub-")
		case strings.HasPrefix(s, "ses-"):
			f.Entities["session"] = strings.TrimPrefix(s, "ses-")
		default:
			// The innermost plain directory names the datatype (anat, func...).
			f.Datatype = s
		}
	}

	stem := name
	if i := strings.Index(name, "."); i >= 0 {
		stem = name[:i]
		f.Extension = name[i:]
	}
	tokens := strings.Split(stem, "_")
	for i, tok := range tokens {
		key, val, found := strings.Cut(tok, "-")
		if !found {
			if i == len(tokens)-1 {
				f.Suffix = tok
			}
			continue
		}
		if long, ok := entityNames[key]; ok {
			key = long
		}
		f.Entities[key] = val
	}
	return f
}

// Files returns every indexed file.
func (l *Layout) Files() []File { return l.files }

// Subjects lists the distinct subject ids, sorted.
func (l *Layout) Subjects() []string { return l.distinct("subject") }

// Sessions lists the distinct session ids, sorted.
func (l *Layout) Sessions() []string { return l.distinct("session") }

// Tasks lists the distinct task labels, sorted.
func (l *Layout) Tasks() []string { return l.distinct("task") }

// Datatypes lists the distinct datatypes, sorted.
func (l *Layout) Datatypes() []string {
	seen := make(map[string]bool)
	for _, f := range l.files {
		if f.Datatype != "" {
			seen[f.Datatype] = true
		}
	}
	return sortedKeys(seen)
}

// Get returns the files matching every entity filter exactly. Recognized
// keys are datatype, suffix, extension and any entity name (subject,
// session, task, run, acquisition, ...). A nil filter matches everything.
func (l *Layout) Get(filters map[string]string) []File {
	if len(filters) == 0 {
		return l.files
	}
	var out []File
	for _, f := range l.files {
		if matchesFilters(f, filters) {
			out = append(out, f)
		}
	}
	return out
}

func matchesFilters(f File, filters map[string]string) bool {
	for key, want := range filters {
		var got string
		switch key {
		case "datatype":
			got = f.Datatype
		case "suffix":
			got = f.Suffix
		case "extension":
			if strings.TrimPrefix(f.Extension, ".") != strings.TrimPrefix(want, ".") {
				return false
			}
			continue
		default:
			got = f.Entities[key]
		}
		if got != want {
			return false
		}
	}
	return true
}

// Metadata reads the JSON sidecar next to a data file. It is best-effort by
// contract: callers treat an error as "no metadata for this file".
func (l *Layout) Metadata(path string) (map[string]any, error) {
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".json") {
		return nil, fmt.Errorf("no sidecar for %s", base)
	}
	stem := base
	if i := strings.Index(base, "."); i >= 0 {
		stem = base[:i]
	}
	sidecar := l.fs.Join(filepath.Dir(path), stem+".json")
	raw, err := util.ReadFile(l.fs, sidecar)
	if err != nil {
		return nil, fmt.Errorf("read sidecar %s: %w", sidecar, err)
	}
	parsed, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", sidecar, err)
	}
	meta, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("sidecar %s is not a JSON object", sidecar)
	}
	return meta, nil
}

func (l *Layout) distinct(entity string) []string {
	seen := make(map[string]bool)
	for _, f := range l.files {
		if v := f.Entities[entity]; v != "" {
			seen[v] = true
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
