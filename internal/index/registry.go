package index

import (
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"

	"github.com/bidsquery/bidsquery/api"
)

// Registry memoizes one Layout per dataset path for the lifetime of the
// process. A failed build is logged and not cached, so a later call retries
// once the underlying problem is fixed.
//
// Not safe for concurrent use; a multi-threaded host must guard it
// externally.
type Registry struct {
	FS  billy.Filesystem
	Log zerolog.Logger

	layouts map[string]*Layout
}

func NewRegistry(fsys billy.Filesystem, log zerolog.Logger) *Registry {
	return &Registry{
		FS:      fsys,
		Log:     log,
		layouts: make(map[string]*Layout),
	}
}

// Get returns the memoized index handle for datasetPath, building it on
// first use.
func (r *Registry) Get(datasetPath string) (*Layout, error) {
	if l, ok := r.layouts[datasetPath]; ok {
		return l, nil
	}
	l, err := NewLayout(r.FS, datasetPath)
	if err != nil {
		r.Log.Warn().Err(err).Str("dataset", datasetPath).Msg("could not build dataset index")
		return nil, err
	}
	r.layouts[datasetPath] = l
	return l, nil
}

// Clear drops every memoized handle, forcing a rebuild on next access. This
// is a cold-reload hook for long-running processes, not a consistency
// mechanism.
func (r *Registry) Clear() {
	r.layouts = make(map[string]*Layout)
}

// ListSubjects returns the subject ids of one dataset, empty when no index
// handle is available.
func (r *Registry) ListSubjects(datasetPath string) []string {
	l, err := r.Get(datasetPath)
	if err != nil {
		return []string{}
	}
	return l.Subjects()
}

// Describe returns the entity inventory of one dataset. When the index
// cannot be built the collections are empty and Err carries the reason.
func (r *Registry) Describe(datasetPath string) api.DatasetInfo {
	info := api.DatasetInfo{
		Path:      datasetPath,
		Subjects:  []string{},
		Sessions:  []string{},
		Datatypes: []string{},
		Tasks:     []string{},
	}
	l, err := r.Get(datasetPath)
	if err != nil {
		info.Err = err.Error()
		return info
	}
	info.Subjects = l.Subjects()
	info.Sessions = l.Sessions()
	info.Datatypes = l.Datatypes()
	info.Tasks = l.Tasks()
	return info
}

// FilesForSubject flattens every file of one subject across datasets, each
// record tagged with its origin dataset. Datasets without a usable index
// contribute nothing.
func (r *Registry) FilesForSubject(subjectID string, datasets []api.DatasetRecord) []api.FileRecord {
	var out []api.FileRecord
	for _, ds := range datasets {
		l, err := r.Get(ds.Path)
		if err != nil {
			continue
		}
		for _, f := range l.Get(map[string]string{"subject": subjectID}) {
			out = append(out, api.FileRecord{
				Path:          f.Path,
				Dataset:       ds.Path,
				DatasetName:   ds.Name,
				ProjectFolder: ds.ProjectFolder,
			})
		}
	}
	return out
}

// FilesMatching returns the files matching the exact entity filters across
// datasets, enriched with entities and, when retrievable, sidecar metadata.
// A metadata failure for one file never aborts the batch.
func (r *Registry) FilesMatching(datasets []api.DatasetRecord, filters map[string]string) []api.FileRecord {
	var out []api.FileRecord
	for _, ds := range datasets {
		l, err := r.Get(ds.Path)
		if err != nil {
			continue
		}
		for _, f := range l.Get(filters) {
			rec := api.FileRecord{
				Path:          f.Path,
				Dataset:       ds.Path,
				DatasetName:   ds.Name,
				ProjectFolder: ds.ProjectFolder,
				Entities:      fileEntities(f),
			}
			if meta, err := l.Metadata(f.Path); err == nil {
				rec.Metadata = meta
			}
			out = append(out, rec)
		}
	}
	return out
}

// fileEntities flattens a File into the entity map carried on FileRecords.
func fileEntities(f File) map[string]string {
	entities := make(map[string]string, len(f.Entities)+3)
	for k, v := range f.Entities {
		entities[k] = v
	}
	if f.Datatype != "" {
		entities["datatype"] = f.Datatype
	}
	if f.Suffix != "" {
		entities["suffix"] = f.Suffix
	}
	if f.Extension != "" {
		entities["extension"] = f.Extension
	}
	return entities
}

// SubjectsAcross returns the distinct subject ids across datasets, sorted.
func (r *Registry) SubjectsAcross(datasets []api.DatasetRecord) []string {
	seen := make(map[string]bool)
	for _, ds := range datasets {
		for _, s := range r.ListSubjects(ds.Path) {
			seen[s] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
