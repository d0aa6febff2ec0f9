// Package query orchestrates dataset discovery, entity indexing and roster
// matching to answer the two inverse cross-reference queries.
package query

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/rs/zerolog"

	"github.com/bidsquery/bidsquery/api"
	"github.com/bidsquery/bidsquery/internal/discover"
	"github.com/bidsquery/bidsquery/internal/index"
	"github.com/bidsquery/bidsquery/internal/roster"
)

// entityKeys are the criteria keys answered by the file-entity index; every
// other key is a roster column.
var entityKeys = map[string]bool{
	"datatype":    true,
	"suffix":      true,
	"extension":   true,
	"task":        true,
	"session":     true,
	"run":         true,
	"acquisition": true,
}

// subjectSegmentRE extracts a subject id from a sub-<token> path component.
// Used only when the index did not supply a subject entity.
var subjectSegmentRE = regexp.MustCompile(`(?:^|/)sub-([^/]+)/`)

// Engine answers the two inverse queries. It owns no global state: the
// scanner and index registry are injected by the composition root.
type Engine struct {
	Scanner *discover.Scanner
	Index   *index.Registry
	Log     zerolog.Logger

	// Discovery is applied to every implicit discover call issued by the
	// query entry points.
	Discovery discover.Options
}

func NewEngine(scanner *discover.Scanner, registry *index.Registry, log zerolog.Logger) *Engine {
	return &Engine{
		Scanner: scanner,
		Index:   registry,
		Log:     log,
		Discovery: discover.Options{
			MaxDepth: discover.DefaultMaxDepth,
			UseCache: true,
		},
	}
}

// ClearCaches drops the in-memory index memoization, forcing a cold reload
// on the next query.
func (e *Engine) ClearCaches() {
	e.Index.Clear()
}

// QueryByName finds the data files belonging to every participant whose name
// matches the query substring. The result is complete and inspectable even
// on failure: empty collections plus an Error string.
func (e *Engine) QueryByName(name, root string, rost *roster.Roster) *api.QueryResult {
	res := &api.QueryResult{
		QueryType:         "by_name",
		Query:             name,
		ParticipantsFound: []map[string]string{},
		FilesFound:        []api.FileRecord{},
		DatasetsSearched:  []string{},
	}

	matches := rost.FindByName(name)
	if len(matches) == 0 {
		res.Error = fmt.Sprintf("no participants found matching '%s'", name)
		return res
	}
	for _, row := range matches {
		res.ParticipantsFound = append(res.ParticipantsFound, roster.CleanRow(row))
	}

	datasets := e.Scanner.Discover(root, e.Discovery)
	res.DatasetsSearched = datasetPaths(datasets)
	if len(datasets) == 0 {
		res.Error = "no BIDS datasets found in the base directory"
		return res
	}

	for _, row := range matches {
		cleaned := roster.CleanRow(row)
		pid := rost.ParticipantID(cleaned)
		if pid == "" {
			e.Log.Warn().Msg("could not determine participant id for matched row")
			continue
		}
		files := e.Index.FilesForSubject(roster.NormalizeID(pid), datasets)
		for i := range files {
			files[i].ParticipantID = pid
			files[i].ParticipantInfo = cleaned
		}
		res.FilesFound = append(res.FilesFound, files...)
	}
	res.TotalFiles = len(res.FilesFound)

	// Secondary grouping for presentation.
	res.FilesByParticipant = make(map[string][]api.FileRecord)
	for _, f := range res.FilesFound {
		res.FilesByParticipant[f.ParticipantID] = append(res.FilesByParticipant[f.ParticipantID], f)
	}
	return res
}

// QueryByCriteria finds the participants (and their files) matching a mix of
// file-entity criteria and roster criteria. Entity keys go to the index,
// everything else filters the roster; the two sides are joined on the
// extracted subject id.
func (e *Engine) QueryByCriteria(root string, rost *roster.Roster, criteria map[string]string) *api.QueryResult {
	res := &api.QueryResult{
		QueryType:         "by_criteria",
		Criteria:          criteria,
		ParticipantsFound: []map[string]string{},
		FilesFound:        []api.FileRecord{},
		DatasetsSearched:  []string{},
	}

	entityCriteria := make(map[string]string)
	var rosterCriteria []roster.Criterion
	for _, key := range sortedCriteriaKeys(criteria) {
		value := criteria[key]
		if entityKeys[key] {
			entityCriteria[key] = value
			continue
		}
		rosterCriteria = append(rosterCriteria, roster.ParseCriterion(key, value))
		if !rost.HasColumn(key) {
			res.UnknownCriteria = append(res.UnknownCriteria, key)
		}
	}

	datasets := e.Scanner.Discover(root, e.Discovery)
	res.DatasetsSearched = datasetPaths(datasets)
	if len(datasets) == 0 {
		res.Error = "no BIDS datasets found in the base directory"
		return res
	}

	// Roster-only queries never touch the file-entity side: filter the
	// roster directly and fetch each survivor's files.
	if len(rosterCriteria) > 0 && len(entityCriteria) == 0 {
		rows, _ := rost.FilterByCriteria(rosterCriteria)
		if len(rows) == 0 {
			res.Error = "no participants found matching criteria"
			return res
		}
		for _, row := range rows {
			cleaned := roster.CleanRow(row)
			res.ParticipantsFound = append(res.ParticipantsFound, cleaned)
			pid := rost.ParticipantID(cleaned)
			if pid == "" {
				e.Log.Warn().Msg("could not determine participant id for matched row")
				continue
			}
			files := e.Index.FilesForSubject(roster.NormalizeID(pid), datasets)
			for i := range files {
				files[i].ParticipantID = pid
				files[i].ParticipantInfo = cleaned
			}
			res.FilesFound = append(res.FilesFound, files...)
		}
		res.TotalFiles = len(res.FilesFound)
		return res
	}

	// Candidate files: entity-filtered when entity criteria exist, the full
	// listing otherwise.
	files := e.Index.FilesMatching(datasets, entityCriteria)

	// Resolve one roster row per distinct extracted subject id.
	subjectIDs := make(map[string]bool)
	for _, f := range files {
		if sid := extractSubject(f); sid != "" {
			subjectIDs[sid] = true
		}
	}
	resolved := make(map[string]roster.Row) // subject id → cleaned row
	for _, sid := range sortedSetKeys(subjectIDs) {
		row, ok := rost.FindByID(sid)
		if !ok {
			continue
		}
		resolved[sid] = roster.CleanRow(row)
	}

	participants := resolved
	if len(rosterCriteria) > 0 {
		var rows []roster.Row
		for _, sid := range sortedRowKeys(resolved) {
			rows = append(rows, resolved[sid])
		}
		surviving, _ := rost.FilterRows(rows, rosterCriteria)

		// Keep only the files whose subject survived the roster filter.
		survivingIDs := make(map[string]bool)
		participants = make(map[string]roster.Row)
		for _, row := range surviving {
			pid := rost.ParticipantID(row)
			if pid == "" {
				continue
			}
			norm := roster.NormalizeID(pid)
			survivingIDs[norm] = true
			participants[norm] = row
		}
		var kept []api.FileRecord
		for _, f := range files {
			if survivingIDs[roster.NormalizeID(extractSubject(f))] {
				kept = append(kept, f)
			}
		}
		files = kept
	}

	// Attach participant context; the lookup accepts both prefixed and
	// unprefixed id forms. Files with no resolvable participant stay in the
	// result without participant info.
	lookup := make(map[string]roster.Row)
	ids := make(map[string]string) // normalized id → raw participant id
	for _, sid := range sortedRowKeys(participants) {
		row := participants[sid]
		res.ParticipantsFound = append(res.ParticipantsFound, row)
		pid := rost.ParticipantID(row)
		if pid == "" {
			continue
		}
		norm := roster.NormalizeID(pid)
		lookup[pid] = row
		lookup[norm] = row
		ids[norm] = pid
	}
	for i := range files {
		sid := extractSubject(files[i])
		row, ok := lookup[sid]
		if !ok {
			row, ok = lookup[roster.NormalizeID(sid)]
		}
		if ok {
			files[i].ParticipantInfo = row
			if pid, found := ids[roster.NormalizeID(sid)]; found {
				files[i].ParticipantID = pid
			}
		}
	}

	res.FilesFound = files
	res.TotalFiles = len(files)
	return res
}

// Summarize reports the dataset inventory below root.
func (e *Engine) Summarize(root string) api.DatasetsSummary {
	datasets := e.Scanner.Discover(root, e.Discovery)
	summary := api.DatasetsSummary{
		TotalDatasets: len(datasets),
		Datasets:      make([]api.DatasetSummary, 0, len(datasets)),
	}
	for _, ds := range datasets {
		info := e.Index.Describe(ds.Path)
		summary.Datasets = append(summary.Datasets, api.DatasetSummary{
			Name:          ds.Name,
			Path:          ds.Path,
			ProjectFolder: ds.ProjectFolder,
			SubjectsCount: len(info.Subjects),
			Datatypes:     info.Datatypes,
			SessionsCount: len(info.Sessions),
		})
	}
	return summary
}

// extractSubject prefers the index-supplied subject entity and falls back to
// pattern-matching a sub-<token> component out of the file path.
func extractSubject(f api.FileRecord) string {
	if sid := f.Entities["subject"]; sid != "" {
		return sid
	}
	m := subjectSegmentRE.FindStringSubmatch(filepath.ToSlash(f.Path))
	if m == nil {
		return ""
	}
	return m[1]
}

func datasetPaths(datasets []api.DatasetRecord) []string {
	paths := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		paths = append(paths, ds.Path)
	}
	return paths
}

func sortedCriteriaKeys(criteria map[string]string) []string {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSetKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedRowKeys(rows map[string]roster.Row) []string {
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
