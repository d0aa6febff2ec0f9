// Package roster loads the tabular record store of identified individuals
// and matches its rows by name, id, or demographic criteria.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound    = errors.New("roster file not found")
	ErrUnsupported = errors.New("unsupported roster file type")
	ErrEmpty       = errors.New("roster file is empty")
)

// Row maps column names to cell values. Cells are kept as strings; numeric
// coercion happens at comparison time.
type Row = map[string]string

// Roster is one loaded roster file. Keys associates semantic roles
// (participant_id, name, age, ...) with actual column headers; roles with no
// matching column are simply absent.
type Roster struct {
	Path    string
	Columns []string
	Rows    []Row
	Keys    map[string]string

	log zerolog.Logger
}

// Load reads a roster from a CSV/TSV file or a SQLite database and computes
// its key-column map.
func Load(path string, log zerolog.Logger) (*Roster, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	var (
		columns []string
		rows    []Row
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		columns, rows, err = loadDelimited(path, ',')
	case ".tsv":
		columns, rows, err = loadDelimited(path, '\t')
	case ".db", ".sqlite", ".sqlite3":
		columns, rows, err = loadSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	r := &Roster{
		Path:    path,
		Columns: columns,
		Rows:    rows,
		Keys:    identifyKeyColumns(columns),
		log:     log,
	}
	log.Info().Str("path", path).Int("rows", len(rows)).Int("columns", len(columns)).Msg("loaded roster")
	return r, nil
}

// HasColumn reports whether the roster carries a column with this exact name.
func (r *Roster) HasColumn(name string) bool {
	for _, c := range r.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ParticipantID resolves the participant identifier of a row: the mapped
// participant_id column first, then any column whose header looks id-like.
func (r *Roster) ParticipantID(row Row) string {
	if col, ok := r.Keys["participant_id"]; ok {
		if v := strings.TrimSpace(row[col]); v != "" {
			return v
		}
	}
	for _, col := range r.Columns {
		if !idLikeColumn(col) {
			continue
		}
		if v := strings.TrimSpace(row[col]); v != "" {
			return v
		}
	}
	return ""
}

func idLikeColumn(col string) bool {
	lower := strings.ToLower(col)
	return strings.Contains(lower, "id") ||
		strings.Contains(lower, "subject") ||
		strings.Contains(lower, "participant")
}

func loadDelimited(path string, sep rune) ([]string, []Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open roster %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	columns := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}
