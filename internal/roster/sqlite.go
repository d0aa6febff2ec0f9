package roster

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

// loadSQLite reads a roster out of a SQLite database. The participants table
// is preferred when present, otherwise the first user table is used. Cells
// are rendered to strings so the matcher sees one uniform row shape.
func loadSQLite(path string) ([]string, []Row, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	table, err := rosterTable(db)
	if err != nil {
		return nil, nil, err
	}

	rows, err := db.Query(fmt.Sprintf("SELECT * FROM %q", table))
	if err != nil {
		return nil, nil, fmt.Errorf("query table %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns of %s: %w", table, err)
	}

	var out []Row
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = cellString(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, out, nil
}

func rosterTable(db *sql.DB) (string, error) {
	rows, err := db.Query(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return "", fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate tables: %w", err)
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("no tables in roster database")
	}
	for _, t := range tables {
		if t == "participants" {
			return t, nil
		}
	}
	return tables[0], nil
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
