package roster

import (
	"strconv"
	"strings"
)

// idPrefix is the identifier prefix stripped during normalization, so
// "sub-007" and "007" resolve to the same participant.
const idPrefix = "sub-"

// NormalizeID trims an identifier and strips the sub- prefix
// case-insensitively. Normalizing an already-normalized id is a no-op.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= len(idPrefix) && strings.EqualFold(id[:len(idPrefix)], idPrefix) {
		return id[len(idPrefix):]
	}
	return id
}

// FindByName returns the rows whose name cells contain query,
// case-insensitively. It searches the columns mapped to the name,
// first_name and last_name roles; when none of those roles exist it falls
// back to every column whose header mentions name, participant or subject.
// A row matches at most once.
func (r *Roster) FindByName(query string) []Row {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var cols []string
	for _, role := range []string{"name", "first_name", "last_name"} {
		if col, ok := r.Keys[role]; ok {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		for _, col := range r.Columns {
			lower := strings.ToLower(col)
			if strings.Contains(lower, "name") ||
				strings.Contains(lower, "participant") ||
				strings.Contains(lower, "subject") {
				cols = append(cols, col)
			}
		}
	}

	var matches []Row
	for _, row := range r.Rows {
		for _, col := range cols {
			cell := row[col]
			if cell != "" && strings.Contains(strings.ToLower(cell), query) {
				matches = append(matches, row)
				break
			}
		}
	}
	return matches
}

// FindByID looks a row up by participant id. It tries, in order: an exact
// trimmed match on the participant_id column, an exact trimmed match on any
// id-like column, then the same two passes case-insensitively against both
// the prefixed and unprefixed forms of the id. First hit wins.
func (r *Roster) FindByID(id string) (Row, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}

	if row, ok := r.matchExact(id); ok {
		return row, true
	}

	bare := NormalizeID(id)
	for _, alt := range []string{idPrefix + bare, bare} {
		if row, ok := r.matchFold(alt); ok {
			return row, true
		}
	}
	return nil, false
}

func (r *Roster) matchExact(id string) (Row, bool) {
	if col, ok := r.Keys["participant_id"]; ok {
		for _, row := range r.Rows {
			if strings.TrimSpace(row[col]) == id {
				return row, true
			}
		}
	}
	for _, col := range r.Columns {
		if !idLikeColumn(col) {
			continue
		}
		for _, row := range r.Rows {
			if strings.TrimSpace(row[col]) == id {
				return row, true
			}
		}
	}
	return nil, false
}

func (r *Roster) matchFold(id string) (Row, bool) {
	if col, ok := r.Keys["participant_id"]; ok {
		for _, row := range r.Rows {
			if strings.EqualFold(strings.TrimSpace(row[col]), id) {
				return row, true
			}
		}
	}
	for _, col := range r.Columns {
		if !idLikeColumn(col) {
			continue
		}
		for _, row := range r.Rows {
			if strings.EqualFold(strings.TrimSpace(row[col]), id) {
				return row, true
			}
		}
	}
	return nil, false
}

// Op is a comparison operator of a tagged criterion.
type Op int

const (
	// OpEq is tolerant equality: numeric when both sides coerce, otherwise
	// case-insensitive substring containment.
	OpEq Op = iota
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
)

func (o Op) String() string {
	switch o {
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	default:
		return "="
	}
}

// Criterion is one tagged roster filter. The string-embedded operator form
// ("age": ">=60") is parsed exactly once, at the boundary, by ParseCriterion.
type Criterion struct {
	Column  string
	Op      Op
	Operand string
}

// operator prefixes in precedence order, so ">=" is never read as ">" with
// operand "=60".
var opPrefixes = []struct {
	prefix string
	op     Op
}{
	{">=", OpGe},
	{"<=", OpLe},
	{"!=", OpNe},
	{">", OpGt},
	{"<", OpLt},
}

// ParseCriterion converts a column/value pair into a tagged criterion,
// recognizing a leading comparison operator in the value.
func ParseCriterion(column, value string) Criterion {
	v := strings.TrimSpace(value)
	for _, p := range opPrefixes {
		if strings.HasPrefix(v, p.prefix) {
			return Criterion{
				Column:  column,
				Op:      p.op,
				Operand: strings.TrimSpace(strings.TrimPrefix(v, p.prefix)),
			}
		}
	}
	return Criterion{Column: column, Op: OpEq, Operand: v}
}

// categorical fields compare on the full trimmed value, case-insensitively,
// instead of by substring.
var categoricalColumns = map[string]bool{
	"sex":    true,
	"gender": true,
	"sexo":   true,
	"género": true,
	"genero": true,
}

// FilterByCriteria returns the rows satisfying every criterion, plus the
// columns of criteria that were skipped because the roster has no such
// column. A skipped criterion does not narrow the result; this looseness is
// preserved from the observed behavior and logged.
func (r *Roster) FilterByCriteria(criteria []Criterion) ([]Row, []string) {
	return r.FilterRows(r.Rows, criteria)
}

// FilterRows applies criteria to an explicit row subset. All criteria are
// ANDed.
func (r *Roster) FilterRows(rows []Row, criteria []Criterion) ([]Row, []string) {
	var skipped []string
	for _, c := range criteria {
		if !r.HasColumn(c.Column) {
			r.log.Warn().Str("column", c.Column).Msg("criterion column not in roster, skipping")
			skipped = append(skipped, c.Column)
			continue
		}
		var kept []Row
		for _, row := range rows {
			if r.matchCriterion(row, c) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	return rows, skipped
}

func (r *Roster) matchCriterion(row Row, c Criterion) bool {
	cell := strings.TrimSpace(row[c.Column])

	if categoricalColumns[strings.ToLower(c.Column)] && c.Op == OpEq {
		return strings.EqualFold(cell, c.Operand)
	}

	switch c.Op {
	case OpGt, OpGe, OpLt, OpLe:
		cellNum, cellOK := parseNumber(cell)
		threshold, thrOK := parseNumber(c.Operand)
		if !cellOK || !thrOK {
			// Non-numeric side disqualifies the row, not the whole query.
			r.log.Warn().Str("column", c.Column).Str("value", cell).Str("operand", c.Operand).
				Msg("could not compare numerically, excluding row")
			return false
		}
		switch c.Op {
		case OpGt:
			return cellNum > threshold
		case OpGe:
			return cellNum >= threshold
		case OpLt:
			return cellNum < threshold
		default:
			return cellNum <= threshold
		}
	case OpNe:
		if cellNum, ok := parseNumber(cell); ok {
			if operandNum, ok := parseNumber(c.Operand); ok {
				return cellNum != operandNum
			}
		}
		return !strings.EqualFold(cell, c.Operand)
	default: // OpEq
		if cellNum, ok := parseNumber(cell); ok {
			if operandNum, ok := parseNumber(c.Operand); ok {
				return cellNum == operandNum
			}
		}
		return strings.Contains(strings.ToLower(cell), strings.ToLower(c.Operand))
	}
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	return n, err == nil
}

// emptyish cell values dropped by CleanRow.
var emptyCells = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
	"n/a":  true,
}

// CleanRow drops cells that carry no information (empty after trim, or a
// textual not-a-number placeholder) so callers never present meaningless
// values. The input row is not modified.
func CleanRow(row Row) Row {
	out := make(Row, len(row))
	for col, val := range row {
		trimmed := strings.TrimSpace(val)
		if emptyCells[strings.ToLower(trimmed)] {
			continue
		}
		out[col] = trimmed
	}
	return out
}
