package roster

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRoster(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const csvFixture = `participant_id,name,age,sex,diagnosis
sub-001,John Doe,65,M,AD
sub-002,Jane Smith,70,F,Control
sub-003,Bob Jones,,M,MCI
`

func loadFixture(t *testing.T) *Roster {
	t.Helper()
	r, err := Load(writeRoster(t, "participants.csv", csvFixture), zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestLoad_CSV(t *testing.T) {
	r := loadFixture(t)

	assert.Equal(t, []string{"participant_id", "name", "age", "sex", "diagnosis"}, r.Columns)
	require.Len(t, r.Rows, 3)
	assert.Equal(t, "John Doe", r.Rows[0]["name"])
	assert.Equal(t, "", r.Rows[2]["age"])
}

func TestLoad_TSV(t *testing.T) {
	path := writeRoster(t, "participants.tsv", "participant_id\tage\nsub-001\t65\n")

	r, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "65", r.Rows[0]["age"])
}

func TestLoad_ShortRecordPadded(t *testing.T) {
	path := writeRoster(t, "ragged.csv", "participant_id,age,sex\nsub-001,65\n")

	r, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "", r.Rows[0]["sex"])
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeRoster(t, "participants.xlsx", "binary junk")

	_, err := Load(path, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLoad_HeaderOnly(t *testing.T) {
	path := writeRoster(t, "empty.csv", "participant_id,age\n")

	_, err := Load(path, zerolog.Nop())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoad_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE extra (x TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE participants (participant_id TEXT, name TEXT, age INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO participants VALUES ('sub-001', 'John Doe', 65), ('sub-002', NULL, 70.5)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	r, err := Load(path, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"participant_id", "name", "age"}, r.Columns)
	require.Len(t, r.Rows, 2)
	assert.Equal(t, "65", r.Rows[0]["age"], "integers render without a decimal point")
	assert.Equal(t, "70.5", r.Rows[1]["age"])
	assert.Equal(t, "", r.Rows[1]["name"], "NULL renders as an empty cell")
}

func TestLoad_SQLitePrefersParticipantsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.sqlite")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE aaa_other (y TEXT)`,
		`INSERT INTO aaa_other VALUES ('x')`,
		`CREATE TABLE participants (participant_id TEXT)`,
		`INSERT INTO participants VALUES ('sub-009')`,
	} {
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	r, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "sub-009", r.Rows[0]["participant_id"])
}

func TestIdentifyKeyColumns(t *testing.T) {
	keys := identifyKeyColumns([]string{"Subject_ID", "Full_Name", "AGE", "Gender", "condition", "dob"})

	assert.Equal(t, "Subject_ID", keys["participant_id"])
	assert.Equal(t, "Full_Name", keys["name"])
	assert.Equal(t, "AGE", keys["age"])
	assert.Equal(t, "Gender", keys["sex"])
	assert.Equal(t, "condition", keys["diagnosis"])
	assert.Equal(t, "dob", keys["date_of_birth"])
	_, ok := keys["scan_date"]
	assert.False(t, ok, "roles without a matching column stay absent")
}

func TestHasColumn(t *testing.T) {
	r := loadFixture(t)

	assert.True(t, r.HasColumn("age"))
	assert.False(t, r.HasColumn("Age"), "column check is exact")
	assert.False(t, r.HasColumn("handedness"))
}

func TestParticipantID(t *testing.T) {
	r := loadFixture(t)
	assert.Equal(t, "sub-001", r.ParticipantID(r.Rows[0]))
}

func TestParticipantID_FallbackColumn(t *testing.T) {
	r := &Roster{
		Columns: []string{"weight", "subject_code"},
		Keys:    identifyKeyColumns([]string{"weight", "subject_code"}),
	}
	assert.Equal(t, "S17", r.ParticipantID(Row{"weight": "70", "subject_code": " S17 "}))
	assert.Equal(t, "", r.ParticipantID(Row{"weight": "70"}))
}
