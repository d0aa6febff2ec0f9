package index

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidsquery/bidsquery/api"
)

func TestRegistry_GetMemoizes(t *testing.T) {
	fsys, _ := fixtureLayout(t)
	r := NewRegistry(fsys, zerolog.Nop())

	first, err := r.Get("/ds")
	require.NoError(t, err)
	second, err := r.Get("/ds")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestRegistry_FailureNotCached(t *testing.T) {
	fsys := memfs.New()
	r := NewRegistry(fsys, zerolog.Nop())

	_, err := r.Get("/ds")
	require.Error(t, err)

	// Once the dataset exists the next call succeeds.
	touch(t, fsys, "/ds/sub-001/anat/sub-001_T1w.nii.gz", "")
	l, err := r.Get("/ds")
	require.NoError(t, err)
	assert.Equal(t, []string{"001"}, l.Subjects())
}

func TestRegistry_Clear(t *testing.T) {
	fsys, _ := fixtureLayout(t)
	r := NewRegistry(fsys, zerolog.Nop())

	first, err := r.Get("/ds")
	require.NoError(t, err)

	r.Clear()

	second, err := r.Get("/ds")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestRegistry_ListSubjects(t *testing.T) {
	fsys, _ := fixtureLayout(t)
	r := NewRegistry(fsys, zerolog.Nop())

	assert.Equal(t, []string{"001", "002"}, r.ListSubjects("/ds"))
	assert.Empty(t, r.ListSubjects("/nope"))
}

func TestRegistry_Describe(t *testing.T) {
	fsys, _ := fixtureLayout(t)
	r := NewRegistry(fsys, zerolog.Nop())

	info := r.Describe("/ds")
	assert.Equal(t, "/ds", info.Path)
	assert.Equal(t, []string{"001", "002"}, info.Subjects)
	assert.Equal(t, []string{"01"}, info.Sessions)
	assert.Equal(t, []string{"anat", "func"}, info.Datatypes)
	assert.Equal(t, []string{"rest"}, info.Tasks)
	assert.Empty(t, info.Err)
}

func TestRegistry_DescribeBrokenDataset(t *testing.T) {
	r := NewRegistry(memfs.New(), zerolog.Nop())

	info := r.Describe("/nope")
	assert.NotEmpty(t, info.Err)
	assert.Empty(t, info.Subjects)
	assert.Empty(t, info.Sessions)
}

func TestRegistry_FilesForSubject(t *testing.T) {
	fsys, _ := fixtureLayout(t)
	r := NewRegistry(fsys, zerolog.Nop())
	datasets := []api.DatasetRecord{
		{Path: "/ds", Name: "Fixture", ProjectFolder: "/"},
		{Path: "/missing"},
	}

	files := r.FilesForSubject("001", datasets)

	require.Len(t, files, 3)
	for _, f := range files {
		assert.Equal(t, "/ds", f.Dataset)
		assert.Equal(t, "Fixture", f.DatasetName)
		assert.Equal(t, "/", f.ProjectFolder)
	}
}

func TestRegistry_FilesMatching(t *testing.T) {
	fsys, _ := fixtureLayout(t)
	r := NewRegistry(fsys, zerolog.Nop())
	datasets := []api.DatasetRecord{{Path: "/ds", Name: "Fixture"}}

	files := r.FilesMatching(datasets, map[string]string{"suffix": "bold", "extension": "nii.gz"})

	require.Len(t, files, 1)
	f := files[0]
	assert.Equal(t, "rest", f.Entities["task"])
	assert.Equal(t, "func", f.Entities["datatype"])
	assert.Equal(t, "bold", f.Entities["suffix"])
	assert.Equal(t, 2.0, f.Metadata["RepetitionTime"])
}

func TestRegistry_FilesMatchingWithoutSidecar(t *testing.T) {
	fsys, _ := fixtureLayout(t)
	r := NewRegistry(fsys, zerolog.Nop())
	datasets := []api.DatasetRecord{{Path: "/ds"}}

	files := r.FilesMatching(datasets, map[string]string{"subject": "002"})

	require.Len(t, files, 1)
	assert.Nil(t, files[0].Metadata, "a missing sidecar is not an error")
}

func TestRegistry_SubjectsAcross(t *testing.T) {
	fsys, _ := fixtureLayout(t)
	touch(t, fsys, "/other/sub-003/anat/sub-003_T1w.nii.gz", "")
	r := NewRegistry(fsys, zerolog.Nop())
	datasets := []api.DatasetRecord{{Path: "/ds"}, {Path: "/other"}}

	assert.Equal(t, []string{"001", "002", "003"}, r.SubjectsAcross(datasets))
}
