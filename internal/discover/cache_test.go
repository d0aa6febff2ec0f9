package discover

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidsquery/bidsquery/api"
)

func alwaysValid(string) bool { return true }

func TestCache_StoreAndLookup(t *testing.T) {
	cache := NewCache(memfs.New(), "/state/cache.json", zerolog.Nop())
	datasets := []api.DatasetRecord{{
		Path:          "/studies/A/bids",
		Name:          "A",
		ProjectFolder: "/studies",
		Description:   map[string]any{},
	}}

	require.NoError(t, cache.Store("/studies", datasets))

	got, ok := cache.Lookup("/studies", 0, alwaysValid)
	require.True(t, ok)
	assert.Equal(t, datasets, got)
}

func TestCache_LookupUnknownRoot(t *testing.T) {
	cache := NewCache(memfs.New(), "/state/cache.json", zerolog.Nop())

	_, ok := cache.Lookup("/studies", 0, alwaysValid)

	assert.False(t, ok)
}

func TestCache_SingleInvalidPathInvalidatesEntry(t *testing.T) {
	cache := NewCache(memfs.New(), "/state/cache.json", zerolog.Nop())
	datasets := []api.DatasetRecord{
		{Path: "/studies/A/bids"},
		{Path: "/studies/B/bids"},
	}
	require.NoError(t, cache.Store("/studies", datasets))

	_, ok := cache.Lookup("/studies", 0, func(p string) bool { return p != "/studies/B/bids" })

	assert.False(t, ok, "one stale dataset must invalidate the whole entry")
}

func TestCache_TTL(t *testing.T) {
	cache := NewCache(memfs.New(), "/state/cache.json", zerolog.Nop())
	require.NoError(t, cache.Store("/studies", nil))

	_, ok := cache.Lookup("/studies", time.Hour, alwaysValid)
	assert.True(t, ok, "fresh entry within ttl")

	_, ok = cache.Lookup("/studies", time.Nanosecond, alwaysValid)
	assert.False(t, ok, "entry older than ttl must be rejected")
}

func TestCache_CorruptFileDiscarded(t *testing.T) {
	fsys := memfs.New()
	cache := NewCache(fsys, "/state/cache.json", zerolog.Nop())
	require.NoError(t, util.WriteFile(fsys, "/state/cache.json", []byte("{broken"), 0o644))

	_, ok := cache.Lookup("/studies", 0, alwaysValid)
	assert.False(t, ok)

	// A subsequent store rewrites the document.
	require.NoError(t, cache.Store("/studies", nil))
	_, ok = cache.Lookup("/studies", 0, alwaysValid)
	assert.True(t, ok)
}

func TestCache_StoreReplacesEntry(t *testing.T) {
	cache := NewCache(memfs.New(), "/state/cache.json", zerolog.Nop())
	require.NoError(t, cache.Store("/studies", []api.DatasetRecord{{Path: "/studies/A/bids"}}))
	require.NoError(t, cache.Store("/studies", []api.DatasetRecord{{Path: "/studies/B/bids"}}))

	got, ok := cache.Lookup("/studies", 0, alwaysValid)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "/studies/B/bids", got[0].Path)
}

func TestCache_Clear(t *testing.T) {
	cache := NewCache(memfs.New(), "/state/cache.json", zerolog.Nop())
	require.NoError(t, cache.Store("/studies", nil))

	require.NoError(t, cache.Clear())

	_, ok := cache.Lookup("/studies", 0, alwaysValid)
	assert.False(t, ok)

	// Clearing an already-missing cache is fine.
	require.NoError(t, cache.Clear())
}
