package pclibrary

import (
	"path/filepath"
	"testing"

	"github.com/jdfalk/ipodsync/internal/differ"
	"github.com/stretchr/testify/require"
)

func sampleTracks() []differ.PCTrack {
	return []differ.PCTrack{
		{Fingerprint: "fp1", Title: "Bohemian Rhapsody", Artist: "Queen", Album: "A Night at the Opera", RelPath: "queen/anato/01.flac"},
		{Fingerprint: "fp2", Title: "Yellow", Artist: "Coldplay", Album: "Parachutes", RelPath: "coldplay/parachutes/01.flac"},
	}
}

func TestIndexRebuildAndSearch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	idx, err := OpenIndex(dir)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(sampleTracks()))

	results, err := idx.Search("Queen", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "fp1", results[0].Fingerprint)
}

func TestIndexSearchNoMatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	idx, err := OpenIndex(dir)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(sampleTracks()))

	results, err := idx.Search("NonexistentArtistXYZ", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestOpenIndexReopensExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	idx, err := OpenIndex(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Rebuild(sampleTracks()))
	require.NoError(t, idx.Close())

	reopened, err := OpenIndex(dir)
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Search("Coldplay", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
