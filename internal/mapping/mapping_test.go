package mapping

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())
}

func TestAddGetRemove(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "iOpenPod.json"))
	s.Add("fp1", Entry{DBID: 1, SourcePathHint: "Queen/a.mp3"})
	s.Add("fp1", Entry{DBID: 2, SourcePathHint: "Queen/b.mp3"})

	require.Len(t, s.GetEntries("fp1"), 2)
	require.Empty(t, s.GetEntries("missing"))

	s.Remove("fp1", 1)
	require.Len(t, s.GetEntries("fp1"), 1)
	require.Equal(t, uint64(2), s.GetEntries("fp1")[0].DBID)

	s.Remove("fp1", 2)
	require.Empty(t, s.GetEntries("fp1"))
	require.Equal(t, 0, s.Len())
}

func TestRemoveByDBID(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "m.json"))
	s.Add("fpA", Entry{DBID: 10})
	s.Add("fpB", Entry{DBID: 20})

	found := s.RemoveByDBID(20)
	require.Equal(t, "fpB", found)
	require.Empty(t, s.GetEntries("fpB"))
	require.Len(t, s.GetEntries("fpA"), 1)

	require.Equal(t, "", s.RemoveByDBID(999))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iOpenPod.json")
	s := New(path)
	now := time.Now().UTC().Truncate(time.Second)
	s.Add("fp1", Entry{
		DBID:           42,
		SourceFormat:   "mp3",
		IPodFormat:     "mp3",
		SourceSize:     1234,
		SourceModTime:  now,
		LastSync:       now,
		WasTranscoded:  false,
		SourcePathHint: "Queen/Bohemian Rhapsody.mp3",
	})
	require.NoError(t, s.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())
	entries := loaded.GetEntries("fp1")
	require.Len(t, entries, 1)
	require.Equal(t, uint64(42), entries[0].DBID)
	require.True(t, now.Equal(entries[0].SourceModTime))
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iOpenPod.json")
	s := New(path)
	s.Add("fp", Entry{DBID: 1})
	require.NoError(t, s.Save())

	matches, err := filepath.Glob(filepath.Join(dir, ".iopenpod-*"))
	require.NoError(t, err)
	require.Empty(t, matches, "temp file must not survive a successful save")
}
