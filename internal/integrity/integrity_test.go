package integrity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jdfalk/ipodsync/internal/itunesdb"
	"github.com/jdfalk/ipodsync/internal/mapping"
	"github.com/stretchr/testify/require"
)

func mustWrite(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
}

func TestCheckRemovesMissingTracksAndStaleMappings(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "iPod_Control", "Music", "F00", "AAAA.mp3"))

	tracks := []*itunesdb.Track{
		{DBID: 1, Location: ":iPod_Control:Music:F00:AAAA.mp3"},
		{DBID: 2, Location: ":iPod_Control:Music:F00:MISSING.mp3"},
	}

	store := mapping.New(filepath.Join(root, "iOpenPod.json"))
	store.Add("fp1", mapping.Entry{DBID: 1})
	store.Add("fp2", mapping.Entry{DBID: 2}) // stale: track 2 will be dropped
	store.Add("fp3", mapping.Entry{DBID: 99}) // already stale

	surviving, report := Check(root, tracks, store)

	require.Len(t, surviving, 1)
	require.Equal(t, uint64(1), surviving[0].DBID)
	require.Equal(t, 1, report.MissingFiles)
	require.Equal(t, 2, report.StaleMappings)

	require.Len(t, store.GetEntries("fp1"), 1)
	require.Empty(t, store.GetEntries("fp2"))
	require.Empty(t, store.GetEntries("fp3"))
}

func TestCheckDeletesOrphanFiles(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "iPod_Control", "Music", "F00", "AAAA.mp3"))
	mustWrite(t, filepath.Join(root, "iPod_Control", "Music", "F00", "ORPHAN.mp3"))

	tracks := []*itunesdb.Track{
		{DBID: 1, Location: ":iPod_Control:Music:F00:AAAA.mp3"},
	}
	store := mapping.New(filepath.Join(root, "iOpenPod.json"))

	surviving, report := Check(root, tracks, store)
	require.Len(t, surviving, 1)
	require.Equal(t, 1, report.OrphanFiles)

	_, err := os.Stat(filepath.Join(root, "iPod_Control", "Music", "F00", "ORPHAN.mp3"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "iPod_Control", "Music", "F00", "AAAA.mp3"))
	require.NoError(t, err)
}

func TestCheckEmptyDeviceIsNoop(t *testing.T) {
	root := t.TempDir()
	store := mapping.New(filepath.Join(root, "iOpenPod.json"))
	surviving, report := Check(root, nil, store)
	require.Empty(t, surviving)
	require.Equal(t, Report{}, report)
}
