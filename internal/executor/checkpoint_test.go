package executor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteCheckpointCopiesExistingFiles(t *testing.T) {
	mount := t.TempDir()
	itunesDB := filepath.Join(t.TempDir(), "iTunesDB")
	mappingPath := filepath.Join(t.TempDir(), "iOpenPod.json")
	require.NoError(t, os.WriteFile(itunesDB, []byte("db-bytes"), 0o644))
	require.NoError(t, os.WriteFile(mappingPath, []byte("{}"), 0o644))

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cp, err := writeCheckpoint(mount, now, itunesDB, mappingPath)
	require.NoError(t, err)
	require.True(t, cp.CreatedAt.Equal(now))

	gotDB, err := os.ReadFile(filepath.Join(cp.Dir, "iTunesDB"))
	require.NoError(t, err)
	require.Equal(t, "db-bytes", string(gotDB))

	gotMapping, err := os.ReadFile(filepath.Join(cp.Dir, "iOpenPod.json"))
	require.NoError(t, err)
	require.Equal(t, "{}", string(gotMapping))
}

func TestWriteCheckpointToleratesMissingSourceFiles(t *testing.T) {
	mount := t.TempDir()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	cp, err := writeCheckpoint(mount, now, filepath.Join(mount, "nope", "iTunesDB"), filepath.Join(mount, "nope", "iOpenPod.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cp.Dir, "iTunesDB"))
	require.True(t, os.IsNotExist(err))
}

func TestPruneCheckpointsKeepsOnlyMostRecent(t *testing.T) {
	mount := t.TempDir()
	itunesDB := filepath.Join(t.TempDir(), "iTunesDB")
	mappingPath := filepath.Join(t.TempDir(), "iOpenPod.json")
	require.NoError(t, os.WriteFile(itunesDB, []byte("v"), 0o644))
	require.NoError(t, os.WriteFile(mappingPath, []byte("v"), 0o644))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var checkpoints []Checkpoint
	for i := 0; i < 5; i++ {
		cp, err := writeCheckpoint(mount, base.Add(time.Duration(i)*time.Minute), itunesDB, mappingPath)
		require.NoError(t, err)
		checkpoints = append(checkpoints, cp)
	}

	remaining, err := ListCheckpoints(mount)
	require.NoError(t, err)
	require.Len(t, remaining, maxCheckpoints)

	require.True(t, remaining[0].CreatedAt.Equal(checkpoints[2].CreatedAt))
	require.True(t, remaining[len(remaining)-1].CreatedAt.Equal(checkpoints[4].CreatedAt))

	_, err = os.Stat(checkpoints[0].Dir)
	require.True(t, os.IsNotExist(err))
}

func TestListCheckpointsEmptyWhenNoneExist(t *testing.T) {
	mount := t.TempDir()
	checkpoints, err := ListCheckpoints(mount)
	require.NoError(t, err)
	require.Empty(t, checkpoints)
}

func TestRollbackRestoresFromCheckpoint(t *testing.T) {
	mount := t.TempDir()
	itunesDB := filepath.Join(t.TempDir(), "iTunesDB")
	mappingPath := filepath.Join(t.TempDir(), "iOpenPod.json")
	require.NoError(t, os.WriteFile(itunesDB, []byte("original"), 0o644))
	require.NoError(t, os.WriteFile(mappingPath, []byte(`{"a":1}`), 0o644))

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cp, err := writeCheckpoint(mount, now, itunesDB, mappingPath)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(itunesDB, []byte("mutated-by-sync"), 0o644))
	require.NoError(t, os.WriteFile(mappingPath, []byte(`{"b":2}`), 0o644))

	require.NoError(t, Rollback(mount, cp, itunesDB, mappingPath))

	restoredDB, err := os.ReadFile(itunesDB)
	require.NoError(t, err)
	require.Equal(t, "original", string(restoredDB))

	restoredMapping, err := os.ReadFile(mappingPath)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(restoredMapping))
}
