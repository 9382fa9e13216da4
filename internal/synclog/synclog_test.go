package synclog

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBeginAndFinishRun(t *testing.T) {
	s := openTestStore(t)

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	runID, err := s.BeginRun(start)
	require.NoError(t, err)
	require.NotZero(t, runID)

	require.NoError(t, s.LogItem(Item{RunID: runID, Fingerprint: "fp1", Action: "add", Detail: "song.mp3"}))
	require.NoError(t, s.LogItem(Item{RunID: runID, Fingerprint: "fp2", Action: "remove"}))

	finish := start.Add(5 * time.Minute)
	require.NoError(t, s.FinishRun(runID, finish, StatusCommitted, 1, 1, 0, nil))

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, StatusCommitted, runs[0].Status)
	require.Equal(t, 1, runs[0].Added)
	require.Equal(t, 1, runs[0].Removed)
	require.True(t, runs[0].StartedAt.Equal(start))
	require.NotNil(t, runs[0].FinishedAt)
	require.True(t, runs[0].FinishedAt.Equal(finish))

	items, err := s.ItemsForRun(runID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "add", items[0].Action)
	require.Equal(t, "song.mp3", items[0].Detail)
}

func TestFinishRunRecordsFailure(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.BeginRun(time.Now().UTC())
	require.NoError(t, err)

	syncErr := errors.New("device disconnected mid-write")
	require.NoError(t, s.FinishRun(runID, time.Now().UTC(), StatusFailed, 0, 0, 0, syncErr))

	runs, err := s.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, StatusFailed, runs[0].Status)
	require.Equal(t, syncErr.Error(), runs[0].Error)
}

func TestRecentRunsOrdersByMostRecent(t *testing.T) {
	s := openTestStore(t)

	first, err := s.BeginRun(time.Unix(1000, 0))
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(first, time.Unix(1010, 0), StatusCommitted, 0, 0, 0, nil))

	second, err := s.BeginRun(time.Unix(2000, 0))
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(second, time.Unix(2010, 0), StatusCommitted, 0, 0, 0, nil))

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, second, runs[0].ID)
	require.Equal(t, first, runs[1].ID)
}
