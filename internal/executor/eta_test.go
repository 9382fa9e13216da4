package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestETATrackerRemainingSecondsInterpolatesFromCompletedItems(t *testing.T) {
	tracker := NewETATracker()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.Start(start)

	tracker.StageStart("update_file", 10, start)
	for i := 1; i <= 4; i++ {
		tracker.ItemDone("update_file", start.Add(time.Duration(i)*time.Second))
	}

	now := start.Add(4 * time.Second)
	remaining := tracker.RemainingSeconds(now)
	require.InDelta(t, 6.0, remaining, 0.01) // 6 items left * 1s avg
}

func TestETATrackerRemainingSecondsZeroWithNoItemsYet(t *testing.T) {
	tracker := NewETATracker()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.Start(start)
	tracker.StageStart("remove", 5, start)

	require.Zero(t, tracker.RemainingSeconds(start.Add(time.Second)))
}

func TestETATrackerRemainingSecondsZeroWhenNoStageRunning(t *testing.T) {
	tracker := NewETATracker()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.Start(start)
	require.Zero(t, tracker.RemainingSeconds(start))
}

func TestETATrackerStageEndClearsCurrent(t *testing.T) {
	tracker := NewETATracker()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.Start(start)
	tracker.StageStart("add", 3, start)
	tracker.ItemDone("add", start.Add(time.Second))
	tracker.StageEnd("add", start.Add(2*time.Second))

	require.Zero(t, tracker.RemainingSeconds(start.Add(3*time.Second)))
}

func TestETATrackerElapsedTotal(t *testing.T) {
	tracker := NewETATracker()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.Start(start)
	require.Equal(t, 90*time.Second, tracker.ElapsedTotal(start.Add(90*time.Second)))
}

func TestFormatDurationThresholds(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{2 * time.Second, ""},
		{4999 * time.Millisecond, ""},
		{5 * time.Second, "~5s remaining"},
		{59 * time.Second, "~59s remaining"},
		{60 * time.Second, "~1m remaining"},
		{90 * time.Second, "~1m 30s remaining"},
		{3600 * time.Second, "~1h remaining"},
		{3660 * time.Second, "~1h 1m remaining"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, formatDuration(c.d), "duration %s", c.d)
	}
}

func TestFormatStageProgressCombinesCountAndETA(t *testing.T) {
	tracker := NewETATracker()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.Start(start)
	tracker.StageStart("update_file", 10, start)
	tracker.ItemDone("update_file", start.Add(2*time.Second))

	got := tracker.FormatStageProgress("update_file", 1, 10, start.Add(2*time.Second))
	require.Equal(t, "1 of 10 · ~18s remaining", got)
}
