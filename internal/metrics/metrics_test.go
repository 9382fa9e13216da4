// file: internal/metrics/metrics_test.go

package metrics

import (
	"testing"
	"time"
)

func TestRegister(t *testing.T) {
	// Register should be idempotent - calling it multiple times shouldn't panic
	Register()
	Register()
	Register()

	t.Log("Register called multiple times successfully")
}

func TestStageLifecycle(t *testing.T) {
	Register()

	stages := []string{"preflight", "checkpoint", "remove", "update_file", "add", "database_write"}

	for _, stage := range stages {
		IncStageStarted(stage)
		start := time.Now()
		time.Sleep(time.Millisecond)
		ObserveStageDuration(stage, time.Since(start))
		IncStageCompleted(stage)
		t.Logf("recorded stage lifecycle for %s", stage)
	}
}

func TestIncStageFailed(t *testing.T) {
	Register()

	IncStageFailed("database_write")
	t.Log("recorded a failed stage")
}

func TestSetSyncCounts(t *testing.T) {
	Register()

	SetSyncCounts(12, 3, 7)
	t.Log("set sync counts gauges")
}

func TestSetDeviceFreeBytes(t *testing.T) {
	Register()

	SetDeviceFreeBytes(0)
	SetDeviceFreeBytes(1024 * 1024 * 1024)
	t.Log("set device free bytes gauge")
}

func TestTranscodeCacheCounters(t *testing.T) {
	Register()

	IncTranscodeCacheHit()
	IncTranscodeCacheMiss()
	IncTranscodeCacheHit()
	t.Log("recorded transcode cache hit/miss counters")
}

func TestSetPCLibraryTracks(t *testing.T) {
	Register()

	for _, n := range []int{0, 1, 500, 120000} {
		SetPCLibraryTracks(n)
	}
	t.Log("set pc library tracks gauge")
}
