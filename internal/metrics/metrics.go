// file: internal/metrics/metrics.go

// Package metrics exposes the Prometheus counters/gauges the server
// package serves at /metrics, covering sync stages, scans, and the
// transcode cache (SPEC_FULL.md §1 ambient stack).
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	stageStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipodsync",
		Name:      "executor_stage_started_total",
		Help:      "Total number of sync executor stages started, by stage name",
	}, []string{"stage"})
	stageCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipodsync",
		Name:      "executor_stage_completed_total",
		Help:      "Total number of sync executor stages completed successfully, by stage name",
	}, []string{"stage"})
	stageFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipodsync",
		Name:      "executor_stage_failed_total",
		Help:      "Total number of sync executor stages that failed, by stage name",
	}, []string{"stage"})
	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ipodsync",
		Name:      "executor_stage_duration_seconds",
		Help:      "Histogram of sync executor stage durations in seconds, by stage name",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 12),
	}, []string{"stage"})

	tracksAddedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ipodsync",
		Name:      "last_sync_tracks_added",
		Help:      "Number of tracks added by the most recently completed sync",
	})
	tracksRemovedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ipodsync",
		Name:      "last_sync_tracks_removed",
		Help:      "Number of tracks removed by the most recently completed sync",
	})
	tracksUpdatedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ipodsync",
		Name:      "last_sync_tracks_updated",
		Help:      "Number of tracks updated by the most recently completed sync",
	})
	deviceFreeBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ipodsync",
		Name:      "device_free_bytes",
		Help:      "Free space on the device mount point, as of the last pre-flight check",
	})

	transcodeCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ipodsync",
		Name:      "transcode_cache_hits_total",
		Help:      "Total transcode cache hits",
	})
	transcodeCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ipodsync",
		Name:      "transcode_cache_misses_total",
		Help:      "Total transcode cache misses",
	})

	pcLibraryTracksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ipodsync",
		Name:      "pc_library_tracks",
		Help:      "Number of tracks found by the most recent PC library scan",
	})
)

// Register wires every collector into the default Prometheus registry.
// Idempotent: safe to call from multiple cmd entrypoints.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			stageStarted, stageCompleted, stageFailed, stageDuration,
			tracksAddedGauge, tracksRemovedGauge, tracksUpdatedGauge, deviceFreeBytesGauge,
			transcodeCacheHits, transcodeCacheMisses,
			pcLibraryTracksGauge,
		)
	})
}

// Stage lifecycle helpers, one call pair per executor stage (spec §4.10).
func IncStageStarted(stage string)   { stageStarted.WithLabelValues(stage).Inc() }
func IncStageCompleted(stage string) { stageCompleted.WithLabelValues(stage).Inc() }
func IncStageFailed(stage string)    { stageFailed.WithLabelValues(stage).Inc() }
func ObserveStageDuration(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetSyncCounts records stage 11's final tallies for dashboard display.
func SetSyncCounts(added, removed, updated int) {
	tracksAddedGauge.Set(float64(added))
	tracksRemovedGauge.Set(float64(removed))
	tracksUpdatedGauge.Set(float64(updated))
}

// SetDeviceFreeBytes records stage 1's pre-flight free-space reading.
func SetDeviceFreeBytes(b uint64) { deviceFreeBytesGauge.Set(float64(b)) }

// IncTranscodeCacheHit / IncTranscodeCacheMiss instrument internal/transcodecache.
func IncTranscodeCacheHit()  { transcodeCacheHits.Inc() }
func IncTranscodeCacheMiss() { transcodeCacheMisses.Inc() }

// SetPCLibraryTracks records the most recent internal/pclibrary scan size.
func SetPCLibraryTracks(n int) { pcLibraryTracksGauge.Set(float64(n)) }
