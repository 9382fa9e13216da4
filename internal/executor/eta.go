package executor

import (
	"fmt"
	"sync"
	"time"
)

// maxWindow caps how many recent per-item durations feed the rolling
// average, keeping the estimate responsive to recent throughput rather
// than the whole stage's history.
const maxWindow = 20

// stageStats tracks one stage's timing, grounded in SyncEngine/eta.py's
// StageStats.
type stageStats struct {
	started      time.Time
	ended        time.Time
	total        int
	completed    int
	lastItemTime time.Time
	itemTimes    []time.Duration
}

func (s *stageStats) elapsed(now time.Time) time.Duration {
	end := s.ended
	if end.IsZero() {
		end = now
	}
	if d := end.Sub(s.started); d > 0 {
		return d
	}
	return 0
}

func (s *stageStats) avgItemTime(now time.Time) time.Duration {
	if len(s.itemTimes) == 0 {
		if s.completed > 0 {
			if e := s.elapsed(now); e > 0 {
				return e / time.Duration(s.completed)
			}
		}
		return 0
	}
	window := s.itemTimes
	if len(window) > maxWindow {
		window = window[len(window)-maxWindow:]
	}
	var sum time.Duration
	for _, d := range window {
		sum += d
	}
	return sum / time.Duration(len(window))
}

func (s *stageStats) remaining(now time.Time) time.Duration {
	remainingItems := s.total - s.completed
	if remainingItems < 0 {
		remainingItems = 0
	}
	avg := s.avgItemTime(now)
	if avg <= 0 {
		return 0
	}
	return avg * time.Duration(remainingItems)
}

// ETATracker estimates time remaining for the running executor stage
// (spec §3 "ETA/progress estimation"), mirroring SyncEngine/eta.py's
// rolling-average design: an exported progress callback can be polled
// at any point during a stage's worker-pool loop.
type ETATracker struct {
	mu          sync.Mutex
	globalStart time.Time
	stages      map[string]*stageStats
	current     string
}

// NewETATracker returns a tracker ready for Start.
func NewETATracker() *ETATracker {
	return &ETATracker{stages: make(map[string]*stageStats)}
}

// Start marks the beginning of an entire sync run, clearing prior state.
func (t *ETATracker) Start(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stages = make(map[string]*stageStats)
	t.current = ""
	t.globalStart = now
}

// ElapsedTotal returns time since Start.
func (t *ETATracker) ElapsedTotal(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.globalStart.IsZero() {
		return 0
	}
	return now.Sub(t.globalStart)
}

// StageStart begins tracking stage with the given item count.
func (t *ETATracker) StageStart(stage string, total int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stages[stage] = &stageStats{started: now, lastItemTime: now, total: total}
	t.current = stage
}

// ItemDone records completion of one item in stage.
func (t *ETATracker) ItemDone(stage string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stages[stage]
	if !ok {
		return
	}
	dt := now.Sub(s.lastItemTime)
	s.lastItemTime = now
	s.itemTimes = append(s.itemTimes, dt)
	s.completed++
}

// StageEnd marks stage as complete.
func (t *ETATracker) StageEnd(stage string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.stages[stage]; ok {
		s.ended = now
	}
	if t.current == stage {
		t.current = ""
	}
}

// RemainingSeconds returns the estimate for the currently running
// stage, or 0 if no stage is running or no estimate is available yet.
func (t *ETATracker) RemainingSeconds(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == "" {
		return 0
	}
	s, ok := t.stages[t.current]
	if !ok {
		return 0
	}
	return s.remaining(now).Seconds()
}

// FormatETA renders the current stage's remaining time as a
// human-readable string ("~1m 20s remaining"), or "" if no estimate is
// available or it would be too small to be meaningful.
func (t *ETATracker) FormatETA(now time.Time) string {
	return formatDuration(time.Duration(t.RemainingSeconds(now) * float64(time.Second)))
}

// FormatStageProgress renders "3 of 50 · ~1m 20s remaining" for stage.
func (t *ETATracker) FormatStageProgress(stage string, current, total int, now time.Time) string {
	parts := make([]string, 0, 2)
	if total > 0 {
		parts = append(parts, fmt.Sprintf("%d of %d", current, total))
	}
	if eta := t.FormatETA(now); eta != "" {
		parts = append(parts, eta)
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " · "
		}
		out += p
	}
	return out
}

func formatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 5 {
		return "" // tiny estimates flicker, not worth showing
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("~%ds remaining", secs)
	case secs < 3600:
		m, s := secs/60, secs%60
		if s == 0 {
			return fmt.Sprintf("~%dm remaining", m)
		}
		return fmt.Sprintf("~%dm %ds remaining", m, s)
	default:
		h, rem := secs/3600, secs%3600
		m := rem / 60
		if m == 0 {
			return fmt.Sprintf("~%dh remaining", h)
		}
		return fmt.Sprintf("~%dh %dm remaining", h, m)
	}
}
