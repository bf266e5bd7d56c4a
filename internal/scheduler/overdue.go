package scheduler

import (
	"context"
	"time"

	"github.com/pagewatch/pagewatch/internal/task"
)

// Overdue returns the ids of enabled tasks that have never been checked
// or whose last check is at least one interval before now.
// Disabled tasks are skipped.
func Overdue(tasks []task.Task, now time.Time) []string {
	var ids []string
	for i := range tasks {
		t := &tasks[i]
		if !t.Enabled {
			continue
		}
		if t.Overdue(now) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// WakeWatcher notices that the process was suspended (machine asleep,
// process stopped) by comparing wall-clock time between ticks.
type WakeWatcher struct {
	Tick      time.Duration
	Threshold time.Duration
	// OnWake is called with the observed gap.
	OnWake func(gap time.Duration)

	last time.Time
}

// NewWakeWatcher returns a watcher that reports gaps longer than
// tick+threshold.
func NewWakeWatcher(tick, threshold time.Duration, onWake func(time.Duration)) *WakeWatcher {
	return &WakeWatcher{Tick: tick, Threshold: threshold, OnWake: onWake}
}

// Run ticks until ctx is done.
func (w *WakeWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Tick)
	defer ticker.Stop()
	w.observe(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.observe(time.Now())
		}
	}
}

// observe records a tick at now and reports whether a wake was detected.
// The monotonic reading is stripped so the gap reflects wall-clock time,
// which keeps advancing while the machine sleeps.
func (w *WakeWatcher) observe(now time.Time) bool {
	now = now.Round(0)
	last := w.last
	w.last = now
	if last.IsZero() {
		return false
	}
	gap := now.Sub(last)
	if gap <= w.Tick+w.Threshold {
		return false
	}
	if w.OnWake != nil {
		w.OnWake(gap)
	}
	return true
}
