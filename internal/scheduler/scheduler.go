package scheduler

import (
	"container/heap"
	"context"
	"sort"
	"time"

	"github.com/pagewatch/pagewatch/internal/metrics"
	"github.com/pagewatch/pagewatch/internal/task"
)

const maxSleepCap = 60 * time.Second

// Scheduler manages periodic alarms using a min-heap.
// It runs a background goroutine that sleeps until the next alarm's
// fire time, then calls the onAlarm callback with the alarm.
// All mutations and queries are applied by that goroutine in the order
// they were made.
type Scheduler struct {
	ops  chan func(h *alarmHeap)
	ctx  context.Context
	done chan struct{}
}

// New creates and starts a new Scheduler.
// onAlarm runs on the scheduler goroutine and must not block.
// The scheduler goroutine exits when ctx is cancelled.
func New(ctx context.Context, onAlarm func(Alarm)) *Scheduler {
	s := &Scheduler{
		ops:  make(chan func(h *alarmHeap), 64),
		ctx:  ctx,
		done: make(chan struct{}),
	}
	go s.run(onAlarm)
	return s
}

// Done is closed once the scheduler goroutine has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// do hands op to the scheduler goroutine and waits until it ran.
// It reports false if the scheduler stopped first.
func (s *Scheduler) do(op func(h *alarmHeap)) bool {
	ran := make(chan struct{})
	wrapped := func(h *alarmHeap) {
		op(h)
		close(ran)
	}
	select {
	case s.ops <- wrapped:
	case <-s.done:
		return false
	}
	select {
	case <-ran:
		return true
	case <-s.done:
		return false
	}
}

// Create registers a periodic alarm that first fires one period from now.
// An alarm with the same name is replaced.
func (s *Scheduler) Create(name string, period time.Duration) {
	if period <= 0 {
		return
	}
	s.do(func(h *alarmHeap) {
		heapRemoveByName(h, name)
		heapPush(h, Alarm{
			Name:            name,
			Period:          period,
			PeriodInMinutes: period.Minutes(),
			ScheduledTime:   time.Now().Add(period),
		})
		metrics.AlarmsScheduled.Set(float64(h.Len()))
	})
}

// Clear removes the named alarm and reports whether it existed.
func (s *Scheduler) Clear(name string) bool {
	var removed bool
	s.do(func(h *alarmHeap) {
		removed = heapRemoveByName(h, name)
		metrics.AlarmsScheduled.Set(float64(h.Len()))
	})
	return removed
}

// ClearAll removes every alarm.
func (s *Scheduler) ClearAll() {
	s.do(func(h *alarmHeap) {
		*h = (*h)[:0]
		metrics.AlarmsScheduled.Set(0)
	})
}

// Get returns the named alarm with its next fire time.
func (s *Scheduler) Get(name string) (Alarm, bool) {
	var (
		a  Alarm
		ok bool
	)
	s.do(func(h *alarmHeap) {
		a, ok = heapFind(h, name)
	})
	return a, ok
}

// All returns every alarm ordered by next fire time.
func (s *Scheduler) All() []Alarm {
	var out []Alarm
	s.do(func(h *alarmHeap) {
		out = append([]Alarm(nil), (*h)...)
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out
}

// Schedule creates the alarm for t, or clears it when t is disabled.
func (s *Scheduler) Schedule(t task.Task) {
	name := task.AlarmName(t.ID)
	if !t.Enabled || t.Frequency.Value <= 0 {
		s.Clear(name)
		return
	}
	s.Create(name, t.Frequency.Interval())
}

// Rebuild clears every alarm and creates one per enabled task. It
// returns the number of alarms created.
func (s *Scheduler) Rebuild(tasks []task.Task) int {
	s.ClearAll()
	n := 0
	for _, t := range tasks {
		if !t.Enabled || t.Frequency.Value <= 0 {
			continue
		}
		s.Create(task.AlarmName(t.ID), t.Frequency.Interval())
		n++
	}
	return n
}

// run is the core scheduler goroutine implementing the active-object pattern.
// It maintains a min-heap of alarms and sleeps with a 60s max-sleep-cap.
// After firing, an alarm is re-armed one period from now, so a window
// missed during sleep produces a single fire rather than a burst.
func (s *Scheduler) run(onAlarm func(Alarm)) {
	defer close(s.done)
	h := &alarmHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			// No alarms, block on channels only
			return nil
		}
		dur := time.Until((*h)[0].ScheduledTime)
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case op := <-s.ops:
			op(h)
			timerCh = resetTimer()

		case <-timerCh:
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].ScheduledTime.After(now) {
				a := heapPop(h)
				metrics.AlarmsFired.Inc()
				onAlarm(a)
				a.ScheduledTime = now.Add(a.Period)
				heapPush(h, a)
			}
			timerCh = resetTimer()
		}
	}
}
