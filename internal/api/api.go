// Package api implements the background actions. Every transport (the
// JSON-RPC server, the native messaging host, the CLI through the daemon)
// reaches the components through an Api.
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pagewatch/pagewatch/internal/checker"
	"github.com/pagewatch/pagewatch/internal/fetcher"
	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/internal/queue"
	"github.com/pagewatch/pagewatch/internal/sandbox"
	"github.com/pagewatch/pagewatch/internal/scheduler"
	"github.com/pagewatch/pagewatch/internal/store"
	"github.com/pagewatch/pagewatch/internal/task"
	"github.com/pagewatch/pagewatch/pkg/logger"
)

var (
	// ErrTaskNotFound is returned by actions addressing a missing task.
	ErrTaskNotFound = checker.ErrTaskNotFound
	// ErrMissingTaskID is returned when an action needs a task id.
	ErrMissingTaskID = errors.New("taskId is required")
)

// Options holds the components an Api drives.
type Options struct {
	Store    *store.Store
	Fetcher  *fetcher.Fetcher
	Executor *sandbox.Executor
	Notifier *notify.Notifier
	Logger   logger.Logger
	// WakeTick and WakeThreshold configure the suspend detector. A zero
	// tick disables it.
	WakeTick      time.Duration
	WakeThreshold time.Duration
	// DefaultTimeoutMS is given to saved tasks without a timeout.
	DefaultTimeoutMS int
}

// Api owns the queue, the checker and the alarm scheduler.
type Api struct {
	log      logger.Logger
	store    *store.Store
	fetch    *fetcher.Fetcher
	exec     *sandbox.Executor
	notifier *notify.Notifier
	checker  *checker.Checker
	queue    *queue.Processor
	sched    *scheduler.Scheduler
	wake     *scheduler.WakeWatcher
	timeout  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// New wires the components together and starts the scheduler. Call
// Start to schedule the stored tasks.
func New(ctx context.Context, o Options) *Api {
	l := o.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}
	n := o.Notifier
	if n == nil {
		n = notify.New(nil, l)
	}
	ctx, cancel := context.WithCancel(ctx)
	a := &Api{
		log:      l,
		store:    o.Store,
		fetch:    o.Fetcher,
		exec:     o.Executor,
		notifier: n,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
		timeout:  o.DefaultTimeoutMS,
	}
	if a.timeout <= 0 {
		a.timeout = task.DefaultTimeout
	}
	a.checker = checker.New(o.Store, o.Fetcher, o.Executor, n, l)
	a.queue = queue.New(ctx, a.checker.Check, l)
	a.sched = scheduler.New(ctx, a.onAlarm)
	if o.WakeTick > 0 {
		a.wake = scheduler.NewWakeWatcher(o.WakeTick, o.WakeThreshold, a.onWake)
	}
	return a
}

// Start rebuilds every alarm from the stored tasks, refreshes the badge,
// enqueues overdue tasks and starts the wake watcher.
func (a *Api) Start(ctx context.Context) error {
	if _, err := a.SetupAllAlarms(ctx); err != nil {
		return err
	}
	if err := a.UpdateBadge(ctx); err != nil {
		a.log.Warning("startup: badge: %v", err)
	}
	a.CheckOverdue(ctx)
	if a.wake != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.wake.Run(a.ctx)
		}()
	}
	return nil
}

// onAlarm runs on the scheduler goroutine; Enqueue never blocks.
func (a *Api) onAlarm(al scheduler.Alarm) {
	id, ok := task.IDFromAlarm(al.Name)
	if !ok {
		a.log.Warning("alarm %s: not a task alarm", al.Name)
		return
	}
	a.queue.Enqueue(id, nil)
}

func (a *Api) onWake(gap time.Duration) {
	a.log.Info("wake: resumed after %v, scanning for overdue tasks", gap.Round(time.Second))
	a.CheckOverdue(a.ctx)
}

// CheckOverdue enqueues every enabled task that is due and returns their
// ids.
func (a *Api) CheckOverdue(ctx context.Context) []string {
	tasks, err := a.store.Tasks(ctx)
	if err != nil {
		a.log.Error("overdue scan: %v", err)
		return nil
	}
	ids := scheduler.Overdue(tasks, a.now())
	for _, id := range ids {
		a.queue.Enqueue(id, nil)
	}
	if len(ids) > 0 {
		a.log.Info("overdue scan: queued %d task(s)", len(ids))
	}
	return ids
}

// Busy reports whether a check is running.
func (a *Api) Busy() bool {
	return a.queue.Busy()
}

// Close stops the scheduler and the queue, and shuts down the sandbox
// host. The store is left open for the caller.
func (a *Api) Close() error {
	a.cancel()
	a.queue.Close()
	<-a.sched.Done()
	a.wg.Wait()
	if a.exec != nil {
		return a.exec.Close()
	}
	return nil
}
