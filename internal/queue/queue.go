// Package queue serializes task checks: at most one check runs at a
// time, later requests wait in FIFO order, and a task id is queued at
// most once.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/pagewatch/pagewatch/internal/metrics"
	"github.com/pagewatch/pagewatch/pkg/logger"
)

var (
	// ErrQueueClosed is reported to jobs enqueued after Close or dropped by it.
	ErrQueueClosed = errors.New("task queue is closed")
	// ErrAlreadyQueued is reported when a duplicate enqueue is suppressed.
	ErrAlreadyQueued = errors.New("task is already queued")
	// ErrBusy is the error test actions return while a check is running.
	ErrBusy = errors.New("background task is running, please try again later")
)

// Result is the outcome reported to a job's response channel.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Fail builds a failed Result from err.
func Fail(err error) Result {
	return Result{Error: err.Error()}
}

// Handler runs one check.
type Handler func(ctx context.Context, taskID string) Result

// Responder receives a job's Result. It is optional; alarm-driven jobs
// have none.
type Responder func(Result)

type job struct {
	taskID  string
	respond Responder
}

// Processor is the single-flight job queue.
type Processor struct {
	ctx     context.Context
	handler Handler
	log     logger.Logger

	mu      sync.Mutex
	waiting []job
	busy    bool
	closed  bool
	wg      sync.WaitGroup
}

// New creates an idle Processor. ctx is passed to every handler call.
func New(ctx context.Context, h Handler, l logger.Logger) *Processor {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Processor{ctx: ctx, handler: h, log: l}
}

// Enqueue appends a check for taskID unless one is already waiting, and
// starts draining if the processor is idle. It reports whether the job
// was queued. A suppressed or rejected job's responder is told why.
func (p *Processor) Enqueue(taskID string, respond Responder) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		reply(respond, Fail(ErrQueueClosed))
		return false
	}
	for _, j := range p.waiting {
		if j.taskID == taskID {
			p.mu.Unlock()
			reply(respond, Fail(ErrAlreadyQueued))
			return false
		}
	}
	p.waiting = append(p.waiting, job{taskID: taskID, respond: respond})
	metrics.QueueDepth.Set(float64(len(p.waiting)))
	if !p.busy {
		p.busy = true
		p.wg.Add(1)
		go p.drain()
	}
	p.mu.Unlock()
	return true
}

// Busy reports whether a check is running or about to run.
func (p *Processor) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Len returns the number of waiting jobs.
func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting)
}

// Close stops accepting jobs, fails the waiting ones and waits for the
// running check to finish.
func (p *Processor) Close() {
	p.mu.Lock()
	p.closed = true
	dropped := p.waiting
	p.waiting = nil
	metrics.QueueDepth.Set(0)
	p.mu.Unlock()
	for _, j := range dropped {
		reply(j.respond, Fail(ErrQueueClosed))
	}
	p.wg.Wait()
}

func (p *Processor) drain() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		if len(p.waiting) == 0 || p.closed {
			p.busy = false
			p.mu.Unlock()
			return
		}
		j := p.waiting[0]
		p.waiting = p.waiting[1:]
		metrics.QueueDepth.Set(float64(len(p.waiting)))
		p.mu.Unlock()

		p.process(j)
	}
}

// process runs one job. A panic fails that job only.
func (p *Processor) process(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("PANIC [task %s]: %v\n%s", j.taskID, r, debug.Stack())
			reply(j.respond, Result{Error: fmt.Sprintf("internal error: %v", r)})
		}
	}()
	res := p.handler(p.ctx, j.taskID)
	reply(j.respond, res)
}

func reply(respond Responder, res Result) {
	if respond != nil {
		respond(res)
	}
}
