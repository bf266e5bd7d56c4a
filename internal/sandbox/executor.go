// Package sandbox runs user-supplied response handlers in isolated
// JavaScript runtimes.
//
// A call travels Executor -> Host -> frame. The Executor owns a lazily
// created Host that is reused across calls. The Host starts one frame
// (a fresh goja runtime) per call, relays the frame's $.ajax requests to
// the fetcher under per-frame promise ids, and returns the frame's single
// final message to the caller before discarding the frame.
package sandbox

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pagewatch/pagewatch/internal/metrics"
	"github.com/pagewatch/pagewatch/pkg/logger"
)

// DefaultTimeout bounds a single handler run, ajax calls included.
const DefaultTimeout = 30 * time.Second

// Executor is the entry point used by the task checker and the test
// actions.
type Executor struct {
	req     Requester
	log     logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	host    *Host
	created int
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the per-run deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewExecutor creates an Executor. No host exists until the first run.
func NewExecutor(req Requester, l logger.Logger, opts ...Option) *Executor {
	if l == nil {
		l = logger.NewNopLogger()
	}
	e := &Executor{req: req, log: l, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ensureHost returns the running host, creating it if there is none.
func (e *Executor) ensureHost() *Host {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.host != nil && !e.host.Closed() {
		return e.host
	}
	e.host = newHost(e.req, e.log, e.timeout)
	e.created++
	e.log.Info("sandbox: host started")
	return e.host
}

// Run executes p and returns the frame's result. The error is non-nil
// only when the run could not take place (host closed, ctx done).
func (e *Executor) Run(ctx context.Context, p Payload) (Result, error) {
	if p.Action == "" {
		p.Action = ActionExecute
	}
	res, err := e.ensureHost().Run(ctx, p)
	switch {
	case err != nil:
		metrics.SandboxRuns.WithLabelValues(metrics.ResultFailure).Inc()
	case res.Success:
		metrics.SandboxRuns.WithLabelValues(metrics.ResultSuccess).Inc()
	default:
		metrics.SandboxRuns.WithLabelValues(metrics.ResultFailure).Inc()
	}
	return res, err
}

// Execute runs code with paramName bound to paramValue and returns the
// handler's JSON-encoded result. Handler failures are *HandlerError.
func (e *Executor) Execute(ctx context.Context, paramName string, paramValue any, code string) (json.RawMessage, error) {
	res, err := e.Run(ctx, Payload{
		Action:     ActionExecute,
		ParamName:  paramName,
		ParamValue: paramValue,
		Code:       code,
	})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &HandlerError{Message: res.Error}
	}
	return res.Result, nil
}

// Close stops the current host. A later run starts a new one.
func (e *Executor) Close() error {
	e.mu.Lock()
	h := e.host
	e.host = nil
	e.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Close()
}

// hostsCreated reports how many hosts this executor has started.
func (e *Executor) hostsCreated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.created
}
