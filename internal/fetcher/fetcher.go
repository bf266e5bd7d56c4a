// Package fetcher performs HTTP requests for task checks with a deadline
// spanning every attempt and exponential backoff between attempts.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pagewatch/pagewatch/internal/metrics"
	"github.com/pagewatch/pagewatch/internal/task"
	"github.com/pagewatch/pagewatch/pkg/logger"
)

const (
	// DefaultRetries is the number of attempts Fetch makes.
	DefaultRetries = 3
	// DefaultBaseDelay is the wait after the first failed attempt; it
	// doubles after each further failure.
	DefaultBaseDelay = 1000 * time.Millisecond
	// MaxBodySize caps how much of a response body is read.
	MaxBodySize = 10 << 20
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher issues requests described by a task.RequestConfig.
type Fetcher struct {
	client    *resty.Client
	retries   int
	baseDelay time.Duration
	timeoutMS int
	sleep     SleepFunc
	log       logger.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRetries sets the default attempt count.
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.retries = n
		}
	}
}

// WithDefaultTimeout sets the deadline, in milliseconds, used for
// requests that carry none.
func WithDefaultTimeout(ms int) Option {
	return func(f *Fetcher) {
		if ms > 0 {
			f.timeoutMS = ms
		}
	}
}

// WithBaseDelay sets the first backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) { f.baseDelay = d }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// New creates a Fetcher. A nil client uses http.DefaultClient and a nil
// logger discards output.
func New(client *http.Client, l logger.Logger, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	// FetchRetries owns retrying: one deadline spans every attempt and the
	// backoff is exactly 2^i * baseDelay.
	hc := *client
	rc := resty.NewWithClient(&hc).
		SetRetryCount(0).
		SetLogger(restyLogger{l})
	f := &Fetcher{
		client:    rc,
		retries:   DefaultRetries,
		baseDelay: DefaultBaseDelay,
		timeoutMS: task.DefaultTimeout,
		sleep:     sleepCtx,
		log:       l,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// TimeoutMillis returns the deadline applied to rc, in milliseconds.
func (f *Fetcher) TimeoutMillis(rc task.RequestConfig) int {
	if rc.Timeout > 0 {
		return rc.Timeout
	}
	return f.timeoutMS
}

// Fetch performs rc with the default number of attempts.
func (f *Fetcher) Fetch(ctx context.Context, rc task.RequestConfig) (*Response, error) {
	return f.FetchRetries(ctx, rc, f.retries)
}

// Do performs rc once, still bounded by its timeout.
func (f *Fetcher) Do(ctx context.Context, rc task.RequestConfig) (*Response, error) {
	return f.FetchRetries(ctx, rc, 1)
}

// FetchRetries performs rc up to retries times. Attempt i+1 starts
// 2^i * baseDelay after attempt i failed. The rc timeout spans all
// attempts and the waits between them; when it expires ErrTimeout is
// returned. Otherwise the last attempt's error is returned.
func (f *Fetcher) FetchRetries(ctx context.Context, rc task.RequestConfig, retries int) (*Response, error) {
	if retries < 1 {
		retries = 1
	}
	tctx, cancel := context.WithTimeout(ctx, time.Duration(f.TimeoutMillis(rc))*time.Millisecond)
	defer cancel()

	var lastErr error
	for i := 0; i < retries; i++ {
		resp, err := f.attempt(tctx, rc)
		if err == nil {
			return resp, nil
		}
		lastErr = f.timeoutErr(ctx, tctx, err)
		metrics.FetchFailures.WithLabelValues(classify(lastErr)).Inc()
		if errors.Is(lastErr, ErrTimeout) || ctx.Err() != nil {
			return nil, lastErr
		}
		if i == retries-1 {
			break
		}
		delay := f.baseDelay << i
		f.log.Warning("fetch %s: attempt %d of %d failed: %v (retrying in %v)", rc.URL, i+1, retries, lastErr, delay)
		if err := f.sleep(tctx, delay); err != nil {
			return nil, f.timeoutErr(ctx, tctx, err)
		}
	}
	return nil, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, rc task.RequestConfig) (*Response, error) {
	metrics.FetchAttempts.Inc()
	req := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	req.Header = rc.Header()
	if body := rc.Body(); body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(rc.Method(), rc.URL)
	if err != nil {
		return nil, err
	}
	raw := resp.RawBody()
	defer raw.Close()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		io.Copy(io.Discard, io.LimitReader(raw, MaxBodySize))
		return nil, &StatusError{StatusCode: resp.StatusCode(), Status: resp.Status()}
	}
	body, err := io.ReadAll(io.LimitReader(raw, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode(), Header: resp.Header(), Body: body}, nil
}

// restyLogger routes resty's diagnostics to the fetcher's logger.
type restyLogger struct {
	l logger.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) { r.l.Error("resty: "+format, v...) }
func (r restyLogger) Warnf(format string, v ...interface{})  { r.l.Warning("resty: "+format, v...) }
func (r restyLogger) Debugf(string, ...interface{})          {}

// timeoutErr maps an expiry of the request deadline to ErrTimeout. A
// cancelled parent context is returned unchanged.
func (f *Fetcher) timeoutErr(parent, tctx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
