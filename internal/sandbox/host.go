package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/pagewatch/pagewatch/internal/fetcher"
	"github.com/pagewatch/pagewatch/internal/task"
	"github.com/pagewatch/pagewatch/pkg/logger"
)

// Requester performs the HTTP requests handlers make through $.ajax.
type Requester interface {
	Fetch(ctx context.Context, rc task.RequestConfig) (*fetcher.Response, error)
}

type call struct {
	ctx     context.Context
	payload Payload
	reply   chan Result
}

type frameEntry struct {
	f      *frame
	cancel context.CancelFunc
	reply  chan Result
}

// Host owns the execution frames. It creates one frame per call, relays
// ajax requests between frames and the Requester, and hands each frame's
// final message to the caller that started it.
type Host struct {
	req     Requester
	log     logger.Logger
	timeout time.Duration

	calls chan call
	up    chan frameMessage
	down  chan frameDelivery
	done  chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	// owned by the loop goroutine
	nextFrame int
	frames    map[int]*frameEntry
}

type frameDelivery struct {
	frameID int
	resp    ajaxResponse
}

func newHost(req Requester, l logger.Logger, timeout time.Duration) *Host {
	h := &Host{
		req:     req,
		log:     l,
		timeout: timeout,
		calls:   make(chan call),
		up:      make(chan frameMessage),
		down:    make(chan frameDelivery),
		done:    make(chan struct{}),
		frames:  map[int]*frameEntry{},
	}
	h.wg.Add(1)
	go h.loop()
	return h
}

// Run executes p in a new frame and waits for its result.
func (h *Host) Run(ctx context.Context, p Payload) (Result, error) {
	c := call{ctx: ctx, payload: p, reply: make(chan Result, 1)}
	select {
	case h.calls <- c:
	case <-h.done:
		return Result{}, ErrHostClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-c.reply:
		return res, nil
	case <-h.done:
		return Result{}, ErrHostClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Closed reports whether the host has stopped.
func (h *Host) Closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Close stops the host, cancels running frames and waits for the loop.
func (h *Host) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	h.wg.Wait()
	return nil
}

func (h *Host) loop() {
	defer h.wg.Done()
	for {
		select {
		case c := <-h.calls:
			h.start(c)
		case m := <-h.up:
			h.handle(m)
		case d := <-h.down:
			h.deliver(d)
		case <-h.done:
			for id, e := range h.frames {
				e.cancel()
				delete(h.frames, id)
			}
			return
		}
	}
}

func (h *Host) start(c call) {
	h.nextFrame++
	id := h.nextFrame
	f, err := newFrame(id, h.up, h.done, h.log)
	if err != nil {
		c.reply <- Result{Error: err.Error()}
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, h.timeout)
	h.frames[id] = &frameEntry{f: f, cancel: cancel, reply: c.reply}
	go f.run(ctx, c.payload)
}

func (h *Host) handle(m frameMessage) {
	e, ok := h.frames[m.frameID]
	if !ok {
		return
	}
	switch {
	case m.result != nil:
		// one final message per frame: tear down and stop listening
		delete(h.frames, m.frameID)
		e.cancel()
		e.reply <- *m.result
	case m.ajax != nil:
		go h.relay(e.f, m.frameID, *m.ajax)
	}
}

// relay performs an ajax request for a frame and posts the outcome back
// through the loop.
func (h *Host) relay(f *frame, frameID int, req ajaxRequest) {
	resp := ajaxResponse{PromiseID: req.PromiseID}
	rc := req.Options.RequestConfig()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-f.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer cancel()

	r, err := h.req.Fetch(ctx, rc)
	if err == nil {
		var v any
		v, err = decodeAjax(r, rc.DataType)
		if err == nil {
			resp.Result, err = json.Marshal(v)
		}
	}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Success = true
	}
	select {
	case h.down <- frameDelivery{frameID: frameID, resp: resp}:
	case <-h.done:
	}
}

func (h *Host) deliver(d frameDelivery) {
	e, ok := h.frames[d.frameID]
	if !ok {
		return
	}
	go func() {
		select {
		case e.f.inbox <- d.resp:
		case <-e.f.done:
		}
	}()
}

// decodeAjax follows jQuery: an explicit dataType wins, otherwise JSON
// content types are parsed and everything else is text.
func decodeAjax(r *fetcher.Response, dt task.DataType) (any, error) {
	if dt == "" && isJSONType(r.ContentType()) {
		dt = task.DataTypeJSON
	}
	v, err := r.Decode(dt)
	if err != nil {
		return nil, fmt.Errorf("ajax: %w", err)
	}
	return v, nil
}

func isJSONType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = ct
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
