package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/pagewatch/pagewatch/pkg/logger"
)

// maxConsoleEntries bounds console output kept per run.
const maxConsoleEntries = 100

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var errDeadline = errors.New("execution timed out")

// frame is a one-shot execution context: a fresh goja runtime that runs a
// single handler and is discarded.
type frame struct {
	id  int
	vm  *goja.Runtime
	log logger.Logger

	// up carries messages to the host; hostDone unblocks posts after the
	// host stopped.
	up       chan<- frameMessage
	hostDone <-chan struct{}
	// inbox receives ajax outcomes relayed down by the host.
	inbox chan ajaxResponse
	done  chan struct{}

	nextPromise int
	pending     map[int]func(resp ajaxResponse)

	stringify goja.Callable
	parse     goja.Callable
	console   *consoleBuffer
}

func newFrame(id int, up chan<- frameMessage, hostDone <-chan struct{}, l logger.Logger) (*frame, error) {
	f := &frame{
		id:       id,
		vm:       goja.New(),
		log:      l,
		up:       up,
		hostDone: hostDone,
		inbox:    make(chan ajaxResponse, 1),
		done:     make(chan struct{}),
		pending:  map[int]func(ajaxResponse){},
		console:  &consoleBuffer{frameID: id, log: l},
	}
	registry := require.NewRegistry()
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(f.console))
	registry.Enable(f.vm)
	console.Enable(f.vm)
	// handlers get console but no module loader
	f.vm.GlobalObject().Delete("require")

	jsonObj := f.vm.Get("JSON").ToObject(f.vm)
	var ok bool
	if f.stringify, ok = goja.AssertFunction(jsonObj.Get("stringify")); !ok {
		return nil, errors.New("sandbox: JSON.stringify unavailable")
	}
	if f.parse, ok = goja.AssertFunction(jsonObj.Get("parse")); !ok {
		return nil, errors.New("sandbox: JSON.parse unavailable")
	}
	return f, nil
}

// run executes p and posts exactly one result to the host.
func (f *frame) run(ctx context.Context, p Payload) {
	defer close(f.done)
	res := f.execute(ctx, p)
	res.Logs = f.console.entries()
	f.post(frameMessage{frameID: f.id, result: &res})
}

func (f *frame) post(m frameMessage) bool {
	select {
	case f.up <- m:
		return true
	case <-f.hostDone:
		return false
	}
}

func (f *frame) execute(ctx context.Context, p Payload) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	stop := context.AfterFunc(ctx, func() { f.vm.Interrupt(errDeadline) })
	defer stop()

	if !identRe.MatchString(p.ParamName) {
		return Result{Error: fmt.Sprintf("%s: %q", ErrInvalidParam, p.ParamName)}
	}
	param, err := f.fromGo(p.ParamValue)
	if err != nil {
		return Result{Error: err.Error()}
	}
	src := "(async function(" + p.ParamName + ", $) {\n" + p.Code + "\n})"
	fnVal, err := f.vm.RunString(src)
	if err != nil {
		return Result{Error: f.errorText(err)}
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return Result{Error: "handler did not compile to a function"}
	}
	v, err := fn(goja.Undefined(), param, f.dollar())
	if err != nil {
		return Result{Error: f.errorText(err)}
	}
	promise, ok := v.Export().(*goja.Promise)
	if !ok {
		return f.success(v)
	}
	for {
		switch promise.State() {
		case goja.PromiseStateFulfilled:
			return f.success(promise.Result())
		case goja.PromiseStateRejected:
			return Result{Error: f.reasonText(promise.Result())}
		}
		select {
		case resp := <-f.inbox:
			if err := f.settle(resp); err != nil {
				return Result{Error: f.errorText(err)}
			}
		case <-ctx.Done():
			return Result{Error: deadlineText(ctx)}
		}
	}
}

// settle resolves or rejects the promise an ajax call returned and runs
// the jobs that became ready.
func (f *frame) settle(resp ajaxResponse) error {
	fn, ok := f.pending[resp.PromiseID]
	if !ok {
		return nil
	}
	delete(f.pending, resp.PromiseID)
	fn(resp)
	// entering and leaving the runtime drains the job queue
	_, err := f.vm.RunString("void 0")
	return err
}

func (f *frame) success(v goja.Value) Result {
	b, err := f.toJSON(v)
	if err != nil {
		return Result{Error: f.errorText(err)}
	}
	return Result{Success: true, Result: b}
}

// dollar builds the $ object handed to the handler.
func (f *frame) dollar() goja.Value {
	obj := f.vm.NewObject()
	obj.Set("ajax", f.ajax)
	obj.Set("get", func(call goja.FunctionCall) goja.Value {
		return f.shorthand("GET", call)
	})
	obj.Set("post", func(call goja.FunctionCall) goja.Value {
		return f.shorthand("POST", call)
	})
	return obj
}

// ajax accepts ajax(options) or ajax(url, options) and returns a promise
// settled when the host relays the response back.
func (f *frame) ajax(call goja.FunctionCall) goja.Value {
	var opts AjaxOptions
	first := call.Argument(0)
	optsVal := first
	if _, isString := first.Export().(string); isString {
		optsVal = call.Argument(1)
	}
	if !goja.IsUndefined(optsVal) && !goja.IsNull(optsVal) {
		b, err := f.toJSON(optsVal)
		if err != nil {
			panic(f.vm.NewTypeError("ajax: invalid options: %v", err))
		}
		if err := json.Unmarshal(b, &opts); err != nil {
			panic(f.vm.NewTypeError("ajax: invalid options: %v", err))
		}
	}
	if s, isString := first.Export().(string); isString {
		opts.URL = s
	}
	return f.request(opts)
}

func (f *frame) shorthand(method string, call goja.FunctionCall) goja.Value {
	opts := AjaxOptions{URL: call.Argument(0).String(), Type: method}
	if data := call.Argument(1); !goja.IsUndefined(data) && !goja.IsNull(data) {
		b, err := f.toJSON(data)
		if err != nil {
			panic(f.vm.NewTypeError("%s: invalid data: %v", strings.ToLower(method), err))
		}
		opts.Data = b
	}
	if dt := call.Argument(2); !goja.IsUndefined(dt) {
		opts.DataType = dt.String()
	}
	return f.request(opts)
}

func (f *frame) request(opts AjaxOptions) goja.Value {
	if opts.URL == "" {
		panic(f.vm.NewTypeError("ajax: url is required"))
	}
	promise, resolve, reject := f.vm.NewPromise()
	id := f.nextPromise
	f.nextPromise++
	f.pending[id] = func(resp ajaxResponse) {
		if !resp.Success {
			reject(f.newError(resp.Error))
			return
		}
		v, err := f.fromJSON(resp.Result)
		if err != nil {
			reject(f.newError(err.Error()))
			return
		}
		resolve(v)
	}
	if !f.post(frameMessage{frameID: f.id, ajax: &ajaxRequest{PromiseID: id, Options: opts}}) {
		delete(f.pending, id)
		reject(f.newError(ErrHostClosed.Error()))
	}
	return f.vm.ToValue(promise)
}

func (f *frame) newError(msg string) goja.Value {
	ctor, ok := goja.AssertConstructor(f.vm.Get("Error"))
	if !ok {
		return f.vm.ToValue(msg)
	}
	obj, err := ctor(nil, f.vm.ToValue(msg))
	if err != nil {
		return f.vm.ToValue(msg)
	}
	return obj
}

// fromGo copies a Go value into the runtime as plain JS data.
func (f *frame) fromGo(v any) (goja.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode parameter: %w", err)
	}
	return f.fromJSON(b)
}

func (f *frame) fromJSON(b []byte) (goja.Value, error) {
	if len(b) == 0 {
		return goja.Undefined(), nil
	}
	return f.parse(goja.Undefined(), f.vm.ToValue(string(b)))
}

// toJSON encodes v with JSON.stringify. Values JSON cannot represent
// (undefined, functions) become null.
func (f *frame) toJSON(v goja.Value) (json.RawMessage, error) {
	s, err := f.stringify(goja.Undefined(), v)
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(s) || goja.IsNull(s) {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(s.String()), nil
}

// errorText extracts the message a JS catch block would see.
func (f *frame) errorText(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return f.reasonText(ex.Value())
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return errDeadline.Error()
	}
	return err.Error()
}

func (f *frame) reasonText(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "handler rejected without a reason"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return v.String()
}

func deadlineText(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errDeadline.Error()
	}
	return ctx.Err().Error()
}

// consoleBuffer receives console output from the runtime.
type consoleBuffer struct {
	frameID int
	log     logger.Logger

	mu      sync.Mutex
	lines   []string
	dropped int
}

func (c *consoleBuffer) add(level, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) >= maxConsoleEntries {
		c.dropped++
		return
	}
	c.lines = append(c.lines, s)
	switch level {
	case "warn":
		c.log.Warning("sandbox frame %d: console: %s", c.frameID, s)
	case "error":
		c.log.Error("sandbox frame %d: console: %s", c.frameID, s)
	default:
		c.log.Info("sandbox frame %d: console: %s", c.frameID, s)
	}
}

func (c *consoleBuffer) entries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.lines...)
	if c.dropped > 0 {
		out = append(out, fmt.Sprintf("... %d more console entries dropped", c.dropped))
	}
	return out
}

func (c *consoleBuffer) Log(s string)   { c.add("log", s) }
func (c *consoleBuffer) Info(s string)  { c.add("log", s) }
func (c *consoleBuffer) Debug(s string) { c.add("log", s) }
func (c *consoleBuffer) Warn(s string)  { c.add("warn", s) }
func (c *consoleBuffer) Error(s string) { c.add("error", s) }
