// Package checker runs one check cycle for a task: fetch, run the
// response handler, and write the result back unless the task was
// deleted meanwhile.
package checker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pagewatch/pagewatch/internal/fetcher"
	"github.com/pagewatch/pagewatch/internal/metrics"
	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/internal/queue"
	"github.com/pagewatch/pagewatch/internal/store"
	"github.com/pagewatch/pagewatch/internal/task"
	"github.com/pagewatch/pagewatch/pkg/logger"
)

// ParamName is the name the handler sees its input under.
const ParamName = "taskData"

const (
	MsgNotFound = "task not found"
	MsgDisabled = "task is disabled"
	MsgDeleted  = "task was deleted"
)

var (
	// ErrTaskNotFound is returned for an id missing from the task list.
	ErrTaskNotFound = errors.New(MsgNotFound)
	errDeleted      = errors.New(MsgDeleted)
)

// Fetcher retrieves the response for a task.
type Fetcher interface {
	Fetch(ctx context.Context, rc task.RequestConfig) (*fetcher.Response, error)
}

// Executor runs handler code.
type Executor interface {
	Execute(ctx context.Context, paramName string, paramValue any, code string) (json.RawMessage, error)
}

// Notifier receives change notifications and badge refreshes.
type Notifier interface {
	TaskChanged(t task.Task) notify.Notification
	UpdateBadge(tasks []task.Task, settings task.Settings) notify.Badge
}

// TaskData is the handler's input.
type TaskData struct {
	PrevContent any `json:"prevContent,omitempty"`
	PrevExtra   any `json:"prevExtra,omitempty"`
	Content     any `json:"content"`
}

// NewTaskData builds the handler input from the previous value of prev
// (which may be nil) and freshly fetched content.
func NewTaskData(prev *task.Task, content any) TaskData {
	return TaskData{
		PrevContent: prev.PrevContent(),
		PrevExtra:   prev.PrevExtra(),
		Content:     content,
	}
}

// Checker wires the fetcher, the sandbox and the store together.
type Checker struct {
	store    *store.Store
	fetch    Fetcher
	exec     Executor
	notifier Notifier
	log      logger.Logger
	now      func() time.Time
}

// New creates a Checker.
func New(st *store.Store, f Fetcher, e Executor, n Notifier, l logger.Logger) *Checker {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Checker{store: st, fetch: f, exec: e, notifier: n, log: l, now: time.Now}
}

// Check runs a full check of the task with the given id. It never
// returns a partial write: on failure the stored task is unchanged.
func (c *Checker) Check(ctx context.Context, id string) queue.Result {
	title := "Task ID: " + id
	res := c.check(ctx, id, &title)
	switch {
	case res.Success && res.Message == "":
		metrics.Checks.WithLabelValues(metrics.ResultSuccess).Inc()
	case res.Success:
		metrics.Checks.WithLabelValues(metrics.ResultSkipped).Inc()
	default:
		metrics.Checks.WithLabelValues(metrics.ResultFailure).Inc()
	}
	return res
}

func (c *Checker) check(ctx context.Context, id string, title *string) queue.Result {
	t, ok, err := c.store.Task(ctx, id)
	if err != nil {
		return c.fail(*title, err)
	}
	if !ok {
		return queue.Fail(ErrTaskNotFound)
	}
	*title = t.Title
	if !t.Enabled {
		return queue.Result{Success: true, Message: MsgDisabled}
	}

	c.log.Info("%s: check started", t.Title)
	value, notifyFlag, err := c.process(ctx, &t)
	if err != nil {
		return c.fail(t.Title, err)
	}

	changed := notifyFlag && t.PopupNotification
	var latest []task.Task
	err = c.store.Update(ctx, func(tasks []task.Task) ([]task.Task, error) {
		i := task.Index(tasks, id)
		if i < 0 {
			return nil, errDeleted
		}
		now := c.now().UTC()
		tasks[i].CurrentValue = value
		tasks[i].LastChecked = &now
		tasks[i].HasChanges = changed
		latest = tasks
		return tasks, nil
	})
	if errors.Is(err, errDeleted) {
		c.log.Info("%s: deleted during processing, result discarded", t.Title)
		return queue.Result{Success: true, Message: MsgDeleted}
	}
	if err != nil {
		return c.fail(t.Title, err)
	}

	if changed {
		c.notifier.TaskChanged(t)
	}
	c.refreshBadge(ctx, latest)
	c.log.Info("%s: check finished", t.Title)
	return queue.Result{Success: true}
}

// process fetches the task's data and runs its handler on it.
func (c *Checker) process(ctx context.Context, t *task.Task) (*task.Value, bool, error) {
	resp, err := c.fetch.Fetch(ctx, t.RequestBody)
	if err != nil {
		return nil, false, err
	}
	content, err := resp.Decode(t.RequestBody.DataType)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.exec.Execute(ctx, ParamName, NewTaskData(t, content), t.ResponseHandler)
	if err != nil {
		return nil, false, err
	}
	v, notifyFlag := DecodeValue(raw)
	return v, notifyFlag, nil
}

func (c *Checker) refreshBadge(ctx context.Context, tasks []task.Task) {
	settings, err := c.store.Settings(ctx)
	if err != nil {
		c.log.Warning("badge: cannot read settings: %v", err)
	}
	c.notifier.UpdateBadge(tasks, settings)
}

func (c *Checker) fail(title string, err error) queue.Result {
	msg := ErrorMessage(err)
	c.log.Error("%s: check failed: %s", title, msg)
	return queue.Result{Error: msg}
}

// ErrorMessage turns a check failure into the text shown to the user.
// Timeouts are reported distinctly from other failures.
func ErrorMessage(err error) string {
	if fetcher.IsTimeout(err) {
		return fetcher.ErrTimeout.Error()
	}
	return err.Error()
}

// DecodeValue converts a handler result to the stored value. notify is
// true only when the result is an object whose notify field is true.
func DecodeValue(raw json.RawMessage) (*task.Value, bool) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		n, _ := obj["notify"].(bool)
		return &task.Value{Content: obj["content"], Extra: obj["extra"], Notify: n}, n
	}
	var v any
	json.Unmarshal(raw, &v)
	return &task.Value{Content: v}, false
}
