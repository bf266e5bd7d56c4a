package checker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pagewatch/pagewatch/internal/fetcher"
	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/internal/sandbox"
	"github.com/pagewatch/pagewatch/internal/store"
	"github.com/pagewatch/pagewatch/internal/task"
)

type fakeNotifier struct {
	mu      sync.Mutex
	changed []string
	badges  []notify.Badge
}

func (n *fakeNotifier) TaskChanged(t task.Task) notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, t.ID)
	return notify.Notification{ID: task.NotificationID(t.ID)}
}

func (n *fakeNotifier) UpdateBadge(tasks []task.Task, s task.Settings) notify.Badge {
	b := notify.BadgeFor(tasks, s)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.badges = append(n.badges, b)
	return b
}

type countingFetcher struct {
	calls int32
	resp  *fetcher.Response
	err   error
}

func (f *countingFetcher) Fetch(ctx context.Context, rc task.RequestConfig) (*fetcher.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.resp, f.err
}

type execFunc func(ctx context.Context, paramName string, paramValue any, code string) (json.RawMessage, error)

func (f execFunc) Execute(ctx context.Context, paramName string, paramValue any, code string) (json.RawMessage, error) {
	return f(ctx, paramName, paramValue, code)
}

func newStore(t *testing.T, tasks ...task.Task) *store.Store {
	t.Helper()
	kv, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	st := store.New(kv)
	t.Cleanup(func() { st.Close() })
	if err := st.SetTasks(context.Background(), tasks); err != nil {
		t.Fatalf("SetTasks: %v", err)
	}
	return st
}

const changeHandler = `return {content: taskData.content, notify: taskData.content !== taskData.prevContent};`

func sampleTask(url string, popup bool) task.Task {
	return task.Task{
		ID:                "t1",
		Title:             "sample",
		Enabled:           true,
		PopupNotification: popup,
		Frequency:         task.Frequency{Value: 5, Unit: task.UnitMinute},
		RequestBody:       task.RequestConfig{URL: url, DataType: task.DataTypeText},
		ResponseHandler:   changeHandler,
	}
}

func TestCheckNotFound(t *testing.T) {
	c := New(newStore(t), &countingFetcher{}, nil, &fakeNotifier{}, nil)
	res := c.Check(context.Background(), "missing")
	if res.Success || res.Error != MsgNotFound {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCheckDisabledSkipsFetchAndSandbox(t *testing.T) {
	tk := sampleTask("http://unused", true)
	tk.Enabled = false
	f := &countingFetcher{}
	var execCalls int32
	exec := execFunc(func(context.Context, string, any, string) (json.RawMessage, error) {
		atomic.AddInt32(&execCalls, 1)
		return nil, nil
	})
	c := New(newStore(t, tk), f, exec, &fakeNotifier{}, nil)

	res := c.Check(context.Background(), "t1")
	if !res.Success || res.Message != MsgDisabled {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.calls != 0 || execCalls != 0 {
		t.Fatalf("expected no fetch or sandbox call, got %d/%d", f.calls, execCalls)
	}
}

func runTwoChecks(t *testing.T, popup bool) (*store.Store, *fakeNotifier) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Write([]byte("v1"))
			return
		}
		w.Write([]byte("v2"))
	}))
	t.Cleanup(srv.Close)

	st := newStore(t, sampleTask(srv.URL, popup))
	f := fetcher.New(srv.Client(), nil)
	exec := sandbox.NewExecutor(f, nil)
	t.Cleanup(func() { exec.Close() })
	n := &fakeNotifier{}
	c := New(st, f, exec, n, nil)

	for i := 0; i < 2; i++ {
		if res := c.Check(context.Background(), "t1"); !res.Success {
			t.Fatalf("check %d failed: %+v", i+1, res)
		}
	}
	return st, n
}

func TestCheckNotifiesOnChangeWhenEnabled(t *testing.T) {
	st, n := runTwoChecks(t, true)
	got, _, _ := st.Task(context.Background(), "t1")
	if !got.HasChanges {
		t.Fatal("expected hasChanges after content changed")
	}
	if got.CurrentValue == nil || got.CurrentValue.Content != "v2" {
		t.Fatalf("unexpected current value %+v", got.CurrentValue)
	}
	if got.LastChecked == nil {
		t.Fatal("expected lastChecked to be set")
	}
	if len(n.changed) != 2 {
		t.Fatalf("expected a notification per changed check, got %v", n.changed)
	}
	if last := n.badges[len(n.badges)-1]; last.Count != 1 {
		t.Fatalf("expected badge count 1, got %+v", last)
	}
}

func TestCheckDoesNotNotifyWhenPopupDisabled(t *testing.T) {
	st, n := runTwoChecks(t, false)
	got, _, _ := st.Task(context.Background(), "t1")
	if got.HasChanges {
		t.Fatal("expected hasChanges=false when notifications are off")
	}
	if len(n.changed) != 0 {
		t.Fatalf("expected no notification, got %v", n.changed)
	}
}

func TestCheckDeletedDuringProcessing(t *testing.T) {
	st := newStore(t, sampleTask("http://unused", true), task.Task{ID: "other", Title: "other"})
	f := &countingFetcher{resp: &fetcher.Response{Body: []byte("v1")}}
	exec := execFunc(func(ctx context.Context, _ string, _ any, _ string) (json.RawMessage, error) {
		err := st.Update(ctx, func(tasks []task.Task) ([]task.Task, error) {
			i := task.Index(tasks, "t1")
			return append(tasks[:i], tasks[i+1:]...), nil
		})
		if err != nil {
			t.Errorf("delete: %v", err)
		}
		return json.RawMessage(`{"content":"v1","notify":true}`), nil
	})
	n := &fakeNotifier{}
	c := New(st, f, exec, n, nil)

	res := c.Check(context.Background(), "t1")
	if !res.Success || res.Message != MsgDeleted {
		t.Fatalf("unexpected result %+v", res)
	}
	tasks, _ := st.Tasks(context.Background())
	if task.Index(tasks, "t1") >= 0 {
		t.Fatal("deleted task was resurrected")
	}
	if len(tasks) != 1 {
		t.Fatalf("expected the other task to remain, got %d tasks", len(tasks))
	}
	if len(n.changed) != 0 {
		t.Fatal("expected no notification for a deleted task")
	}
}

func TestCheckFailureLeavesTaskUntouched(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", fetcher.ErrTimeout, "request timed out"},
		{"status", &fetcher.StatusError{StatusCode: 500, Status: "500 Internal Server Error"}, "HTTP error! status: 500 Internal Server Error"},
		{"handler", &sandbox.HandlerError{Message: "x"}, "handler error: x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStore(t, sampleTask("http://unused", true))
			f := &countingFetcher{resp: &fetcher.Response{Body: []byte("v")}}
			exec := execFunc(func(context.Context, string, any, string) (json.RawMessage, error) {
				return json.RawMessage(`{"content":1}`), nil
			})
			var handlerErr *sandbox.HandlerError
			if errors.As(tt.err, &handlerErr) {
				exec = func(context.Context, string, any, string) (json.RawMessage, error) {
					return nil, tt.err
				}
			} else {
				f.err = tt.err
			}
			c := New(st, f, exec, &fakeNotifier{}, nil)

			res := c.Check(context.Background(), "t1")
			if res.Success || res.Error != tt.want {
				t.Fatalf("expected error %q, got %+v", tt.want, res)
			}
			got, _, _ := st.Task(context.Background(), "t1")
			if got.LastChecked != nil || got.CurrentValue != nil {
				t.Fatalf("expected no write on failure, got %+v", got)
			}
		})
	}
}

func TestNewTaskDataOmitsMissingPrevious(t *testing.T) {
	b, _ := json.Marshal(NewTaskData(&task.Task{}, "x"))
	if string(b) != `{"content":"x"}` {
		t.Fatalf("unexpected encoding %s", b)
	}
	prev := &task.Task{CurrentValue: &task.Value{Content: "a", Extra: 1}}
	b, _ = json.Marshal(NewTaskData(prev, "b"))
	if string(b) != `{"prevContent":"a","prevExtra":1,"content":"b"}` {
		t.Fatalf("unexpected encoding %s", b)
	}
}

func TestDecodeValue(t *testing.T) {
	v, n := DecodeValue(json.RawMessage(`{"content":"a","notify":true,"extra":{"k":1}}`))
	if !n || v.Content != "a" || v.Extra == nil {
		t.Fatalf("unexpected value %+v (%v)", v, n)
	}
	v, n = DecodeValue(json.RawMessage(`{"content":"a","notify":"yes"}`))
	if n || v.Notify {
		t.Fatal("notify must be the boolean true")
	}
	v, n = DecodeValue(json.RawMessage(`42`))
	if n || v.Content != float64(42) {
		t.Fatalf("unexpected scalar value %+v", v)
	}
}
