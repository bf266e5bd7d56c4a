package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pagewatch/pagewatch/internal/api"
	"github.com/pagewatch/pagewatch/internal/fetcher"
	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/internal/queue"
	"github.com/pagewatch/pagewatch/internal/sandbox"
	"github.com/pagewatch/pagewatch/internal/store"
	"github.com/pagewatch/pagewatch/internal/task"
)

const testSecret = "test-rpc-secret"

type testEnv struct {
	web      *WebServer
	handler  http.Handler
	notifier *RPCNotifier
	store    *store.Store
	api      *api.Api
}

// newTestEnv builds the full daemon stack on an in-memory store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	kv, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	st := store.New(kv)
	notifier := NewRPCNotifier(nil)
	f := fetcher.New(http.DefaultClient, nil, fetcher.WithRetries(1))
	a := api.New(context.Background(), api.Options{
		Store:    st,
		Fetcher:  f,
		Executor: sandbox.NewExecutor(f, nil),
		Notifier: notify.New(notifier, nil),
	})
	rs := NewRPCServer(&RPCConfig{
		Secret:    testSecret,
		Version:   "1.0.0",
		Commit:    "abc123",
		BuildType: "release",
	}, a)
	ws := NewWebServer(nil, "127.0.0.1:0", rs, notifier)
	t.Cleanup(func() {
		rs.Close()
		a.Close()
		st.Close()
	})
	return &testEnv{web: ws, handler: ws.handler(), notifier: notifier, store: st, api: a}
}

// rpcCall sends a JSON-RPC request and returns the parsed response.
func rpcCall(t *testing.T, h http.Handler, method string, params any, authToken string) (int, map[string]any) {
	t.Helper()
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if params != nil {
		reqBody["params"] = params
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/jsonrpc", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	resp := rr.Result()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var result map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatalf("unmarshal response: %v (body: %s)", err, string(body))
		}
	}
	return rr.Code, result
}

func resultOf(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result object, got %v (error: %v)", resp["result"], resp["error"])
	}
	return result
}

func errorCode(t *testing.T, resp map[string]any) float64 {
	t.Helper()
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %v", resp)
	}
	return errObj["code"].(float64)
}

func sampleTask(url string) map[string]any {
	return map[string]any{
		"title":             "price",
		"enabled":           true,
		"popupNotification": true,
		"frequency":         map[string]any{"value": 1, "unit": "hour"},
		"requestBody":       map[string]any{"url": url, "dataType": "text"},
		"responseHandler":   "return {content: taskData.content, notify: taskData.content !== taskData.prevContent};",
	}
}

func TestRPCSystemGetVersion(t *testing.T) {
	env := newTestEnv(t)

	code, resp := rpcCall(t, env.handler, api.ActionGetVersion, nil, testSecret)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp["id"].(float64) != 1 {
		t.Fatalf("expected id 1, got %v", resp["id"])
	}
	result := resultOf(t, resp)
	if result["version"] != "1.0.0" || result["commit"] != "abc123" || result["buildType"] != "release" {
		t.Fatalf("unexpected version result %v", result)
	}
}

func TestRPCRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	code, resp := rpcCall(t, env.handler, api.ActionListTasks, nil, "")
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if errorCode(t, resp) != -32600 {
		t.Fatalf("unexpected error %v", resp["error"])
	}
}

func TestRPCTaskLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "42")
	}))
	defer srv.Close()
	env := newTestEnv(t)

	_, resp := rpcCall(t, env.handler, api.ActionSaveTask, map[string]any{"task": sampleTask(srv.URL)}, testSecret)
	saved := resultOf(t, resp)["task"].(map[string]any)
	id, _ := saved["id"].(string)
	if id == "" {
		t.Fatalf("expected id to be assigned, got %v", saved)
	}

	_, resp = rpcCall(t, env.handler, api.ActionListAlarms, nil, testSecret)
	alarms := resultOf(t, resp)["alarms"].([]any)
	if len(alarms) != 1 || alarms[0].(map[string]any)["name"] != task.AlarmName(id) {
		t.Fatalf("unexpected alarms %v", alarms)
	}
	if alarms[0].(map[string]any)["periodInMinutes"].(float64) != 60 {
		t.Fatalf("expected hourly alarm, got %v", alarms[0])
	}

	_, resp = rpcCall(t, env.handler, api.ActionCheckTask, map[string]any{"taskId": id}, testSecret)
	if res := resultOf(t, resp); res["success"] != true {
		t.Fatalf("check failed: %v", res)
	}

	_, resp = rpcCall(t, env.handler, api.ActionGetTask, map[string]any{"taskId": id}, testSecret)
	got := resultOf(t, resp)["task"].(map[string]any)
	if got["hasChanges"] != true || got["currentValue"].(map[string]any)["content"] != "42" {
		t.Fatalf("unexpected task after check %v", got)
	}

	_, resp = rpcCall(t, env.handler, api.ActionUpdateBadge, nil, testSecret)
	badge := resultOf(t, resp)["badge"].(map[string]any)
	if badge["text"] != "1" {
		t.Fatalf("unexpected badge %v", badge)
	}

	_, resp = rpcCall(t, env.handler, api.ActionDeleteTask, map[string]any{"taskId": id}, testSecret)
	if resultOf(t, resp)["success"] != true {
		t.Fatalf("delete failed: %v", resp)
	}
	_, resp = rpcCall(t, env.handler, api.ActionGetTask, map[string]any{"taskId": id}, testSecret)
	if errorCode(t, resp) != float64(codeTaskNotFound) {
		t.Fatalf("expected not found, got %v", resp)
	}
	_, resp = rpcCall(t, env.handler, api.ActionListAlarms, nil, testSecret)
	if n := len(resultOf(t, resp)["alarms"].([]any)); n != 0 {
		t.Fatalf("expected alarm removal, got %d", n)
	}
}

func TestRPCCheckTaskNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, resp := rpcCall(t, env.handler, api.ActionCheckTask, map[string]any{"taskId": "nope"}, testSecret)
	res := resultOf(t, resp)
	if res["success"] != false || res["error"] != "task not found" {
		t.Fatalf("unexpected result %v", res)
	}

	_, resp = rpcCall(t, env.handler, api.ActionCheckTask, map[string]any{}, testSecret)
	if errorCode(t, resp) != float64(codeInvalidParams) {
		t.Fatalf("expected invalid params, got %v", resp)
	}
}

func TestRPCSaveTaskInvalid(t *testing.T) {
	env := newTestEnv(t)
	bad := sampleTask("")
	_, resp := rpcCall(t, env.handler, api.ActionSaveTask, map[string]any{"task": bad}, testSecret)
	if errorCode(t, resp) != float64(codeInvalidParams) {
		t.Fatalf("expected invalid params, got %v", resp)
	}
}

func TestRPCAlarmMethods(t *testing.T) {
	env := newTestEnv(t)
	tk := sampleTask("http://example.invalid")
	tk["id"] = "t1"
	if err := env.store.SetTasks(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	_, resp := rpcCall(t, env.handler, api.ActionSetupAlarm, map[string]any{"task": tk}, testSecret)
	if resultOf(t, resp)["success"] != true {
		t.Fatalf("setupAlarm failed: %v", resp)
	}
	_, resp = rpcCall(t, env.handler, api.ActionRemoveAlarm, map[string]any{"taskId": "t1"}, testSecret)
	if resultOf(t, resp)["success"] != true {
		t.Fatalf("removeAlarm failed: %v", resp)
	}
	_, resp = rpcCall(t, env.handler, api.ActionSetupAllAlarm, nil, testSecret)
	if resultOf(t, resp)["success"] != true {
		t.Fatalf("setupAllAlarm failed: %v", resp)
	}
	_, resp = rpcCall(t, env.handler, api.ActionRemoveAllAlarm, nil, testSecret)
	if resultOf(t, resp)["success"] != true {
		t.Fatalf("removeAllAlarm failed: %v", resp)
	}
}

func TestRPCTestActions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"n":1}`)
	}))
	defer srv.Close()
	env := newTestEnv(t)
	rc := map[string]any{"url": srv.URL, "dataType": "json"}

	_, resp := rpcCall(t, env.handler, api.ActionTestRequest, map[string]any{"requestConfig": rc}, testSecret)
	res := resultOf(t, resp)
	if res["success"] != true || res["result"].(map[string]any)["n"].(float64) != 1 {
		t.Fatalf("unexpected testRequest result %v", res)
	}

	_, resp = rpcCall(t, env.handler, api.ActionTestHandler, map[string]any{
		"requestConfig": rc,
		"handlerCode":   "return taskData.content.n + 1;",
	}, testSecret)
	res = resultOf(t, resp)
	if res["success"] != true || res["result"].(float64) != 2 {
		t.Fatalf("unexpected testHandler result %v", res)
	}

	_, resp = rpcCall(t, env.handler, api.ActionTestHandler, map[string]any{"requestConfig": rc}, testSecret)
	if errorCode(t, resp) != float64(codeInvalidParams) {
		t.Fatalf("expected invalid params for missing code, got %v", resp)
	}
}

func TestRPCSettings(t *testing.T) {
	env := newTestEnv(t)
	_, resp := rpcCall(t, env.handler, api.ActionSaveSettings, map[string]any{"settings": map[string]any{"language": "zh_TW"}}, testSecret)
	if resultOf(t, resp)["settings"].(map[string]any)["language"] != "zh_TW" {
		t.Fatalf("unexpected saveSettings result %v", resp)
	}
	_, resp = rpcCall(t, env.handler, api.ActionGetSettings, nil, testSecret)
	if resultOf(t, resp)["settings"].(map[string]any)["language"] != "zh_TW" {
		t.Fatalf("unexpected getSettings result %v", resp)
	}
	_, resp = rpcCall(t, env.handler, api.ActionLanguageChanged, nil, testSecret)
	if resultOf(t, resp)["badge"].(map[string]any)["title"] != notify.Title("zh_TW") {
		t.Fatalf("unexpected badge title %v", resp)
	}
}

func TestRPCNotificationClicked(t *testing.T) {
	env := newTestEnv(t)
	_, resp := rpcCall(t, env.handler, api.ActionNotificationClicked, map[string]any{"notificationId": task.NotificationID("t1")}, testSecret)
	if resultOf(t, resp)["success"] != true {
		t.Fatalf("unexpected result %v", resp)
	}
	_, resp = rpcCall(t, env.handler, api.ActionNotificationClicked, map[string]any{"notificationId": "other"}, testSecret)
	if resultOf(t, resp)["success"] != false {
		t.Fatalf("unexpected result %v", resp)
	}
}

func TestRPCMethodNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, resp := rpcCall(t, env.handler, "download.add", nil, testSecret)
	if errorCode(t, resp) != -32601 {
		t.Fatalf("expected method not found, got %v", resp)
	}
}

func TestRPCServesEveryAction(t *testing.T) {
	rs := NewRPCServer(&RPCConfig{Secret: testSecret}, nil)
	defer rs.Close()
	for _, name := range api.Actions() {
		if _, ok := rs.methods[name]; !ok {
			t.Errorf("action %s has no RPC method", name)
		}
	}
}

func TestRPCEmptyObjectParams(t *testing.T) {
	env := newTestEnv(t)
	for _, method := range []string{
		api.ActionGetVersion,
		api.ActionSetupAllAlarm,
		api.ActionRemoveAllAlarm,
		api.ActionUpdateBadge,
		api.ActionLanguageChanged,
		api.ActionListTasks,
		api.ActionListAlarms,
		api.ActionGetSettings,
	} {
		for _, params := range []any{map[string]any{}, nil} {
			_, resp := rpcCall(t, env.handler, method, params, testSecret)
			if resp["error"] != nil {
				t.Errorf("%s with params %v: unexpected error %v", method, params, resp["error"])
				continue
			}
			res := resultOf(t, resp)
			if method != api.ActionGetVersion && res["success"] != true {
				t.Errorf("%s with params %v: expected success, got %v", method, params, res)
			}
		}
	}
}

func TestRPCTestActionBusyIsResult(t *testing.T) {
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			<-release
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	defer unblock()
	env := newTestEnv(t)

	_, resp := rpcCall(t, env.handler, api.ActionSaveTask, map[string]any{"task": sampleTask(srv.URL)}, testSecret)
	id, _ := resultOf(t, resp)["task"].(map[string]any)["id"].(string)
	env.api.QueueTask(id)
	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&hits) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !env.api.Busy() {
		t.Fatal("expected queue to be busy")
	}

	_, resp = rpcCall(t, env.handler, api.ActionTestRequest, map[string]any{"requestConfig": map[string]any{"url": srv.URL}}, testSecret)
	unblock()
	if resp["error"] != nil {
		t.Fatalf("busy must be a result, got error %v", resp["error"])
	}
	res := resultOf(t, resp)
	if res["success"] != false || res["error"] != queue.ErrBusy.Error() {
		t.Fatalf("expected busy result, got %v", res)
	}
}
