// Package server exposes the background actions over JSON-RPC 2.0, on
// HTTP and WebSocket, next to the Prometheus metrics endpoint.
package server

import (
	"context"
	"errors"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/pagewatch/pagewatch/internal/api"
	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/internal/queue"
	"github.com/pagewatch/pagewatch/internal/scheduler"
	"github.com/pagewatch/pagewatch/internal/task"
)

// Custom JSON-RPC error codes.
const (
	codeTaskNotFound  = jrpc2.Code(-32001)
	codeInvalidParams = jrpc2.Code(-32602)
)

// RPCConfig holds configuration for the JSON-RPC endpoint.
type RPCConfig struct {
	Secret    string // Auth token (required -- empty means RPC disabled)
	Version   string // Daemon version
	Commit    string // Git commit
	BuildType string // Build type
}

// RPCServer binds the Api to JSON-RPC methods.
type RPCServer struct {
	bridge    jhttp.Bridge
	methods   handler.Map
	secret    string
	version   string
	commit    string
	buildType string
	api       *api.Api
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// NoParams is the input of actions that take none. Callers send {},
// null or omit params entirely.
type NoParams struct{}

// TaskIDParam is the input of the methods addressing one task.
type TaskIDParam struct {
	TaskID string `json:"taskId"`
}

// TaskParam carries a full task.
type TaskParam struct {
	Task *task.Task `json:"task"`
}

// TestRequestParams is the input for testRequest.
type TestRequestParams struct {
	RequestConfig *task.RequestConfig `json:"requestConfig"`
}

// TestHandlerParams is the input for testHandler.
type TestHandlerParams struct {
	CurrentTask   *task.Task          `json:"currentTask,omitempty"`
	RequestConfig *task.RequestConfig `json:"requestConfig"`
	HandlerCode   string              `json:"handlerCode"`
}

// SettingsParams is the input for saveSettings.
type SettingsParams struct {
	Settings *task.Settings `json:"settings"`
}

// NotificationParam is the input for notificationClicked.
type NotificationParam struct {
	NotificationID string `json:"notificationId"`
}

// SuccessResult is returned by actions without other output.
type SuccessResult struct {
	Success bool `json:"success"`
}

// TasksResult is the response for listTasks.
type TasksResult struct {
	Success bool        `json:"success"`
	Tasks   []task.Task `json:"tasks"`
}

// TaskResult is the response for getTask and saveTask.
type TaskResult struct {
	Success bool       `json:"success"`
	Task    *task.Task `json:"task,omitempty"`
}

// AlarmsResult is the response for listAlarms.
type AlarmsResult struct {
	Success bool              `json:"success"`
	Alarms  []scheduler.Alarm `json:"alarms"`
}

// SettingsResult is the response for getSettings and saveSettings.
type SettingsResult struct {
	Success  bool          `json:"success"`
	Settings task.Settings `json:"settings"`
}

// BadgeResult is the response for updateBadge and languageChanged.
type BadgeResult struct {
	Success bool         `json:"success"`
	Badge   notify.Badge `json:"badge"`
}

var okResult = &SuccessResult{Success: true}

// NewRPCServer creates a new RPCServer with method handlers and HTTP bridge.
func NewRPCServer(cfg *RPCConfig, a *api.Api) *RPCServer {
	rs := &RPCServer{
		secret:    cfg.Secret,
		version:   cfg.Version,
		commit:    cfg.Commit,
		buildType: cfg.BuildType,
		api:       a,
	}

	rs.methods = handler.Map{
		api.ActionGetVersion:          handler.New(rs.systemGetVersion),
		api.ActionCheckTask:           handler.New(rs.checkTask),
		api.ActionSetupAlarm:          handler.New(rs.setupAlarm),
		api.ActionSetupAllAlarm:       handler.New(rs.setupAllAlarm),
		api.ActionRemoveAlarm:         handler.New(rs.removeAlarm),
		api.ActionRemoveAllAlarm:      handler.New(rs.removeAllAlarm),
		api.ActionTestRequest:         handler.New(rs.testRequest),
		api.ActionTestHandler:         handler.New(rs.testHandler),
		api.ActionUpdateBadge:         handler.New(rs.updateBadge),
		api.ActionLanguageChanged:     handler.New(rs.updateBadge),
		api.ActionListTasks:           handler.New(rs.listTasks),
		api.ActionGetTask:             handler.New(rs.getTask),
		api.ActionSaveTask:            handler.New(rs.saveTask),
		api.ActionDeleteTask:          handler.New(rs.deleteTask),
		api.ActionListAlarms:          handler.New(rs.listAlarms),
		api.ActionGetSettings:         handler.New(rs.getSettings),
		api.ActionSaveSettings:        handler.New(rs.saveSettings),
		api.ActionNotificationClicked: handler.New(rs.notificationClicked),
	}

	rs.bridge = jhttp.NewBridge(rs.methods, nil)
	return rs
}

func (rs *RPCServer) systemGetVersion(_ context.Context, _ *NoParams) (*VersionResult, error) {
	return &VersionResult{
		Version:   rs.version,
		Commit:    rs.commit,
		BuildType: rs.buildType,
	}, nil
}

// checkTask runs a check through the queue and waits for it.
func (rs *RPCServer) checkTask(ctx context.Context, p *TaskIDParam) (*queue.Result, error) {
	if p.TaskID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: taskId"}
	}
	res, err := rs.api.CheckTask(ctx, p.TaskID)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (rs *RPCServer) setupAlarm(_ context.Context, p *TaskParam) (*SuccessResult, error) {
	if p.Task == nil || p.Task.ID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: task"}
	}
	if err := rs.api.SetupAlarm(*p.Task); err != nil {
		return nil, rpcError(err)
	}
	return okResult, nil
}

func (rs *RPCServer) setupAllAlarm(ctx context.Context, _ *NoParams) (*SuccessResult, error) {
	if _, err := rs.api.SetupAllAlarms(ctx); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (rs *RPCServer) removeAlarm(_ context.Context, p *TaskIDParam) (*SuccessResult, error) {
	if p.TaskID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: taskId"}
	}
	rs.api.RemoveAlarm(p.TaskID)
	return okResult, nil
}

func (rs *RPCServer) removeAllAlarm(_ context.Context, _ *NoParams) (*SuccessResult, error) {
	rs.api.RemoveAllAlarms()
	return okResult, nil
}

func (rs *RPCServer) testRequest(ctx context.Context, p *TestRequestParams) (*api.TestResult, error) {
	if p.RequestConfig == nil || p.RequestConfig.URL == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: requestConfig.url"}
	}
	res := rs.api.TestRequest(ctx, *p.RequestConfig)
	return &res, nil
}

func (rs *RPCServer) testHandler(ctx context.Context, p *TestHandlerParams) (*api.TestResult, error) {
	if p.RequestConfig == nil || p.RequestConfig.URL == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: requestConfig.url"}
	}
	if p.HandlerCode == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: handlerCode"}
	}
	res := rs.api.TestHandler(ctx, p.CurrentTask, *p.RequestConfig, p.HandlerCode)
	return &res, nil
}

func (rs *RPCServer) updateBadge(ctx context.Context, _ *NoParams) (*BadgeResult, error) {
	b, err := rs.api.Badge(ctx)
	if err != nil {
		return nil, err
	}
	return &BadgeResult{Success: true, Badge: b}, nil
}

func (rs *RPCServer) listTasks(ctx context.Context, _ *NoParams) (*TasksResult, error) {
	tasks, err := rs.api.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	return &TasksResult{Success: true, Tasks: tasks}, nil
}

func (rs *RPCServer) getTask(ctx context.Context, p *TaskIDParam) (*TaskResult, error) {
	t, err := rs.api.Task(ctx, p.TaskID)
	if err != nil {
		return nil, rpcError(err)
	}
	return &TaskResult{Success: true, Task: &t}, nil
}

func (rs *RPCServer) saveTask(ctx context.Context, p *TaskParam) (*TaskResult, error) {
	if p.Task == nil {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: task"}
	}
	t, err := rs.api.SaveTask(ctx, *p.Task)
	if err != nil {
		return nil, rpcError(err)
	}
	return &TaskResult{Success: true, Task: &t}, nil
}

func (rs *RPCServer) deleteTask(ctx context.Context, p *TaskIDParam) (*SuccessResult, error) {
	if err := rs.api.DeleteTask(ctx, p.TaskID); err != nil {
		return nil, rpcError(err)
	}
	return okResult, nil
}

func (rs *RPCServer) listAlarms(_ context.Context, _ *NoParams) (*AlarmsResult, error) {
	return &AlarmsResult{Success: true, Alarms: rs.api.Alarms()}, nil
}

func (rs *RPCServer) getSettings(ctx context.Context, _ *NoParams) (*SettingsResult, error) {
	s, err := rs.api.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return &SettingsResult{Success: true, Settings: s}, nil
}

func (rs *RPCServer) saveSettings(ctx context.Context, p *SettingsParams) (*SettingsResult, error) {
	if p.Settings == nil {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: settings"}
	}
	s, err := rs.api.SaveSettings(ctx, *p.Settings)
	if err != nil {
		return nil, err
	}
	return &SettingsResult{Success: true, Settings: s}, nil
}

func (rs *RPCServer) notificationClicked(_ context.Context, p *NotificationParam) (*SuccessResult, error) {
	return &SuccessResult{Success: rs.api.NotificationClicked(p.NotificationID)}, nil
}

// rpcError maps action errors onto JSON-RPC error codes.
func rpcError(err error) error {
	switch {
	case errors.Is(err, api.ErrTaskNotFound):
		return &jrpc2.Error{Code: codeTaskNotFound, Message: err.Error()}
	case errors.Is(err, api.ErrMissingTaskID),
		errors.Is(err, task.ErrMissingID),
		errors.Is(err, task.ErrInvalidInterval),
		errors.Is(err, task.ErrInvalidUnit),
		errors.Is(err, task.ErrMissingURL),
		errors.Is(err, task.ErrMissingHandler):
		return &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	default:
		return err
	}
}

// Close shuts down the jrpc2 bridge, releasing internal goroutines.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}
