package pwcli

import (
	"context"

	"github.com/pagewatch/pagewatch/internal/api"
	"github.com/pagewatch/pagewatch/internal/queue"
	"github.com/pagewatch/pagewatch/internal/server"
	"github.com/pagewatch/pagewatch/internal/task"
)

func (c *Client) GetDaemonVersion(ctx context.Context) (*server.VersionResult, error) {
	return invoke[server.VersionResult](ctx, c, api.ActionGetVersion, nil)
}

func (c *Client) ListTasks(ctx context.Context) ([]task.Task, error) {
	r, err := invoke[server.TasksResult](ctx, c, api.ActionListTasks, nil)
	if err != nil {
		return nil, err
	}
	return r.Tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*task.Task, error) {
	r, err := invoke[server.TaskResult](ctx, c, api.ActionGetTask, &server.TaskIDParam{TaskID: id})
	if err != nil {
		return nil, err
	}
	return r.Task, nil
}

func (c *Client) SaveTask(ctx context.Context, t *task.Task) (*task.Task, error) {
	r, err := invoke[server.TaskResult](ctx, c, api.ActionSaveTask, &server.TaskParam{Task: t})
	if err != nil {
		return nil, err
	}
	return r.Task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	_, err := invoke[server.SuccessResult](ctx, c, api.ActionDeleteTask, &server.TaskIDParam{TaskID: id})
	return err
}

// CheckTask runs a check and waits for it.
func (c *Client) CheckTask(ctx context.Context, id string) (*queue.Result, error) {
	return invoke[queue.Result](ctx, c, api.ActionCheckTask, &server.TaskIDParam{TaskID: id})
}

func (c *Client) ListAlarms(ctx context.Context) (*server.AlarmsResult, error) {
	return invoke[server.AlarmsResult](ctx, c, api.ActionListAlarms, nil)
}

func (c *Client) SetupAllAlarm(ctx context.Context) error {
	_, err := invoke[server.SuccessResult](ctx, c, api.ActionSetupAllAlarm, nil)
	return err
}

func (c *Client) RemoveAllAlarm(ctx context.Context) error {
	_, err := invoke[server.SuccessResult](ctx, c, api.ActionRemoveAllAlarm, nil)
	return err
}

func (c *Client) RemoveAlarm(ctx context.Context, id string) error {
	_, err := invoke[server.SuccessResult](ctx, c, api.ActionRemoveAlarm, &server.TaskIDParam{TaskID: id})
	return err
}

func (c *Client) TestRequest(ctx context.Context, rc *task.RequestConfig) (*api.TestResult, error) {
	return invoke[api.TestResult](ctx, c, api.ActionTestRequest, &server.TestRequestParams{RequestConfig: rc})
}

func (c *Client) TestHandler(ctx context.Context, current *task.Task, rc *task.RequestConfig, code string) (*api.TestResult, error) {
	return invoke[api.TestResult](ctx, c, api.ActionTestHandler, &server.TestHandlerParams{
		CurrentTask:   current,
		RequestConfig: rc,
		HandlerCode:   code,
	})
}

func (c *Client) UpdateBadge(ctx context.Context) (*server.BadgeResult, error) {
	return invoke[server.BadgeResult](ctx, c, api.ActionUpdateBadge, nil)
}
