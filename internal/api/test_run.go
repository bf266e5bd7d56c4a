package api

import (
	"context"
	"encoding/json"

	"github.com/pagewatch/pagewatch/internal/checker"
	"github.com/pagewatch/pagewatch/internal/fetcher"
	"github.com/pagewatch/pagewatch/internal/queue"
	"github.com/pagewatch/pagewatch/internal/task"
)

// TestResult is the reply of the ad hoc test actions.
type TestResult struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func testFailure(msg string) TestResult {
	return TestResult{Error: msg}
}

// TestRequest performs rc once and returns the decoded body. It is
// refused while a background check runs.
func (a *Api) TestRequest(ctx context.Context, rc task.RequestConfig) TestResult {
	if a.queue.Busy() {
		return testFailure(queue.ErrBusy.Error())
	}
	content, err := a.fetchContent(ctx, rc)
	if err != nil {
		return testFailure(a.testErrorMessage(rc, err))
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return testFailure(err.Error())
	}
	return TestResult{Success: true, Result: raw}
}

// TestHandler fetches rc and runs code on the result the way a check
// would, with current supplying the previous value. Nothing is stored.
func (a *Api) TestHandler(ctx context.Context, current *task.Task, rc task.RequestConfig, code string) TestResult {
	if a.queue.Busy() {
		return testFailure(queue.ErrBusy.Error())
	}
	content, err := a.fetchContent(ctx, rc)
	if err != nil {
		return testFailure(a.testErrorMessage(rc, err))
	}
	raw, err := a.exec.Execute(ctx, checker.ParamName, checker.NewTaskData(current, content), code)
	if err != nil {
		return testFailure(err.Error())
	}
	return TestResult{Success: true, Result: raw}
}

func (a *Api) fetchContent(ctx context.Context, rc task.RequestConfig) (any, error) {
	resp, err := a.fetch.Do(ctx, rc)
	if err != nil {
		return nil, err
	}
	return resp.Decode(rc.DataType)
}

func (a *Api) testErrorMessage(rc task.RequestConfig, err error) string {
	if fetcher.IsTimeout(err) {
		return fetcher.TimeoutMessage(a.fetch.TimeoutMillis(rc))
	}
	return err.Error()
}
