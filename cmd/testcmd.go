package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pagewatch/pagewatch/cmd/common"
	"github.com/pagewatch/pagewatch/internal/api"
	"github.com/pagewatch/pagewatch/internal/task"
	"github.com/urfave/cli"
)

var (
	requestFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "url, u",
			Usage: "request url (test handler: overrides the task's url)",
		},
		cli.StringFlag{
			Name:  "method, X",
			Usage: "HTTP method (default: GET)",
		},
		cli.StringSliceFlag{
			Name:  "header, H",
			Usage: `request header as "Key: Value", repeatable`,
		},
		cli.StringFlag{
			Name:  "data, d",
			Usage: "request body",
		},
		cli.StringFlag{
			Name:  "data-type",
			Usage: "response decoding: json, text or blob",
		},
		cli.IntFlag{
			Name:  "timeout",
			Usage: "timeout in milliseconds (default: 7000)",
		},
	}

	taskFlag = cli.StringFlag{
		Name:  "task, t",
		Usage: "id of the task whose request and current value are used",
	}
)

// requestConfig builds a request from the flags on top of base.
func requestConfig(ctx *cli.Context, base task.RequestConfig) (task.RequestConfig, error) {
	rc := base
	if u := ctx.String("url"); u != "" {
		rc.URL = u
	}
	if m := ctx.String("method"); m != "" {
		rc.Type = m
	}
	for _, h := range ctx.StringSlice("header") {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			return rc, fmt.Errorf("invalid header %q", h)
		}
		if rc.Headers == nil {
			rc.Headers = map[string]string{}
		}
		rc.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if d := ctx.String("data"); d != "" {
		raw, err := json.Marshal(d)
		if err != nil {
			return rc, err
		}
		rc.Data = raw
	}
	if dt := ctx.String("data-type"); dt != "" {
		rc.DataType = task.DataType(dt)
	}
	if ms := ctx.Int("timeout"); ms > 0 {
		rc.Timeout = ms
	}
	if rc.URL == "" {
		return rc, errors.New("no url provided")
	}
	return rc, nil
}

func testRequest(ctx *cli.Context) error {
	base := task.RequestConfig{URL: ctx.Args().First()}
	rc, err := requestConfig(ctx, base)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "test", "new_client", err)
		return nil
	}
	defer client.Close()
	res, err := client.TestRequest(cliContext(ctx), &rc)
	if err != nil {
		common.PrintRuntimeErr(ctx, "test", "request", err)
		return nil
	}
	return printTestResult(res)
}

func testHandler(ctx *cli.Context) error {
	file := ctx.Args().First()
	if file == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no handler file provided"))
	}
	code, err := os.ReadFile(file)
	if err != nil {
		common.PrintRuntimeErr(ctx, "test", "read_handler", err)
		return nil
	}
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "test", "new_client", err)
		return nil
	}
	defer client.Close()

	var (
		current *task.Task
		base    task.RequestConfig
	)
	if id := ctx.String("task"); id != "" {
		current, err = client.GetTask(cliContext(ctx), id)
		if err != nil {
			common.PrintRuntimeErr(ctx, "test", "get_task", err)
			return nil
		}
		base = current.RequestBody
	}
	rc, err := requestConfig(ctx, base)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	res, err := client.TestHandler(cliContext(ctx), current, &rc, string(code))
	if err != nil {
		common.PrintRuntimeErr(ctx, "test", "handler", err)
		return nil
	}
	return printTestResult(res)
}

func printTestResult(res *api.TestResult) error {
	if !res.Success {
		return cli.NewExitError(res.Error, 1)
	}
	var v any
	if err := json.Unmarshal(res.Result, &v); err != nil {
		fmt.Println(string(res.Result))
		return nil
	}
	return common.PrintJSON(os.Stdout, v)
}
