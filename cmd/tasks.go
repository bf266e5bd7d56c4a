package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pagewatch/pagewatch/cmd/common"
	"github.com/pagewatch/pagewatch/internal/task"
	"github.com/urfave/cli"
)

var jsonFlag = cli.BoolFlag{
	Name:  "json",
	Usage: "print JSON instead of a table",
}

// stdin is read by "tasks add -".
var stdin io.Reader = os.Stdin

func listTasks(ctx *cli.Context) error {
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "tasks", "new_client", err)
		return nil
	}
	defer client.Close()
	tasks, err := client.ListTasks(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "tasks", "list", err)
		return nil
	}
	if ctx.Bool("json") {
		return common.PrintJSON(os.Stdout, tasks)
	}
	if len(tasks) == 0 {
		fmt.Println("pagewatch: no tasks found")
		return nil
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Title < tasks[j].Title })
	txt := "\n---------------------------------------------------------------------------------"
	txt += "\n|                  Id                  |        Title         | Every | State |"
	txt += "\n|--------------------------------------|----------------------|-------|-------|"
	for _, t := range tasks {
		txt += fmt.Sprintf("\n| %s | %s | %s | %s |",
			common.Fit(t.ID, 36),
			common.Fit(t.Title, 20),
			common.Beaut(frequencyText(t.Frequency), 5),
			common.Beaut(stateText(t), 5),
		)
	}
	txt += "\n---------------------------------------------------------------------------------"
	fmt.Println(txt)
	return nil
}

func frequencyText(f task.Frequency) string {
	if f.Unit == task.UnitHour {
		return fmt.Sprintf("%dh", f.Value)
	}
	return fmt.Sprintf("%dm", f.Value)
}

func stateText(t task.Task) string {
	switch {
	case !t.Enabled:
		return "off"
	case t.HasChanges:
		return "new"
	case t.LastChecked == nil:
		return "-"
	default:
		return "ok"
	}
}

func showTask(ctx *cli.Context) error {
	id, err := taskIDArg(ctx)
	if err != nil || id == "" {
		return err
	}
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "show", "new_client", err)
		return nil
	}
	defer client.Close()
	t, err := client.GetTask(cliContext(ctx), id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "show", "get_task", err)
		return nil
	}
	return common.PrintJSON(os.Stdout, t)
}

func addTask(ctx *cli.Context) error {
	src := ctx.Args().First()
	if src == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no task file provided"))
	}
	t, err := readTask(src)
	if err != nil {
		common.PrintRuntimeErr(ctx, "add", "read_task", err)
		return nil
	}
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "add", "new_client", err)
		return nil
	}
	defer client.Close()
	saved, err := client.SaveTask(cliContext(ctx), t)
	if err != nil {
		common.PrintRuntimeErr(ctx, "add", "save_task", err)
		return nil
	}
	fmt.Printf("Saved task %s\n", saved.ID)
	return nil
}

func readTask(src string) (*task.Task, error) {
	var (
		data []byte
		err  error
	)
	if src == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, err
	}
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse task: %w", err)
	}
	return &t, nil
}

func removeTask(ctx *cli.Context) error {
	id, err := taskIDArg(ctx)
	if err != nil || id == "" {
		return err
	}
	client, err := newClientFunc(cliContext(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "rm", "new_client", err)
		return nil
	}
	defer client.Close()
	if err := client.DeleteTask(cliContext(ctx), id); err != nil {
		common.PrintRuntimeErr(ctx, "rm", "delete_task", err)
		return nil
	}
	fmt.Printf("Deleted task %s\n", id)
	return nil
}

// taskIDArg returns the first argument. It returns "" after printing
// help when there is none.
func taskIDArg(ctx *cli.Context) (string, error) {
	id := ctx.Args().First()
	switch id {
	case "":
		return "", common.PrintErrWithCmdHelp(ctx, errors.New("no task id provided"))
	case "help":
		return "", cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	return id, nil
}
