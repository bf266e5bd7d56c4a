// Package cmd implements the pagewatch command line: the daemon and the
// client commands that drive it over JSON-RPC.
package cmd

import (
	"fmt"
	"runtime"

	"github.com/pagewatch/pagewatch/cmd/common"
	"github.com/pagewatch/pagewatch/cmd/nativehost"
	"github.com/urfave/cli"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

// currentBuildArgs is set by Execute for the daemon's version reply and
// the client's version check.
var currentBuildArgs BuildArgs

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := newApp(bArgs)
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}

func newApp(bArgs BuildArgs) *cli.App {
	app := cli.NewApp()
	app.Name = "pagewatch"
	app.HelpName = "pagewatch"
	app.Usage = "Watch web pages for changes."
	app.Version = fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType)
	app.UsageText = "pagewatch <command> [arguments...]"
	app.Description = DESCRIPTION
	app.CustomAppHelpTemplate = HELP_TEMPL
	app.OnUsageError = common.UsageErrorCallback
	app.HideHelp = true
	app.HideVersion = true
	app.Commands = []cli.Command{
		{
			Name:   "daemon",
			Usage:  "run the background service",
			Action: daemon,
		},
		{
			Name:   "stop-daemon",
			Usage:  "stop the running daemon",
			Action: stopDaemon,
		},
		{
			Name:               "tasks",
			Aliases:            []string{"t"},
			Usage:              "manage monitored tasks",
			Description:        TasksDescription,
			CustomHelpTemplate: CMD_HELP_TEMPL,
			OnUsageError:       common.UsageErrorCallback,
			Subcommands: []cli.Command{
				{
					Name:    "list",
					Aliases: []string{"ls"},
					Usage:   "list tasks",
					Action:  listTasks,
					Flags:   []cli.Flag{jsonFlag},
				},
				{
					Name:      "show",
					Usage:     "print one task as JSON",
					ArgsUsage: "<task id>",
					Action:    showTask,
				},
				{
					Name:      "add",
					Usage:     "create or update a task from a JSON file",
					ArgsUsage: "<file|->",
					Action:    addTask,
				},
				{
					Name:      "rm",
					Usage:     "delete a task",
					ArgsUsage: "<task id>",
					Action:    removeTask,
				},
			},
		},
		{
			Name:               "check",
			Aliases:            []string{"c"},
			Usage:              "check a task now",
			ArgsUsage:          "<task id>",
			Description:        CheckDescription,
			CustomHelpTemplate: CMD_HELP_TEMPL,
			OnUsageError:       common.UsageErrorCallback,
			Action:             check,
		},
		{
			Name:               "alarms",
			Aliases:            []string{"a"},
			Usage:              "inspect and rebuild task alarms",
			Description:        AlarmsDescription,
			CustomHelpTemplate: CMD_HELP_TEMPL,
			Subcommands: []cli.Command{
				{
					Name:    "list",
					Aliases: []string{"ls"},
					Usage:   "list scheduled alarms",
					Action:  listAlarms,
					Flags:   []cli.Flag{jsonFlag},
				},
				{
					Name:   "rebuild",
					Usage:  "recreate the alarms of all tasks",
					Action: rebuildAlarms,
				},
				{
					Name:   "clear",
					Usage:  "remove every alarm",
					Action: clearAlarms,
				},
				{
					Name:      "rm",
					Usage:     "remove the alarm of one task",
					ArgsUsage: "<task id>",
					Action:    removeAlarm,
				},
			},
		},
		{
			Name:               "test",
			Usage:              "try a request or a response handler",
			Description:        TestDescription,
			CustomHelpTemplate: CMD_HELP_TEMPL,
			Subcommands: []cli.Command{
				{
					Name:      "request",
					Usage:     "send a request and print the decoded response",
					ArgsUsage: "<url>",
					Action:    testRequest,
					Flags:     requestFlags,
				},
				{
					Name:      "handler",
					Usage:     "run a handler against a fresh response",
					ArgsUsage: "<handler file>",
					Action:    testHandler,
					Flags:     append([]cli.Flag{taskFlag}, requestFlags...),
				},
			},
		},
		{
			Name:   "badge",
			Usage:  "recompute and print the badge",
			Action: badge,
		},
		{
			Name:        "nativehost",
			Usage:       "manage the browser native messaging host",
			Subcommands: nativehost.Commands,
		},
		{
			Name:    "help",
			Aliases: []string{"h"},
			Usage:   "prints the help message",
			Action:  common.Help,
		},
		{
			Name:               "version",
			Aliases:            []string{"v"},
			Usage:              "prints installed version of pagewatch",
			UsageText:          " ",
			CustomHelpTemplate: CMD_HELP_TEMPL,
			Action:             common.GetVersion,
		},
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "addr",
			Usage: "daemon address (default: $PAGEWATCH_RPC_ADDR)",
		},
		cli.StringFlag{
			Name:  "secret",
			Usage: "daemon RPC secret (default: the generated secret file)",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		clientOverrides = overrides{
			addr:   ctx.GlobalString("addr"),
			secret: ctx.GlobalString("secret"),
		}
		return nil
	}
	app.Action = common.Help
	return app
}
