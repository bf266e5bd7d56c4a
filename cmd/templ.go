package cmd

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const DESCRIPTION = `
Pagewatch checks web pages on a schedule, runs a small JavaScript
handler against each response and tells you when the extracted
value changes.
`

const (
	TasksDescription = `The tasks command manages the monitored tasks. Tasks
are stored by the daemon; "add" takes a task as JSON and
creates it, or replaces the task with the same id.

Example:
        pagewatch tasks list
        pagewatch tasks add task.json

`
	CheckDescription = `The check command runs a task immediately and waits
for the result. It fails when another check is running.

Example:
        pagewatch check <task id>

`
	AlarmsDescription = `The alarms command lists the periodic alarms of the
enabled tasks, or rebuilds them from the stored tasks.

Example:
        pagewatch alarms rebuild

`
	TestDescription = `The test command sends a one-off request, and optionally
runs a handler file against the response, without saving
anything.

Example:
        pagewatch test request https://example.com/api
        pagewatch test handler --url https://example.com handler.js

`
)
