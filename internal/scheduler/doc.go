// Package scheduler provides the periodic alarm service that drives task
// checks. It implements a single-goroutine scheduler using a min-heap of
// alarms sorted by their next fire time, with a 60-second max-sleep-cap so
// wall-clock steps and system sleep are noticed within a minute.
//
// Alarms are not persisted: they are rebuilt from the task list on startup
// and on request. Checks missed while the process or the machine was
// suspended are recovered by the overdue scan (Overdue) that runs at
// startup and whenever the wake watcher sees a wall-clock gap.
package scheduler
