package api

import (
	"context"

	"github.com/pagewatch/pagewatch/internal/scheduler"
	"github.com/pagewatch/pagewatch/internal/task"
)

// SetupAlarm (re)creates the alarm for t, or clears it if t is disabled.
func (a *Api) SetupAlarm(t task.Task) error {
	if t.ID == "" {
		return ErrMissingTaskID
	}
	a.sched.Schedule(t)
	return nil
}

// SetupAllAlarms clears every alarm and creates one per enabled task. An
// empty store is initialised with an empty task list.
func (a *Api) SetupAllAlarms(ctx context.Context) (int, error) {
	tasks, err := a.store.Tasks(ctx)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		if err := a.store.SetTasks(ctx, tasks); err != nil {
			return 0, err
		}
	}
	n := a.sched.Rebuild(tasks)
	a.log.Info("alarms: %d scheduled", n)
	return n, nil
}

// RemoveAlarm clears the alarm of a task.
func (a *Api) RemoveAlarm(id string) bool {
	return a.sched.Clear(task.AlarmName(id))
}

// RemoveAllAlarms clears every alarm.
func (a *Api) RemoveAllAlarms() {
	a.sched.ClearAll()
}

// Alarms lists the scheduled alarms by next fire time.
func (a *Api) Alarms() []scheduler.Alarm {
	return a.sched.All()
}

// Alarm returns the alarm of a task.
func (a *Api) Alarm(id string) (scheduler.Alarm, bool) {
	return a.sched.Get(task.AlarmName(id))
}
