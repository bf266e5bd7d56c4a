package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pagewatch/pagewatch/internal/task"
)

// Tasks returns the stored task list.
func (a *Api) Tasks(ctx context.Context) ([]task.Task, error) {
	return a.store.Tasks(ctx)
}

// Task returns one task.
func (a *Api) Task(ctx context.Context, id string) (task.Task, error) {
	t, ok, err := a.store.Task(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	if !ok {
		return task.Task{}, ErrTaskNotFound
	}
	return t, nil
}

// SaveTask inserts or replaces t, assigning an id to new tasks, and
// reschedules its alarm. The stored check state of an existing task is
// kept when t carries none.
func (a *Api) SaveTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.RequestBody.Timeout <= 0 {
		t.RequestBody.Timeout = a.timeout
	}
	if err := t.Validate(); err != nil {
		return task.Task{}, fmt.Errorf("invalid task: %w", err)
	}
	err := a.store.Update(ctx, func(tasks []task.Task) ([]task.Task, error) {
		i := task.Index(tasks, t.ID)
		if i < 0 {
			return append(tasks, t), nil
		}
		if t.CurrentValue == nil && t.LastChecked == nil {
			t.CurrentValue = tasks[i].CurrentValue
			t.LastChecked = tasks[i].LastChecked
			t.HasChanges = t.HasChanges || tasks[i].HasChanges
		}
		tasks[i] = t
		return tasks, nil
	})
	if err != nil {
		return task.Task{}, err
	}
	a.sched.Schedule(t)
	a.log.Info("task %s saved", t.ID)
	if err := a.UpdateBadge(ctx); err != nil {
		a.log.Warning("badge: %v", err)
	}
	return t, nil
}

// DeleteTask removes a task and its alarm.
func (a *Api) DeleteTask(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingTaskID
	}
	err := a.store.Update(ctx, func(tasks []task.Task) ([]task.Task, error) {
		i := task.Index(tasks, id)
		if i < 0 {
			return nil, ErrTaskNotFound
		}
		return append(tasks[:i], tasks[i+1:]...), nil
	})
	if err != nil {
		return err
	}
	a.RemoveAlarm(id)
	a.notifier.Clear(task.NotificationID(id))
	a.log.Info("task %s deleted", id)
	if err := a.UpdateBadge(ctx); err != nil {
		a.log.Warning("badge: %v", err)
	}
	return nil
}
