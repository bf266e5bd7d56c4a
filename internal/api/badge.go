package api

import (
	"context"

	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/internal/task"
)

// UpdateBadge recomputes and publishes the badge.
func (a *Api) UpdateBadge(ctx context.Context) error {
	_, err := a.Badge(ctx)
	return err
}

// Badge recomputes, publishes and returns the badge.
func (a *Api) Badge(ctx context.Context) (notify.Badge, error) {
	tasks, err := a.store.Tasks(ctx)
	if err != nil {
		return notify.Badge{}, err
	}
	settings, err := a.store.Settings(ctx)
	if err != nil {
		return notify.Badge{}, err
	}
	return a.notifier.UpdateBadge(tasks, settings), nil
}

// Settings returns the stored settings.
func (a *Api) Settings(ctx context.Context) (task.Settings, error) {
	return a.store.Settings(ctx)
}

// SaveSettings stores s and refreshes the badge, whose title depends on
// the language.
func (a *Api) SaveSettings(ctx context.Context, s task.Settings) (task.Settings, error) {
	if err := a.store.SetSettings(ctx, s); err != nil {
		return task.Settings{}, err
	}
	return s, a.UpdateBadge(ctx)
}

// NotificationClicked opens the main panel for a task notification and
// dismisses it. It reports whether the id was a task notification.
func (a *Api) NotificationClicked(id string) bool {
	return a.notifier.Clicked(id)
}

// Notifications returns the notifications not yet dismissed.
func (a *Api) Notifications() []notify.Notification {
	return a.notifier.Open()
}
