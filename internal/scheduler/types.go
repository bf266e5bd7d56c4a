package scheduler

import "time"

// Alarm is a named periodic timer.
type Alarm struct {
	// Name identifies the alarm; task alarms are named task_<id>.
	Name string `json:"name"`
	// PeriodInMinutes mirrors Period for clients.
	PeriodInMinutes float64 `json:"periodInMinutes"`
	// ScheduledTime is the next fire time.
	ScheduledTime time.Time `json:"scheduledTime"`

	Period time.Duration `json:"-"`
}
