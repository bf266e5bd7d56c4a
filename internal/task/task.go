// Package task defines the monitored-page model shared by every pagewatch
// component: the Task itself, its request snapshot, its schedule, and the
// value the response handler produced on the last check.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Unit is the unit of a task's check frequency.
type Unit string

const (
	UnitMinute Unit = "minute"
	UnitHour   Unit = "hour"
)

// DataType selects how a fetched response body is decoded before it is
// handed to the response handler.
type DataType string

const (
	DataTypeJSON DataType = "json"
	DataTypeText DataType = "text"
	DataTypeBlob DataType = "blob"
)

const (
	// DefaultTimeout is used when a RequestConfig carries no timeout.
	DefaultTimeout = 7000
	// DefaultMethod is used when a RequestConfig carries no method.
	DefaultMethod = "GET"

	alarmPrefix        = "task_"
	notificationSuffix = "_notification"
)

var (
	ErrMissingID       = errors.New("task id is required")
	ErrInvalidInterval = errors.New("frequency value must be greater than zero")
	ErrInvalidUnit     = errors.New("frequency unit must be minute or hour")
	ErrMissingURL      = errors.New("request url is required")
	ErrMissingHandler  = errors.New("response handler is required")
)

// Frequency is how often a task is checked.
type Frequency struct {
	Value int  `json:"value"`
	Unit  Unit `json:"unit"`
}

// Minutes returns the frequency as a whole number of minutes.
func (f Frequency) Minutes() int {
	if f.Unit == UnitHour {
		return f.Value * 60
	}
	return f.Value
}

// Interval returns the frequency as a duration.
func (f Frequency) Interval() time.Duration {
	return time.Duration(f.Minutes()) * time.Minute
}

// Value is what a response handler returned on the last check.
type Value struct {
	Content any  `json:"content"`
	Extra   any  `json:"extra,omitempty"`
	Notify  bool `json:"notify,omitempty"`
}

// Task is a user-configured monitor: a URL, a schedule and the
// handler code that extracts a value from the response.
type Task struct {
	// ID is unique within the task collection.
	ID      string `json:"id"`
	Title   string `json:"title"`
	PageURL string `json:"pageUrl"`
	IconURL string `json:"iconUrl,omitempty"`
	// Frequency is the period of the task's alarm.
	Frequency Frequency `json:"frequency"`
	// PopupNotification enables notifications when the handler flags a change.
	PopupNotification bool `json:"popupNotification"`
	// Enabled tasks are scheduled; disabled ones are skipped everywhere.
	// A stored task without the field is enabled.
	Enabled     bool          `json:"enabled"`
	RequestBody RequestConfig `json:"requestBody"`
	// ResponseHandler is the JavaScript source run against each response.
	ResponseHandler string `json:"responseHandler"`
	// CurrentValue is nil until the first successful check.
	CurrentValue *Value `json:"currentValue"`
	// HasChanges is set when the last check raised a notification.
	HasChanges bool `json:"hasChanges"`
	// LastChecked is nil until the first successful check.
	LastChecked *time.Time `json:"lastChecked"`
}

// UnmarshalJSON decodes a task, defaulting Enabled to true so that only an
// explicit false disables it.
func (t *Task) UnmarshalJSON(b []byte) error {
	type plain Task
	p := plain{Enabled: true}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = Task(p)
	return nil
}

// Validate checks the invariants a stored task must hold.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	if t.Frequency.Value <= 0 {
		return ErrInvalidInterval
	}
	switch t.Frequency.Unit {
	case UnitMinute, UnitHour:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidUnit, t.Frequency.Unit)
	}
	if strings.TrimSpace(t.RequestBody.URL) == "" {
		return ErrMissingURL
	}
	if strings.TrimSpace(t.ResponseHandler) == "" {
		return ErrMissingHandler
	}
	return nil
}

// Overdue reports whether the task should be checked now: it has never been
// checked, or its last check is at least one interval old.
func (t *Task) Overdue(now time.Time) bool {
	if t.LastChecked == nil {
		return true
	}
	return !now.Before(t.LastChecked.Add(t.Frequency.Interval()))
}

// PrevContent returns the content of the last check, or nil.
func (t *Task) PrevContent() any {
	if t == nil || t.CurrentValue == nil {
		return nil
	}
	return t.CurrentValue.Content
}

// PrevExtra returns the extra data of the last check, or nil.
func (t *Task) PrevExtra() any {
	if t == nil || t.CurrentValue == nil {
		return nil
	}
	return t.CurrentValue.Extra
}

// Settings holds user preferences persisted next to the task list.
type Settings struct {
	Language string `json:"language,omitempty"`
}

// Index returns the position of the task with the given id, or -1.
func Index(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// AlarmName is the name of the periodic alarm that checks the task.
func AlarmName(id string) string {
	return alarmPrefix + id
}

// IDFromAlarm extracts the task id from an alarm name.
func IDFromAlarm(name string) (string, bool) {
	if !strings.HasPrefix(name, alarmPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, alarmPrefix)
	return id, id != ""
}

// NotificationID is the id of the change notification raised for a task.
func NotificationID(id string) string {
	return alarmPrefix + id + notificationSuffix
}

// IDFromNotification extracts the task id from a notification id.
func IDFromNotification(nid string) (string, bool) {
	if !strings.HasPrefix(nid, alarmPrefix) || !strings.HasSuffix(nid, notificationSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(nid, alarmPrefix), notificationSuffix)
	return id, id != ""
}
