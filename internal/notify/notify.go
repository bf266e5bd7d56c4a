// Package notify publishes change notifications and the badge state to
// connected extension clients.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pagewatch/pagewatch/internal/metrics"
	"github.com/pagewatch/pagewatch/internal/task"
	"github.com/pagewatch/pagewatch/pkg/logger"
)

// Push methods sent to clients.
const (
	MethodShow  = "notification.show"
	MethodClear = "notification.clear"
	MethodBadge = "badge.update"
	MethodPanel = "panel.open"
)

const (
	defaultIcon  = "icon/icon.png"
	badgeColor   = "#FF0000"
	defaultTitle = "Web data monitoring assistant"
)

// Publisher delivers a push message to every connected client.
type Publisher interface {
	Publish(method string, params any)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(method string, params any)

func (f PublisherFunc) Publish(method string, params any) { f(method, params) }

// Notification is the payload of notification.show.
type Notification struct {
	ID       string `json:"id"`
	TaskID   string `json:"taskId"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	IconURL  string `json:"iconUrl"`
	Priority int    `json:"priority"`
}

// Badge is the payload of badge.update.
type Badge struct {
	Count int    `json:"count"`
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
	Title string `json:"title"`
}

// Notifier tracks open notifications and the last badge sent.
type Notifier struct {
	pub Publisher
	log logger.Logger

	mu    sync.Mutex
	open  map[string]Notification
	badge Badge
}

// New creates a Notifier. A nil publisher drops every message.
func New(pub Publisher, l logger.Logger) *Notifier {
	if pub == nil {
		pub = PublisherFunc(func(string, any) {})
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Notifier{pub: pub, log: l, open: map[string]Notification{}}
}

// TaskChanged raises the change notification for t.
func (n *Notifier) TaskChanged(t task.Task) Notification {
	icon := t.IconURL
	if icon == "" {
		icon = defaultIcon
	}
	note := Notification{
		ID:       task.NotificationID(t.ID),
		TaskID:   t.ID,
		Title:    "Data change alert",
		Message:  fmt.Sprintf("Task %q detected a data change", t.Title),
		IconURL:  icon,
		Priority: 2,
	}
	n.mu.Lock()
	n.open[note.ID] = note
	n.mu.Unlock()
	n.log.Info("notify: %s", note.Message)
	n.pub.Publish(MethodShow, note)
	return note
}

// Clear dismisses a notification.
func (n *Notifier) Clear(id string) {
	n.mu.Lock()
	delete(n.open, id)
	n.mu.Unlock()
	n.pub.Publish(MethodClear, map[string]string{"id": id})
}

// Clicked handles a click on a notification: task notifications open
// the main panel and are dismissed. It reports whether the id belonged
// to a task.
func (n *Notifier) Clicked(id string) bool {
	taskID, ok := task.IDFromNotification(id)
	if !ok {
		return false
	}
	n.pub.Publish(MethodPanel, map[string]string{"taskId": taskID})
	n.Clear(id)
	return true
}

// Open returns the notifications not yet cleared.
func (n *Notifier) Open() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, 0, len(n.open))
	for _, note := range n.open {
		out = append(out, note)
	}
	return out
}

// UpdateBadge recomputes the badge from the task list and publishes it.
func (n *Notifier) UpdateBadge(tasks []task.Task, settings task.Settings) Badge {
	b := BadgeFor(tasks, settings)
	n.mu.Lock()
	n.badge = b
	n.mu.Unlock()
	metrics.ChangedTasks.Set(float64(b.Count))
	n.pub.Publish(MethodBadge, b)
	return b
}

// Badge returns the last badge published.
func (n *Notifier) Badge() Badge {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.badge
}

// BadgeFor counts enabled tasks with unread changes. The count is shown
// only when non-zero; the title follows the configured language.
func BadgeFor(tasks []task.Task, settings task.Settings) Badge {
	count := 0
	for _, t := range tasks {
		if t.HasChanges && t.Enabled {
			count++
		}
	}
	b := Badge{Count: count, Title: Title(settings.Language)}
	if count > 0 {
		b.Text = strconv.Itoa(count)
		b.Color = badgeColor
	}
	return b
}

// Title returns the extension title for a language code.
func Title(lang string) string {
	switch strings.ReplaceAll(lang, "-", "_") {
	case "zh_CN":
		return "网页数据监控助手"
	case "zh_TW":
		return "網頁數據監控助手"
	default:
		return defaultTitle
	}
}
