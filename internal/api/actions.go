package api

// Action names. They are the JSON-RPC method names and the "action"
// field of native messages.
const (
	ActionCheckTask           = "checkTask"
	ActionSetupAlarm          = "setupAlarm"
	ActionSetupAllAlarm       = "setupAllAlarm"
	ActionRemoveAlarm         = "removeAlarm"
	ActionRemoveAllAlarm      = "removeAllAlarm"
	ActionTestRequest         = "testRequest"
	ActionTestHandler         = "testHandler"
	ActionUpdateBadge         = "updateBadge"
	ActionLanguageChanged     = "languageChanged"
	ActionListTasks           = "listTasks"
	ActionGetTask             = "getTask"
	ActionSaveTask            = "saveTask"
	ActionDeleteTask          = "deleteTask"
	ActionListAlarms          = "listAlarms"
	ActionGetSettings         = "getSettings"
	ActionSaveSettings        = "saveSettings"
	ActionNotificationClicked = "notificationClicked"
	ActionGetVersion          = "system.getVersion"
)

// Actions lists every action name.
func Actions() []string {
	return []string{
		ActionCheckTask, ActionSetupAlarm, ActionSetupAllAlarm, ActionRemoveAlarm,
		ActionRemoveAllAlarm, ActionTestRequest, ActionTestHandler, ActionUpdateBadge,
		ActionLanguageChanged, ActionListTasks, ActionGetTask, ActionSaveTask,
		ActionDeleteTask, ActionListAlarms, ActionGetSettings, ActionSaveSettings,
		ActionNotificationClicked, ActionGetVersion,
	}
}

// IsAction reports whether name is a known action.
func IsAction(name string) bool {
	for _, a := range Actions() {
		if a == name {
			return true
		}
	}
	return false
}
