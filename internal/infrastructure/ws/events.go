package ws

// Inbound command types.
const (
	CmdJoinRoom    = "join-room"
	CmdAddAlarm    = "add-alarm"
	CmdRemoveAlarm = "remove-alarm"
	CmdToggleAlarm = "toggle-alarm"
)

// Outbound event types.
const (
	EventRoomUpdated       = "room-updated"
	EventAlarmNotification = "alarm-notification"
	EventRoomFull          = "room-full"
	EventError             = "error"
)

// Alarm notification kinds.
const (
	NotifyAdd     = "add"
	NotifyRemove  = "remove"
	NotifyTrigger = "trigger"
)
