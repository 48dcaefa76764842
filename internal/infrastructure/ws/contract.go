package ws

import (
	"encoding/json"
	"time"

	"github.com/ferelith/alarmroom/internal/domain"
)

// Envelope is one inbound client command: a type tag plus a command-specific
// payload, decoded lazily by the dispatcher.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type AlarmPayload struct {
	Title     string    `json:"title"`
	Time      time.Time `json:"time"`
	IsActive  bool      `json:"isActive"`
	CreatedBy string    `json:"createdBy"`
}

type AddAlarmPayload struct {
	RoomID string       `json:"roomId"`
	Alarm  AlarmPayload `json:"alarm"`
}

type AlarmRefPayload struct {
	RoomID  string `json:"roomId"`
	AlarmID string `json:"alarmId"`
}

// Event is one outbound message. The Type tag selects the Data variant:
// room-updated carries a room snapshot, alarm-notification a
// NotificationPayload, error a message string and room-full nothing.
type Event struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type NotificationPayload struct {
	AlarmID string    `json:"alarmId"`
	Title   string    `json:"title"`
	Time    time.Time `json:"time"`
	Kind    string    `json:"type"`
}

func NewRoomUpdated(snapshot domain.Room) *Event {
	return &Event{
		Type:   EventRoomUpdated,
		RoomID: snapshot.ID,
		Data:   snapshot,
	}
}

func NewAlarmNotification(roomID string, alarm domain.Alarm, kind string) *Event {
	return &Event{
		Type:   EventAlarmNotification,
		RoomID: roomID,
		Data: NotificationPayload{
			AlarmID: alarm.ID,
			Title:   alarm.Title,
			Time:    alarm.Time,
			Kind:    kind,
		},
	}
}

func NewRoomFull(roomID string) *Event {
	return &Event{
		Type:   EventRoomFull,
		RoomID: roomID,
	}
}

func NewError(roomID, msg string) *Event {
	return &Event{
		Type:   EventError,
		RoomID: roomID,
		Data:   msg,
	}
}
