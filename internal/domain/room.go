package domain

import (
	"errors"
	"time"
	"unicode/utf8"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrDuplicateName  = errors.New("username already taken")
	ErrNotOwner       = errors.New("only the alarm owner can remove it")
	ErrAlarmNotFound  = errors.New("alarm not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrInvalidInput   = errors.New("invalid input")
)

const (
	DefaultMaxMembers = 5
	MaxMemberNameLen  = 20
)

type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Alarm struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Time      time.Time `json:"time"`
	IsActive  bool      `json:"isActive"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Due reports whether the alarm should fire at the given instant.
func (a Alarm) Due(now time.Time) bool {
	return a.IsActive && !a.Time.After(now)
}

// Room is a capacity-bounded session of members sharing a list of alarms.
// Rooms are not safe for concurrent mutation; all writes are serialized on
// the ws core loop.
type Room struct {
	ID         string    `json:"id"`
	Members    []Member  `json:"users"`
	Alarms     []Alarm   `json:"alarms"`
	MaxMembers int       `json:"maxUsers"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewRoom(id string, maxMembers int) *Room {
	if maxMembers <= 0 {
		maxMembers = DefaultMaxMembers
	}

	return &Room{
		ID:         id,
		Members:    make([]Member, 0, maxMembers),
		Alarms:     []Alarm{},
		MaxMembers: maxMembers,
		CreatedAt:  time.Now(),
	}
}

func ValidateMemberName(name string) error {
	if name == "" {
		return ErrInvalidInput
	}
	if utf8.RuneCountInString(name) > MaxMemberNameLen {
		return ErrInvalidInput
	}
	return nil
}

func (r *Room) Empty() bool {
	return len(r.Members) == 0
}

func (r *Room) FindMemberByName(name string) *Member {
	for i := range r.Members {
		if r.Members[i].Name == name {
			return &r.Members[i]
		}
	}
	return nil
}

// AddMember appends a member, enforcing the capacity and unique-name
// invariants. The room is untouched on error.
func (r *Room) AddMember(m Member) error {
	if len(r.Members) >= r.MaxMembers {
		return ErrRoomFull
	}
	if r.FindMemberByName(m.Name) != nil {
		return ErrDuplicateName
	}

	r.Members = append(r.Members, m)
	return nil
}

func (r *Room) RemoveMember(memberID string) (Member, error) {
	for i, m := range r.Members {
		if m.ID == memberID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return m, nil
		}
	}
	return Member{}, ErrMemberNotFound
}

func (r *Room) findAlarm(alarmID string) int {
	for i := range r.Alarms {
		if r.Alarms[i].ID == alarmID {
			return i
		}
	}
	return -1
}

// AddAlarm appends an alarm. Alarm IDs are assigned by the caller and must
// be unique within the room.
func (r *Room) AddAlarm(a Alarm) error {
	if r.findAlarm(a.ID) != -1 {
		return ErrInvalidInput
	}

	r.Alarms = append(r.Alarms, a)
	return nil
}

// RemoveAlarm deletes the alarm if the requester created it.
func (r *Room) RemoveAlarm(alarmID, requester string) (Alarm, error) {
	i := r.findAlarm(alarmID)
	if i == -1 {
		return Alarm{}, ErrAlarmNotFound
	}

	alarm := r.Alarms[i]
	if alarm.CreatedBy != requester {
		return Alarm{}, ErrNotOwner
	}

	r.Alarms = append(r.Alarms[:i], r.Alarms[i+1:]...)
	return alarm, nil
}

// ToggleAlarm flips the active flag. Any member may toggle any alarm.
func (r *Room) ToggleAlarm(alarmID string) (Alarm, error) {
	i := r.findAlarm(alarmID)
	if i == -1 {
		return Alarm{}, ErrAlarmNotFound
	}

	r.Alarms[i].IsActive = !r.Alarms[i].IsActive
	return r.Alarms[i], nil
}

// DeactivateAlarm clears the active flag, used when an alarm fires.
func (r *Room) DeactivateAlarm(alarmID string) (Alarm, error) {
	i := r.findAlarm(alarmID)
	if i == -1 {
		return Alarm{}, ErrAlarmNotFound
	}

	r.Alarms[i].IsActive = false
	return r.Alarms[i], nil
}

// Snapshot returns a value copy with its own member and alarm slices, safe
// to hand to writer goroutines while the original keeps mutating.
func (r *Room) Snapshot() Room {
	snap := *r
	snap.Members = append([]Member(nil), r.Members...)
	snap.Alarms = append([]Alarm(nil), r.Alarms...)
	return snap
}
