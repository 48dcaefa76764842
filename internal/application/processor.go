package application

import (
	"time"

	"github.com/ferelith/alarmroom/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Processor applies one inbound command against one room, validating before
// mutating so a rejected command never leaves a partial change behind. It is
// not safe for concurrent use; the ws core loop is its single caller.
type Processor struct {
	registry domain.RoomRegistry
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewProcessor(registry domain.RoomRegistry, logger *zap.SugaredLogger) *Processor {
	return &Processor{
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

type AlarmInput struct {
	Title     string
	Time      time.Time
	CreatedBy string
}

// Firing is one due alarm detected by a sweep, with the room snapshot taken
// right after the alarm was deactivated.
type Firing struct {
	RoomID   string
	Alarm    domain.Alarm
	Snapshot domain.Room
}

// Join adds a member to the room, creating the room on first reference.
// Returns ErrRoomFull when at capacity and ErrDuplicateName when the name is
// already present; in both cases the room (and the lazily created entry, if
// any) is cleaned up via RemoveIfEmpty.
func (p *Processor) Join(roomID, memberID, userName string) (*domain.Room, domain.Member, error) {
	if roomID == "" || memberID == "" {
		return nil, domain.Member{}, domain.ErrInvalidInput
	}
	if err := domain.ValidateMemberName(userName); err != nil {
		return nil, domain.Member{}, err
	}

	room := p.registry.GetOrCreate(roomID)

	member := domain.Member{
		ID:       memberID,
		Name:     userName,
		JoinedAt: p.now(),
	}

	if err := room.AddMember(member); err != nil {
		p.registry.RemoveIfEmpty(roomID)
		return nil, domain.Member{}, err
	}

	p.logger.Infow("member joined",
		"room", roomID,
		"member", userName,
		"members", len(room.Members),
	)

	return room, member, nil
}

// AddAlarm appends a new alarm to the room. The alarm always starts active;
// a fresh ID and creation time are assigned here.
func (p *Processor) AddAlarm(roomID string, in AlarmInput) (*domain.Room, domain.Alarm, error) {
	room, ok := p.registry.Get(roomID)
	if !ok {
		return nil, domain.Alarm{}, domain.ErrRoomNotFound
	}

	alarm := domain.Alarm{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Time:      in.Time,
		IsActive:  true,
		CreatedBy: in.CreatedBy,
		CreatedAt: p.now(),
	}

	if err := room.AddAlarm(alarm); err != nil {
		return nil, domain.Alarm{}, err
	}

	p.logger.Infow("alarm added",
		"room", roomID,
		"alarm", alarm.ID,
		"triggerAt", alarm.Time,
	)

	return room, alarm, nil
}

// RemoveAlarm deletes the alarm if the requester owns it.
func (p *Processor) RemoveAlarm(roomID, alarmID, requester string) (*domain.Room, domain.Alarm, error) {
	room, ok := p.registry.Get(roomID)
	if !ok {
		return nil, domain.Alarm{}, domain.ErrRoomNotFound
	}

	alarm, err := room.RemoveAlarm(alarmID, requester)
	if err != nil {
		return nil, domain.Alarm{}, err
	}

	p.logger.Infow("alarm removed", "room", roomID, "alarm", alarmID)

	return room, alarm, nil
}

// ToggleAlarm flips the alarm's active flag; any member may toggle.
func (p *Processor) ToggleAlarm(roomID, alarmID string) (*domain.Room, domain.Alarm, error) {
	room, ok := p.registry.Get(roomID)
	if !ok {
		return nil, domain.Alarm{}, domain.ErrRoomNotFound
	}

	alarm, err := room.ToggleAlarm(alarmID)
	if err != nil {
		return nil, domain.Alarm{}, err
	}

	return room, alarm, nil
}

// Leave removes the member and deletes the room when it becomes empty. The
// returned bool reports whether the room was deleted.
func (p *Processor) Leave(roomID, memberID string) (*domain.Room, domain.Member, bool, error) {
	room, ok := p.registry.Get(roomID)
	if !ok {
		return nil, domain.Member{}, false, domain.ErrRoomNotFound
	}

	member, err := room.RemoveMember(memberID)
	if err != nil {
		return nil, domain.Member{}, false, err
	}

	deleted := p.registry.RemoveIfEmpty(roomID)

	p.logger.Infow("member left",
		"room", roomID,
		"member", member.Name,
		"roomDeleted", deleted,
	)

	return room, member, deleted, nil
}

// Snapshot returns a value copy of the room for out-of-loop readers.
func (p *Processor) Snapshot(roomID string) (domain.Room, bool) {
	room, ok := p.registry.Get(roomID)
	if !ok {
		return domain.Room{}, false
	}
	return room.Snapshot(), true
}

// SweepDue collects every active alarm whose trigger time has passed,
// deactivating each one as it is collected so a later sweep cannot re-fire
// it. Alarms within a room fire in list order; room order is unspecified.
func (p *Processor) SweepDue(now time.Time) []Firing {
	var firings []Firing

	p.registry.ForEach(func(room *domain.Room) {
		for i := range room.Alarms {
			if !room.Alarms[i].Due(now) {
				continue
			}

			alarm, err := room.DeactivateAlarm(room.Alarms[i].ID)
			if err != nil {
				continue
			}

			firings = append(firings, Firing{
				RoomID:   room.ID,
				Alarm:    alarm,
				Snapshot: room.Snapshot(),
			})

			p.logger.Infow("alarm fired",
				"room", room.ID,
				"alarm", alarm.ID,
				"triggerAt", alarm.Time,
			)
		}
	})

	return firings
}
