package ws

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ferelith/alarmroom/internal/application"
	"github.com/ferelith/alarmroom/internal/domain"
	"github.com/ferelith/alarmroom/internal/infrastructure/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCore(t *testing.T) (*Core, domain.RoomRegistry) {
	t.Helper()
	registry := repository.NewRoomRegistry(5)
	processor := application.NewProcessor(registry, zap.NewNop().Sugar())
	return NewCore(processor, zap.NewNop().Sugar()), registry
}

// newTestClient builds a client with no underlying connection; tests drive
// the core loop handlers directly and read events off the buffer.
func newTestClient(id string) *Client {
	return &Client{
		Message: make(chan *Event, 32),
		ID:      id,
		closed:  make(chan struct{}),
	}
}

func connect(c *Core, cl *Client) {
	c.clients[cl.ID] = cl
}

func envelope(t *testing.T, cmdType string, payload any) Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return Envelope{Type: cmdType, Data: raw}
}

func join(t *testing.T, c *Core, cl *Client, roomID, name string) {
	t.Helper()
	c.dispatch(command{client: cl, env: envelope(t, CmdJoinRoom, JoinRoomPayload{RoomID: roomID, UserName: name})})
}

func nextEvent(t *testing.T, cl *Client) *Event {
	t.Helper()
	select {
	case ev := <-cl.Message:
		return ev
	default:
		t.Fatalf("client %s: expected a queued event", cl.ID)
		return nil
	}
}

func requireNoEvent(t *testing.T, cl *Client, why ...string) {
	t.Helper()
	select {
	case ev := <-cl.Message:
		t.Fatalf("client %s: unexpected %s event %s", cl.ID, ev.Type, strings.Join(why, " "))
	default:
	}
}

func roomSnapshot(t *testing.T, ev *Event) domain.Room {
	t.Helper()
	require.Equal(t, EventRoomUpdated, ev.Type)
	snap, ok := ev.Data.(domain.Room)
	require.True(t, ok, "room-updated must carry a room snapshot")
	return snap
}

func TestJoinBroadcastsSnapshot(t *testing.T) {
	c, _ := newTestCore(t)

	alice := newTestClient("conn-a")
	bob := newTestClient("conn-b")
	connect(c, alice)
	connect(c, bob)

	join(t, c, alice, "room-1", "Alice")
	snap := roomSnapshot(t, nextEvent(t, alice))
	require.Len(t, snap.Members, 1)

	join(t, c, bob, "room-1", "Bob")

	// Both subscribers get the identical second snapshot.
	for _, cl := range []*Client{alice, bob} {
		snap := roomSnapshot(t, nextEvent(t, cl))
		require.Len(t, snap.Members, 2)
		assert.Equal(t, "Alice", snap.Members[0].Name)
		assert.Equal(t, "Bob", snap.Members[1].Name)
	}
}

func TestJoinRoomFullGoesToRequesterOnly(t *testing.T) {
	c, _ := newTestCore(t)

	members := make([]*Client, 5)
	for i := range members {
		members[i] = newTestClient(string(rune('a' + i)))
		connect(c, members[i])
		join(t, c, members[i], "room-1", "user-"+string(rune('a'+i)))
	}
	for _, cl := range members {
		for len(cl.Message) > 0 {
			<-cl.Message
		}
	}

	late := newTestClient("late")
	connect(c, late)
	join(t, c, late, "room-1", "Latecomer")

	ev := nextEvent(t, late)
	assert.Equal(t, EventRoomFull, ev.Type)
	requireNoEvent(t, late)

	for _, cl := range members {
		requireNoEvent(t, cl)
	}
}

func TestJoinDuplicateNameError(t *testing.T) {
	c, _ := newTestCore(t)

	alice := newTestClient("conn-a")
	impostor := newTestClient("conn-b")
	connect(c, alice)
	connect(c, impostor)

	join(t, c, alice, "room-1", "Alice")
	<-alice.Message

	join(t, c, impostor, "room-1", "Alice")
	ev := nextEvent(t, impostor)
	assert.Equal(t, EventError, ev.Type)
	requireNoEvent(t, alice)
}

func TestJoinWhileBoundRejected(t *testing.T) {
	c, _ := newTestCore(t)

	alice := newTestClient("conn-a")
	connect(c, alice)
	join(t, c, alice, "room-1", "Alice")
	<-alice.Message

	join(t, c, alice, "room-2", "Alice")
	ev := nextEvent(t, alice)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "room-1", alice.RoomID, "binding must not change")
}

func TestAddAlarmBroadcastsSnapshotAndNotification(t *testing.T) {
	c, _ := newTestCore(t)

	alice := newTestClient("conn-a")
	connect(c, alice)
	join(t, c, alice, "room-1", "Alice")
	<-alice.Message

	triggerAt := time.Now().Add(time.Hour).Truncate(time.Second)
	c.dispatch(command{client: alice, env: envelope(t, CmdAddAlarm, AddAlarmPayload{
		RoomID: "room-1",
		Alarm:  AlarmPayload{Title: "standup", Time: triggerAt, IsActive: true, CreatedBy: "Alice"},
	})})

	snap := roomSnapshot(t, nextEvent(t, alice))
	require.Len(t, snap.Alarms, 1)
	assert.True(t, snap.Alarms[0].IsActive)

	notif := nextEvent(t, alice)
	require.Equal(t, EventAlarmNotification, notif.Type)
	payload, ok := notif.Data.(NotificationPayload)
	require.True(t, ok)
	assert.Equal(t, NotifyAdd, payload.Kind)
	assert.Equal(t, snap.Alarms[0].ID, payload.AlarmID)
	assert.True(t, payload.Time.Equal(triggerAt))
}

func TestAddAlarmUnknownRoomIsSilent(t *testing.T) {
	c, _ := newTestCore(t)

	alice := newTestClient("conn-a")
	connect(c, alice)

	c.dispatch(command{client: alice, env: envelope(t, CmdAddAlarm, AddAlarmPayload{
		RoomID: "missing",
		Alarm:  AlarmPayload{Title: "standup"},
	})})

	requireNoEvent(t, alice)
}

func TestRemoveAlarmByNonOwner(t *testing.T) {
	c, _ := newTestCore(t)

	alice := newTestClient("conn-a")
	bob := newTestClient("conn-b")
	connect(c, alice)
	connect(c, bob)
	join(t, c, alice, "room-1", "Alice")
	join(t, c, bob, "room-1", "Bob")

	c.dispatch(command{client: alice, env: envelope(t, CmdAddAlarm, AddAlarmPayload{
		RoomID: "room-1",
		Alarm:  AlarmPayload{Title: "standup", CreatedBy: "Alice"},
	})})

	var alarmID string
	for len(alice.Message) > 0 {
		if snap, ok := (<-alice.Message).Data.(domain.Room); ok && len(snap.Alarms) > 0 {
			alarmID = snap.Alarms[0].ID
		}
	}
	for len(bob.Message) > 0 {
		<-bob.Message
	}
	require.NotEmpty(t, alarmID)

	c.dispatch(command{client: bob, env: envelope(t, CmdRemoveAlarm, AlarmRefPayload{RoomID: "room-1", AlarmID: alarmID})})

	ev := nextEvent(t, bob)
	assert.Equal(t, EventError, ev.Type)
	requireNoEvent(t, alice, "rejections go to the requester only")

	c.dispatch(command{client: alice, env: envelope(t, CmdRemoveAlarm, AlarmRefPayload{RoomID: "room-1", AlarmID: alarmID})})

	snap := roomSnapshot(t, nextEvent(t, alice))
	assert.Empty(t, snap.Alarms)
	notif := nextEvent(t, alice)
	require.Equal(t, EventAlarmNotification, notif.Type)
	assert.Equal(t, NotifyRemove, notif.Data.(NotificationPayload).Kind)
}

func TestToggleAlarmAlternates(t *testing.T) {
	c, _ := newTestCore(t)

	alice := newTestClient("conn-a")
	connect(c, alice)
	join(t, c, alice, "room-1", "Alice")

	c.dispatch(command{client: alice, env: envelope(t, CmdAddAlarm, AddAlarmPayload{
		RoomID: "room-1",
		Alarm:  AlarmPayload{Title: "standup", CreatedBy: "Alice"},
	})})

	var alarmID string
	for len(alice.Message) > 0 {
		if snap, ok := (<-alice.Message).Data.(domain.Room); ok && len(snap.Alarms) > 0 {
			alarmID = snap.Alarms[0].ID
		}
	}
	require.NotEmpty(t, alarmID)

	toggle := func() domain.Room {
		c.dispatch(command{client: alice, env: envelope(t, CmdToggleAlarm, AlarmRefPayload{RoomID: "room-1", AlarmID: alarmID})})
		return roomSnapshot(t, nextEvent(t, alice))
	}

	assert.False(t, toggle().Alarms[0].IsActive)
	assert.True(t, toggle().Alarms[0].IsActive, "two toggles restore the original state")

	// Unknown alarm: silent no-op.
	c.dispatch(command{client: alice, env: envelope(t, CmdToggleAlarm, AlarmRefPayload{RoomID: "room-1", AlarmID: "missing"})})
	requireNoEvent(t, alice)
}

func TestSweepFiresDueAlarmOnce(t *testing.T) {
	c, _ := newTestCore(t)

	alice := newTestClient("conn-a")
	connect(c, alice)
	join(t, c, alice, "room-1", "Alice")

	now := time.Now()
	c.dispatch(command{client: alice, env: envelope(t, CmdAddAlarm, AddAlarmPayload{
		RoomID: "room-1",
		Alarm:  AlarmPayload{Title: "past", Time: now.Add(-time.Minute), CreatedBy: "Alice"},
	})})
	for len(alice.Message) > 0 {
		<-alice.Message
	}

	c.handleSweep(now)

	notif := nextEvent(t, alice)
	require.Equal(t, EventAlarmNotification, notif.Type)
	assert.Equal(t, NotifyTrigger, notif.Data.(NotificationPayload).Kind)

	snap := roomSnapshot(t, nextEvent(t, alice))
	assert.False(t, snap.Alarms[0].IsActive)

	c.handleSweep(now.Add(time.Second))
	requireNoEvent(t, alice, "a fired alarm must not fire again")
}

func TestDisconnectIsImplicitLeave(t *testing.T) {
	c, registry := newTestCore(t)

	alice := newTestClient("conn-a")
	bob := newTestClient("conn-b")
	connect(c, alice)
	connect(c, bob)
	join(t, c, alice, "room-1", "Alice")
	join(t, c, bob, "room-1", "Bob")
	for len(alice.Message) > 0 {
		<-alice.Message
	}
	for len(bob.Message) > 0 {
		<-bob.Message
	}

	c.handleDisconnect(alice)

	snap := roomSnapshot(t, nextEvent(t, bob))
	require.Len(t, snap.Members, 1)
	assert.Equal(t, "Bob", snap.Members[0].Name)
	requireNoEvent(t, alice, "the leaver gets no snapshot")

	// Double unregister is applied exactly once.
	c.handleDisconnect(alice)
	requireNoEvent(t, bob)

	c.handleDisconnect(bob)
	assert.Equal(t, 0, registry.Len(), "the empty room is deleted")
}

func TestMalformedPayload(t *testing.T) {
	c, _ := newTestCore(t)

	alice := newTestClient("conn-a")
	connect(c, alice)

	c.dispatch(command{client: alice, env: Envelope{Type: CmdJoinRoom, Data: json.RawMessage(`{`)}})
	ev := nextEvent(t, alice)
	assert.Equal(t, EventError, ev.Type)
}

func TestSnapshotThroughLoop(t *testing.T) {
	c, _ := newTestCore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	alice := newTestClient("conn-a")
	c.Register(alice)
	require.True(t, c.Submit(alice, envelope(t, CmdJoinRoom, JoinRoomPayload{RoomID: "room-1", UserName: "Alice"})))

	require.Eventually(t, func() bool {
		_, ok := c.Snapshot(ctx, "room-1")
		return ok
	}, time.Second, 10*time.Millisecond)

	snap, ok := c.Snapshot(ctx, "room-1")
	require.True(t, ok)
	assert.Len(t, snap.Members, 1)

	_, ok = c.Snapshot(ctx, "missing")
	assert.False(t, ok)
}
