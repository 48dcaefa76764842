package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ferelith/alarmroom/internal/application"
	"github.com/ferelith/alarmroom/internal/domain"
	"go.uber.org/zap"
)

type command struct {
	client *Client
	env    Envelope
}

type snapshotReq struct {
	roomID string
	reply  chan snapshotResp
}

type snapshotResp struct {
	room domain.Room
	ok   bool
}

// Core is the connection gateway and broadcaster. A single Run goroutine
// drains every channel, so commands, disconnects and scheduler sweeps are
// applied as discrete, non-interleaving steps — this is what keeps the room
// invariants without per-room locks.
type Core struct {
	rooms     *RoomManager
	processor *application.Processor
	logger    *zap.SugaredLogger

	register   chan *Client
	unregister chan *Client
	commands   chan command
	sweeps     chan time.Time
	snapshots  chan snapshotReq

	clients map[string]*Client // connected clients, owned by the Run loop

	shutdown chan struct{}
	once     sync.Once
}

func NewCore(processor *application.Processor, logger *zap.SugaredLogger) *Core {
	return &Core{
		rooms:      NewRoomManager(),
		processor:  processor,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan command, 256),
		sweeps:     make(chan time.Time, 1),
		snapshots:  make(chan snapshotReq),
		clients:    make(map[string]*Client),
		shutdown:   make(chan struct{}),
	}
}

func (c *Core) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Infow("ws core shutting down")
			c.Shutdown()
			return

		case <-c.shutdown:
			return

		case cl := <-c.register:
			c.clients[cl.ID] = cl

		case cl := <-c.unregister:
			c.handleDisconnect(cl)

		case cmd := <-c.commands:
			c.dispatch(cmd)

		case now := <-c.sweeps:
			c.handleSweep(now)

		case req := <-c.snapshots:
			room, ok := c.processor.Snapshot(req.roomID)
			req.reply <- snapshotResp{room: room, ok: ok}
		}
	}
}

func (c *Core) Shutdown() {
	c.once.Do(func() {
		close(c.shutdown)
		c.rooms.DisconnectAll()
		for _, cl := range c.clients {
			cl.Close()
		}
	})
}

func (c *Core) Register(cl *Client) {
	select {
	case c.register <- cl:
	case <-c.shutdown:
		cl.Close()
	}
}

// Unregister hands the connection to the loop for its implicit leave. Safe
// to call more than once; only the first reaches the bound client.
func (c *Core) Unregister(cl *Client) {
	select {
	case c.unregister <- cl:
	case <-c.shutdown:
	}
}

// Submit queues an inbound command. Returns false when the core is gone and
// the caller should drop the connection.
func (c *Core) Submit(cl *Client, env Envelope) bool {
	select {
	case c.commands <- command{client: cl, env: env}:
		return true
	case <-c.shutdown:
		return false
	}
}

// Sweep asks the loop to fire due alarms. Non-blocking: a pending sweep
// absorbs the next tick, which is fine since the pending one will observe a
// later clock anyway.
func (c *Core) Sweep(now time.Time) {
	select {
	case c.sweeps <- now:
	default:
	}
}

// Snapshot fetches a room copy through the loop so out-of-loop readers never
// observe a half-applied mutation.
func (c *Core) Snapshot(ctx context.Context, roomID string) (domain.Room, bool) {
	req := snapshotReq{roomID: roomID, reply: make(chan snapshotResp, 1)}

	select {
	case c.snapshots <- req:
	case <-ctx.Done():
		return domain.Room{}, false
	case <-c.shutdown:
		return domain.Room{}, false
	}

	select {
	case resp := <-req.reply:
		return resp.room, resp.ok
	case <-ctx.Done():
		return domain.Room{}, false
	}
}

func (c *Core) dispatch(cmd command) {
	switch cmd.env.Type {
	case CmdJoinRoom:
		c.handleJoin(cmd.client, cmd.env.Data)
	case CmdAddAlarm:
		c.handleAddAlarm(cmd.client, cmd.env.Data)
	case CmdRemoveAlarm:
		c.handleRemoveAlarm(cmd.client, cmd.env.Data)
	case CmdToggleAlarm:
		c.handleToggleAlarm(cmd.client, cmd.env.Data)
	default:
		c.logger.Debugw("unknown command", "type", cmd.env.Type, "client", cmd.client.ID)
	}
}

func (c *Core) handleJoin(cl *Client, raw json.RawMessage) {
	var p JoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		cl.send(NewError("", "malformed payload"))
		return
	}

	if cl.RoomID != "" {
		cl.send(NewError(p.RoomID, "already joined a room"))
		return
	}

	room, member, err := c.processor.Join(p.RoomID, cl.ID, p.UserName)
	switch {
	case errors.Is(err, domain.ErrRoomFull):
		cl.send(NewRoomFull(p.RoomID))
		return
	case errors.Is(err, domain.ErrInvalidInput):
		cl.send(NewError(p.RoomID, "invalid username"))
		return
	case err != nil:
		cl.send(NewError(p.RoomID, err.Error()))
		return
	}

	cl.RoomID = room.ID
	cl.Username = member.Name
	c.rooms.Add(cl)

	c.rooms.Broadcast(NewRoomUpdated(room.Snapshot()))
}

func (c *Core) handleAddAlarm(cl *Client, raw json.RawMessage) {
	var p AddAlarmPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		cl.send(NewError("", "malformed payload"))
		return
	}

	room, alarm, err := c.processor.AddAlarm(p.RoomID, application.AlarmInput{
		Title:     p.Alarm.Title,
		Time:      p.Alarm.Time,
		CreatedBy: p.Alarm.CreatedBy,
	})
	if err != nil {
		// Unknown room is a silent no-op.
		return
	}

	c.rooms.Broadcast(NewRoomUpdated(room.Snapshot()))
	c.rooms.Broadcast(NewAlarmNotification(room.ID, alarm, NotifyAdd))
}

func (c *Core) handleRemoveAlarm(cl *Client, raw json.RawMessage) {
	var p AlarmRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		cl.send(NewError("", "malformed payload"))
		return
	}

	room, alarm, err := c.processor.RemoveAlarm(p.RoomID, p.AlarmID, cl.Username)
	switch {
	case errors.Is(err, domain.ErrNotOwner):
		cl.send(NewError(p.RoomID, "only the alarm owner can remove it"))
		return
	case err != nil:
		// Unknown room or alarm is a silent no-op.
		return
	}

	c.rooms.Broadcast(NewRoomUpdated(room.Snapshot()))
	c.rooms.Broadcast(NewAlarmNotification(room.ID, alarm, NotifyRemove))
}

func (c *Core) handleToggleAlarm(cl *Client, raw json.RawMessage) {
	var p AlarmRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		cl.send(NewError("", "malformed payload"))
		return
	}

	room, _, err := c.processor.ToggleAlarm(p.RoomID, p.AlarmID)
	if err != nil {
		// Unknown room or alarm is a silent no-op.
		return
	}

	c.rooms.Broadcast(NewRoomUpdated(room.Snapshot()))
}

// handleDisconnect is the implicit leave. Guarded by the clients map so a
// connection that unregisters twice only leaves once.
func (c *Core) handleDisconnect(cl *Client) {
	if _, ok := c.clients[cl.ID]; !ok {
		return
	}
	delete(c.clients, cl.ID)

	if cl.RoomID != "" {
		c.rooms.Remove(cl)

		room, _, deleted, err := c.processor.Leave(cl.RoomID, cl.ID)
		if err == nil && !deleted {
			c.rooms.Broadcast(NewRoomUpdated(room.Snapshot()))
		}

		cl.RoomID = ""
		cl.Username = ""
	}

	cl.Close()
}

// handleSweep fires every due alarm: trigger notification first, then the
// updated snapshot, matching the per-alarm order clients expect.
func (c *Core) handleSweep(now time.Time) {
	for _, f := range c.processor.SweepDue(now) {
		c.rooms.Broadcast(NewAlarmNotification(f.RoomID, f.Alarm, NotifyTrigger))
		c.rooms.Broadcast(NewRoomUpdated(f.Snapshot))
	}
}
