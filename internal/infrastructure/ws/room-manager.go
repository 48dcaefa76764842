package ws

import (
	"sync"
)

// RoomManager tracks which clients are subscribed to which room and fans
// events out to them. Membership changes happen on the core loop; the mutex
// exists for DisconnectAll, which may run from a shutdown path.
type RoomManager struct {
	rooms map[string]map[string]*Client // roomID -> clientID -> Client
	mu    sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[string]*Client),
	}
}

func (rm *RoomManager) Add(cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	subs, ok := rm.rooms[cl.RoomID]
	if !ok {
		subs = make(map[string]*Client)
		rm.rooms[cl.RoomID] = subs
	}
	subs[cl.ID] = cl
}

func (rm *RoomManager) Remove(cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if subs, ok := rm.rooms[cl.RoomID]; ok {
		delete(subs, cl.ID)
		if len(subs) == 0 {
			delete(rm.rooms, cl.RoomID)
		}
	}
}

// Broadcast queues the event for every subscriber of its room. Events are
// queued in call order per subscriber, so delivery order matches the order
// mutations were applied on the core loop.
func (rm *RoomManager) Broadcast(ev *Event) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for _, cl := range rm.rooms[ev.RoomID] {
		cl.send(ev)
	}
}

func (rm *RoomManager) DisconnectAll() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, subs := range rm.rooms {
		for _, cl := range subs {
			cl.Close()
		}
	}
	rm.rooms = make(map[string]map[string]*Client)
}
