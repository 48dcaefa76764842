package repository

import (
	"sync"

	"github.com/ferelith/alarmroom/internal/domain"
)

// roomRegistry is the in-memory room store. The mutex guards the map only;
// room contents are owned by the ws core loop. Rooms are created lazily on
// first reference and deleted the moment they become empty, so there is no
// idle eviction or capacity cap here.
type roomRegistry struct {
	rooms      map[string]*domain.Room // ID -> Room
	maxMembers int
	mu         sync.RWMutex
}

func NewRoomRegistry(maxMembers int) domain.RoomRegistry {
	if maxMembers <= 0 {
		maxMembers = domain.DefaultMaxMembers
	}

	return &roomRegistry{
		rooms:      make(map[string]*domain.Room),
		maxMembers: maxMembers,
	}
}

func (r *roomRegistry) GetOrCreate(id string) *domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[id]
	if !exists {
		room = domain.NewRoom(id, r.maxMembers)
		r.rooms[id] = room
	}

	return room
}

func (r *roomRegistry) Get(id string) (*domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[id]
	return room, exists
}

func (r *roomRegistry) RemoveIfEmpty(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[id]
	if !exists || !room.Empty() {
		return false
	}

	delete(r.rooms, id)
	return true
}

func (r *roomRegistry) ForEach(fn func(*domain.Room)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range r.rooms {
		fn(room)
	}
}

func (r *roomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
