package domain

// RoomRegistry is the process-wide store of live rooms. Implementations only
// guard the map structure itself; room contents are mutated exclusively on
// the ws core loop.
type RoomRegistry interface {
	// GetOrCreate returns the room, creating an empty one on first reference.
	GetOrCreate(id string) *Room

	Get(id string) (*Room, bool)

	// RemoveIfEmpty deletes the room if it has no members and reports whether
	// a deletion happened.
	RemoveIfEmpty(id string) bool

	ForEach(fn func(*Room))

	Len() int
}
