package room

import (
	"sync"
	"sync/atomic"
)

// Registry keeps track of the active rooms by their code.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	// Room IDs are minted only when a room is actually created. Peer IDs
	// come from a single counter shared by all rooms.
	nextRoomID atomic.Uint32
	nextPeerID atomic.Uint32
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetRoom returns the room registered under the given code, creating it
// first if needed.
func (r *Registry) GetRoom(code string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[code]; ok {
		return room
	}

	room := newRoom(r.nextRoomID.Add(1), code, &r.nextPeerID)
	r.rooms[code] = room
	room.logger.Info("room created")

	return room
}

// RemoveRoom drops the room registered under the given code. A lookup that
// races with the removal may still hand out the stale room; joins on it
// keep working, the room just isn't findable anymore.
func (r *Registry) RemoveRoom(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return
	}

	delete(r.rooms, code)
	room.telemetry.End()
	room.logger.Info("removed empty room")
}

// Rooms returns the number of active rooms.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Peers returns the total number of peers across all active rooms.
func (r *Registry) Peers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, room := range r.rooms {
		total += room.PeerCount()
	}

	return total
}

// Created returns the number of rooms created since startup.
func (r *Registry) Created() uint32 {
	return r.nextRoomID.Load()
}
