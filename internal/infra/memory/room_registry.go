package memory

import (
	"sync"

	"trivia-rooms/internal/app"
	"trivia-rooms/internal/domain"
)

// RoomRegistry is an in-memory implementation of app.RoomRepository. The
// registry lock only guards the table; each room serializes its own state,
// so operations on different rooms never block each other.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*app.Room),
	}
}

func (r *RoomRegistry) GetOrCreate(roomID string, create func(id string) *app.Room) (*app.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		return room, false
	}
	room := create(roomID)
	r.rooms[roomID] = room
	return room, true
}

func (r *RoomRegistry) Get(roomID string) (*app.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

func (r *RoomRegistry) DeleteIfEmpty(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	if room.IsEmpty() {
		delete(r.rooms, roomID)
	}
}

// Joinable snapshots rooms that are Waiting and below capacity.
func (r *RoomRegistry) Joinable() []domain.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summaries := make([]domain.RoomSummary, 0, len(r.rooms))
	for _, room := range r.rooms {
		if summary, ok := room.Summary(); ok {
			summaries = append(summaries, summary)
		}
	}
	return summaries
}

func (r *RoomRegistry) Counts() (rooms, players int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		rooms++
		players += room.PlayerCount()
	}
	return rooms, players
}
