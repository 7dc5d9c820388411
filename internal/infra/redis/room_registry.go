package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-rooms/internal/app"
	"trivia-rooms/internal/domain"
)

// RoomRegistry is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms themselves stay in a local map: the state machine, its timers and
//     its broadcast fan-out are in-process by design.
//   - Redis holds liveness markers so operators (and sibling instances) can
//     see which rooms exist; markers expire with ttl in case a process dies
//     without cleaning up.
type RoomRegistry struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomRegistry(client *redis.Client, ttl time.Duration) *RoomRegistry {
	return &RoomRegistry{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
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
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(roomID), "1", r.ttl).Err()
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
		_ = r.client.Del(context.Background(), r.key(roomID)).Err()
	}
}

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

func (r *RoomRegistry) key(roomID string) string {
	return "room:live:" + roomID
}
