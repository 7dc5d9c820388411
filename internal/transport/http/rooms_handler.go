package http

import (
	"encoding/json"
	"net/http"
	"time"

	"trivia-rooms/internal/app"
)

// NewRoomsHandler serves the read-only joinable-rooms projection.
func NewRoomsHandler(service *app.GameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(service.Joinable())
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Rooms     int    `json:"rooms"`
	Players   int    `json:"players"`
}

// NewHealthHandler serves the liveness probe with room/player counts.
func NewHealthHandler(service *app.GameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, players := service.Counts()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Rooms:     rooms,
			Players:   players,
		})
	}
}
