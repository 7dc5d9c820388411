package domain

import "time"

// RoomState is the lifecycle phase of a game room.
type RoomState string

const (
	RoomWaiting RoomState = "waiting"
	RoomPlaying RoomState = "playing"
	RoomEnded   RoomState = "ended"
)

// Player is a roster entry for the duration of a membership.
type Player struct {
	ID       string
	Name     string
	JoinedAt time.Time
}

// Answer records one player's submission for the current question.
// Created once, never mutated, cleared when the next question starts.
type Answer struct {
	Choice      int
	Correct     bool
	SubmittedAt time.Time
}

// Question models an MCQ question with exactly one correct option.
// JSON field names match the wire protocol expected by clients.
type Question struct {
	ID            int      `json:"id"`
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	TimeLimit     int      `json:"timeLimit"` // seconds
}

// QuestionBank is an immutable ordered question sequence for one game.
type QuestionBank struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// RoomSummary is the joinable-list projection of a room.
type RoomSummary struct {
	ID          string `json:"id"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}

// RoomSnapshot is returned to the caller of create/join.
type RoomSnapshot struct {
	RoomID   string
	PlayerID string
	IsHost   bool
	Players  []PlayerInfo
}
