package domain

// Outbound wire events. Every event carries its discriminator in a flat
// "type" field alongside the payload, matching what the web client parses.

// PlayerInfo is the roster entry shape shared by several events.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ScoreEntry is one row of a score table.
type ScoreEntry struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

// PlayerAnswer is one player's submission as shown during the reveal.
type PlayerAnswer struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Answer     int    `json:"answer"`
	IsCorrect  bool   `json:"isCorrect"`
}

// QuestionView is a question as broadcast to players, with 1-based display
// numbering. The correct answer index rides along for the client's reveal
// animation, exactly as the original protocol shipped it.
type QuestionView struct {
	Question
	QuestionNumber int `json:"questionNumber"`
	TotalQuestions int `json:"totalQuestions"`
}

type RoomCreatedEvent struct {
	Type     string       `json:"type"` // "room_created"
	RoomID   string       `json:"roomId"`
	PlayerID string       `json:"playerId"`
	IsHost   bool         `json:"isHost"`
	Players  []PlayerInfo `json:"players"`
}

type RoomJoinedEvent struct {
	Type     string       `json:"type"` // "room_joined"
	RoomID   string       `json:"roomId"`
	PlayerID string       `json:"playerId"`
	IsHost   bool         `json:"isHost"`
	Players  []PlayerInfo `json:"players"`
}

type PlayerJoinedEvent struct {
	Type       string       `json:"type"` // "player_joined"
	PlayerID   string       `json:"playerId"`
	PlayerName string       `json:"playerName"`
	Players    []PlayerInfo `json:"players"`
}

type PlayerLeftEvent struct {
	Type     string       `json:"type"` // "player_left"
	PlayerID string       `json:"playerId"`
	Players  []PlayerInfo `json:"players"`
}

type ErrorEvent struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type GameStartedEvent struct {
	Type    string       `json:"type"` // "game_started"
	Players []PlayerInfo `json:"players"`
}

type NewQuestionEvent struct {
	Type      string       `json:"type"` // "new_question"
	Question  QuestionView `json:"question"`
	TimeLimit int          `json:"timeLimit"`
}

type TimerUpdateEvent struct {
	Type          string `json:"type"` // "timer_update"
	TimeRemaining int    `json:"timeRemaining"`
}

// AnswerReceivedEvent is unicast to the submitter only.
type AnswerReceivedEvent struct {
	Type      string `json:"type"` // "answer_received"
	IsCorrect bool   `json:"isCorrect"`
}

type AnswerRevealEvent struct {
	Type          string         `json:"type"` // "answer_reveal"
	CorrectAnswer int            `json:"correctAnswer"`
	PlayerAnswers []PlayerAnswer `json:"playerAnswers"`
	Scores        []ScoreEntry   `json:"scores"`
}

type GameEndedEvent struct {
	Type   string       `json:"type"` // "game_ended"
	Scores []ScoreEntry `json:"scores"`
}

const (
	EventRoomCreated    = "room_created"
	EventRoomJoined     = "room_joined"
	EventPlayerJoined   = "player_joined"
	EventPlayerLeft     = "player_left"
	EventError          = "error"
	EventGameStarted    = "game_started"
	EventNewQuestion    = "new_question"
	EventTimerUpdate    = "timer_update"
	EventAnswerReceived = "answer_received"
	EventAnswerReveal   = "answer_reveal"
	EventGameEnded      = "game_ended"
)
