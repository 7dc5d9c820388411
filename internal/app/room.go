package app

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"trivia-rooms/internal/domain"
)

// Sender delivers an outbound event to a single player's connection.
// Delivery is best-effort; membership is decided by leave handling, not by
// delivery failures.
type Sender interface {
	Unicast(playerID string, event any)
}

// RoomConfig tunes per-room capacity and reveal pacing.
type RoomConfig struct {
	MaxPlayers  int
	AnswerGrace time.Duration // wait after the last answer before revealing
	SettleDelay time.Duration // wait after a reveal before the next question
}

// DefaultRoomConfig matches the pacing of the original game.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		MaxPlayers:  4,
		AnswerGrace: 500 * time.Millisecond,
		SettleDelay: 3 * time.Second,
	}
}

func (c RoomConfig) withDefaults() RoomConfig {
	def := DefaultRoomConfig()
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = def.MaxPlayers
	}
	if c.AnswerGrace <= 0 {
		c.AnswerGrace = def.AnswerGrace
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = def.SettleDelay
	}
	return c
}

// Room owns one game session: roster, scores, the current question's answers
// and the countdown. Every mutation happens under mu, so the race between
// "time expired" and "all players answered" is decided by whichever path
// reaches the reveal first; the revealed flag plus the question epoch make
// the loser a no-op.
type Room struct {
	id     string
	hostID string
	bank   domain.QuestionBank
	sender Sender
	clock  clockwork.Clock
	cfg    RoomConfig

	mu            sync.Mutex
	state         domain.RoomState
	order         []string // roster in join order
	players       map[string]*domain.Player
	scores        map[string]int
	answers       map[string]domain.Answer
	current       int
	timeRemaining int
	revealed      bool
	epoch         int           // bumped per question and on teardown
	cancel        chan struct{} // closed to abort pending timers/delays
}

// NewRoom constructs a Waiting room. The host still has to join.
func NewRoom(id, hostID string, bank domain.QuestionBank, sender Sender, clock clockwork.Clock, cfg RoomConfig) *Room {
	return &Room{
		id:      id,
		hostID:  hostID,
		bank:    bank,
		sender:  sender,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		state:   domain.RoomWaiting,
		players: make(map[string]*domain.Player),
		scores:  make(map[string]int),
		answers: make(map[string]domain.Answer),
		cancel:  make(chan struct{}),
	}
}

func (r *Room) ID() string { return r.id }

// IsEmpty reports whether the roster is empty.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) == 0
}

// PlayerCount returns the roster size.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Summary returns the joinable-list projection and whether the room is
// currently joinable (Waiting and below capacity).
func (r *Room) Summary() (domain.RoomSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary := domain.RoomSummary{
		ID:          r.id,
		PlayerCount: len(r.players),
		MaxPlayers:  r.cfg.MaxPlayers,
	}
	joinable := r.state == domain.RoomWaiting && len(r.players) < r.cfg.MaxPlayers
	return summary, joinable
}

// join appends a player to the roster. Re-joining with a known id refreshes
// nothing and succeeds, so a reconnect cannot be locked out of its own room.
func (r *Room) join(playerID, name string, announce bool) (domain.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		if len(r.players) >= r.cfg.MaxPlayers {
			return domain.RoomSnapshot{}, domain.ErrRoomFull
		}
		r.players[playerID] = &domain.Player{ID: playerID, Name: name, JoinedAt: r.clock.Now()}
		r.order = append(r.order, playerID)
		if _, ok := r.scores[playerID]; !ok {
			r.scores[playerID] = 0
		}
	}

	snap := domain.RoomSnapshot{
		RoomID:   r.id,
		PlayerID: playerID,
		IsHost:   r.hostID == playerID,
		Players:  r.rosterLocked(),
	}
	if announce {
		r.broadcastLocked(domain.PlayerJoinedEvent{
			Type:       domain.EventPlayerJoined,
			PlayerID:   playerID,
			PlayerName: name,
			Players:    snap.Players,
		})
	}
	return snap, nil
}

// leave removes a player and reports whether the room became empty. An empty
// room cancels all pending timers so nothing fires into a dead session. If
// the departure satisfies the all-answered condition for the current
// question, the round completes early instead of waiting out the clock.
func (r *Room) leave(playerID string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return len(r.players) == 0
	}
	delete(r.players, playerID)
	delete(r.scores, playerID)
	delete(r.answers, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if len(r.players) == 0 {
		r.cancelPendingLocked()
		r.epoch++
		return true
	}

	r.broadcastLocked(domain.PlayerLeftEvent{
		Type:     domain.EventPlayerLeft,
		PlayerID: playerID,
		Players:  r.rosterLocked(),
	})
	if r.state == domain.RoomPlaying && !r.revealed && len(r.answers) >= len(r.players) {
		r.completeEarlyLocked()
	}
	return false
}

// start begins the game. Host-only, Waiting-only, roster >= 1; the protocol
// stays silent toward the client on failure, the error is for logging.
func (r *Room) start(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if playerID != r.hostID {
		return domain.ErrNotHost
	}
	if r.state != domain.RoomWaiting || len(r.players) == 0 {
		return domain.ErrRoomNotWaiting
	}
	r.state = domain.RoomPlaying
	r.current = 0
	r.broadcastLocked(domain.GameStartedEvent{
		Type:    domain.EventGameStarted,
		Players: r.rosterLocked(),
	})
	r.startQuestionLocked()
	return nil
}

// submit records an answer for the current question and awards
// max(1, timeRemaining) on a correct first submission. The submission that
// fills the roster stops the countdown and schedules the grace reveal.
func (r *Room) submit(playerID string, choice int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != domain.RoomPlaying {
		return false, domain.ErrRoomNotPlaying
	}
	if _, ok := r.players[playerID]; !ok {
		return false, domain.ErrPlayerNotInRoom
	}
	if r.revealed {
		return false, domain.ErrStaleQuestion
	}
	if _, ok := r.answers[playerID]; ok {
		return false, domain.ErrAlreadyAnswered
	}

	question := r.bank.Questions[r.current]
	correct := choice == question.CorrectAnswer
	r.answers[playerID] = domain.Answer{
		Choice:      choice,
		Correct:     correct,
		SubmittedAt: r.clock.Now(),
	}
	if correct {
		points := r.timeRemaining
		if points < 1 {
			points = 1
		}
		r.scores[playerID] += points
	}

	r.sender.Unicast(playerID, domain.AnswerReceivedEvent{
		Type:      domain.EventAnswerReceived,
		IsCorrect: correct,
	})

	if len(r.answers) >= len(r.players) {
		r.completeEarlyLocked()
	}
	return correct, nil
}

// startQuestionLocked begins the question at r.current, or ends the game
// once the bank is exhausted. Any timers from the previous question are
// cancelled before the new countdown starts.
func (r *Room) startQuestionLocked() {
	r.cancelPendingLocked()
	if r.current >= len(r.bank.Questions) {
		r.endLocked()
		return
	}

	r.epoch++
	r.revealed = false
	r.answers = make(map[string]domain.Answer)
	question := r.bank.Questions[r.current]
	r.timeRemaining = question.TimeLimit

	r.broadcastLocked(domain.NewQuestionEvent{
		Type: domain.EventNewQuestion,
		Question: domain.QuestionView{
			Question:       question,
			QuestionNumber: r.current + 1,
			TotalQuestions: len(r.bank.Questions),
		},
		TimeLimit: question.TimeLimit,
	})
	go r.runCountdown(r.epoch, r.cancel)
}

// runCountdown ticks once per second until the question resolves or the
// cancel channel closes.
func (r *Room) runCountdown(epoch int, cancel <-chan struct{}) {
	for {
		timer := r.clock.NewTimer(time.Second)
		select {
		case <-timer.Chan():
			if !r.tick(epoch) {
				return
			}
		case <-cancel:
			stopTimer(timer)
			return
		}
	}
}

// tick decrements the countdown and reports whether it should keep running.
// A tick that raced a reveal or a question change is a no-op.
func (r *Room) tick(epoch int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch || r.revealed || r.state != domain.RoomPlaying {
		return false
	}
	r.timeRemaining--
	r.broadcastLocked(domain.TimerUpdateEvent{
		Type:          domain.EventTimerUpdate,
		TimeRemaining: r.timeRemaining,
	})
	if r.timeRemaining <= 0 {
		r.revealLocked()
		r.scheduleAdvanceLocked()
		return false
	}
	return true
}

// completeEarlyLocked handles the all-answered path: stop the countdown and
// reveal after a short grace window so a near-simultaneous last answer still
// lands. The cancel channel only reaches ticks still waiting on their timer;
// a tick whose timer already fired may be queued on mu, so the epoch bump is
// what voids it.
func (r *Room) completeEarlyLocked() {
	r.cancelPendingLocked()
	r.epoch++
	epoch, cancel := r.epoch, r.cancel
	go func() {
		select {
		case <-r.clock.After(r.cfg.AnswerGrace):
			r.graceReveal(epoch)
		case <-cancel:
		}
	}()
}

func (r *Room) graceReveal(epoch int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch || r.revealed || r.state != domain.RoomPlaying {
		return
	}
	r.revealLocked()
	r.scheduleAdvanceLocked()
}

// revealLocked broadcasts the answer reveal exactly once per question; both
// resolution paths check r.revealed under the lock before calling it.
func (r *Room) revealLocked() {
	r.revealed = true
	question := r.bank.Questions[r.current]

	answers := make([]domain.PlayerAnswer, 0, len(r.answers))
	for _, id := range r.order {
		answer, ok := r.answers[id]
		if !ok {
			continue
		}
		answers = append(answers, domain.PlayerAnswer{
			PlayerID:   id,
			PlayerName: r.players[id].Name,
			Answer:     answer.Choice,
			IsCorrect:  answer.Correct,
		})
	}

	r.broadcastLocked(domain.AnswerRevealEvent{
		Type:          domain.EventAnswerReveal,
		CorrectAnswer: question.CorrectAnswer,
		PlayerAnswers: answers,
		Scores:        r.scoresLocked(),
	})
}

// scheduleAdvanceLocked moves to the next question after the settle delay.
func (r *Room) scheduleAdvanceLocked() {
	epoch, cancel := r.epoch, r.cancel
	go func() {
		select {
		case <-r.clock.After(r.cfg.SettleDelay):
			r.advance(epoch)
		case <-cancel:
		}
	}()
}

func (r *Room) advance(epoch int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch || r.state != domain.RoomPlaying {
		return
	}
	r.current++
	r.startQuestionLocked()
}

func (r *Room) endLocked() {
	r.state = domain.RoomEnded
	r.broadcastLocked(domain.GameEndedEvent{
		Type:   domain.EventGameEnded,
		Scores: r.finalScoresLocked(),
	})
}

// cancelPendingLocked aborts every scheduled timer and delay for the room by
// closing the current cancel channel and installing a fresh one.
func (r *Room) cancelPendingLocked() {
	close(r.cancel)
	r.cancel = make(chan struct{})
}

func (r *Room) broadcastLocked(event any) {
	for _, id := range r.order {
		r.sender.Unicast(id, event)
	}
}

func (r *Room) rosterLocked() []domain.PlayerInfo {
	roster := make([]domain.PlayerInfo, 0, len(r.order))
	for _, id := range r.order {
		roster = append(roster, domain.PlayerInfo{ID: id, Name: r.players[id].Name})
	}
	return roster
}

// scoresLocked returns the score table in roster order.
func (r *Room) scoresLocked() []domain.ScoreEntry {
	entries := make([]domain.ScoreEntry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, domain.ScoreEntry{
			PlayerID:   id,
			PlayerName: r.players[id].Name,
			Score:      r.scores[id],
		})
	}
	return entries
}

// finalScoresLocked returns scores sorted descending, roster order on ties.
func (r *Room) finalScoresLocked() []domain.ScoreEntry {
	entries := r.scoresLocked()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

func stopTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
