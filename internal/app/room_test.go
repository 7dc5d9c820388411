package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"trivia-rooms/internal/app"
	"trivia-rooms/internal/domain"
	"trivia-rooms/internal/infra/memory"
)

// recorder captures every unicast so tests can assert on the event stream.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	playerID string
	typ      string
	raw      []byte
}

func newRecorder() *recorder {
	return &recorder{}
}

func (r *recorder) Unicast(playerID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	var env struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(data, &env)

	r.mu.Lock()
	r.events = append(r.events, recordedEvent{playerID: playerID, typ: env.Type, raw: data})
	r.mu.Unlock()
}

func (r *recorder) count(playerID, typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.playerID == playerID && e.typ == typ {
			n++
		}
	}
	return n
}

func (r *recorder) last(playerID, typ string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].playerID == playerID && r.events[i].typ == typ {
			return r.events[i].raw, true
		}
	}
	return nil, false
}

func decodeLast[T any](t *testing.T, rec *recorder, playerID, typ string) T {
	t.Helper()
	raw, ok := rec.last(playerID, typ)
	if !ok {
		t.Fatalf("no %s event recorded for %s", typ, playerID)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", typ, err)
	}
	return v
}

func newTestService(clk clockwork.Clock, rec *recorder, bank domain.QuestionBank, cfg app.RoomConfig) *app.GameService {
	loader := memory.NewStaticBankLoader(map[string]domain.QuestionBank{bank.ID: bank})
	repo := memory.NewQuestionRepository(loader, 5*time.Minute)
	return app.NewGameService(memory.NewRoomRegistry(), repo, rec, clk, bank.ID, cfg)
}

// advanceUntil steps the fake clock in small increments until cond holds. The
// room's goroutines only wait on the fake clock, so stepping cannot overshoot
// a whole countdown second between checks.
func advanceUntil(t *testing.T, clk *clockwork.FakeClock, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for condition")
		}
		clk.Advance(50 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
}

func singleQuestionBank(timeLimit int) domain.QuestionBank {
	return domain.QuestionBank{
		ID: "default",
		Questions: []domain.Question{
			{
				ID:            1,
				Prompt:        "Pick the third option",
				Options:       []string{"a", "b", "c", "d"},
				CorrectAnswer: 2,
				TimeLimit:     timeLimit,
			},
		},
	}
}

func TestScoringRace(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	rec := newRecorder()
	svc := newTestService(clk, rec, singleQuestionBank(10), app.DefaultRoomConfig())

	snap, err := svc.CreateRoom(ctx, "player-a", "Alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	roomID := snap.RoomID
	if _, err := svc.JoinRoom(ctx, roomID, "player-b", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	svc.StartGame(roomID, "player-a")
	if rec.count("player-b", "game_started") != 1 {
		t.Fatalf("expected game_started broadcast")
	}

	// Let the countdown reach timeRemaining=7, then Alice answers correctly.
	advanceUntil(t, clk, func() bool { return rec.count("player-a", "timer_update") >= 3 })
	if err := svc.SubmitAnswer(roomID, "player-a", 2); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	ack := decodeLast[domain.AnswerReceivedEvent](t, rec, "player-a", "answer_received")
	if !ack.IsCorrect {
		t.Fatalf("expected correct ack for Alice")
	}

	// Countdown continues to timeRemaining=3, then Bob answers wrong. That
	// fills the roster, so the round completes without waiting out the clock.
	advanceUntil(t, clk, func() bool { return rec.count("player-a", "timer_update") >= 7 })
	if err := svc.SubmitAnswer(roomID, "player-b", 0); err != nil {
		t.Fatalf("submit b: %v", err)
	}
	ack = decodeLast[domain.AnswerReceivedEvent](t, rec, "player-b", "answer_received")
	if ack.IsCorrect {
		t.Fatalf("expected incorrect ack for Bob")
	}

	advanceUntil(t, clk, func() bool { return rec.count("player-a", "answer_reveal") >= 1 })
	reveal := decodeLast[domain.AnswerRevealEvent](t, rec, "player-a", "answer_reveal")
	if reveal.CorrectAnswer != 2 {
		t.Fatalf("expected correctAnswer 2, got %d", reveal.CorrectAnswer)
	}
	if len(reveal.PlayerAnswers) != 2 {
		t.Fatalf("expected 2 player answers, got %d", len(reveal.PlayerAnswers))
	}
	if len(reveal.Scores) != 2 || reveal.Scores[0].Score != 7 || reveal.Scores[1].Score != 0 {
		t.Fatalf("expected scores [7 0], got %+v", reveal.Scores)
	}

	// Early completion stopped the countdown: no timer_update after the 7th.
	if got := rec.count("player-a", "timer_update"); got != 7 {
		t.Fatalf("expected 7 timer updates, got %d", got)
	}

	advanceUntil(t, clk, func() bool { return rec.count("player-b", "game_ended") >= 1 })
	ended := decodeLast[domain.GameEndedEvent](t, rec, "player-b", "game_ended")
	if len(ended.Scores) != 2 || ended.Scores[0].PlayerName != "Alice" || ended.Scores[0].Score != 7 {
		t.Fatalf("expected Alice leading with 7, got %+v", ended.Scores)
	}

	// Reveal fired exactly once despite the timeout/all-answered race.
	if got := rec.count("player-a", "answer_reveal"); got != 1 {
		t.Fatalf("expected exactly one reveal, got %d", got)
	}
}

// gatedSender wraps another Sender and, once armed, blocks the first delivery
// to target until release is closed. Because the ack unicast happens while the
// submission holds the room lock, this lets a test hold that lock open at a
// chosen point.
type gatedSender struct {
	inner   app.Sender
	target  string
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func newGatedSender(inner app.Sender, target string) *gatedSender {
	return &gatedSender{
		inner:   inner,
		target:  target,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedSender) arm() {
	g.mu.Lock()
	g.armed = true
	g.mu.Unlock()
}

func (g *gatedSender) Unicast(playerID string, event any) {
	g.inner.Unicast(playerID, event)
	g.mu.Lock()
	trip := g.armed && playerID == g.target
	if trip {
		g.armed = false
	}
	g.mu.Unlock()
	if trip {
		close(g.entered)
		<-g.release
	}
}

func TestStaleTickSuppressedAfterAllAnswered(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	rec := newRecorder()
	gate := newGatedSender(rec, "player-b")

	loader := memory.NewStaticBankLoader(map[string]domain.QuestionBank{"default": singleQuestionBank(10)})
	repo := memory.NewQuestionRepository(loader, 5*time.Minute)
	svc := app.NewGameService(memory.NewRoomRegistry(), repo, gate, clk, "default", app.DefaultRoomConfig())

	snap, err := svc.CreateRoom(ctx, "player-a", "Alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	roomID := snap.RoomID
	if _, err := svc.JoinRoom(ctx, roomID, "player-b", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	svc.StartGame(roomID, "player-a")

	if err := svc.SubmitAnswer(roomID, "player-a", 2); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	ticksBefore := rec.count("player-a", "timer_update")

	// Bob's submission fills the roster; its ack blocks on the gate while it
	// still holds the room lock.
	gate.arm()
	done := make(chan error, 1)
	go func() { done <- svc.SubmitAnswer(roomID, "player-b", 0) }()
	<-gate.entered

	// Fire the countdown so its tick queues up behind the held lock, then let
	// the submission finish first.
	clk.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("submit b: %v", err)
	}

	advanceUntil(t, clk, func() bool { return rec.count("player-a", "answer_reveal") >= 1 })

	// The queued tick must lose to the all-answered completion: no timer
	// update after the last answer.
	if got := rec.count("player-a", "timer_update"); got != ticksBefore {
		t.Fatalf("timer update leaked after all players answered: %d -> %d", ticksBefore, got)
	}
	if got := rec.count("player-a", "answer_reveal"); got != 1 {
		t.Fatalf("expected exactly one reveal, got %d", got)
	}
}

func TestTimeoutPathAdvancesThroughBank(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	rec := newRecorder()
	bank := domain.QuestionBank{
		ID: "default",
		Questions: []domain.Question{
			{ID: 1, Prompt: "q1", Options: []string{"a", "b"}, CorrectAnswer: 0, TimeLimit: 1},
			{ID: 2, Prompt: "q2", Options: []string{"a", "b"}, CorrectAnswer: 1, TimeLimit: 1},
		},
	}
	svc := newTestService(clk, rec, bank, app.DefaultRoomConfig())

	snap, err := svc.CreateRoom(ctx, "host", "Hester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.StartGame(snap.RoomID, "host")

	// Nobody answers; both questions resolve via timeout + settle delay.
	advanceUntil(t, clk, func() bool { return rec.count("host", "new_question") >= 2 })
	advanceUntil(t, clk, func() bool { return rec.count("host", "game_ended") >= 1 })

	if got := rec.count("host", "answer_reveal"); got != 2 {
		t.Fatalf("expected one reveal per question, got %d", got)
	}
	if got := rec.count("host", "new_question"); got != 2 {
		t.Fatalf("expected no question after the last reveal, got %d", got)
	}
	ended := decodeLast[domain.GameEndedEvent](t, rec, "host", "game_ended")
	if len(ended.Scores) != 1 || ended.Scores[0].Score != 0 {
		t.Fatalf("expected host with 0 points, got %+v", ended.Scores)
	}

	// The room is terminal: submissions are rejected.
	if err := svc.SubmitAnswer(snap.RoomID, "host", 0); err != domain.ErrRoomNotPlaying {
		t.Fatalf("expected ErrRoomNotPlaying, got %v", err)
	}
}

func TestDuplicateAndLateSubmissions(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	rec := newRecorder()
	svc := newTestService(clk, rec, singleQuestionBank(3), app.DefaultRoomConfig())

	snap, _ := svc.CreateRoom(ctx, "player-a", "Alice")
	roomID := snap.RoomID
	if _, err := svc.JoinRoom(ctx, roomID, "player-b", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	svc.StartGame(roomID, "player-a")

	if err := svc.SubmitAnswer(roomID, "player-a", 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.SubmitAnswer(roomID, "player-a", 1); err != domain.ErrAlreadyAnswered {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	// Bob never answers; let the countdown expire.
	advanceUntil(t, clk, func() bool { return rec.count("player-b", "answer_reveal") >= 1 })

	if err := svc.SubmitAnswer(roomID, "player-b", 2); err != domain.ErrStaleQuestion {
		t.Fatalf("expected ErrStaleQuestion, got %v", err)
	}

	reveal := decodeLast[domain.AnswerRevealEvent](t, rec, "player-a", "answer_reveal")
	if len(reveal.PlayerAnswers) != 1 {
		t.Fatalf("expected only Alice's answer in reveal, got %+v", reveal.PlayerAnswers)
	}
	if reveal.Scores[0].Score != 3 {
		t.Fatalf("expected Alice awarded 3 (full clock), got %+v", reveal.Scores)
	}
	if reveal.Scores[1].Score != 0 {
		t.Fatalf("late submission must not score, got %+v", reveal.Scores)
	}
}

func TestLeaveCancelsPendingTimers(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	rec := newRecorder()
	svc := newTestService(clk, rec, singleQuestionBank(10), app.DefaultRoomConfig())

	snap, _ := svc.CreateRoom(ctx, "host", "Hester")
	svc.StartGame(snap.RoomID, "host")
	advanceUntil(t, clk, func() bool { return rec.count("host", "timer_update") >= 1 })

	svc.Leave(snap.RoomID, "host")
	rooms, players := svc.Counts()
	if rooms != 0 || players != 0 {
		t.Fatalf("expected empty registry, got rooms=%d players=%d", rooms, players)
	}

	// A stale tick must not fire into the deleted room.
	before := rec.count("host", "timer_update")
	clk.Advance(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if got := rec.count("host", "timer_update"); got != before {
		t.Fatalf("timer ticked after room teardown: %d -> %d", before, got)
	}
}

func TestLastLeaverCompletesRoundEarly(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	rec := newRecorder()
	svc := newTestService(clk, rec, singleQuestionBank(10), app.DefaultRoomConfig())

	snap, _ := svc.CreateRoom(ctx, "player-a", "Alice")
	roomID := snap.RoomID
	if _, err := svc.JoinRoom(ctx, roomID, "player-b", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	svc.StartGame(roomID, "player-a")

	if err := svc.SubmitAnswer(roomID, "player-a", 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Bob disconnects without answering; Alice's answer now fills the roster.
	svc.Leave(roomID, "player-b")

	advanceUntil(t, clk, func() bool { return rec.count("player-a", "answer_reveal") >= 1 })
	if got := rec.count("player-a", "answer_reveal"); got != 1 {
		t.Fatalf("expected one reveal, got %d", got)
	}
}
