package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"trivia-rooms/internal/domain"
)

// RoomRepository abstracts the process-wide room table (in-memory, Redis-marked, etc).
type RoomRepository interface {
	// GetOrCreate returns the room for roomID, constructing it with create
	// when absent. The bool reports whether creation happened.
	GetOrCreate(roomID string, create func(id string) *Room) (*Room, bool)
	Get(roomID string) (*Room, bool)
	DeleteIfEmpty(roomID string)
	Joinable() []domain.RoomSummary
	Counts() (rooms, players int)
}

// QuestionRepository loads question banks (from cache/backing store).
type QuestionRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.QuestionBank, error)
}

// GameService contains the trivia room use cases.
type GameService struct {
	rooms  RoomRepository
	banks  QuestionRepository
	sender Sender
	clock  clockwork.Clock
	bankID string
	cfg    RoomConfig
}

func NewGameService(rooms RoomRepository, banks QuestionRepository, sender Sender, clock clockwork.Clock, bankID string, cfg RoomConfig) *GameService {
	return &GameService{
		rooms:  rooms,
		banks:  banks,
		sender: sender,
		clock:  clock,
		bankID: bankID,
		cfg:    cfg.withDefaults(),
	}
}

// CreateRoom makes a fresh Waiting room with the caller as host and first
// player.
func (s *GameService) CreateRoom(ctx context.Context, playerID, playerName string) (domain.RoomSnapshot, error) {
	bank, err := s.loadBank(ctx)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	for {
		roomID := newRoomID()
		room, created := s.rooms.GetOrCreate(roomID, func(id string) *Room {
			return NewRoom(id, playerID, bank, s.sender, s.clock, s.cfg)
		})
		if !created {
			// id collision, roll again
			continue
		}
		log.Info().Str("room", roomID).Str("host", playerID).Msg("room created")
		return room.join(playerID, playerName, false)
	}
}

// JoinRoom adds the player to roomID, creating the room on demand with the
// joiner as host. Returns ErrRoomFull when capacity is reached.
func (s *GameService) JoinRoom(ctx context.Context, roomID, playerID, playerName string) (domain.RoomSnapshot, error) {
	bank, err := s.loadBank(ctx)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	for {
		room, created := s.rooms.GetOrCreate(roomID, func(id string) *Room {
			return NewRoom(id, playerID, bank, s.sender, s.clock, s.cfg)
		})
		if created {
			log.Info().Str("room", roomID).Str("host", playerID).Msg("room created on join")
		}
		snap, err := room.join(playerID, playerName, true)
		if err != nil {
			return snap, err
		}
		// The last leaver may have emptied and deleted this room between the
		// lookup and the roster insertion, which would strand the joiner in
		// an unregistered room.
		if current, ok := s.rooms.Get(roomID); ok && current == room {
			return snap, nil
		}
		room.leave(playerID)
	}
}

// StartGame begins the session. Non-host callers, re-clicks and empty rooms
// are silent no-ops per the protocol.
func (s *GameService) StartGame(roomID, playerID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	if err := room.start(playerID); err != nil {
		log.Debug().Err(err).Str("room", roomID).Str("player", playerID).Msg("start ignored")
	}
}

// SubmitAnswer records the player's answer for the current question.
func (s *GameService) SubmitAnswer(roomID, playerID string, answerIndex int) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	_, err := room.submit(playerID, answerIndex)
	return err
}

// Leave removes the player and drops the room once it is empty.
func (s *GameService) Leave(roomID, playerID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	if room.leave(playerID) {
		s.rooms.DeleteIfEmpty(roomID)
		log.Info().Str("room", roomID).Msg("room removed")
	}
}

// Joinable lists Waiting rooms with open capacity.
func (s *GameService) Joinable() []domain.RoomSummary {
	return s.rooms.Joinable()
}

// Counts reports live room and player totals for the health probe.
func (s *GameService) Counts() (rooms, players int) {
	return s.rooms.Counts()
}

func (s *GameService) loadBank(ctx context.Context) (domain.QuestionBank, error) {
	bank, err := s.banks.GetBank(ctx, s.bankID)
	if err != nil {
		return domain.QuestionBank{}, err
	}
	if len(bank.Questions) == 0 {
		return domain.QuestionBank{}, domain.ErrBankEmpty
	}
	return bank, nil
}

// newRoomID returns a short join code, the leading chunk of a uuid.
func newRoomID() string {
	return uuid.NewString()[:8]
}
