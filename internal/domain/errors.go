package domain

import "errors"

var (
	// ErrRoomFull is returned when a join would exceed room capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomNotFound is returned when an action targets an unknown room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotHost is returned when a non-host issues a host-only action.
	ErrNotHost = errors.New("only the host may do that")
	// ErrRoomNotWaiting is returned when a start hits a room that already
	// started, ended, or has nobody in it.
	ErrRoomNotWaiting = errors.New("room is not waiting to start")
	// ErrRoomNotPlaying is returned when an answer arrives outside a round.
	ErrRoomNotPlaying = errors.New("room is not playing")
	// ErrAlreadyAnswered is returned on a duplicate submission for one question.
	ErrAlreadyAnswered = errors.New("answer already submitted")
	// ErrStaleQuestion is returned when a submission arrives after the reveal.
	ErrStaleQuestion = errors.New("question already revealed")
	// ErrPlayerNotInRoom is returned when the submitter is not on the roster.
	ErrPlayerNotInRoom = errors.New("player not in room")
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrBankEmpty indicates a bank with no questions, which cannot be played.
	ErrBankEmpty = errors.New("question bank has no questions")
)
