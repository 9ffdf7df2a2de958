package game

import "errors"

// Errors shared by the solo and multiplayer engines. Handlers map each of
// them to a user-facing reply.
var (
	// ErrSessionNotFound is returned for unknown, ended or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoActiveGame is returned when a player answers without a running solo game.
	ErrNoActiveGame = errors.New("no active game")
	// ErrInvalidState is returned when an action does not fit the current status.
	ErrInvalidState = errors.New("action not allowed in current state")
	// ErrNotHost is returned when a non-host attempts a host-only action.
	ErrNotHost = errors.New("only the host can do that")
	// ErrAlreadyJoined is returned on a second join by the same player.
	ErrAlreadyJoined = errors.New("player already joined")
	// ErrNotParticipant is returned when a non-member answers a round.
	ErrNotParticipant = errors.New("player is not in this session")
	// ErrAlreadyAnswered is returned on a second answer in the same round.
	ErrAlreadyAnswered = errors.New("player already answered this round")
	// ErrInvalidAnswer is returned for an option index outside the question.
	ErrInvalidAnswer = errors.New("invalid answer option")
	// ErrBusy is returned while another operation for the same player is running.
	ErrBusy = errors.New("another operation is in progress")
	// ErrInvalidSelection is returned for an unknown category or difficulty.
	ErrInvalidSelection = errors.New("invalid category or difficulty")
)
