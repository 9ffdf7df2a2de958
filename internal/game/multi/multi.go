// Package multi runs multiplayer quiz sessions in a group chat: a lobby that
// players join, then timed rounds where every member answers the same
// question.
package multi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quizbot/internal/game"
	"quizbot/internal/model"
	"quizbot/internal/question"
)

// Default timings.
const (
	DefaultLobbyTimeout = 120 * time.Second
	DefaultRoundTimeout = 20 * time.Second
	DefaultIdleTimeout  = 30 * time.Minute
)

// Scorer records points in the global ranking.
type Scorer interface {
	RecordPoints(playerID int64, username string, points int64) (int64, error)
}

// Config holds the session timings. Zero values use the defaults.
type Config struct {
	LobbyTimeout time.Duration
	RoundTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.LobbyTimeout <= 0 {
		c.LobbyTimeout = DefaultLobbyTimeout
	}
	if c.RoundTimeout <= 0 {
		c.RoundTimeout = DefaultRoundTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
}

// Engine owns every multiplayer session.
type Engine struct {
	provider question.Provider
	scorer   Scorer
	listener Listener
	cfg      Config
	sessions *game.Registry[string, *session]
	now      func() time.Time
	newID    func() string
}

// NewEngine creates a multiplayer engine. A nil listener discards
// timer-driven notifications.
func NewEngine(provider question.Provider, scorer Scorer, listener Listener, cfg Config) *Engine {
	cfg.applyDefaults()
	if listener == nil {
		listener = nopListener{}
	}
	return &Engine{
		provider: provider,
		scorer:   scorer,
		listener: listener,
		cfg:      cfg,
		sessions: game.NewRegistry[string, *session](),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func sessionLogger(s *session) zerolog.Logger {
	return log.With().Str("session_id", s.id).Int64("chat_id", s.chatID).Logger()
}

// Create opens a lobby with the host as its first player and arms the
// lobby timer.
func (e *Engine) Create(host model.Player, chatID int64, category model.Category, difficulty model.Difficulty) (Snapshot, error) {
	if !category.Valid() || !difficulty.Valid() {
		return Snapshot{}, game.ErrInvalidSelection
	}

	now := e.now()
	s := &session{
		id:           e.newID(),
		host:         host,
		chatID:       chatID,
		category:     category,
		difficulty:   difficulty,
		status:       StatusLobby,
		members:      make(map[int64]struct{}),
		answers:      make(map[int64]int),
		scores:       make(map[int64]int64),
		createdAt:    now,
		lastActivity: now,
	}
	s.addPlayer(host)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := e.sessions.Create(s.id, s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to register session: %w", err)
	}
	s.lobbyTimer = time.AfterFunc(e.cfg.LobbyTimeout, func() { e.lobbyExpired(s) })

	l := sessionLogger(s)
	l.Info().Int64("host_id", host.ID).Str("category", string(category)).Msg("Multiplayer lobby opened")
	return s.snapshot(), nil
}

// lookup returns the live session for id. Ended sessions are reported as
// not found.
func (e *Engine) lookup(id string) (*session, error) {
	s, ok := e.sessions.Get(id)
	if !ok {
		return nil, game.ErrSessionNotFound
	}
	return s, nil
}

// Join adds a player to a session that is still in its lobby.
func (e *Engine) Join(id string, player model.Player) (Snapshot, error) {
	s, err := e.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.status == StatusEnded:
		return Snapshot{}, game.ErrSessionNotFound
	case s.status != StatusLobby || s.starting:
		return Snapshot{}, game.ErrInvalidState
	case s.isMember(player.ID):
		return Snapshot{}, game.ErrAlreadyJoined
	}

	s.addPlayer(player)
	s.lastActivity = e.now()

	l := sessionLogger(s)
	l.Debug().Int64("user_id", player.ID).Int("players", len(s.players)).Msg("Player joined")
	return s.snapshot(), nil
}

// Begin starts the first round. Host only, lobby only.
func (e *Engine) Begin(ctx context.Context, id string, actingID int64) (Snapshot, error) {
	return e.startRound(ctx, id, actingID, StatusLobby)
}

// Next starts the following round. Host only, after a round resolved.
func (e *Engine) Next(ctx context.Context, id string, actingID int64) (Snapshot, error) {
	return e.startRound(ctx, id, actingID, StatusResults)
}

// startRound fetches a question outside the session lock. While the fetch
// runs the session is marked starting, so joins and other starts are
// rejected. A provider failure destroys the session.
func (e *Engine) startRound(ctx context.Context, id string, actingID int64, from Status) (Snapshot, error) {
	s, err := e.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	switch {
	case s.status == StatusEnded:
		s.mu.Unlock()
		return Snapshot{}, game.ErrSessionNotFound
	case actingID != s.host.ID:
		s.mu.Unlock()
		return Snapshot{}, game.ErrNotHost
	case s.status != from || s.starting:
		s.mu.Unlock()
		return Snapshot{}, game.ErrInvalidState
	}
	s.starting = true
	if s.lobbyTimer != nil {
		s.lobbyTimer.Stop()
		s.lobbyTimer = nil
	}
	s.lastActivity = e.now()
	category, difficulty := s.category, s.difficulty
	s.mu.Unlock()

	q, fetchErr := e.provider.Fetch(ctx, category, difficulty)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	l := sessionLogger(s)

	if s.status == StatusEnded {
		return Snapshot{}, game.ErrSessionNotFound
	}
	if fetchErr != nil {
		e.destroy(s)
		l.Warn().Err(fetchErr).Int("round", s.round+1).Msg("Session ended, question unavailable")
		if !errors.Is(fetchErr, question.ErrProviderFailure) {
			fetchErr = fmt.Errorf("%w: %w", question.ErrProviderFailure, fetchErr)
		}
		return Snapshot{}, fmt.Errorf("failed to start round: %w", fetchErr)
	}

	s.status = StatusQuestion
	s.question = q
	s.answers = make(map[int64]int, len(s.players))
	s.round++
	s.lastActivity = e.now()
	round := s.round
	s.roundTimer = time.AfterFunc(e.cfg.RoundTimeout, func() { e.roundExpired(s, round) })

	l.Info().Int("round", round).Int("players", len(s.players)).Msg("Round started")
	return s.snapshot(), nil
}

// Answer records a player's choice for the given round, which must be the
// current one. The answer that completes the round resolves it immediately
// and stops the round timer.
func (e *Engine) Answer(id string, playerID int64, round, index int) (*AnswerOutcome, error) {
	s, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.status == StatusEnded:
		return nil, game.ErrSessionNotFound
	case s.status != StatusQuestion || round != s.round:
		return nil, game.ErrInvalidState
	case !s.isMember(playerID):
		return nil, game.ErrNotParticipant
	}
	if _, done := s.answers[playerID]; done {
		return nil, game.ErrAlreadyAnswered
	}
	if index < 0 || index >= model.OptionCount {
		return nil, game.ErrInvalidAnswer
	}

	s.answers[playerID] = index
	s.lastActivity = e.now()

	out := &AnswerOutcome{
		Round:    s.round,
		Answered: len(s.answers),
		Players:  len(s.players),
	}
	if len(s.answers) == len(s.players) {
		if res, ok := e.resolveRound(s); ok {
			out.Result = &res
		}
	}
	return out, nil
}

// resolveRound scores the current round. It runs at most once per round:
// whichever of the last answer and the round timer gets here second finds
// the status already moved on. Caller holds s.mu.
func (e *Engine) resolveRound(s *session) (RoundResult, bool) {
	if s.status != StatusQuestion {
		return RoundResult{}, false
	}
	s.status = StatusResults
	if s.roundTimer != nil {
		s.roundTimer.Stop()
		s.roundTimer = nil
	}

	q := s.question
	res := RoundResult{
		SessionID: s.id,
		ChatID:    s.chatID,
		HostID:    s.host.ID,
		Round:     s.round,
		Question:  q,
	}
	l := sessionLogger(s)

	for _, p := range s.players {
		choice, answered := s.answers[p.ID]
		switch {
		case !answered:
			res.NoAnswer = append(res.NoAnswer, p)
		case q.IsCorrect(choice):
			pr := PlayerResult{Player: p, Choice: choice, Points: q.Points}
			total, err := e.scorer.RecordPoints(p.ID, p.Name, q.Points)
			if err != nil {
				l.Error().Err(err).Int64("user_id", p.ID).Msg("Failed to record points")
			}
			pr.Total = total
			s.scores[p.ID] += q.Points
			res.Correct = append(res.Correct, pr)
		default:
			res.Incorrect = append(res.Incorrect, PlayerResult{Player: p, Choice: choice})
		}
	}

	l.Info().
		Int("round", res.Round).
		Int("correct", len(res.Correct)).
		Int("incorrect", len(res.Incorrect)).
		Int("no_answer", len(res.NoAnswer)).
		Msg("Round resolved")
	return res, true
}

// roundExpired is the round timer callback.
func (e *Engine) roundExpired(s *session, round int) {
	s.mu.Lock()
	if !e.isCurrent(s) || s.round != round {
		s.mu.Unlock()
		return
	}
	res, ok := e.resolveRound(s)
	s.mu.Unlock()

	if ok {
		res.TimedOut = true
		e.listener.RoundTimedOut(res)
	}
}

// lobbyExpired is the lobby timer callback.
func (e *Engine) lobbyExpired(s *session) {
	s.mu.Lock()
	if !e.isCurrent(s) || s.status != StatusLobby || s.starting {
		s.mu.Unlock()
		return
	}
	e.destroy(s)
	snap := s.snapshot()
	s.mu.Unlock()

	l := sessionLogger(s)
	l.Info().Msg("Lobby expired")
	e.listener.SessionExpired(snap, ReasonLobbyTimeout)
}

// isCurrent reports whether s is still the registered session for its id.
// Caller holds s.mu.
func (e *Engine) isCurrent(s *session) bool {
	if s.status == StatusEnded {
		return false
	}
	cur, ok := e.sessions.Get(s.id)
	return ok && cur == s
}

// destroy ends s, stops its timers and unregisters it. Caller holds s.mu.
func (e *Engine) destroy(s *session) {
	s.status = StatusEnded
	s.stopTimers()
	e.sessions.CompareAndDelete(s.id, func(cur *session) bool { return cur == s })
}

// End finishes the session from any state and returns its final view,
// including the points earned in this session. Host only.
func (e *Engine) End(id string, actingID int64) (Snapshot, error) {
	return e.terminate(id, actingID, "Session ended by host")
}

// Cancel abandons the session from any state. Host only.
func (e *Engine) Cancel(id string, actingID int64) (Snapshot, error) {
	return e.terminate(id, actingID, "Session cancelled by host")
}

func (e *Engine) terminate(id string, actingID int64, msg string) (Snapshot, error) {
	s, err := e.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusEnded {
		return Snapshot{}, game.ErrSessionNotFound
	}
	if actingID != s.host.ID {
		return Snapshot{}, game.ErrNotHost
	}
	e.destroy(s)

	l := sessionLogger(s)
	l.Info().Int("rounds", s.round).Msg(msg)
	return s.snapshot(), nil
}

// Snapshot returns a read-only view of a live session.
func (e *Engine) Snapshot(id string) (Snapshot, error) {
	s, err := e.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return Snapshot{}, game.ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// Len returns the number of live sessions.
func (e *Engine) Len() int {
	return e.sessions.Len()
}

// ExpireIdle destroys sessions without activity for longer than the idle
// timeout. Sessions fetching a question are skipped.
func (e *Engine) ExpireIdle(now time.Time) int {
	var expired []Snapshot
	for _, id := range e.sessions.Keys() {
		s, ok := e.sessions.Get(id)
		if !ok {
			continue
		}
		s.mu.Lock()
		if s.status != StatusEnded && !s.starting && now.Sub(s.lastActivity) > e.cfg.IdleTimeout {
			e.destroy(s)
			expired = append(expired, s.snapshot())
		}
		s.mu.Unlock()
	}

	for _, snap := range expired {
		log.Debug().Str("session_id", snap.ID).Msg("Session expired")
		e.listener.SessionExpired(snap, ReasonIdle)
	}
	return len(expired)
}
