package multi

import (
	"sync"
	"time"

	"quizbot/internal/model"
)

// Status is the lifecycle phase of a session.
type Status int

// Session phases. Only results→question and any→ended move backwards or
// sideways; nothing returns to the lobby.
const (
	StatusLobby Status = iota
	StatusQuestion
	StatusResults
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusLobby:
		return "lobby"
	case StatusQuestion:
		return "question"
	case StatusResults:
		return "results"
	case StatusEnded:
		return "ended"
	}
	return "unknown"
}

// ExpireReason tells a Listener why a session went away on its own.
type ExpireReason string

const (
	ReasonLobbyTimeout ExpireReason = "lobby_timeout"
	ReasonIdle         ExpireReason = "idle"
)

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	ID         string
	Host       model.Player
	ChatID     int64
	Category   model.Category
	Difficulty model.Difficulty
	Status     Status
	Players    []model.Player
	Question   *model.Question
	Round      int
	Answered   int
	// Scores holds the points each player earned in this session.
	Scores       map[int64]int64
	CreatedAt    time.Time
	LastActivity time.Time
}

// PlayerResult is one player's outcome in a resolved round.
type PlayerResult struct {
	Player model.Player
	Choice int
	Points int64
	// Total is the player's global ranking total after scoring.
	Total int64
}

// RoundResult partitions the players of a resolved round, each group in
// join order.
type RoundResult struct {
	SessionID string
	ChatID    int64
	HostID    int64
	Round     int
	Question  *model.Question
	Correct   []PlayerResult
	Incorrect []PlayerResult
	NoAnswer  []model.Player
	TimedOut  bool
}

// AnswerOutcome is returned for every accepted answer. Result is set when
// this answer completed the round.
type AnswerOutcome struct {
	Round    int
	Answered int
	Players  int
	Result   *RoundResult
}

// Listener is told about transitions no user action triggered directly.
// Calls are made without any session lock held.
type Listener interface {
	RoundTimedOut(result RoundResult)
	SessionExpired(snap Snapshot, reason ExpireReason)
}

type nopListener struct{}

func (nopListener) RoundTimedOut(RoundResult)            {}
func (nopListener) SessionExpired(Snapshot, ExpireReason) {}

// session is the mutable state behind one game id. Every field is guarded
// by mu.
type session struct {
	mu sync.Mutex

	id         string
	host       model.Player
	chatID     int64
	category   model.Category
	difficulty model.Difficulty

	status Status
	// starting is set while a round's question is being fetched.
	starting bool
	players  []model.Player
	members  map[int64]struct{}
	question *model.Question
	answers  map[int64]int
	round    int
	scores   map[int64]int64

	lobbyTimer *time.Timer
	roundTimer *time.Timer

	createdAt    time.Time
	lastActivity time.Time
}

func (s *session) isMember(playerID int64) bool {
	_, ok := s.members[playerID]
	return ok
}

func (s *session) addPlayer(p model.Player) {
	s.players = append(s.players, p)
	s.members[p.ID] = struct{}{}
}

func (s *session) stopTimers() {
	if s.lobbyTimer != nil {
		s.lobbyTimer.Stop()
		s.lobbyTimer = nil
	}
	if s.roundTimer != nil {
		s.roundTimer.Stop()
		s.roundTimer = nil
	}
}

func (s *session) snapshot() Snapshot {
	players := make([]model.Player, len(s.players))
	copy(players, s.players)
	scores := make(map[int64]int64, len(s.scores))
	for id, pts := range s.scores {
		scores[id] = pts
	}
	return Snapshot{
		ID:           s.id,
		Host:         s.host,
		ChatID:       s.chatID,
		Category:     s.category,
		Difficulty:   s.difficulty,
		Status:       s.status,
		Players:      players,
		Question:     s.question,
		Round:        s.round,
		Answered:     len(s.answers),
		Scores:       scores,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
	}
}
