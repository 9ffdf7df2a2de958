// Package solo implements single-player quiz runs: one live game per
// player, advancing on every correct answer and ending on the first miss.
package solo

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"quizbot/internal/game"
	"quizbot/internal/model"
	"quizbot/internal/pkg/lock"
	"quizbot/internal/question"
)

// DefaultIdleTimeout is how long a game may sit unanswered before the reaper
// removes it.
const DefaultIdleTimeout = 10 * time.Minute

// Scorer records points in the global ranking.
type Scorer interface {
	RecordPoints(playerID int64, username string, points int64) (int64, error)
}

// Game is a player's running solo game.
type Game struct {
	Player   model.Player
	ChatID   int64
	Question *model.Question
	// Seq identifies Question. It is unique per engine, so buttons of an
	// earlier question or an earlier game never match it.
	Seq          int64
	Category     model.Category
	Difficulty   model.Difficulty
	Streak       int
	CreatedAt    time.Time
	LastActivity time.Time
}

// AnswerResult describes what happened after an answer.
type AnswerResult struct {
	Correct  bool
	Chosen   int
	Answered *model.Question
	// Points and Total are set on a correct answer.
	Points int64
	Total  int64
	Streak int
	// Next is the following question; nil when the run is over.
	Next    *model.Question
	NextSeq int64
	Ended   bool
	// NextErr is the provider failure that ended a run after a hit.
	NextErr error
}

// Engine runs solo games.
type Engine struct {
	provider question.Provider
	scorer   Scorer
	games    *game.Registry[int64, *Game]
	locks    *lock.KeyedMutex[int64]
	seq      atomic.Int64
	idle     time.Duration
	now      func() time.Time
}

// NewEngine creates a solo engine. A non-positive idle uses DefaultIdleTimeout.
func NewEngine(provider question.Provider, scorer Scorer, idle time.Duration) *Engine {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Engine{
		provider: provider,
		scorer:   scorer,
		games:    game.NewRegistry[int64, *Game](),
		locks:    lock.New[int64](),
		idle:     idle,
		now:      time.Now,
	}
}

// Start fetches a first question and (re)starts the player's game with a
// zero streak. It returns a copy of the new game. On provider failure
// nothing changes.
func (e *Engine) Start(ctx context.Context, player model.Player, chatID int64, category model.Category, difficulty model.Difficulty) (Game, error) {
	if !category.Valid() || !difficulty.Valid() {
		return Game{}, game.ErrInvalidSelection
	}
	if !e.locks.TryLock(player.ID) {
		return Game{}, game.ErrBusy
	}
	defer e.locks.Unlock(player.ID)

	q, err := e.provider.Fetch(ctx, category, difficulty)
	if err != nil {
		return Game{}, err
	}

	now := e.now()
	g := &Game{
		Player:       player,
		ChatID:       chatID,
		Question:     q,
		Seq:          e.seq.Add(1),
		Category:     category,
		Difficulty:   difficulty,
		CreatedAt:    now,
		LastActivity: now,
	}
	e.games.Put(player.ID, g)

	log.Info().
		Int64("user_id", player.ID).
		Str("category", string(category)).
		Str("difficulty", string(difficulty)).
		Msg("Solo game started")
	return *g, nil
}

// SubmitAnswer scores an answer for the question identified by seq.
// A hit records points and chains the next question; a miss ends the run.
// A second tap while the first is still being processed gets ErrBusy, a tap
// after the game is gone gets ErrNoActiveGame, and a tap on an older
// question gets ErrInvalidState without touching the game.
func (e *Engine) SubmitAnswer(ctx context.Context, player model.Player, seq int64, index int) (*AnswerResult, error) {
	if !e.locks.TryLock(player.ID) {
		return nil, game.ErrBusy
	}
	defer e.locks.Unlock(player.ID)

	g, ok := e.games.Get(player.ID)
	if !ok {
		return nil, game.ErrNoActiveGame
	}
	if seq != g.Seq {
		return nil, game.ErrInvalidState
	}
	if index < 0 || index >= model.OptionCount {
		return nil, game.ErrInvalidAnswer
	}

	res := &AnswerResult{Chosen: index, Answered: g.Question}
	logger := log.With().Int64("user_id", player.ID).Int("streak", g.Streak).Logger()

	if !g.Question.IsCorrect(index) {
		e.games.Delete(player.ID)
		res.Streak = g.Streak
		res.Ended = true
		logger.Info().Msg("Solo game ended on a miss")
		return res, nil
	}

	total, err := e.scorer.RecordPoints(player.ID, player.Name, g.Question.Points)
	if err != nil {
		return nil, fmt.Errorf("failed to record points: %w", err)
	}
	res.Correct = true
	res.Points = g.Question.Points
	res.Total = total
	res.Streak = g.Streak + 1

	next, err := e.provider.Fetch(ctx, g.Category, g.Difficulty)
	if err != nil {
		e.games.Delete(player.ID)
		res.Ended = true
		res.NextErr = err
		logger.Warn().Err(err).Msg("Solo game ended, next question unavailable")
		return res, nil
	}

	nextSeq := e.seq.Add(1)
	e.games.Put(player.ID, &Game{
		Player:       player,
		ChatID:       g.ChatID,
		Question:     next,
		Seq:          nextSeq,
		Category:     g.Category,
		Difficulty:   g.Difficulty,
		Streak:       res.Streak,
		CreatedAt:    g.CreatedAt,
		LastActivity: e.now(),
	})
	res.Next = next
	res.NextSeq = nextSeq
	return res, nil
}

// Active returns a copy of the player's running game.
func (e *Engine) Active(playerID int64) (Game, bool) {
	g, ok := e.games.Get(playerID)
	if !ok {
		return Game{}, false
	}
	return *g, true
}

// Abandon drops the player's game without scoring and returns it. It fails
// with ErrBusy while an answer is being processed and with ErrNoActiveGame
// when there is nothing to drop.
func (e *Engine) Abandon(playerID int64) (Game, error) {
	if e.locks.IsLocked(playerID) {
		return Game{}, game.ErrBusy
	}

	var dropped Game
	err := e.locks.WithLock(playerID, func() error {
		g, ok := e.games.Get(playerID)
		if !ok {
			return game.ErrNoActiveGame
		}
		e.games.Delete(playerID)
		dropped = *g
		return nil
	})
	if err != nil {
		return Game{}, err
	}

	log.Info().Int64("user_id", playerID).Int("streak", dropped.Streak).Msg("Solo game abandoned")
	return dropped, nil
}

// Len returns the number of running games.
func (e *Engine) Len() int {
	return e.games.Len()
}

// ExpireIdle removes games without activity for longer than the idle
// timeout. Players with an operation in flight are skipped.
func (e *Engine) ExpireIdle(now time.Time) int {
	removed := 0
	for _, id := range e.games.Keys() {
		if !e.locks.TryLock(id) {
			continue
		}
		if g, ok := e.games.Get(id); ok && now.Sub(g.LastActivity) > e.idle {
			if e.games.CompareAndDelete(id, func(cur *Game) bool { return cur == g }) {
				removed++
				log.Debug().Int64("user_id", id).Msg("Solo game expired")
			}
		}
		e.locks.Unlock(id)
	}
	return removed
}
