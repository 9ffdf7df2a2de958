// Package question fetches multiple-choice questions from an external
// generator and validates them before they reach the game engines.
package question

import (
	"context"
	"errors"
	"time"

	"quizbot/internal/model"
)

// ErrProviderFailure wraps every failure to obtain a valid question:
// transport errors, timeouts and malformed or incomplete output.
var ErrProviderFailure = errors.New("question provider failure")

// Provider returns one validated question for a category and difficulty.
// Implementations never retry; callers decide whether to ask again.
type Provider interface {
	Fetch(ctx context.Context, category model.Category, difficulty model.Difficulty) (*model.Question, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, category model.Category, difficulty model.Difficulty) (*model.Question, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context, category model.Category, difficulty model.Difficulty) (*model.Question, error) {
	return f(ctx, category, difficulty)
}

// Static returns a provider that answers every request with a copy of q,
// stamped with the requested category and difficulty, after delay.
// A zero delay answers immediately. Used by tests and the demo mode.
func Static(q model.Question, delay time.Duration) Provider {
	return ProviderFunc(func(ctx context.Context, category model.Category, difficulty model.Difficulty) (*model.Question, error) {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrProviderFailure, ctx.Err())
			case <-timer.C:
			}
		}
		out := q
		out.Category = category
		out.Difficulty = difficulty
		out.Points = difficulty.Points()
		return &out, nil
	})
}
