// Package ranking keeps the global score ledger. The in-memory state is the
// source of truth while the process runs; the repository holds a checkpoint
// written asynchronously after every mutation and on a fixed interval.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"quizbot/internal/model"
)

const (
	// DefaultFlushInterval is the safety-net checkpoint interval.
	DefaultFlushInterval = 5 * time.Minute
	// writeTimeout bounds a single checkpoint write.
	writeTimeout = 30 * time.Second
)

// ErrNegativePoints is returned when a caller tries to subtract score.
var ErrNegativePoints = errors.New("points must not be negative")

// Repository persists full ranking snapshots in insertion order.
type Repository interface {
	Load(ctx context.Context) ([]model.RankEntry, error)
	Save(ctx context.Context, entries []model.RankEntry) error
}

// Mirror receives every successfully checkpointed snapshot, e.g. to publish
// the ranking to an external leaderboard. Failures are logged only.
type Mirror interface {
	Publish(ctx context.Context, entries []model.RankEntry) error
}

// Store is the global ranking. All mutations go through one mutex, so
// concurrent updates for the same player never lose an increment.
type Store struct {
	repo     Repository
	mirror   Mirror
	interval time.Duration
	strict   bool

	mu      sync.RWMutex
	entries map[int64]*model.RankEntry
	order   []int64 // insertion order, used to break ties
	version uint64
	saved   uint64

	writeMu sync.Mutex
	wake    chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithMirror publishes every checkpoint to m.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithFlushInterval overrides the periodic checkpoint interval.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithStrictLoad makes Load fail on any repository error other than a
// missing checkpoint. Use it for backends that save by upsert, where
// starting empty would overwrite stored totals with new small ones.
func WithStrictLoad() Option {
	return func(s *Store) { s.strict = true }
}

// NewStore creates an empty store backed by repo.
func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		interval: DefaultFlushInterval,
		entries:  make(map[int64]*model.RankEntry),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory state with the persisted checkpoint.
// A missing or unreadable checkpoint leaves the store empty and a fresh
// empty checkpoint is written. Only a strict store returns an error, and
// then its state is left untouched.
func (s *Store) Load(ctx context.Context) error {
	entries, err := s.repo.Load(ctx)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Info().Msg("No ranking checkpoint found, starting empty")
		case s.strict:
			return fmt.Errorf("failed to load ranking: %w", err)
		default:
			log.Warn().Err(err).Msg("Ranking checkpoint unreadable, starting empty")
		}
		entries = nil
	}

	s.mu.Lock()
	s.entries = make(map[int64]*model.RankEntry, len(entries))
	s.order = s.order[:0]
	for _, e := range entries {
		if _, dup := s.entries[e.PlayerID]; dup {
			continue
		}
		entry := e
		s.entries[e.PlayerID] = &entry
		s.order = append(s.order, e.PlayerID)
	}
	s.version++
	s.mu.Unlock()

	if err != nil {
		if ferr := s.Flush(ctx); ferr != nil {
			log.Error().Err(ferr).Msg("Failed to write empty ranking checkpoint")
		}
		return nil
	}
	log.Info().Int("players", len(entries)).Msg("Ranking loaded")
	return nil
}

// RecordPoints adds points to a player's total, creating the entry on first
// use, and returns the new total. Zero points only refresh the username.
// The checkpoint write is scheduled, not awaited.
func (s *Store) RecordPoints(playerID int64, username string, points int64) (int64, error) {
	if points < 0 {
		return 0, ErrNegativePoints
	}

	s.mu.Lock()
	entry, ok := s.entries[playerID]
	if !ok {
		entry = &model.RankEntry{PlayerID: playerID}
		s.entries[playerID] = entry
		s.order = append(s.order, playerID)
	}
	entry.Username = username
	entry.Points += points
	total := entry.Points
	s.version++
	s.mu.Unlock()

	s.schedule()
	return total, nil
}

// Total returns the player's cumulative points and whether they are ranked.
func (s *Store) Total(playerID int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.entries[playerID]; ok {
		return entry.Points, true
	}
	return 0, false
}

// TopN returns entries by points descending, ties in insertion order.
// A non-positive limit returns every entry.
func (s *Store) TopN(limit int) []model.RankEntry {
	sorted := s.sorted()
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

// Position returns the 1-based rank of a player, or 0 if unranked.
func (s *Store) Position(playerID int64) int {
	for i, e := range s.sorted() {
		if e.PlayerID == playerID {
			return i + 1
		}
	}
	return 0
}

// Len returns the number of ranked players.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) sorted() []model.RankEntry {
	return Rank(s.snapshot())
}

// Rank orders entries by points descending in place, keeping the given
// order among equal totals, and returns them.
func Rank(entries []model.RankEntry) []model.RankEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Points > entries[j].Points
	})
	return entries
}

// snapshot copies the entries in insertion order.
func (s *Store) snapshot() []model.RankEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RankEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.entries[id])
	}
	return out
}

// schedule wakes the writer without blocking. A pending wake-up already
// covers this mutation because every write stores the full state.
func (s *Store) schedule() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Flush writes the full current state to the repository synchronously.
func (s *Store) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	version := s.version
	s.mu.RUnlock()
	entries := s.snapshot()

	if err := s.repo.Save(ctx, entries); err != nil {
		return err
	}

	s.mu.Lock()
	if version > s.saved {
		s.saved = version
	}
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, entries); err != nil {
			log.Warn().Err(err).Msg("Failed to publish ranking mirror")
		}
	}
	return nil
}

// Dirty reports whether there are mutations not yet checkpointed.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.saved
}

// Run is the checkpoint writer. It writes after mutations and on every tick,
// and performs a final write when ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := s.Flush(flushCtx)
			cancel()
			if err != nil {
				log.Error().Err(err).Msg("Final ranking checkpoint failed")
			} else {
				log.Info().Msg("Ranking checkpoint written on shutdown")
			}
			return nil
		case <-s.wake:
			s.write(ctx)
		case <-ticker.C:
			s.write(ctx)
		}
	}
}

func (s *Store) write(ctx context.Context) {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := s.Flush(writeCtx); err != nil {
		log.Error().Err(err).Msg("Failed to write ranking checkpoint, will retry")
		return
	}
	log.Debug().Int("players", s.Len()).Msg("Ranking checkpoint written")
}
