package ranking

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"quizbot/internal/model"
	"quizbot/internal/repository"
)

// memRepo is an in-memory Repository that records saves.
type memRepo struct {
	mu      sync.Mutex
	data    []model.RankEntry
	loadErr error
	saveErr error
	saves   int
}

func (r *memRepo) Load(context.Context) ([]model.RankEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return append([]model.RankEntry(nil), r.data...), nil
}

func (r *memRepo) Save(_ context.Context, entries []model.RankEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.data = append([]model.RankEntry(nil), entries...)
	r.saves++
	return nil
}

func (r *memRepo) snapshot() ([]model.RankEntry, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.RankEntry(nil), r.data...), r.saves
}

type memMirror struct {
	mu        sync.Mutex
	published [][]model.RankEntry
}

func (m *memMirror) Publish(_ context.Context, entries []model.RankEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, entries)
	return nil
}

func TestRecordPoints_CreatesAndAccumulates(t *testing.T) {
	s := NewStore(&memRepo{})

	total, err := s.RecordPoints(1, "ana", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	total, err = s.RecordPoints(1, "ana", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)

	got, ok := s.Total(1)
	assert.True(t, ok)
	assert.Equal(t, int64(8), got)

	_, ok = s.Total(2)
	assert.False(t, ok)
}

func TestRecordPoints_ZeroRefreshesUsername(t *testing.T) {
	s := NewStore(&memRepo{})

	_, err := s.RecordPoints(1, "old", 4)
	require.NoError(t, err)
	total, err := s.RecordPoints(1, "new", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	top := s.TopN(1)
	require.Len(t, top, 1)
	assert.Equal(t, "new", top[0].Username)
}

func TestRecordPoints_ZeroCreatesEntry(t *testing.T) {
	s := NewStore(&memRepo{})

	total, err := s.RecordPoints(7, "lurker", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Position(7))
}

func TestRecordPoints_RejectsNegative(t *testing.T) {
	s := NewStore(&memRepo{})

	_, err := s.RecordPoints(1, "ana", -1)
	assert.ErrorIs(t, err, ErrNegativePoints)
	assert.Equal(t, 0, s.Len())
}

func TestTopN_TiesKeepInsertionOrder(t *testing.T) {
	s := NewStore(&memRepo{})

	mustRecord(t, s, 3, "c", 5)
	mustRecord(t, s, 1, "a", 5)
	mustRecord(t, s, 2, "b", 9)
	mustRecord(t, s, 4, "d", 5)

	top := s.TopN(0)
	require.Len(t, top, 4)
	assert.Equal(t, []int64{2, 3, 1, 4}, ids(top))

	assert.Equal(t, []int64{2, 3}, ids(s.TopN(2)))
	assert.Equal(t, 4, s.Position(4))
	assert.Equal(t, 0, s.Position(99))
}

func TestTopN_Empty(t *testing.T) {
	s := NewStore(&memRepo{})
	assert.Empty(t, s.TopN(10))
}

func TestLoad_RestoresOrderAndTotals(t *testing.T) {
	repo := &memRepo{data: []model.RankEntry{
		{PlayerID: 5, Username: "e", Points: 2},
		{PlayerID: 6, Username: "f", Points: 2},
	}}
	s := NewStore(repo)
	s.Load(context.Background())

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int64{5, 6}, ids(s.TopN(0)))

	mustRecord(t, s, 7, "g", 2)
	assert.Equal(t, []int64{5, 6, 7}, ids(s.TopN(0)))
}

func TestLoad_MissingCheckpointWritesFreshFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz_data.json")
	s := NewStore(repository.NewFileRanking(path))

	s.Load(context.Background())
	assert.Equal(t, 0, s.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"globalRanking":[]}`, string(data))
}

func TestLoad_CorruptCheckpointStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz_data.json")
	require.NoError(t, os.WriteFile(path, []byte("][ definitely not json"), 0o644))
	s := NewStore(repository.NewFileRanking(path))

	s.Load(context.Background())
	assert.Equal(t, 0, s.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"globalRanking":[]}`, string(data))
}

func TestLoad_UnreadableRepositoryStillUsable(t *testing.T) {
	repo := &memRepo{loadErr: errors.New("connection refused")}
	s := NewStore(repo)

	require.NoError(t, s.Load(context.Background()))
	mustRecord(t, s, 1, "ana", 1)
	assert.Equal(t, 1, s.Len())
}

func TestLoad_StrictFailureKeepsStoredTotals(t *testing.T) {
	repo := &memRepo{
		data:    []model.RankEntry{{PlayerID: 1, Username: "ana", Points: 120}},
		loadErr: errors.New("connection reset by peer"),
	}
	s := NewStore(repo, WithStrictLoad())
	ctx := context.Background()

	err := s.Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.loadErr)

	stored, saves := repo.snapshot()
	assert.Zero(t, saves, "a failed strict load must not write a checkpoint")
	assert.Equal(t, int64(120), stored[0].Points)

	repo.mu.Lock()
	repo.loadErr = nil
	repo.mu.Unlock()

	require.NoError(t, s.Load(ctx))
	total, err := s.RecordPoints(1, "ana", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(123), total)

	require.NoError(t, s.Flush(ctx))
	stored, _ = repo.snapshot()
	assert.Equal(t, int64(123), stored[0].Points)
}

func TestLoad_StrictMissingCheckpointStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz_data.json")
	s := NewStore(repository.NewFileRanking(path), WithStrictLoad())

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 0, s.Len())
	assert.FileExists(t, path)
}

func TestFlush_RoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz_data.json")
	ctx := context.Background()

	s := NewStore(repository.NewFileRanking(path))
	mustRecord(t, s, 10, "x", 3)
	mustRecord(t, s, 20, "y", 3)
	mustRecord(t, s, 30, "z", 1)
	require.NoError(t, s.Flush(ctx))
	assert.False(t, s.Dirty())

	restored := NewStore(repository.NewFileRanking(path))
	restored.Load(ctx)
	assert.Equal(t, s.TopN(0), restored.TopN(0))
}

func TestFlush_FailureKeepsDirty(t *testing.T) {
	repo := &memRepo{saveErr: errors.New("disk full")}
	s := NewStore(repo)
	mustRecord(t, s, 1, "ana", 1)

	assert.Error(t, s.Flush(context.Background()))
	assert.True(t, s.Dirty())

	repo.mu.Lock()
	repo.saveErr = nil
	repo.mu.Unlock()
	require.NoError(t, s.Flush(context.Background()))
	assert.False(t, s.Dirty())
}

func TestFlush_PublishesToMirror(t *testing.T) {
	mirror := &memMirror{}
	s := NewStore(&memRepo{}, WithMirror(mirror))
	mustRecord(t, s, 1, "ana", 2)

	require.NoError(t, s.Flush(context.Background()))

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	require.Len(t, mirror.published, 1)
	assert.Equal(t, []model.RankEntry{{PlayerID: 1, Username: "ana", Points: 2}}, mirror.published[0])
}

func TestRun_WritesAfterMutationAndOnShutdown(t *testing.T) {
	repo := &memRepo{}
	s := NewStore(repo, WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	mustRecord(t, s, 1, "ana", 3)
	require.Eventually(t, func() bool {
		data, _ := repo.snapshot()
		return len(data) == 1 && data[0].Points == 3
	}, 2*time.Second, 10*time.Millisecond)

	mustRecord(t, s, 1, "ana", 2)
	cancel()
	require.NoError(t, <-done)

	data, _ := repo.snapshot()
	require.Len(t, data, 1)
	assert.Equal(t, int64(5), data[0].Points)
	assert.False(t, s.Dirty())
}

func TestRun_PeriodicFlush(t *testing.T) {
	repo := &memRepo{}
	s := NewStore(repo, WithFlushInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, saves := repo.snapshot()
		return saves >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

// TestConcurrentRecordPointsProperty checks that concurrent awards never lose
// an increment and that every total equals the sum of awards for the player.
func TestConcurrentRecordPointsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numPlayers := rapid.IntRange(1, 5).Draw(t, "numPlayers")
		awards := rapid.SliceOfN(rapid.Int64Range(0, 5), 1, 60).Draw(t, "awards")

		s := NewStore(&memRepo{})
		expected := make(map[int64]int64)
		var wg sync.WaitGroup
		for i, pts := range awards {
			id := int64(i % numPlayers)
			expected[id] += pts
			wg.Add(1)
			go func(id, pts int64) {
				defer wg.Done()
				if _, err := s.RecordPoints(id, "p", pts); err != nil {
					t.Errorf("RecordPoints: %v", err)
				}
			}(id, pts)
		}
		wg.Wait()

		for id, want := range expected {
			got, ok := s.Total(id)
			if !ok || got != want {
				t.Fatalf("player %d: got %d (ranked=%v), want %d", id, got, ok, want)
			}
		}
	})
}

// TestTotalsMonotonicProperty checks that a player's total never decreases
// and that TopN is always sorted by points descending.
func TestTotalsMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore(&memRepo{})
		last := make(map[int64]int64)

		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.Int64Range(1, 8).Draw(t, "id")
			pts := rapid.Int64Range(0, 5).Draw(t, "pts")
			total, err := s.RecordPoints(id, "p", pts)
			if err != nil {
				t.Fatalf("RecordPoints: %v", err)
			}
			if total < last[id] {
				t.Fatalf("total for %d decreased from %d to %d", id, last[id], total)
			}
			last[id] = total
		}

		top := s.TopN(0)
		for i := 1; i < len(top); i++ {
			if top[i-1].Points < top[i].Points {
				t.Fatalf("TopN not sorted at %d: %d < %d", i, top[i-1].Points, top[i].Points)
			}
		}
	})
}

func mustRecord(t *testing.T, s *Store, id int64, name string, pts int64) {
	t.Helper()
	_, err := s.RecordPoints(id, name, pts)
	require.NoError(t, err)
}

func ids(entries []model.RankEntry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.PlayerID
	}
	return out
}
