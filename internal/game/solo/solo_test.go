package solo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizbot/internal/game"
	"quizbot/internal/model"
	"quizbot/internal/question"
	"quizbot/internal/ranking"
)

type nopRepo struct{}

func (nopRepo) Load(context.Context) ([]model.RankEntry, error) { return nil, nil }
func (nopRepo) Save(context.Context, []model.RankEntry) error   { return nil }

// scriptedProvider returns numbered questions whose correct answer is
// always option 0, failing the calls listed in failOn (1-based).
type scriptedProvider struct {
	calls  atomic.Int32
	failOn map[int32]bool
	// gate, when set, blocks every call after the first until closed.
	gate chan struct{}
}

func (p *scriptedProvider) Fetch(ctx context.Context, c model.Category, d model.Difficulty) (*model.Question, error) {
	n := p.calls.Add(1)
	if p.gate != nil && n > 1 {
		<-p.gate
	}
	if p.failOn[n] {
		return nil, errors.Join(question.ErrProviderFailure, errors.New("boom"))
	}
	return &model.Question{
		Text:         "pergunta",
		Options:      [4]string{"certa", "b", "c", "d"},
		CorrectIndex: 0,
		Explanation:  "porque sim",
		Category:     c,
		Difficulty:   d,
		Points:       d.Points(),
	}, nil
}

var ana = model.Player{ID: 1, Name: "ana"}

func newTestEngine(p question.Provider) (*Engine, *ranking.Store) {
	store := ranking.NewStore(nopRepo{})
	return NewEngine(p, store, time.Minute), store
}

// answer submits index for the player's current question.
func answer(e *Engine, p model.Player, index int) (*AnswerResult, error) {
	g, _ := e.Active(p.ID)
	return e.SubmitAnswer(context.Background(), p, g.Seq, index)
}

func TestSoloHappyPath(t *testing.T) {
	p := &scriptedProvider{}
	e, store := newTestEngine(p)
	ctx := context.Background()

	started, err := e.Start(ctx, ana, 100, model.CategoryScience, model.DifficultyEasy)
	require.NoError(t, err)
	assert.Len(t, started.Question.Options, 4)

	res, err := e.SubmitAnswer(ctx, ana, started.Seq, started.Question.CorrectIndex)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, int64(1), res.Points)
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, 1, res.Streak)
	assert.False(t, res.Ended)
	require.NotNil(t, res.Next)

	g, ok := e.Active(ana.ID)
	require.True(t, ok)
	assert.Equal(t, 1, g.Streak)
	assert.Same(t, res.Next, g.Question)
	assert.Equal(t, res.NextSeq, g.Seq)
	assert.NotEqual(t, started.Seq, g.Seq)
	assert.Equal(t, int64(100), g.ChatID)

	total, _ := store.Total(ana.ID)
	assert.Equal(t, int64(1), total)
}

func TestSoloStreakAccumulates(t *testing.T) {
	e, store := newTestEngine(&scriptedProvider{})
	ctx := context.Background()

	_, err := e.Start(ctx, ana, 1, model.CategoryHistory, model.DifficultyHard)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		res, err := answer(e, ana, 0)
		require.NoError(t, err)
		assert.Equal(t, i, res.Streak)
	}

	total, _ := store.Total(ana.ID)
	assert.Equal(t, int64(15), total)
}

func TestSoloMissEndsRun(t *testing.T) {
	e, store := newTestEngine(&scriptedProvider{})
	ctx := context.Background()

	_, err := e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyMedium)
	require.NoError(t, err)
	_, err = answer(e, ana, 0)
	require.NoError(t, err)

	res, err := answer(e, ana, 2)
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.True(t, res.Ended)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, "porque sim", res.Answered.Explanation)

	_, ok := e.Active(ana.ID)
	assert.False(t, ok)

	total, _ := store.Total(ana.ID)
	assert.Equal(t, int64(3), total)

	_, err = answer(e, ana, 0)
	assert.ErrorIs(t, err, game.ErrNoActiveGame)
}

func TestSoloNextQuestionFailureKeepsPoints(t *testing.T) {
	p := &scriptedProvider{failOn: map[int32]bool{2: true}}
	e, store := newTestEngine(p)
	ctx := context.Background()

	_, err := e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)

	res, err := answer(e, ana, 0)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.True(t, res.Ended)
	assert.Nil(t, res.Next)
	assert.ErrorIs(t, res.NextErr, question.ErrProviderFailure)

	_, ok := e.Active(ana.ID)
	assert.False(t, ok)
	total, _ := store.Total(ana.ID)
	assert.Equal(t, int64(1), total)
}

func TestSoloStartFailureChangesNothing(t *testing.T) {
	p := &scriptedProvider{failOn: map[int32]bool{2: true}}
	e, _ := newTestEngine(p)
	ctx := context.Background()

	first, err := e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)

	_, err = e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	assert.ErrorIs(t, err, question.ErrProviderFailure)

	g, ok := e.Active(ana.ID)
	require.True(t, ok)
	assert.Same(t, first.Question, g.Question)
}

func TestSoloStartReplacesGame(t *testing.T) {
	e, _ := newTestEngine(&scriptedProvider{})
	ctx := context.Background()

	_, err := e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)
	_, err = answer(e, ana, 0)
	require.NoError(t, err)

	_, err = e.Start(ctx, ana, 1, model.CategorySports, model.DifficultyHard)
	require.NoError(t, err)

	g, ok := e.Active(ana.ID)
	require.True(t, ok)
	assert.Equal(t, 0, g.Streak)
	assert.Equal(t, model.CategorySports, g.Category)
	assert.Equal(t, 1, e.Len())
}

func TestSoloRejectsBadInput(t *testing.T) {
	e, _ := newTestEngine(&scriptedProvider{})
	ctx := context.Background()

	_, err := e.Start(ctx, ana, 1, model.Category("Culinária"), model.DifficultyEasy)
	assert.ErrorIs(t, err, game.ErrInvalidSelection)

	_, err = e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)
	_, err = answer(e, ana, 4)
	assert.ErrorIs(t, err, game.ErrInvalidAnswer)

	_, ok := e.Active(ana.ID)
	assert.True(t, ok, "an invalid option must not consume the game")
}

func TestSoloDoubleTapScoresOnce(t *testing.T) {
	p := &scriptedProvider{gate: make(chan struct{})}
	e, store := newTestEngine(p)
	ctx := context.Background()

	_, err := e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)

	first := make(chan *AnswerResult, 1)
	go func() {
		res, err := answer(e, ana, 0)
		assert.NoError(t, err)
		first <- res
	}()

	// Wait until the first answer is scored and blocked fetching the next question.
	require.Eventually(t, func() bool { return p.calls.Load() == 2 }, time.Second, time.Millisecond)

	for i := 0; i < 4; i++ {
		_, err := answer(e, ana, 0)
		assert.ErrorIs(t, err, game.ErrBusy)
	}
	close(p.gate)

	res := <-first
	require.NotNil(t, res)
	assert.True(t, res.Correct)
	total, _ := store.Total(ana.ID)
	assert.Equal(t, int64(1), total)
}

func TestSoloIndependentPlayers(t *testing.T) {
	e, store := newTestEngine(&scriptedProvider{})
	ctx := context.Background()
	bia := model.Player{ID: 2, Name: "bia"}

	_, err := e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)
	_, err = e.Start(ctx, bia, 1, model.CategoryGeneral, model.DifficultyHard)
	require.NoError(t, err)

	_, err = answer(e, ana, 1)
	require.NoError(t, err)
	_, err = answer(e, bia, 0)
	require.NoError(t, err)

	_, ok := e.Active(ana.ID)
	assert.False(t, ok)
	_, ok = e.Active(bia.ID)
	assert.True(t, ok)
	total, _ := store.Total(bia.ID)
	assert.Equal(t, int64(5), total)
}

func TestSoloExpireIdle(t *testing.T) {
	e, _ := newTestEngine(&scriptedProvider{})
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }
	ctx := context.Background()

	_, err := e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)

	assert.Equal(t, 0, e.ExpireIdle(base.Add(30*time.Second)))
	assert.Equal(t, 1, e.ExpireIdle(base.Add(2*time.Minute)))

	_, err = answer(e, ana, 0)
	assert.ErrorIs(t, err, game.ErrNoActiveGame)
}

func TestSoloExpireIdleSkipsBusyPlayer(t *testing.T) {
	e, _ := newTestEngine(&scriptedProvider{})
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	_, err := e.Start(context.Background(), ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)

	e.locks.Lock(ana.ID)
	assert.Equal(t, 0, e.ExpireIdle(base.Add(time.Hour)))
	e.locks.Unlock(ana.ID)

	assert.Equal(t, 1, e.ExpireIdle(base.Add(time.Hour)))
}

func TestSoloAbandon(t *testing.T) {
	e, store := newTestEngine(&scriptedProvider{})
	ctx := context.Background()

	_, err := e.Abandon(ana.ID)
	assert.ErrorIs(t, err, game.ErrNoActiveGame)

	_, err = e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)
	_, err = answer(e, ana, 0)
	require.NoError(t, err)

	g, err := e.Abandon(ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Streak)
	assert.Equal(t, 0, e.Len())

	total, _ := store.Total(ana.ID)
	assert.Equal(t, int64(1), total, "abandoning keeps points already earned")
}

func TestSoloAbandonWhileAnswering(t *testing.T) {
	e, _ := newTestEngine(&scriptedProvider{})

	_, err := e.Start(context.Background(), ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)

	e.locks.Lock(ana.ID)
	_, err = e.Abandon(ana.ID)
	assert.ErrorIs(t, err, game.ErrBusy)
	e.locks.Unlock(ana.ID)

	_, ok := e.Active(ana.ID)
	assert.True(t, ok)
}

func TestSoloStaleQuestionRejected(t *testing.T) {
	p := &scriptedProvider{}
	e, store := newTestEngine(p)
	ctx := context.Background()

	first, err := e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)
	second, err := e.Start(ctx, ana, 1, model.CategoryGeneral, model.DifficultyEasy)
	require.NoError(t, err)
	require.NotEqual(t, first.Seq, second.Seq)

	_, err = e.SubmitAnswer(ctx, ana, first.Seq, 1)
	assert.ErrorIs(t, err, game.ErrInvalidState)

	g, ok := e.Active(ana.ID)
	require.True(t, ok, "a press on an old question must not end the run")
	assert.Equal(t, second.Seq, g.Seq)

	res, err := e.SubmitAnswer(ctx, ana, second.Seq, 0)
	require.NoError(t, err)
	assert.True(t, res.Correct)

	_, err = e.SubmitAnswer(ctx, ana, second.Seq, 0)
	assert.ErrorIs(t, err, game.ErrInvalidState, "the answered question is stale once the next one is out")
	total, _ := store.Total(ana.ID)
	assert.Equal(t, int64(1), total)
}
