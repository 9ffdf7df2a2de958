// Tests for the PostgreSQL backend use testcontainers-go to spin up a
// database and are skipped when Docker is unavailable.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"quizbot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container with the ranking schema applied.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, NewPostgresRanking(pool).Migrate(ctx))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func TestPostgresRanking_LoadEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPostgresRanking(pool)
	entries, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPostgresRanking_SaveAndLoadKeepsOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPostgresRanking(pool)
	ctx := context.Background()

	want := []model.RankEntry{
		{PlayerID: 30, Username: "carol", Points: 5},
		{PlayerID: 10, Username: "alice", Points: 5},
		{PlayerID: 20, Username: "bob", Points: 1},
	}
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPostgresRanking_SaveUpserts(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPostgresRanking(pool)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, []model.RankEntry{
		{PlayerID: 1, Username: "old", Points: 1},
	}))
	require.NoError(t, repo.Save(ctx, []model.RankEntry{
		{PlayerID: 1, Username: "new", Points: 4},
		{PlayerID: 2, Username: "second", Points: 3},
	}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.RankEntry{PlayerID: 1, Username: "new", Points: 4}, got[0])
	assert.Equal(t, model.RankEntry{PlayerID: 2, Username: "second", Points: 3}, got[1])
}

func TestPostgresRanking_MigrateIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, NewPostgresRanking(pool).Migrate(context.Background()))
}
