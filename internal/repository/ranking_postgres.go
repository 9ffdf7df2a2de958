package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quizbot/internal/model"
)

// PostgresRanking stores the ranking checkpoint in a PostgreSQL table.
// The position column keeps insertion order so tie-breaking survives a
// restart exactly like the file backend.
type PostgresRanking struct {
	pool *pgxpool.Pool
}

// NewPostgresRanking creates a PostgreSQL-backed ranking repository.
func NewPostgresRanking(pool *pgxpool.Pool) *PostgresRanking {
	return &PostgresRanking{pool: pool}
}

// Migrate creates the ranking table if it does not exist.
func (r *PostgresRanking) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS quiz_ranking (
			player_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),
			position INT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_quiz_ranking_points ON quiz_ranking(points DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create quiz_ranking table: %w", err)
	}
	return nil
}

// Load reads every entry in insertion order.
func (r *PostgresRanking) Load(ctx context.Context) ([]model.RankEntry, error) {
	const query = `
		SELECT player_id, username, points
		FROM quiz_ranking
		ORDER BY position ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking: %w", err)
	}
	defer rows.Close()

	var entries []model.RankEntry
	for rows.Next() {
		var e model.RankEntry
		if err := rows.Scan(&e.PlayerID, &e.Username, &e.Points); err != nil {
			return nil, fmt.Errorf("failed to scan ranking row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ranking rows: %w", err)
	}
	return entries, nil
}

// Save upserts the full snapshot in one transaction.
// Entries are never deleted, so rows absent from the snapshot are left alone.
func (r *PostgresRanking) Save(ctx context.Context, entries []model.RankEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsert = `
		INSERT INTO quiz_ranking (player_id, username, points, position, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (player_id) DO UPDATE
		SET username = EXCLUDED.username,
			points = EXCLUDED.points,
			position = EXCLUDED.position,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for i, e := range entries {
		batch.Queue(upsert, e.PlayerID, e.Username, e.Points, i)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save ranking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ranking: %w", err)
	}
	return nil
}
