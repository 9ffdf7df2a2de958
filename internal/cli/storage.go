package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quizbot/internal/config"
	"quizbot/internal/pkg/db"
	"quizbot/internal/ranking"
	"quizbot/internal/repository"
)

// openRepository builds the configured ranking checkpoint backend. The
// returned close function is never nil.
func openRepository(ctx context.Context, cfg *config.Config) (ranking.Repository, func(), error) {
	switch cfg.Ranking.Backend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := repository.NewPostgresRanking(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return repo, pool.Close, nil
	case config.BackendFile, "":
		repo := repository.NewFileRanking(cfg.Ranking.Path)
		log.Info().Str("path", repo.Path()).Msg("Using file ranking checkpoint")
		return repo, func() {}, nil
	}
	return nil, func() {}, fmt.Errorf("unknown ranking backend %q", cfg.Ranking.Backend)
}

// storeOptions configures the ranking store for the chosen backend. The
// PostgreSQL checkpoint is upserted row by row, so an unreadable table must
// stop startup rather than be treated as an empty ranking.
func storeOptions(cfg *config.Config) []ranking.Option {
	opts := []ranking.Option{ranking.WithFlushInterval(cfg.Ranking.FlushInterval)}
	if cfg.Ranking.Backend == config.BackendPostgres {
		opts = append(opts, ranking.WithStrictLoad())
	}
	return opts
}

// openMirror connects the Redis leaderboard mirror when redis.addr is set.
// An unreachable Redis only disables the mirror.
func openMirror(ctx context.Context, cfg *config.Config) (*repository.RedisLeaderboard, func()) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, leaderboard mirror disabled")
		_ = client.Close()
		return nil, func() {}
	}

	log.Info().Str("addr", cfg.Redis.Addr).Str("key", cfg.Redis.Key).Msg("Redis leaderboard mirror enabled")
	return repository.NewRedisLeaderboard(client, cfg.Redis.Key), func() { _ = client.Close() }
}
