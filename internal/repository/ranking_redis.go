package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"quizbot/internal/model"
)

// DefaultLeaderboardKey is the sorted-set key used by the Redis mirror.
const DefaultLeaderboardKey = "quiz:ranking"

// RedisLeaderboard mirrors checkpointed rankings into a Redis sorted set
// (player id -> points) plus a hash of display names, so dashboards can read
// the leaderboard without touching the bot.
type RedisLeaderboard struct {
	client *redis.Client
	key    string
}

// NewRedisLeaderboard creates a mirror writing under key.
func NewRedisLeaderboard(client *redis.Client, key string) *RedisLeaderboard {
	if key == "" {
		key = DefaultLeaderboardKey
	}
	return &RedisLeaderboard{client: client, key: key}
}

func (l *RedisLeaderboard) namesKey() string {
	return l.key + ":names"
}

// Publish writes every entry in a single pipeline. Scores are absolute
// totals, so replaying the same snapshot is idempotent.
func (l *RedisLeaderboard) Publish(ctx context.Context, entries []model.RankEntry) error {
	if len(entries) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(entries))
	names := make(map[string]any, len(entries))
	for _, e := range entries {
		id := strconv.FormatInt(e.PlayerID, 10)
		members = append(members, redis.Z{Score: float64(e.Points), Member: id})
		names[id] = e.Username
	}

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, l.key, members...)
	pipe.HSet(ctx, l.namesKey(), names)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish leaderboard: %w", err)
	}
	return nil
}

// Top returns the mirrored top entries, highest score first.
func (l *RedisLeaderboard) Top(ctx context.Context, limit int64) ([]model.RankEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	members, err := l.client.ZRevRangeWithScores(ctx, l.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i], _ = m.Member.(string)
	}
	names, err := l.client.HMGet(ctx, l.namesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard names: %w", err)
	}

	entries := make([]model.RankEntry, 0, len(members))
	for i, m := range members {
		id, err := strconv.ParseInt(ids[i], 10, 64)
		if err != nil {
			continue
		}
		name, _ := names[i].(string)
		entries = append(entries, model.RankEntry{
			PlayerID: id,
			Username: name,
			Points:   int64(m.Score),
		})
	}
	return entries, nil
}
