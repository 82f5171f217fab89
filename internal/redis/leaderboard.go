package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gaming-platform/internal/config"
	"github.com/gaming-platform/internal/domain"
)

// Leaderboard provides sorted-set backed point boards. Members are user ids,
// scores are running point totals.
type Leaderboard struct {
	client *redis.Client
	logger *slog.Logger
}

// NewLeaderboard connects to Redis and verifies connectivity.
func NewLeaderboard(cfg *config.RedisConfig, logger *slog.Logger) (*Leaderboard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Leaderboard{client: client, logger: logger}, nil
}

// Close closes the Redis connection.
func (l *Leaderboard) Close() error {
	return l.client.Close()
}

func boardKey(board string) string {
	return "lb:" + board
}

// AddPoints increments a user's total on the board and returns the new total.
func (l *Leaderboard) AddPoints(ctx context.Context, board string, userID uuid.UUID, delta int64) (int64, error) {
	total, err := l.client.ZIncrBy(ctx, boardKey(board), float64(delta), userID.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing points: %w", err)
	}
	return int64(total), nil
}

// TopN returns the highest-ranked entries on the board.
func (l *Leaderboard) TopN(ctx context.Context, board string, n int) ([]domain.LeaderboardEntry, error) {
	results, err := l.client.ZRevRangeWithScores(ctx, boardKey(board), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top entries: %w", err)
	}
	return entriesFromZ(results, 1), nil
}

// UserRank returns a user's rank and total on the board.
func (l *Leaderboard) UserRank(ctx context.Context, board string, userID uuid.UUID) (*domain.LeaderboardEntry, error) {
	key := boardKey(board)
	member := userID.String()

	pipe := l.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, key, member)
	scoreCmd := pipe.ZScore(ctx, key, member)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotRanked
		}
		return nil, fmt.Errorf("getting user rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotRanked
		}
		return nil, fmt.Errorf("getting rank result: %w", err)
	}
	total, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}

	return &domain.LeaderboardEntry{
		Rank:        rank + 1,
		UserID:      userID,
		TotalPoints: int64(total),
	}, nil
}

// Count returns the number of ranked users on the board.
func (l *Leaderboard) Count(ctx context.Context, board string) (int64, error) {
	count, err := l.client.ZCard(ctx, boardKey(board)).Result()
	if err != nil {
		return 0, fmt.Errorf("counting board entries: %w", err)
	}
	return count, nil
}

// BatchSetTotals replaces users' totals on the board using pipelining.
func (l *Leaderboard) BatchSetTotals(ctx context.Context, board string, totals map[uuid.UUID]int64) error {
	key := boardKey(board)
	pipe := l.client.Pipeline()
	for userID, total := range totals {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(total), Member: userID.String()})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch setting totals: %w", err)
	}
	return nil
}

// Reset clears every entry on the board.
func (l *Leaderboard) Reset(ctx context.Context, board string) error {
	if err := l.client.Del(ctx, boardKey(board)).Err(); err != nil {
		return fmt.Errorf("resetting board: %w", err)
	}
	return nil
}

// RemoveUser drops a user from the board.
func (l *Leaderboard) RemoveUser(ctx context.Context, board string, userID uuid.UUID) error {
	if err := l.client.ZRem(ctx, boardKey(board), userID.String()).Err(); err != nil {
		return fmt.Errorf("removing user from board: %w", err)
	}
	return nil
}

func entriesFromZ(results []redis.Z, startRank int64) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for i, result := range results {
		member, _ := result.Member.(string)
		userID, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:        startRank + int64(i),
			UserID:      userID,
			TotalPoints: int64(result.Score),
		})
	}
	return entries
}
