package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gaming-platform/internal/domain"
)

// CreateScore inserts an immutable scoring event.
func (r *Repository) CreateScore(ctx context.Context, score *domain.Score) error {
	query := `
		INSERT INTO scores (id, user_id, session_id, points, action_type, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		score.ID, score.UserID, score.GameSessionID,
		score.Points, string(score.ActionType), score.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("creating score: %w", err)
	}
	return nil
}

// ListScoresByUser returns a user's scores, newest first.
func (r *Repository) ListScoresByUser(ctx context.Context, userID uuid.UUID) ([]domain.Score, error) {
	query := `
		SELECT id, user_id, session_id, points, action_type, recorded_at
		FROM scores
		WHERE user_id = $1
		ORDER BY recorded_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.Score
	for rows.Next() {
		var score domain.Score
		err := rows.Scan(
			&score.ID, &score.UserID, &score.GameSessionID,
			&score.Points, &score.ActionType, &score.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

// UpsertLeaderboardTotal adds delta to a user's durable point total and
// returns the new total.
func (r *Repository) UpsertLeaderboardTotal(ctx context.Context, userID uuid.UUID, delta int64) (int64, error) {
	query := `
		INSERT INTO leaderboard (user_id, total_points, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET total_points = leaderboard.total_points + $2, updated_at = NOW()
		RETURNING total_points
	`
	var total int64
	if err := r.pool.QueryRow(ctx, query, userID, delta).Scan(&total); err != nil {
		return 0, fmt.Errorf("upserting leaderboard total: %w", err)
	}
	return total, nil
}

// SumPointsByUser aggregates every recorded score into per-user totals. The
// scores table is the source of truth the boards are rebuilt from.
func (r *Repository) SumPointsByUser(ctx context.Context) (map[uuid.UUID]int64, error) {
	query := `SELECT user_id, COALESCE(SUM(points), 0) FROM scores GROUP BY user_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("summing points: %w", err)
	}
	defer rows.Close()

	return scanTotals(rows)
}

// SumPointsByUserForGame aggregates scores recorded in sessions of one game.
func (r *Repository) SumPointsByUserForGame(ctx context.Context, gameID uuid.UUID) (map[uuid.UUID]int64, error) {
	query := `
		SELECT s.user_id, COALESCE(SUM(s.points), 0)
		FROM scores s
		JOIN game_sessions gs ON gs.id = s.session_id
		WHERE gs.game_id = $1
		GROUP BY s.user_id
	`
	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("summing points for game: %w", err)
	}
	defer rows.Close()

	return scanTotals(rows)
}

func scanTotals(rows pgx.Rows) (map[uuid.UUID]int64, error) {
	totals := make(map[uuid.UUID]int64)
	for rows.Next() {
		var userID uuid.UUID
		var total int64
		if err := rows.Scan(&userID, &total); err != nil {
			return nil, fmt.Errorf("scanning total: %w", err)
		}
		totals[userID] = total
	}
	return totals, rows.Err()
}
