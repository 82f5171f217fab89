package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gaming-platform/internal/domain"
)

// CreateSession inserts a session and its player memberships in one
// transaction.
func (r *Repository) CreateSession(ctx context.Context, session *domain.GameSession) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		query := `
			INSERT INTO game_sessions (id, game_id, max_players, started_at, ended_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		_, err := tx.Exec(ctx, query,
			session.ID, session.GameID, session.MaxPlayers,
			session.StartedAt, session.EndedAt,
		)
		if err != nil {
			return err
		}

		for _, player := range session.Players {
			_, err := tx.Exec(ctx,
				`INSERT INTO session_players (session_id, user_id) VALUES ($1, $2)`,
				session.ID, player.ID,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating game session: %w", err)
	}
	return nil
}

// GetSessionByID retrieves a session together with its resolved player list,
// ordered by join time.
func (r *Repository) GetSessionByID(ctx context.Context, id uuid.UUID) (*domain.GameSession, error) {
	var session domain.GameSession
	query := `
		SELECT id, game_id, max_players, started_at, ended_at
		FROM game_sessions
		WHERE id = $1
	`
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID, &session.GameID, &session.MaxPlayers,
		&session.StartedAt, &session.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("getting game session: %w", err)
	}

	playersQuery := `
		SELECT u.id, u.username, u.email, u.password_hash, u.registered_at, u.current_session_id
		FROM session_players sp
		JOIN users u ON u.id = sp.user_id
		WHERE sp.session_id = $1
		ORDER BY sp.joined_at
	`
	rows, err := r.pool.Query(ctx, playersQuery, id)
	if err != nil {
		return nil, fmt.Errorf("getting session players: %w", err)
	}
	defer rows.Close()

	session.Players, err = scanUsers(rows)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
