package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gaming-platform/internal/domain"
)

// CreateGame inserts a new catalog entry.
func (r *Repository) CreateGame(ctx context.Context, game *domain.Game) error {
	query := `INSERT INTO games (id, name, description) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, game.ID, game.Name, game.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateGame
		}
		return fmt.Errorf("creating game: %w", err)
	}
	return nil
}

// GetGameByID retrieves a game by id.
func (r *Repository) GetGameByID(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	var game domain.Game
	query := `SELECT id, name, description FROM games WHERE id = $1`
	err := r.pool.QueryRow(ctx, query, id).Scan(&game.ID, &game.Name, &game.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("getting game: %w", err)
	}
	return &game, nil
}

// ListGames returns the full catalog ordered by name.
func (r *Repository) ListGames(ctx context.Context) ([]domain.Game, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM games ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		var game domain.Game
		if err := rows.Scan(&game.ID, &game.Name, &game.Description); err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

// GameIDs returns the ids of every game in the catalog.
func (r *Repository) GameIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM games`)
	if err != nil {
		return nil, fmt.Errorf("listing game ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateGame persists name and description changes.
func (r *Repository) UpdateGame(ctx context.Context, game *domain.Game) error {
	query := `UPDATE games SET name = $2, description = $3 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, game.ID, game.Name, game.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateGame
		}
		return fmt.Errorf("updating game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrGameNotFound
	}
	return nil
}

// DeleteGame removes a game and, through cascades, its sessions.
func (r *Repository) DeleteGame(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrGameNotFound
	}
	return nil
}
