package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gaming-platform/internal/domain"
)

// GameService owns the game catalog. Its operations are thin CRUD wrappers;
// any lower-level failure surfaces as a game-family error with the cause
// preserved.
type GameService struct {
	games  GameRepository
	logger *slog.Logger
}

// NewGameService creates a game service.
func NewGameService(games GameRepository, logger *slog.Logger) *GameService {
	return &GameService{games: games, logger: logger}
}

// AddGame validates and creates a catalog entry.
func (s *GameService) AddGame(ctx context.Context, game *domain.Game) (*domain.Game, error) {
	if err := validateGame(game); err != nil {
		return nil, err
	}
	if game.ID == uuid.Nil {
		game.ID = uuid.New()
	}

	if err := s.games.CreateGame(ctx, game); err != nil {
		if errors.Is(err, domain.ErrDuplicateGame) {
			return nil, domain.NewGameError(domain.KindDuplicate, "game with this name already exists")
		}
		return nil, domain.WrapGameError(err, "adding game")
	}
	return game, nil
}

// UpdateGame validates and persists changes to an existing entry.
func (s *GameService) UpdateGame(ctx context.Context, game *domain.Game) (*domain.Game, error) {
	if err := validateGame(game); err != nil {
		return nil, err
	}

	if err := s.games.UpdateGame(ctx, game); err != nil {
		switch {
		case errors.Is(err, domain.ErrGameNotFound):
			return nil, domain.NewGameError(domain.KindNotFound, "game not found")
		case errors.Is(err, domain.ErrDuplicateGame):
			return nil, domain.NewGameError(domain.KindDuplicate, "game with this name already exists")
		}
		return nil, domain.WrapGameError(err, "updating game")
	}
	return game, nil
}

// DeleteGame removes a catalog entry.
func (s *GameService) DeleteGame(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetGameByID(ctx, id); err != nil {
		return err
	}
	if err := s.games.DeleteGame(ctx, id); err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			return domain.NewGameError(domain.KindNotFound, "game not found")
		}
		return domain.WrapGameError(err, "deleting game")
	}
	return nil
}

// GetGameByID retrieves one catalog entry.
func (s *GameService) GetGameByID(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	game, err := s.games.GetGameByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			return nil, domain.NewGameError(domain.KindNotFound, "game not found")
		}
		return nil, domain.WrapGameError(err, "getting game by id")
	}
	return game, nil
}

// GetAll returns the full catalog.
func (s *GameService) GetAll(ctx context.Context) ([]domain.Game, error) {
	games, err := s.games.ListGames(ctx)
	if err != nil {
		return nil, domain.WrapGameError(err, "listing games")
	}
	return games, nil
}

func validateGame(game *domain.Game) error {
	if strings.TrimSpace(game.Name) == "" {
		return domain.NewGameError(domain.KindValidation, "game name cannot be empty")
	}
	if utf8.RuneCountInString(game.Name) > domain.MaxGameNameLen {
		return domain.NewGameError(domain.KindValidation, "game name must be at most 100 characters long")
	}
	if utf8.RuneCountInString(game.Description) > domain.MaxGameDescriptionLen {
		return domain.NewGameError(domain.KindValidation, "game description must be at most 255 characters long")
	}
	return nil
}
