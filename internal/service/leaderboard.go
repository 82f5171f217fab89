package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gaming-platform/internal/config"
	"github.com/gaming-platform/internal/domain"
	"github.com/gaming-platform/internal/websocket"
)

// BoardCache is the hot ranking store. The Redis sorted-set implementation
// satisfies it; tests use an in-memory fake.
type BoardCache interface {
	AddPoints(ctx context.Context, board string, userID uuid.UUID, delta int64) (int64, error)
	TopN(ctx context.Context, board string, n int) ([]domain.LeaderboardEntry, error)
	UserRank(ctx context.Context, board string, userID uuid.UUID) (*domain.LeaderboardEntry, error)
	Count(ctx context.Context, board string) (int64, error)
	BatchSetTotals(ctx context.Context, board string, totals map[uuid.UUID]int64) error
	Reset(ctx context.Context, board string) error
}

// LeaderboardStore is the durable side of the boards: running totals and the
// score aggregates they are rebuilt from.
type LeaderboardStore interface {
	UpsertLeaderboardTotal(ctx context.Context, userID uuid.UUID, delta int64) (int64, error)
	SumPointsByUser(ctx context.Context) (map[uuid.UUID]int64, error)
	SumPointsByUserForGame(ctx context.Context, gameID uuid.UUID) (map[uuid.UUID]int64, error)
	GameIDs(ctx context.Context) ([]uuid.UUID, error)
	UsernamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// LeaderboardService keeps the global and per-game boards consistent with
// recorded scores. Postgres holds the durable totals; Redis serves ranks.
type LeaderboardService struct {
	cache  BoardCache
	store  LeaderboardStore
	cfg    *config.LeaderboardConfig
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewLeaderboardService creates a leaderboard service.
func NewLeaderboardService(cache BoardCache, store LeaderboardStore, cfg *config.LeaderboardConfig, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		cache:  cache,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// SetHub attaches the WebSocket hub for rank-change broadcasts.
func (s *LeaderboardService) SetHub(hub *websocket.Hub) {
	s.hub = hub
}

// AddPoints records points against the durable totals and both boards, then
// notifies subscribers. Satisfies LeaderboardUpdater.
func (s *LeaderboardService) AddPoints(ctx context.Context, userID, gameID uuid.UUID, points int) error {
	delta := int64(points)

	if _, err := s.store.UpsertLeaderboardTotal(ctx, userID, delta); err != nil {
		return err
	}

	if _, err := s.cache.AddPoints(ctx, domain.GlobalBoard, userID, delta); err != nil {
		return err
	}
	if _, err := s.cache.AddPoints(ctx, domain.GameBoard(gameID), userID, delta); err != nil {
		return err
	}

	if s.hub != nil {
		s.notifyEntryUpdate(ctx, domain.GlobalBoard, userID)
		s.notifyEntryUpdate(ctx, domain.GameBoard(gameID), userID)
	}
	return nil
}

func (s *LeaderboardService) notifyEntryUpdate(ctx context.Context, board string, userID uuid.UUID) {
	entry, err := s.cache.UserRank(ctx, board, userID)
	if err != nil {
		s.logger.Warn("failed to read rank for broadcast", "board", board, "user_id", userID, "error", err)
		return
	}
	entries := []domain.LeaderboardEntry{*entry}
	s.fillUsernames(ctx, entries)
	s.hub.BroadcastEntryUpdate(board, entries[0])
}

// TopN returns the highest-ranked entries on a board, with usernames
// resolved. A non-positive limit falls back to the configured default and
// anything above the maximum is clamped.
func (s *LeaderboardService) TopN(ctx context.Context, board string, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	entries, err := s.cache.TopN(ctx, board, limit)
	if err != nil {
		return nil, err
	}
	s.fillUsernames(ctx, entries)
	return entries, nil
}

// UserRank returns one user's position on a board.
func (s *LeaderboardService) UserRank(ctx context.Context, board string, userID uuid.UUID) (*domain.LeaderboardEntry, error) {
	entry, err := s.cache.UserRank(ctx, board, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotRanked) {
			return nil, domain.NewUserError(domain.KindNotFound, "user is not ranked on this board")
		}
		return nil, err
	}

	entries := []domain.LeaderboardEntry{*entry}
	s.fillUsernames(ctx, entries)
	return &entries[0], nil
}

// Count returns the number of ranked users on a board.
func (s *LeaderboardService) Count(ctx context.Context, board string) (int64, error) {
	return s.cache.Count(ctx, board)
}

// Rebuild recomputes every board from the scores table. Run at startup and
// periodically so the cache converges after missed updates or a Redis flush.
func (s *LeaderboardService) Rebuild(ctx context.Context) error {
	totals, err := s.store.SumPointsByUser(ctx)
	if err != nil {
		return err
	}
	if err := s.rebuildBoard(ctx, domain.GlobalBoard, totals); err != nil {
		return err
	}

	gameIDs, err := s.store.GameIDs(ctx)
	if err != nil {
		return err
	}
	for _, gameID := range gameIDs {
		gameTotals, err := s.store.SumPointsByUserForGame(ctx, gameID)
		if err != nil {
			return err
		}
		if err := s.rebuildBoard(ctx, domain.GameBoard(gameID), gameTotals); err != nil {
			return err
		}
	}

	s.logger.Info("leaderboards rebuilt", "ranked_users", len(totals), "games", len(gameIDs))

	if s.hub != nil {
		entries, err := s.TopN(ctx, domain.GlobalBoard, s.cfg.DefaultLimit)
		if err == nil {
			s.hub.BroadcastBoardUpdate(domain.GlobalBoard, entries, int64(len(totals)))
		}
	}
	return nil
}

func (s *LeaderboardService) rebuildBoard(ctx context.Context, board string, totals map[uuid.UUID]int64) error {
	if err := s.cache.Reset(ctx, board); err != nil {
		return err
	}
	if len(totals) == 0 {
		return nil
	}
	return s.cache.BatchSetTotals(ctx, board, totals)
}

func (s *LeaderboardService) fillUsernames(ctx context.Context, entries []domain.LeaderboardEntry) {
	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.UserID)
	}

	names, err := s.store.UsernamesByID(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve usernames", "error", err)
		return
	}
	for i := range entries {
		entries[i].Username = names[entries[i].UserID]
	}
}
