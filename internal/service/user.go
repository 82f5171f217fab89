package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gaming-platform/internal/auth"
	"github.com/gaming-platform/internal/domain"
)

// Repository interfaces are declared on the consumer side so services can be
// exercised against in-memory fakes. The postgres.Repository satisfies all of
// them.

// UserRepository persists user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	SearchUsers(ctx context.Context, pattern string) ([]domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// GameRepository persists the game catalog.
type GameRepository interface {
	CreateGame(ctx context.Context, game *domain.Game) error
	GetGameByID(ctx context.Context, id uuid.UUID) (*domain.Game, error)
	ListGames(ctx context.Context) ([]domain.Game, error)
	UpdateGame(ctx context.Context, game *domain.Game) error
	DeleteGame(ctx context.Context, id uuid.UUID) error
}

// SessionRepository persists game sessions and their player memberships.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.GameSession) error
	GetSessionByID(ctx context.Context, id uuid.UUID) (*domain.GameSession, error)
}

// ScoreRepository persists scoring events.
type ScoreRepository interface {
	CreateScore(ctx context.Context, score *domain.Score) error
	ListScoresByUser(ctx context.Context, userID uuid.UUID) ([]domain.Score, error)
}

// LeaderboardUpdater receives recorded points for board aggregation. A
// failure here never fails the score write; it is logged and the boards catch
// up on the next rebuild.
type LeaderboardUpdater interface {
	AddPoints(ctx context.Context, userID, gameID uuid.UUID, points int) error
}

var (
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	letterPattern = regexp.MustCompile(`[a-zA-Z]`)
)

// UserService owns registration, authentication, account management, score
// recording, and session creation rules.
type UserService struct {
	users    UserRepository
	games    GameRepository
	sessions SessionRepository
	scores   ScoreRepository
	hasher   auth.PasswordHasher
	boards   LeaderboardUpdater
	logger   *slog.Logger
}

// NewUserService creates a user service.
func NewUserService(
	users UserRepository,
	games GameRepository,
	sessions SessionRepository,
	scores ScoreRepository,
	hasher auth.PasswordHasher,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		games:    games,
		sessions: sessions,
		scores:   scores,
		hasher:   hasher,
		logger:   logger,
	}
}

// SetLeaderboard attaches the board updater fed by AddScore.
func (s *UserService) SetLeaderboard(boards LeaderboardUpdater) {
	s.boards = boards
}

// Register validates and creates a new account. The email existence check is
// advisory; the storage layer's unique constraint is the real arbiter under
// concurrent registration.
func (s *UserService) Register(ctx context.Context, email, password, username string) (*domain.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.WrapUserError(err, "checking existing email")
	}
	if existing != nil {
		return nil, domain.NewUserError(domain.KindDuplicate, "user with this email already exists")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, domain.WrapUserError(err, "hashing password")
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateUser) {
			return nil, domain.NewUserError(domain.KindDuplicate, "user with this email already exists")
		}
		return nil, domain.WrapUserError(err, "creating user")
	}
	return user, nil
}

// Login authenticates by email and password. An unknown email and a wrong
// password produce the same error so callers cannot tell which occurred.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewUserError(domain.KindInvalidCredentials, "invalid email or password")
		}
		return nil, domain.WrapUserError(err, "looking up user")
	}

	match, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !match {
		return nil, domain.NewUserError(domain.KindInvalidCredentials, "invalid email or password")
	}
	return user, nil
}

// GetUserByID retrieves a single user.
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewUserError(domain.KindNotFound, "user not found")
		}
		return nil, domain.WrapUserError(err, "getting user by id")
	}
	return user, nil
}

// GetUsers returns one page of users using 1-based page numbers. Page and
// size are passed through unclamped; callers own sensible values, and a page
// past the end yields an empty result rather than an error.
func (s *UserService) GetUsers(ctx context.Context, page, size int) ([]domain.User, error) {
	users, err := s.users.ListUsers(ctx, size, (page-1)*size)
	if err != nil {
		return nil, domain.WrapUserError(err, "listing users")
	}
	return users, nil
}

// SearchUsers returns users whose username contains pattern,
// case-insensitively. An empty match set is reported as not-found rather than
// an empty list.
func (s *UserService) SearchUsers(ctx context.Context, pattern string) ([]domain.User, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, domain.NewUserError(domain.KindValidation, "username cannot be empty")
	}

	users, err := s.users.SearchUsers(ctx, pattern)
	if err != nil {
		return nil, domain.WrapUserError(err, "searching users")
	}
	if len(users) == 0 {
		return nil, domain.NewUserError(domain.KindNotFound, "no users found")
	}
	return users, nil
}

// DeleteUser removes an account.
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.NewUserError(domain.KindNotFound, "user not found")
		}
		return domain.WrapUserError(err, "deleting user")
	}
	return nil
}

// UpdateUser replaces email, username, and password. Every field is
// re-validated in full and the password is re-hashed even when unchanged.
func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, email, username, password string) (*domain.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, domain.WrapUserError(err, "hashing password")
	}

	user.Email = email
	user.Username = username
	user.PasswordHash = hash

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateUser) {
			return nil, domain.NewUserError(domain.KindDuplicate, "user with this email or username already exists")
		}
		return nil, domain.WrapUserError(err, "updating user")
	}
	return user, nil
}

// AddScore records a scoring event against an existing user and session and
// feeds the leaderboard.
func (s *UserService) AddScore(ctx context.Context, userID, sessionID uuid.UUID, points int, action domain.ActionType) (*domain.Score, error) {
	if !action.Valid() {
		return nil, domain.NewUserError(domain.KindValidation, "action type must be win or lose")
	}

	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.NewUserError(domain.KindNotFound, "game session not found")
		}
		return nil, domain.WrapUserError(err, "getting game session")
	}

	score := &domain.Score{
		ID:            uuid.New(),
		UserID:        userID,
		GameSessionID: sessionID,
		Points:        points,
		ActionType:    action,
		RecordedAt:    time.Now().UTC(),
	}
	if err := s.scores.CreateScore(ctx, score); err != nil {
		return nil, domain.WrapUserError(err, "creating score")
	}

	if s.boards != nil {
		if err := s.boards.AddPoints(ctx, userID, session.GameID, points); err != nil {
			s.logger.Warn("failed to update leaderboard", "user_id", userID, "error", err)
		}
	}
	return score, nil
}

// GetScoresByUserID returns a user's score history.
func (s *UserService) GetScoresByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Score, error) {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	scores, err := s.scores.ListScoresByUser(ctx, userID)
	if err != nil {
		return nil, domain.WrapUserError(err, "listing scores")
	}
	return scores, nil
}

// CreateGameSession starts a session for a game, optionally seeding it with
// resolved players.
func (s *UserService) CreateGameSession(ctx context.Context, gameID uuid.UUID, maxPlayers int, playerIDs []uuid.UUID) (*domain.GameSession, error) {
	if _, err := s.games.GetGameByID(ctx, gameID); err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			return nil, domain.NewUserError(domain.KindNotFound, "game not found")
		}
		return nil, domain.WrapUserError(err, "getting game")
	}

	if maxPlayers < domain.MinSessionPlayers || maxPlayers > domain.MaxSessionPlayers {
		return nil, domain.NewUserError(domain.KindValidation, "max players must be between 2 and 4")
	}

	var players []domain.User
	for _, playerID := range playerIDs {
		player, err := s.users.GetUserByID(ctx, playerID)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return nil, domain.NewUserError(domain.KindNotFound,
					fmt.Sprintf("player with id %s not found", playerID))
			}
			return nil, domain.WrapUserError(err, "getting player")
		}
		players = append(players, *player)
	}
	if len(players) > maxPlayers {
		return nil, domain.NewUserError(domain.KindValidation, "number of players exceeds the maximum allowed")
	}

	session := &domain.GameSession{
		ID:         uuid.New(),
		GameID:     gameID,
		MaxPlayers: maxPlayers,
		StartedAt:  time.Now().UTC(),
		Players:    players,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, domain.WrapUserError(err, "creating game session")
	}
	return session, nil
}

// GetGameSessionByID retrieves a session with its resolved players.
func (s *UserService) GetGameSessionByID(ctx context.Context, id uuid.UUID) (*domain.GameSession, error) {
	session, err := s.sessions.GetSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.NewUserError(domain.KindNotFound, "game session not found")
		}
		return nil, domain.WrapUserError(err, "getting game session")
	}
	return session, nil
}

func validateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return domain.NewUserError(domain.KindValidation, "username cannot be empty")
	}
	if utf8.RuneCountInString(username) < domain.MinUsernameLen {
		return domain.NewUserError(domain.KindValidation, "username must be at least 3 characters long")
	}
	if utf8.RuneCountInString(username) > domain.MaxUsernameLen {
		return domain.NewUserError(domain.KindValidation, "username must be at most 50 characters long")
	}
	return nil
}

func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return domain.NewUserError(domain.KindValidation, "email or password cannot be empty")
	}
	if !emailPattern.MatchString(email) {
		return domain.NewUserError(domain.KindValidation, "invalid email format")
	}
	if len(password) < domain.MinPasswordLen || !letterPattern.MatchString(password) {
		return domain.NewUserError(domain.KindValidation,
			"password must be at least 8 characters and contain at least one letter")
	}
	return nil
}
