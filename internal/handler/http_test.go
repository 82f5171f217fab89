package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaming-platform/internal/auth"
	"github.com/gaming-platform/internal/config"
	"github.com/gaming-platform/internal/domain"
	"github.com/gaming-platform/internal/service"
	"github.com/gaming-platform/internal/websocket"
)

// fakeStore backs the services with maps so the full HTTP stack can be
// exercised without a database.
type fakeStore struct {
	users     map[uuid.UUID]*domain.User
	userOrder []uuid.UUID
	games     map[uuid.UUID]*domain.Game
	sessions  map[uuid.UUID]*domain.GameSession
	scores    []domain.Score
	failWith  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[uuid.UUID]*domain.User),
		games:    make(map[uuid.UUID]*domain.Game),
		sessions: make(map[uuid.UUID]*domain.GameSession),
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, user *domain.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return domain.ErrDuplicateUser
		}
	}
	clone := *user
	f.users[user.ID] = &clone
	f.userOrder = append(f.userOrder, user.ID)
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, user := range f.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if offset < 0 || offset >= len(f.userOrder) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.userOrder) {
		end = len(f.userOrder)
	}
	var out []domain.User
	for _, id := range f.userOrder[offset:end] {
		out = append(out, *f.users[id])
	}
	return out, nil
}

func (f *fakeStore) SearchUsers(ctx context.Context, pattern string) ([]domain.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []domain.User
	for _, id := range f.userOrder {
		user := f.users[id]
		if strings.Contains(strings.ToLower(user.Username), strings.ToLower(pattern)) {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, user *domain.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) CreateGame(ctx context.Context, game *domain.Game) error {
	if f.failWith != nil {
		return f.failWith
	}
	for _, existing := range f.games {
		if existing.Name == game.Name {
			return domain.ErrDuplicateGame
		}
	}
	clone := *game
	f.games[game.ID] = &clone
	return nil
}

func (f *fakeStore) GetGameByID(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	game, ok := f.games[id]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	clone := *game
	return &clone, nil
}

func (f *fakeStore) ListGames(ctx context.Context) ([]domain.Game, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []domain.Game
	for _, game := range f.games {
		out = append(out, *game)
	}
	return out, nil
}

func (f *fakeStore) UpdateGame(ctx context.Context, game *domain.Game) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.games[game.ID]; !ok {
		return domain.ErrGameNotFound
	}
	clone := *game
	f.games[game.ID] = &clone
	return nil
}

func (f *fakeStore) DeleteGame(ctx context.Context, id uuid.UUID) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.games[id]; !ok {
		return domain.ErrGameNotFound
	}
	delete(f.games, id)
	return nil
}

func (f *fakeStore) CreateSession(ctx context.Context, session *domain.GameSession) error {
	if f.failWith != nil {
		return f.failWith
	}
	clone := *session
	f.sessions[session.ID] = &clone
	return nil
}

func (f *fakeStore) GetSessionByID(ctx context.Context, id uuid.UUID) (*domain.GameSession, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *session
	return &clone, nil
}

func (f *fakeStore) CreateScore(ctx context.Context, score *domain.Score) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.scores = append(f.scores, *score)
	return nil
}

func (f *fakeStore) ListScoresByUser(ctx context.Context, userID uuid.UUID) ([]domain.Score, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []domain.Score
	for i := len(f.scores) - 1; i >= 0; i-- {
		if f.scores[i].UserID == userID {
			out = append(out, f.scores[i])
		}
	}
	return out, nil
}

// LeaderboardStore side, enough for the public ranking routes.
func (f *fakeStore) UpsertLeaderboardTotal(ctx context.Context, userID uuid.UUID, delta int64) (int64, error) {
	return delta, nil
}

func (f *fakeStore) SumPointsByUser(ctx context.Context) (map[uuid.UUID]int64, error) {
	return map[uuid.UUID]int64{}, nil
}

func (f *fakeStore) SumPointsByUserForGame(ctx context.Context, gameID uuid.UUID) (map[uuid.UUID]int64, error) {
	return map[uuid.UUID]int64{}, nil
}

func (f *fakeStore) GameIDs(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeStore) UsernamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string)
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			out[id] = user.Username
		}
	}
	return out, nil
}

// fakeBoard is a minimal BoardCache.
type fakeBoard struct {
	boards map[string]map[uuid.UUID]int64
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{boards: make(map[string]map[uuid.UUID]int64)}
}

func (b *fakeBoard) board(name string) map[uuid.UUID]int64 {
	if b.boards[name] == nil {
		b.boards[name] = make(map[uuid.UUID]int64)
	}
	return b.boards[name]
}

func (b *fakeBoard) AddPoints(ctx context.Context, board string, userID uuid.UUID, delta int64) (int64, error) {
	b.board(board)[userID] += delta
	return b.board(board)[userID], nil
}

func (b *fakeBoard) TopN(ctx context.Context, board string, n int) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	rank := int64(1)
	for userID, total := range b.board(board) {
		entries = append(entries, domain.LeaderboardEntry{Rank: rank, UserID: userID, TotalPoints: total})
		rank++
		if len(entries) == n {
			break
		}
	}
	return entries, nil
}

func (b *fakeBoard) UserRank(ctx context.Context, board string, userID uuid.UUID) (*domain.LeaderboardEntry, error) {
	total, ok := b.board(board)[userID]
	if !ok {
		return nil, domain.ErrUserNotRanked
	}
	return &domain.LeaderboardEntry{Rank: 1, UserID: userID, TotalPoints: total}, nil
}

func (b *fakeBoard) Count(ctx context.Context, board string) (int64, error) {
	return int64(len(b.board(board))), nil
}

func (b *fakeBoard) BatchSetTotals(ctx context.Context, board string, totals map[uuid.UUID]int64) error {
	for userID, total := range totals {
		b.board(board)[userID] = total
	}
	return nil
}

func (b *fakeBoard) Reset(ctx context.Context, board string) error {
	delete(b.boards, board)
	return nil
}

type testEnv struct {
	store  *fakeStore
	board  *fakeBoard
	server *httptest.Server
	issuer *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newFakeStore()
	board := newFakeBoard()

	hasher := &auth.Argon2Hasher{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	issuer := auth.NewTokenIssuer("test-key", time.Hour)

	lbCfg := &config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 100}
	leaderboardService := service.NewLeaderboardService(board, store, lbCfg, logger)

	userService := service.NewUserService(store, store, store, store, hasher, logger)
	userService.SetLeaderboard(leaderboardService)
	gameService := service.NewGameService(store, logger)

	hub := websocket.NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := NewHandler(userService, gameService, leaderboardService, issuer, hub, logger)
	server := httptest.NewServer(h.Router())
	t.Cleanup(server.Close)

	return &testEnv{store: store, board: board, server: server, issuer: issuer}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func (e *testEnv) register(t *testing.T, email, username string) (uuid.UUID, string) {
	t.Helper()
	resp, envelope := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "password1",
		"username": username,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := envelope.Data.(map[string]interface{})
	token := data["token"].(string)
	user := data["user"].(map[string]interface{})
	userID, err := uuid.Parse(user["id"].(string))
	require.NoError(t, err)
	return userID, token
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password1",
		"username": "alice",
	})

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, envelope.Success)

	data := envelope.Data.(map[string]interface{})
	assert.NotEmpty(t, data["token"])

	user := data["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
	// The hash must never leak through the API
	_, hasHash := user["password_hash"]
	assert.False(t, hasHash)
}

func TestRegisterRejectsBadEmail(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "password1",
		"username": "alice",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)
	assert.Equal(t, "invalid email format", envelope.Error)
}

func TestRegisterDuplicateConflict(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "alice")

	resp, _ := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password1",
		"username": "other",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "alice")

	resp, envelope := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrongpass1",
	})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid email or password", envelope.Error)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/users/", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice@example.com", "alice")
	env.register(t, "bob@example.com", "bob")

	resp, envelope := env.do(t, http.MethodGet, "/api/v1/users/", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	users := envelope.Data.([]interface{})
	assert.Len(t, users, 2)
}

func TestSearchUsersMissIs404(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice@example.com", "alice")

	resp, envelope := env.do(t, http.MethodGet, "/api/v1/users/search/nobody", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "no users found", envelope.Error)
}

func TestInvalidUUIDPath(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice@example.com", "alice")

	resp, _ := env.do(t, http.MethodGet, "/api/v1/users/not-a-uuid/", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDuplicateGameConflict(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice@example.com", "alice")

	resp, _ := env.do(t, http.MethodPost, "/api/v1/games/", token, map[string]string{"name": "Chess"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, envelope := env.do(t, http.MethodPost, "/api/v1/games/", token, map[string]string{"name": "Chess"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "game with this name already exists", envelope.Error)
}

func TestScoreFlow(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.register(t, "alice@example.com", "alice")

	resp, gameEnvelope := env.do(t, http.MethodPost, "/api/v1/games/", token, map[string]string{"name": "Chess"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	gameID := gameEnvelope.Data.(map[string]interface{})["id"].(string)

	resp, sessionEnvelope := env.do(t, http.MethodPost, "/api/v1/sessions/", token, map[string]interface{}{
		"game_id":     gameID,
		"max_players": 2,
		"player_ids":  []string{userID.String()},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionID := sessionEnvelope.Data.(map[string]interface{})["id"].(string)

	resp, scoreEnvelope := env.do(t, http.MethodPost, "/api/v1/scores", token, map[string]interface{}{
		"user_id":         userID.String(),
		"game_session_id": sessionID,
		"points":          42,
		"action_type":     "win",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	score := scoreEnvelope.Data.(map[string]interface{})
	assert.Equal(t, float64(42), score["points"])

	// The score must have reached the global board
	resp, topEnvelope := env.do(t, http.MethodGet, "/api/v1/leaderboard/top", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	top := topEnvelope.Data.(map[string]interface{})
	entries := top["entries"].([]interface{})
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]interface{})
	assert.Equal(t, float64(42), entry["total_points"])
	assert.Equal(t, "alice", entry["username"])
}

func TestSessionMaxPlayersBounds(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice@example.com", "alice")

	resp, gameEnvelope := env.do(t, http.MethodPost, "/api/v1/games/", token, map[string]string{"name": "Chess"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	gameID := gameEnvelope.Data.(map[string]interface{})["id"].(string)

	resp, envelope := env.do(t, http.MethodPost, "/api/v1/sessions/", token, map[string]interface{}{
		"game_id":     gameID,
		"max_players": 5,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "max players must be between 2 and 4", envelope.Error)
}

func TestUserRankNotRanked(t *testing.T) {
	env := newTestEnv(t)
	userID, _ := env.register(t, "alice@example.com", "alice")

	resp, envelope := env.do(t, http.MethodGet, "/api/v1/leaderboard/users/"+userID.String()+"/rank", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "user is not ranked on this board", envelope.Error)
}

func TestInternalErrorsAreMasked(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice@example.com", "alice")

	env.store.failWith = errors.New("connection refused: secret-db-host:5432")

	resp, envelope := env.do(t, http.MethodGet, "/api/v1/users/", token, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "an unexpected error occurred", envelope.Error)
	assert.NotContains(t, envelope.Error, "secret-db-host")
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
}
