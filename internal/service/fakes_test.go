package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gaming-platform/internal/domain"
)

// memStore is an in-memory stand-in for the postgres repository. Setting
// failWith makes every call return that error, for exercising the internal
// error path.
type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*domain.User
	userOrder []uuid.UUID
	games     map[uuid.UUID]*domain.Game
	gameOrder []uuid.UUID
	sessions  map[uuid.UUID]*domain.GameSession
	scores    []domain.Score
	failWith  error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]*domain.User),
		games:    make(map[uuid.UUID]*domain.Game),
		sessions: make(map[uuid.UUID]*domain.GameSession),
	}
}

func (m *memStore) CreateUser(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return domain.ErrDuplicateUser
		}
	}
	clone := *user
	m.users[user.ID] = &clone
	m.userOrder = append(m.userOrder, user.ID)
	return nil
}

func (m *memStore) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	user, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, user := range m.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if offset < 0 || offset >= len(m.userOrder) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.userOrder) {
		end = len(m.userOrder)
	}
	var out []domain.User
	for _, id := range m.userOrder[offset:end] {
		out = append(out, *m.users[id])
	}
	return out, nil
}

func (m *memStore) SearchUsers(ctx context.Context, pattern string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []domain.User
	for _, id := range m.userOrder {
		user := m.users[id]
		if strings.Contains(strings.ToLower(user.Username), strings.ToLower(pattern)) {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (m *memStore) UpdateUser(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	for id, existing := range m.users {
		if id != user.ID && (existing.Email == user.Email || existing.Username == user.Username) {
			return domain.ErrDuplicateUser
		}
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *memStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	for i, oid := range m.userOrder {
		if oid == id {
			m.userOrder = append(m.userOrder[:i], m.userOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) CreateGame(ctx context.Context, game *domain.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.games {
		if existing.Name == game.Name {
			return domain.ErrDuplicateGame
		}
	}
	clone := *game
	m.games[game.ID] = &clone
	m.gameOrder = append(m.gameOrder, game.ID)
	return nil
}

func (m *memStore) GetGameByID(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	game, ok := m.games[id]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	clone := *game
	return &clone, nil
}

func (m *memStore) ListGames(ctx context.Context) ([]domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []domain.Game
	for _, id := range m.gameOrder {
		out = append(out, *m.games[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) UpdateGame(ctx context.Context, game *domain.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.games[game.ID]; !ok {
		return domain.ErrGameNotFound
	}
	for id, existing := range m.games {
		if id != game.ID && existing.Name == game.Name {
			return domain.ErrDuplicateGame
		}
	}
	clone := *game
	m.games[game.ID] = &clone
	return nil
}

func (m *memStore) DeleteGame(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.games[id]; !ok {
		return domain.ErrGameNotFound
	}
	delete(m.games, id)
	for i, oid := range m.gameOrder {
		if oid == id {
			m.gameOrder = append(m.gameOrder[:i], m.gameOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) CreateSession(ctx context.Context, session *domain.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	clone := *session
	m.sessions[session.ID] = &clone
	return nil
}

func (m *memStore) GetSessionByID(ctx context.Context, id uuid.UUID) (*domain.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *session
	return &clone, nil
}

func (m *memStore) CreateScore(ctx context.Context, score *domain.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.scores = append(m.scores, *score)
	return nil
}

func (m *memStore) ListScoresByUser(ctx context.Context, userID uuid.UUID) ([]domain.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []domain.Score
	for i := len(m.scores) - 1; i >= 0; i-- {
		if m.scores[i].UserID == userID {
			out = append(out, m.scores[i])
		}
	}
	return out, nil
}

// boardRecorder captures LeaderboardUpdater calls.
type boardRecorder struct {
	mu       sync.Mutex
	calls    []boardCall
	failWith error
}

type boardCall struct {
	userID uuid.UUID
	gameID uuid.UUID
	points int
}

func (b *boardRecorder) AddPoints(ctx context.Context, userID, gameID uuid.UUID, points int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	b.calls = append(b.calls, boardCall{userID: userID, gameID: gameID, points: points})
	return nil
}

func (b *boardRecorder) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}
