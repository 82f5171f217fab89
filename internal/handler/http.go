package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/gaming-platform/internal/auth"
	"github.com/gaming-platform/internal/domain"
	"github.com/gaming-platform/internal/service"
	"github.com/gaming-platform/internal/websocket"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
)

// Handler provides the HTTP API for the platform.
type Handler struct {
	users       *service.UserService
	games       *service.GameService
	leaderboard *service.LeaderboardService
	issuer      *auth.TokenIssuer
	hub         *websocket.Hub
	logger      *slog.Logger
}

// NewHandler creates an HTTP handler.
func NewHandler(
	users *service.UserService,
	games *service.GameService,
	leaderboard *service.LeaderboardService,
	issuer *auth.TokenIssuer,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		users:       users,
		games:       games,
		leaderboard: leaderboard,
		issuer:      issuer,
		hub:         hub,
		logger:      logger,
	}
}

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router configures the HTTP routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Public rankings
		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/top", h.GetGlobalTop)
			r.Get("/games/{gameID}/top", h.GetGameTop)
			r.Get("/users/{userID}/rank", h.GetUserRank)
		})

		r.Get("/ws/stats", h.GetWebSocketStats)

		// Everything below requires a valid token
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.issuer))

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.GetUsers)
				r.Get("/search/{pattern}", h.SearchUsers)

				r.Route("/{userID}", func(r chi.Router) {
					r.Get("/", h.GetUser)
					r.Put("/", h.UpdateUser)
					r.Delete("/", h.DeleteUser)
					r.Get("/scores", h.GetUserScores)
				})
			})

			r.Route("/games", func(r chi.Router) {
				r.Post("/", h.AddGame)
				r.Get("/", h.GetGames)

				r.Route("/{gameID}", func(r chi.Router) {
					r.Get("/", h.GetGame)
					r.Put("/", h.UpdateGame)
					r.Delete("/", h.DeleteGame)
				})
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", h.CreateGameSession)
				r.Get("/{sessionID}", h.GetGameSession)
			})

			r.Post("/scores", h.AddScore)
		})
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Request and response shapes. The user payload never carries the password
// hash.

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type updateUserRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type gameRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createSessionRequest struct {
	GameID     uuid.UUID   `json:"game_id"`
	MaxPlayers int         `json:"max_players"`
	PlayerIDs  []uuid.UUID `json:"player_ids"`
}

type addScoreRequest struct {
	UserID        uuid.UUID         `json:"user_id"`
	GameSessionID uuid.UUID         `json:"game_session_id"`
	Points        int               `json:"points"`
	ActionType    domain.ActionType `json:"action_type"`
}

type userResponse struct {
	ID               uuid.UUID       `json:"id"`
	Username         string          `json:"username"`
	Email            string          `json:"email"`
	RegisteredAt     time.Time       `json:"registered_at"`
	CurrentSessionID *uuid.UUID      `json:"current_session_id,omitempty"`
	Scores           []scoreResponse `json:"scores,omitempty"`
}

type scoreResponse struct {
	ID            uuid.UUID         `json:"id"`
	GameSessionID uuid.UUID         `json:"game_session_id"`
	Points        int               `json:"points"`
	ActionType    domain.ActionType `json:"action_type"`
	RecordedAt    time.Time         `json:"recorded_at"`
}

type sessionResponse struct {
	ID         uuid.UUID      `json:"id"`
	GameID     uuid.UUID      `json:"game_id"`
	MaxPlayers int            `json:"max_players"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
	Ongoing    bool           `json:"ongoing"`
	Players    []userResponse `json:"players"`
}

func toUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		RegisteredAt:     user.RegisteredAt,
		CurrentSessionID: user.CurrentSessionID,
	}
}

func toUserResponses(users []domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	return out
}

func toScoreResponses(scores []domain.Score) []scoreResponse {
	out := make([]scoreResponse, 0, len(scores))
	for _, score := range scores {
		out = append(out, scoreResponse{
			ID:            score.ID,
			GameSessionID: score.GameSessionID,
			Points:        score.Points,
			ActionType:    score.ActionType,
			RecordedAt:    score.RecordedAt,
		})
	}
	return out
}

func toSessionResponse(session *domain.GameSession) sessionResponse {
	return sessionResponse{
		ID:         session.ID,
		GameID:     session.GameID,
		MaxPlayers: session.MaxPlayers,
		StartedAt:  session.StartedAt,
		EndedAt:    session.EndedAt,
		Ongoing:    session.IsOngoing(),
		Players:    toUserResponses(session.Players),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (h *Handler) writeCreated(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, APIResponse{Success: false, Error: message})
}

// writeServiceError maps a service error onto an HTTP status by its kind,
// never by its message text. Internal failures are logged and masked.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		h.writeError(w, status, "an unexpected error occurred")
		return
	}
	h.writeError(w, status, err.Error())
}

func statusForError(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindDuplicate:
		return http.StatusConflict
	case domain.KindInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports readiness.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// HandleWebSocket upgrades the connection and hands it to the hub.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats reports connection counts.
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.TotalConnections(),
	})
}

// Register creates an account and returns a token for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	token, err := h.issuer.Issue(user.ID, user.Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeCreated(w, authResponse{Token: token, User: toUserResponse(user)})
}

// Login authenticates and returns a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	token, err := h.issuer.Issue(user.ID, user.Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeSuccess(w, authResponse{Token: token, User: toUserResponse(user)})
}

// GetUsers returns a page of users. Page numbers are 1-based; a page past
// the end is an empty list.
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", defaultPage)
	size := queryInt(r, "size", defaultPageSize)

	users, err := h.users.GetUsers(r.Context(), page, size)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, toUserResponses(users))
}

// GetUser returns one user together with their score history.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	scores, err := h.users.GetScoresByUserID(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := toUserResponse(user)
	resp.Scores = toScoreResponses(scores)
	h.writeSuccess(w, resp)
}

// SearchUsers returns users whose username contains the pattern.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	pattern := chi.URLParam(r, "pattern")

	users, err := h.users.SearchUsers(r.Context(), pattern)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, toUserResponses(users))
}

// UpdateUser replaces a user's email, username, and password.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.UpdateUser(r.Context(), userID, req.Email, req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, toUserResponse(user))
}

// DeleteUser removes an account.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.users.DeleteUser(r.Context(), userID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// GetUserScores returns a user's score history, newest first.
func (h *Handler) GetUserScores(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	scores, err := h.users.GetScoresByUserID(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, toScoreResponses(scores))
}

// AddGame creates a catalog entry.
func (h *Handler) AddGame(w http.ResponseWriter, r *http.Request) {
	var req gameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	game, err := h.games.AddGame(r.Context(), &domain.Game{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCreated(w, game)
}

// GetGames returns the full catalog.
func (h *Handler) GetGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.GetAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, games)
}

// GetGame returns one catalog entry.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.pathUUID(w, r, "gameID")
	if !ok {
		return
	}

	game, err := h.games.GetGameByID(r.Context(), gameID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, game)
}

// UpdateGame replaces a catalog entry's name and description.
func (h *Handler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.pathUUID(w, r, "gameID")
	if !ok {
		return
	}

	var req gameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	game, err := h.games.UpdateGame(r.Context(), &domain.Game{
		ID:          gameID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, game)
}

// DeleteGame removes a catalog entry.
func (h *Handler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.pathUUID(w, r, "gameID")
	if !ok {
		return
	}

	if err := h.games.DeleteGame(r.Context(), gameID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// CreateGameSession starts a session for a game.
func (h *Handler) CreateGameSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.users.CreateGameSession(r.Context(), req.GameID, req.MaxPlayers, req.PlayerIDs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCreated(w, toSessionResponse(session))
}

// GetGameSession returns a session with its players.
func (h *Handler) GetGameSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.pathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	session, err := h.users.GetGameSessionByID(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, toSessionResponse(session))
}

// AddScore records a scoring event.
func (h *Handler) AddScore(w http.ResponseWriter, r *http.Request) {
	var req addScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	score, err := h.users.AddScore(r.Context(), req.UserID, req.GameSessionID, req.Points, req.ActionType)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeCreated(w, scoreResponse{
		ID:            score.ID,
		GameSessionID: score.GameSessionID,
		Points:        score.Points,
		ActionType:    score.ActionType,
		RecordedAt:    score.RecordedAt,
	})
}

// GetGlobalTop returns the top of the global board.
func (h *Handler) GetGlobalTop(w http.ResponseWriter, r *http.Request) {
	h.writeTop(w, r, domain.GlobalBoard)
}

// GetGameTop returns the top of one game's board.
func (h *Handler) GetGameTop(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.pathUUID(w, r, "gameID")
	if !ok {
		return
	}
	h.writeTop(w, r, domain.GameBoard(gameID))
}

func (h *Handler) writeTop(w http.ResponseWriter, r *http.Request, board string) {
	limit := queryInt(r, "limit", 0)

	entries, err := h.leaderboard.TopN(r.Context(), board, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	count, err := h.leaderboard.Count(r.Context(), board)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"board":        board,
		"entries":      entries,
		"ranked_users": count,
	})
}

// GetUserRank returns a user's rank, on the global board by default or on a
// game board when the game query parameter is set.
func (h *Handler) GetUserRank(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	board := domain.GlobalBoard
	if game := r.URL.Query().Get("game"); game != "" {
		gameID, err := uuid.Parse(game)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid game id")
			return
		}
		board = domain.GameBoard(gameID)
	}

	entry, err := h.leaderboard.UserRank(r.Context(), board, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, entry)
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
