package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gaming-platform/internal/domain"
)

const (
	MessageTypeBoardUpdate = "board_update"
	MessageTypeEntryUpdate = "entry_update"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Message is the envelope exchanged over the socket. Board names the
// leaderboard the payload belongs to ("global" or "game:<id>").
type Message struct {
	Type      string      `json:"type"`
	Board     string      `json:"board,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// BoardUpdate carries a refreshed top slice of one board.
type BoardUpdate struct {
	Board       string                    `json:"board"`
	Entries     []domain.LeaderboardEntry `json:"entries"`
	RankedUsers int64                     `json:"ranked_users"`
}

// Hub tracks connected clients and fans board updates out to subscribers.
type Hub struct {
	// subscribers keyed by board name
	boards map[string]map[*Client]bool

	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscription
	unsubscribe chan *subscription

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscription struct {
	client *Client
	board  string
}

// NewHub creates a hub. Call Run in a goroutine before registering clients.
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		boards:      make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscription, 64),
		unsubscribe: make(chan *subscription, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run drives the hub's event loop until Stop is called.
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for board, clients := range h.boards {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.boards, board)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case sub := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.boards[sub.board]; !ok {
				h.boards[sub.board] = make(map[*Client]bool)
			}
			h.boards[sub.board][sub.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", sub.client.id, "board", sub.board)

		case sub := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.boards[sub.board]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.boards, sub.board)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", sub.client.id, "board", sub.board)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop terminates the event loop.
func (h *Hub) Stop() {
	h.cancel()
}

func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	// A board-scoped message goes to its subscribers only; an unscoped one
	// goes to everyone.
	if message.Board != "" {
		if clients, ok := h.boards[message.Board]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// BroadcastBoardUpdate pushes a refreshed top slice to a board's subscribers.
func (h *Hub) BroadcastBoardUpdate(board string, entries []domain.LeaderboardEntry, rankedUsers int64) {
	message := &Message{
		Type:  MessageTypeBoardUpdate,
		Board: board,
		Data: BoardUpdate{
			Board:       board,
			Entries:     entries,
			RankedUsers: rankedUsers,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastEntryUpdate pushes one user's new rank to a board's subscribers.
func (h *Hub) BroadcastEntryUpdate(board string, entry domain.LeaderboardEntry) {
	message := &Message{
		Type:      MessageTypeEntryUpdate,
		Board:     board,
		Data:      entry,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a board's subscriber set.
func (h *Hub) Subscribe(client *Client, board string) {
	h.subscribe <- &subscription{client: client, board: board}
}

// Unsubscribe removes a client from a board's subscriber set.
func (h *Hub) Unsubscribe(client *Client, board string) {
	h.unsubscribe <- &subscription{client: client, board: board}
}

// SubscriberCount returns the number of subscribers on a board.
func (h *Hub) SubscriberCount(board string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.boards[board]; ok {
		return len(clients)
	}
	return 0
}

// TotalConnections returns the number of connected clients.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
