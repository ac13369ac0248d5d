package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"pangandash/internal/infrastructure"
	"pangandash/pkg/contracts/domain"
)

// Message types sent to dashboard clients
const (
	TypeConnection    = "connection"
	TypeSummary       = "summary:update"
	TypeTableLoaded   = "table:loaded"
	TypeSessionClosed = "session:closed"
)

// Message is the envelope of every frame the hub sends.
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// TableLoaded announces a replaced table slot.
type TableLoaded struct {
	Kind     domain.TableKind `json:"kind"`
	Source   string           `json:"source"`
	Rows     int              `json:"rows"`
	Warnings int              `json:"warnings"`
}

type outbound struct {
	sessionID string
	payload   []byte
}

// Hub fans messages out to the clients subscribed to a dashboard session
type Hub struct {
	clients  map[*Client]bool
	sessions map[string]map[*Client]struct{}

	broadcast    chan outbound
	register     chan *Client
	unregister   chan *Client
	closeSession chan string

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics

	totalConnections int64
	messagesSent     int64
	droppedClients   int64

	quit    chan struct{}
	done    chan struct{}
	running bool
}

// NewHub creates a new Hub instance with dependency injection. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		clients:      make(map[*Client]bool),
		sessions:     make(map[string]map[*Client]struct{}),
		broadcast:    make(chan outbound, 64),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		closeSession: make(chan string),
		logger:       logger.With(slog.String("component", "websocket.hub")),
		metrics:      metrics,
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start starts the hub loop
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			if h.removeClient(client) {
				h.logger.InfoContext(client.context(), "Client unregistered",
					slog.String("client_id", client.id),
					slog.String("session_id", client.sessionID),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case id := <-h.closeSession:
			h.dropSession(id)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	subs, ok := h.sessions[client.sessionID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.sessions[client.sessionID] = subs
	}
	subs[client] = struct{}{}
	h.totalConnections++
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	if h.metrics != nil {
		h.metrics.WebSocketClients.Add(ctx, 1)
	}
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("session_id", client.sessionID),
		slog.String("remote_addr", client.remoteAddr))

	greeting := map[string]interface{}{
		"status":    "connected",
		"client_id": client.id,
	}
	if payload, err := encode(TypeConnection, client.sessionID, greeting, client.traceID); err == nil {
		h.trySend(client, payload)
	}
	if client.initial != nil {
		if payload, err := encode(TypeSummary, client.sessionID, client.initial, client.traceID); err == nil {
			h.trySend(client, payload)
		}
	}
}

// removeClient closes the client's send channel exactly once.
func (h *Hub) removeClient(client *Client) bool {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, client)
	if subs, ok := h.sessions[client.sessionID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.sessions, client.sessionID)
		}
	}
	close(client.send)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WebSocketClients.Add(client.context(), -1)
	}
	return true
}

func (h *Hub) subscribers(sessionID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := h.sessions[sessionID]
	out := make([]*Client, 0, len(subs))
	for c := range subs {
		out = append(out, c)
	}
	return out
}

func (h *Hub) deliver(msg outbound) {
	for _, client := range h.subscribers(msg.sessionID) {
		h.trySend(client, msg.payload)
	}
}

// trySend never blocks the hub loop; a client whose buffer is full is dropped.
func (h *Hub) trySend(client *Client, payload []byte) {
	h.mu.RLock()
	_, ok := h.clients[client]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case client.send <- payload:
		h.mu.Lock()
		h.messagesSent++
		h.mu.Unlock()
	default:
		if h.removeClient(client) {
			h.mu.Lock()
			h.droppedClients++
			h.mu.Unlock()
			h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}
}

func (h *Hub) dropSession(id string) {
	payload, err := encode(TypeSessionClosed, id, nil, "")
	for _, client := range h.subscribers(id) {
		if err == nil {
			h.trySend(client, payload)
		}
		h.removeClient(client)
	}
}

func encode(msgType, sessionID string, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(Message{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TraceID:   traceID,
	})
}

// Publish queues a message for every client of a session.
func (h *Hub) Publish(ctx context.Context, sessionID, msgType string, data interface{}) {
	payload, err := encode(msgType, sessionID, data, infrastructure.GetTraceID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", msgType))
		return
	}

	select {
	case h.broadcast <- outbound{sessionID: sessionID, payload: payload}:
	case <-h.quit:
	case <-ctx.Done():
		h.logger.WarnContext(ctx, "Dropped message, context done",
			slog.String("message_type", msgType),
			slog.String("session_id", sessionID))
	}
}

// PublishSummary sends the current summary cards of a session.
func (h *Hub) PublishSummary(ctx context.Context, summary domain.Summary) {
	h.Publish(ctx, summary.SessionID, TypeSummary, summary)
}

// PublishTableLoaded announces a successful upload.
func (h *Hub) PublishTableLoaded(ctx context.Context, sessionID string, info TableLoaded) {
	h.Publish(ctx, sessionID, TypeTableLoaded, info)
}

// CloseSession tells the clients of a session that it is gone and disconnects them.
func (h *Hub) CloseSession(sessionID string) {
	select {
	case h.closeSession <- sessionID:
	case <-h.quit:
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.conn.Close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionClientCount returns the number of clients watching one session
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// GetHubMetrics returns current hub metrics
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"active_sessions":   len(h.sessions),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"dropped_clients":   h.droppedClients,
	}
}

// Stop gracefully stops the hub and disconnects every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		if h.metrics != nil {
			h.metrics.WebSocketClients.Add(context.Background(), -1)
		}
	}
	h.sessions = make(map[string]map[*Client]struct{})
}
