package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"pangandash/internal/config"
	apierrors "pangandash/internal/errors"
	"pangandash/internal/infrastructure"
	"pangandash/internal/middleware"
	ws "pangandash/internal/websocket"
	"pangandash/pkg/contracts/domain"
)

// SummaryProvider resolves the session a dashboard subscribes to.
type SummaryProvider interface {
	Summary(ctx context.Context, sessionID string) (domain.Summary, error)
}

// WebSocketHandler upgrades dashboard connections and subscribes them to
// one session's events.
type WebSocketHandler struct {
	hub            *ws.Hub
	sessions       SummaryProvider
	cfg            config.WebSocketConfig
	allowedOrigins []string
	errorHandler   *apierrors.ErrorHandler
	logger         *slog.Logger
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler creates the /ws handler. An empty allowedOrigins list
// accepts any origin.
func NewWebSocketHandler(hub *ws.Hub, sessions SummaryProvider, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:            hub,
		sessions:       sessions,
		cfg:            cfg,
		allowedOrigins: allowedOrigins,
		errorHandler:   errorHandler,
		logger:         logger.With(slog.String("handler", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.WarnContext(r.Context(), "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			http.Error(w, http.StatusText(status), status)
		},
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	h.logger.WarnContext(r.Context(), "WebSocket origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", h.allowedOrigins))
	return false
}

// ServeHTTP handles GET /ws?session={id}
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		h.errorHandler.HandleError(w, r, apierrors.MissingParameter("session"))
		return
	}

	traceID := middleware.GetReqID(r.Context())
	if traceID == "" {
		traceID = infrastructure.GenerateTraceID()
	}
	ctx := infrastructure.WithTraceID(r.Context(), traceID)

	summary, err := h.sessions.Summary(ctx, sessionID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		return
	}

	opts := ws.OptionsFromConfig(h.cfg, sessionID, traceID)
	opts.Initial = summary
	client := ws.ServeWS(h.hub, conn, opts, h.logger)

	h.logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("session_id", sessionID),
		slog.String("remote_addr", r.RemoteAddr))
}
