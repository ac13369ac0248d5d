package http

import (
	"log/slog"
	"net/http"

	apierrors "pangandash/internal/errors"
	"pangandash/internal/middleware"
)

// ClientLogHandler records log lines sent by the dashboard frontend
type ClientLogHandler struct {
	logger       *slog.Logger
	validator    *middleware.ValidationMiddleware
	errorHandler *apierrors.ErrorHandler
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger, validator *middleware.ValidationMiddleware, errorHandler *apierrors.ErrorHandler) *ClientLogHandler {
	return &ClientLogHandler{
		logger:       logger.With(slog.String("handler", "client_log")),
		validator:    validator,
		errorHandler: errorHandler,
	}
}

// LogRequest represents a client log entry
type LogRequest struct {
	Level     string                 `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Message   string                 `json:"message" validate:"required,max=2000"`
	SessionID string                 `json:"session_id,omitempty" validate:"omitempty,max=64"`
	Source    string                 `json:"source,omitempty" validate:"omitempty,max=200"`
	Kind      string                 `json:"kind,omitempty" validate:"omitempty,tablekind"`
	File      string                 `json:"file,omitempty" validate:"omitempty,filename"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Handle processes POST /api/v1/logs
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req LogRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	level := slog.LevelInfo
	switch req.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("client_source", req.Source),
		slog.String("session_id", req.SessionID),
		slog.String("kind", req.Kind),
		slog.String("file", req.File),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}
	h.logger.LogAttrs(r.Context(), level, req.Message, attrs...)

	respond(w, r, http.StatusAccepted, map[string]bool{"logged": true})
}
