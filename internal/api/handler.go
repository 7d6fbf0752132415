// Package api provides HTTP handlers for the cgpt REST API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/cgpt/internal/chat"
)

// ChatService is the conversation surface the handlers need.
type ChatService interface {
	Start(ctx context.Context, text string) (chat.Response, error)
	Continue(ctx context.Context, chatID, text string) (chat.Response, error)
	History(ctx context.Context, chatID string) (chat.History, error)
	List(ctx context.Context) (chat.ChatList, error)
	Delete(ctx context.Context, chatID string) error
}

var _ ChatService = (*chat.Service)(nil)

// Handler provides common handler utilities.
type Handler struct {
	svc    ChatService
	logger *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(svc ChatService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// InternalError writes a bare 500 with an empty body. Chat routes report
// every failure this way.
func InternalError(w http.ResponseWriter) {
	w.WriteHeader(http.StatusInternalServerError)
}
