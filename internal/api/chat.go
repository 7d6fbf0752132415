package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/cgpt/internal/chat"
	"github.com/ashureev/cgpt/internal/identity"
	"github.com/go-chi/chi/v5"
)

// IndexText is the body served at the API root.
const IndexText = "cgpt REST api service!"

// maxBodyBytes caps a chat request body.
const maxBodyBytes = 1 << 20

// MessageRequest is the body of POST /chat and PUT /chat/{id}.
type MessageRequest struct {
	Message string `json:"message"`
}

// ChatHandler handles conversation endpoints.
type ChatHandler struct {
	*Handler
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(base *Handler) *ChatHandler {
	return &ChatHandler{Handler: base}
}

// RegisterRoutes registers the index and chat routes at the root and under /api.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Index)
	r.Route("/chat", h.chatRoutes)
	r.Route("/api/chat", h.chatRoutes)
}

func (h *ChatHandler) chatRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// Index answers the liveness probe at "/".
func (h *ChatHandler) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(IndexText))
}

// List returns every chat id.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list chats", "error", err)
		InternalError(w)
		return
	}
	JSON(w, http.StatusOK, list)
}

// Create starts a conversation.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMessage(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.Start(chat.WithChannel(r.Context(), chat.ChannelHTTP), req.Message)
	if err != nil {
		h.logger.Error("Failed to start chat", "error", err)
		InternalError(w)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// Get returns the history of one conversation.
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	chatID := h.chatID(r)
	hist, err := h.svc.History(r.Context(), chatID)
	if err != nil {
		h.logger.Error("Failed to load chat", "chat_id", chatID, "error", err)
		InternalError(w)
		return
	}
	JSON(w, http.StatusOK, hist)
}

// Update continues a conversation.
func (h *ChatHandler) Update(w http.ResponseWriter, r *http.Request) {
	chatID := h.chatID(r)
	req, ok := h.decodeMessage(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.Continue(chat.WithChannel(r.Context(), chat.ChannelHTTP), chatID, req.Message)
	if err != nil {
		h.logger.Error("Failed to continue chat", "chat_id", chatID, "error", err)
		InternalError(w)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// Delete removes a conversation. Unknown ids fail like any other error.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	chatID := h.chatID(r)
	if err := h.svc.Delete(r.Context(), chatID); err != nil {
		h.logger.Error("Failed to delete chat", "chat_id", chatID, "error", err)
		InternalError(w)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// chatID reads the path id. Malformed ids are logged but still looked up so
// they resolve to the none sentinel.
func (h *ChatHandler) chatID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if !identity.IsValidChatID(id) {
		h.logger.Debug("Request for malformed chat id", "chat_id", id)
	}
	return id
}

func (h *ChatHandler) decodeMessage(w http.ResponseWriter, r *http.Request) (MessageRequest, bool) {
	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("Invalid chat request body", "error", err)
		InternalError(w)
		return req, false
	}
	return req, true
}
