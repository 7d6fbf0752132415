package terminal

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/cgpt/internal/chat"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// ChatService is the conversation surface used by the interactive front ends.
type ChatService interface {
	Start(ctx context.Context, text string) (chat.Response, error)
	Continue(ctx context.Context, chatID, text string) (chat.Response, error)
	History(ctx context.Context, chatID string) (chat.History, error)
	List(ctx context.Context) (chat.ChatList, error)
	Delete(ctx context.Context, chatID string) error
}

var _ ChatService = (*chat.Service)(nil)

// Frame types exchanged over the chat socket.
const (
	frameMessage = "message"
	frameReply   = "reply"
	frameError   = "error"
	framePing    = "ping"
	framePong    = "pong"
)

// maxFrameBytes caps one client frame.
const maxFrameBytes = 1 << 20

// wsMessage represents WebSocket message structure.
type wsMessage struct {
	Type    string `json:"type"`
	ChatID  string `json:"chat_id,omitempty"`
	Content string `json:"content,omitempty"`
}

// WebSocketHandler serves chat turns over a WebSocket. A message frame with
// no chat_id starts a conversation; otherwise it continues the named one.
type WebSocketHandler struct {
	svc            ChatService
	sm             *SessionManager
	allowedOrigins []string
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(svc ChatService, sm *SessionManager, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		svc:            svc,
		sm:             sm,
		allowedOrigins: allowedOrigins,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()
	slog.Info("WebSocket connection request", "conn_id", connID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "conn_id", connID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "conn_id", connID)
		}
	}()
	ws.SetReadLimit(maxFrameBytes)

	h.sm.Register(connID, ws)
	defer h.sm.Unregister(connID, ws)

	ctx := chat.WithChannel(r.Context(), chat.ChannelWebSocket)
	h.readLoop(ctx, ws, connID)
	slog.Info("Chat socket ended", "conn_id", connID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

// readLoop handles frames one at a time, so turns on a connection are serial.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, connID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "conn_id", connID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "conn_id", connID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid chat frame", "error", err, "conn_id", connID)
			if err := h.writeJSON(ctx, ws, wsMessage{Type: frameError, Content: "invalid frame"}); err != nil {
				return
			}
			continue
		}

		var out wsMessage
		switch msg.Type {
		case frameMessage:
			out = h.handleMessage(ctx, msg, connID)
		case framePing:
			out = wsMessage{Type: framePong}
		default:
			out = wsMessage{Type: frameError, Content: "unknown frame type"}
		}

		if err := h.writeJSON(ctx, ws, out); err != nil {
			slog.Debug("Failed to write chat frame", "error", err, "conn_id", connID)
			return
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, msg wsMessage, connID string) wsMessage {
	var (
		resp chat.Response
		err  error
	)
	if msg.ChatID == "" {
		resp, err = h.svc.Start(ctx, msg.Content)
	} else {
		resp, err = h.svc.Continue(ctx, msg.ChatID, msg.Content)
	}
	if err != nil {
		slog.Error("Chat turn failed", "error", err, "conn_id", connID, "chat_id", msg.ChatID)
		return wsMessage{Type: frameError}
	}
	return wsMessage{Type: frameReply, ChatID: resp.ChatID, Content: resp.Message}
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
