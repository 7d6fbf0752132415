// Package chat implements the conversation workflows shared by every transport.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/cgpt/internal/agent"
	"github.com/ashureev/cgpt/internal/domain"
	"github.com/ashureev/cgpt/internal/identity"
	"github.com/ashureev/cgpt/internal/store"
)

const (
	// Preamble is the system message that opens every conversation.
	Preamble = "You are a helpful software engineer expert in Rust language and AWS Cloud Platform."

	// NoneChatID is returned in place of a chat id when there is nothing to show.
	NoneChatID = "none"
	// NoResponseText is returned when the conversation is unknown or the
	// model produced no candidates.
	NoResponseText = "No response!"
	// NoContentText replaces a reply that carried no text.
	NoContentText = agent.NoContentText
)

// Response is the result of starting or continuing a conversation.
type Response struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

// History is the ordered message text of one conversation.
type History struct {
	ChatID   string   `json:"chat_id"`
	Messages []string `json:"messages"`
}

// ChatList holds every stored chat id.
type ChatList struct {
	Chats []string `json:"chats"`
}

func noResponse() Response {
	return Response{ChatID: NoneChatID, Message: NoResponseText}
}

// Service runs conversation turns against a store and a completion backend.
// It holds no locks; concurrent continues on one chat are last writer wins.
type Service struct {
	repo       store.Repository
	completer  agent.Completer
	transcript ConversationLogger
	newID      func() string
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConversationLogger records every persisted turn.
func WithConversationLogger(l ConversationLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.transcript = l
		}
	}
}

// WithIDGenerator overrides how new chat ids are produced.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a conversation service.
func NewService(repo store.Repository, completer agent.Completer, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		completer:  completer,
		transcript: noopConversationLogger{},
		newID:      identity.NewChatID,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a new conversation with text as the first user turn.
// Nothing is stored when the model produces no reply.
func (s *Service) Start(ctx context.Context, text string) (Response, error) {
	chatID := s.newID()
	user := domain.UserMessage(text)

	conv := domain.NewConversation(chatID, []domain.Message{
		domain.SystemMessage(Preamble),
		user,
	})

	reply, ok, err := s.complete(ctx, chatID, conv.Messages)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return noResponse(), nil
	}

	conv.Append(reply)
	if err := s.repo.Create(ctx, conv); err != nil {
		s.logger.Error("Failed to create conversation", "chat_id", chatID, "error", err)
		return Response{}, fmt.Errorf("create conversation %s: %w", chatID, err)
	}

	s.record(ctx, chatID, user, reply)
	s.logger.Info("Conversation started", "chat_id", chatID, "provider", s.completer.Name())
	return Response{ChatID: chatID, Message: reply.Content}, nil
}

// Continue appends text to an existing conversation and returns the reply.
// An unknown chat id yields the none sentinel without calling the model.
func (s *Service) Continue(ctx context.Context, chatID, text string) (Response, error) {
	conv, err := s.repo.Get(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("Continue on unknown conversation", "chat_id", chatID)
		return noResponse(), nil
	}
	if err != nil {
		return Response{}, fmt.Errorf("load conversation %s: %w", chatID, err)
	}

	user := domain.UserMessage(text)
	conv.Append(user)

	reply, ok, err := s.complete(ctx, chatID, conv.Messages)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return noResponse(), nil
	}

	conv.Append(reply)
	if err := s.repo.Update(ctx, conv); err != nil {
		s.logger.Error("Failed to update conversation", "chat_id", chatID, "error", err)
		return Response{}, fmt.Errorf("update conversation %s: %w", chatID, err)
	}

	s.record(ctx, chatID, user, reply)
	s.logger.Info("Conversation continued", "chat_id", chatID, "messages", len(conv.Messages))
	return Response{ChatID: chatID, Message: reply.Content}, nil
}

// History returns every message text of a conversation, preamble included.
func (s *Service) History(ctx context.Context, chatID string) (History, error) {
	conv, err := s.repo.Get(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("History for unknown conversation", "chat_id", chatID)
		return History{ChatID: NoneChatID, Messages: []string{}}, nil
	}
	if err != nil {
		return History{}, fmt.Errorf("load conversation %s: %w", chatID, err)
	}
	return History{ChatID: conv.ChatID, Messages: conv.Contents()}, nil
}

// List returns every chat id in store order.
func (s *Service) List(ctx context.Context) (ChatList, error) {
	convs, err := s.repo.List(ctx)
	if err != nil {
		return ChatList{}, fmt.Errorf("list conversations: %w", err)
	}
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ChatID)
	}
	return ChatList{Chats: ids}, nil
}

// Delete removes a conversation. Deleting an unknown id returns store.ErrNotFound.
func (s *Service) Delete(ctx context.Context, chatID string) error {
	if err := s.repo.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("delete conversation %s: %w", chatID, err)
	}
	s.logger.Info("Conversation deleted", "chat_id", chatID)
	return nil
}

// complete calls the model. ok is false when it produced no candidates.
func (s *Service) complete(ctx context.Context, chatID string, msgs []domain.Message) (domain.Message, bool, error) {
	reply, err := s.completer.Complete(ctx, msgs)
	if err != nil {
		s.logger.Error("Chat completion failed", "chat_id", chatID, "provider", s.completer.Name(), "error", err)
		return domain.Message{}, false, fmt.Errorf("complete chat %s: %w", chatID, err)
	}
	msg, ok := reply.Message()
	if !ok {
		s.logger.Warn("Chat completion produced no reply", "chat_id", chatID, "provider", s.completer.Name())
	}
	return msg, ok, nil
}

func (s *Service) record(ctx context.Context, chatID string, user, reply domain.Message) {
	channel := ChannelFrom(ctx)
	s.transcript.Log(ConversationLogEvent{
		ChatID:     chatID,
		Channel:    channel,
		Direction:  directionOutbound,
		EventType:  eventUserMessage,
		Role:       string(user.Role),
		ContentRaw: user.Content,
	})
	s.transcript.Log(ConversationLogEvent{
		ChatID:     chatID,
		Channel:    channel,
		Direction:  directionInbound,
		EventType:  eventAssistantMessage,
		Role:       string(reply.Role),
		ContentRaw: reply.Content,
		Meta:       map[string]any{"provider": s.completer.Name()},
	})
}
