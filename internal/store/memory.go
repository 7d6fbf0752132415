package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ashureev/cgpt/internal/domain"
)

// MemoryStore is an in-memory implementation of Repository.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
}

// NewMemory creates a new in-memory conversation store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*domain.Conversation),
	}
}

// Create stores a new conversation.
func (s *MemoryStore) Create(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ChatID]; ok {
		return ErrAlreadyExists
	}
	s.conversations[conv.ChatID] = conv.Clone()
	return nil
}

// Get retrieves a conversation by ID.
func (s *MemoryStore) Get(_ context.Context, chatID string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to prevent external modification
	return conv.Clone(), nil
}

// Update replaces an existing conversation.
func (s *MemoryStore) Update(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ChatID]; !ok {
		return ErrNotFound
	}
	s.conversations[conv.ChatID] = conv.Clone()
	return nil
}

// Delete removes a conversation.
func (s *MemoryStore) Delete(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[chatID]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, chatID)
	return nil
}

// List returns all conversations ordered by creation time.
func (s *MemoryStore) List(_ context.Context) ([]*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, conv.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ChatID < out[j].ChatID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of conversations in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
