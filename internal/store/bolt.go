package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ashureev/cgpt/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var chatBucket = []byte("chat")

// BoltStore implements Repository on a single BoltDB file.
// Each conversation is one JSON value keyed by chat ID.
type BoltStore struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the BoltDB file at path.
func NewBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chatBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Create stores a new conversation.
func (s *BoltStore) Create(_ context.Context, conv *domain.Conversation) error {
	enc, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(chatBucket)
		if b.Get([]byte(conv.ChatID)) != nil {
			return ErrAlreadyExists
		}
		return b.Put([]byte(conv.ChatID), enc)
	})
}

// Get retrieves a conversation by chat ID.
func (s *BoltStore) Get(_ context.Context, chatID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(chatBucket).Get([]byte(chatID))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &conv)
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Update replaces an existing conversation.
func (s *BoltStore) Update(_ context.Context, conv *domain.Conversation) error {
	enc, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(chatBucket)
		if b.Get([]byte(conv.ChatID)) == nil {
			return ErrNotFound
		}
		return b.Put([]byte(conv.ChatID), enc)
	})
}

// Delete removes a conversation.
func (s *BoltStore) Delete(_ context.Context, chatID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(chatBucket)
		if b.Get([]byte(chatID)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(chatID))
	})
}

// List returns all conversations ordered by creation time.
func (s *BoltStore) List(_ context.Context) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(chatBucket).ForEach(func(k, v []byte) error {
			var conv domain.Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				// Skip malformed entries instead of failing the whole listing
				slog.Warn("skipping malformed conversation", "chat_id", string(k), "error", err)
				return nil
			}
			out = append(out, &conv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Ping checks that the database file is still open.
func (s *BoltStore) Ping(_ context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(chatBucket) == nil {
			return fmt.Errorf("bucket %q missing", chatBucket)
		}
		return nil
	})
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close bolt database: %w", err)
	}
	return nil
}
