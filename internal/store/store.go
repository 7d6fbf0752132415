// Package store provides conversation persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/cgpt/internal/config"
	"github.com/ashureev/cgpt/internal/domain"
)

var (
	// ErrNotFound is returned when no conversation exists under a chat ID.
	ErrNotFound = errors.New("conversation not found")
	// ErrAlreadyExists is returned by Create when the chat ID is taken.
	ErrAlreadyExists = errors.New("conversation already exists")
	// ErrBusy wraps write failures caused by a locked database. Callers
	// decide whether to retry; the service does not.
	ErrBusy = errors.New("store busy")
)

// Repository defines the interface for persisting conversations.
// Records are always read and written whole.
type Repository interface {
	// Create stores a new conversation. Returns ErrAlreadyExists on key collision.
	Create(ctx context.Context, conv *domain.Conversation) error

	// Get retrieves a conversation. Returns ErrNotFound when absent.
	Get(ctx context.Context, chatID string) (*domain.Conversation, error)

	// Update replaces an existing conversation. Returns ErrNotFound when absent.
	Update(ctx context.Context, conv *domain.Conversation) error

	// Delete removes a conversation. Returns ErrNotFound when absent.
	Delete(ctx context.Context, chatID string) error

	// List returns every stored conversation in backend-defined order.
	List(ctx context.Context) ([]*domain.Conversation, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Open constructs the repository selected by cfg.Backend.
func Open(cfg config.StoreConfig) (Repository, error) {
	var (
		repo Repository
		err  error
	)
	switch cfg.Backend {
	case config.BackendSQLite:
		repo, err = openAs(NewSQLite(cfg.Path))
	case config.BackendBolt:
		repo, err = openAs(NewBolt(cfg.Path))
	case config.BackendRedis:
		repo, err = openAs(NewRedis(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
	case config.BackendMemory:
		repo = NewMemory()
	default:
		err = fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// openAs keeps a failed constructor from yielding a typed-nil Repository.
func openAs[T Repository](r T, err error) (Repository, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}
