package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ashureev/cgpt/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "chat:"
	redisIndexKey  = "chats"
)

// RedisOptions holds connection settings for the Redis store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore implements Repository on Redis. Each conversation is a JSON
// string under chat:<id>; the set "chats" indexes the known IDs.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

// createScript indexes the id before writing the record, so a failure
// never leaves a record that List cannot see. SADD of an id that already
// exists is harmless.
var createScript = redis.NewScript(`
redis.call('SADD', KEYS[2], ARGV[2])
return redis.call('SETNX', KEYS[1], ARGV[1])
`)

func redisKey(chatID string) string {
	return redisKeyPrefix + chatID
}

// Create indexes and stores a new conversation in one script call.
func (s *RedisStore) Create(ctx context.Context, conv *domain.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	keys := []string{redisKey(conv.ChatID), redisIndexKey}
	created, err := createScript.Run(ctx, s.client, keys, data, conv.ChatID).Int()
	if err != nil {
		return fmt.Errorf("redis create: %w", err)
	}
	if created == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Get retrieves a conversation by chat ID.
func (s *RedisStore) Get(ctx context.Context, chatID string) (*domain.Conversation, error) {
	data, err := s.client.Get(ctx, redisKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var conv domain.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", chatID, err)
	}
	return &conv, nil
}

// Update replaces an existing conversation using SET XX.
func (s *RedisStore) Update(ctx context.Context, conv *domain.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	ok, err := s.client.SetXX(ctx, redisKey(conv.ChatID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setxx: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Delete removes a conversation and its index entry.
func (s *RedisStore) Delete(ctx context.Context, chatID string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, redisKey(chatID))
		pipe.SRem(ctx, redisIndexKey, chatID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all indexed conversations ordered by creation time.
func (s *RedisStore) List(ctx context.Context) ([]*domain.Conversation, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	convs := make([]*domain.Conversation, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a record; the record was removed out of band.
			continue
		}
		var conv domain.Conversation
		if err := json.Unmarshal([]byte(raw), &conv); err != nil {
			return nil, fmt.Errorf("decode conversation %s: %w", ids[i], err)
		}
		convs = append(convs, &conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].ChatID < convs[j].ChatID
		}
		return convs[i].CreatedAt.Before(convs[j].CreatedAt)
	})
	return convs, nil
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
