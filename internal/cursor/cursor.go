// Package cursor persists the Airtable webhook payload cursor per subscription.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ugfund/ugfsync/internal/db"
)

// Keys used by the two webhook subscriptions.
const (
	TeamKey      = "airtable_webhook_cursor"
	PortfolioKey = "airtable_portco_webhook_cursor"
)

// ErrNoCursor is returned by MustGet when nothing is stored under the key.
var ErrNoCursor = errors.New("cursor: no cursor stored")

// Store reads and writes opaque cursor strings. A missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

// MustGet returns ErrNoCursor instead of ok=false.
func MustGet(ctx context.Context, store Store, key string) (string, error) {
	value, ok, err := store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoCursor
	}
	return value, nil
}

// RedisStore keeps cursors as plain string keys.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client; the caller owns its lifecycle.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis parses url, connects and pings.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// SQLiteStore keeps cursors in the sync_cursors table.
type SQLiteStore struct {
	database *db.Database
}

func NewSQLiteStore(database *db.Database) *SQLiteStore {
	return &SQLiteStore{database: database}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.database.GetCursor(ctx, key)
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	return s.database.SetCursor(ctx, key, value)
}

func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	return s.database.DeleteCursor(ctx, key)
}
