package cursor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ugfund/ugfsync/internal/db"
)

func TestStores(t *testing.T) {
	t.Parallel()

	tests := map[string]func(t *testing.T) Store{
		"redis": func(t *testing.T) Store {
			server := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: server.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStore(client)
		},
		"sqlite": func(t *testing.T) Store {
			database, err := db.New(filepath.Join(t.TempDir(), "cursor"))
			if err != nil {
				t.Fatalf("open db: %v", err)
			}
			t.Cleanup(func() { _ = database.Close() })
			return NewSQLiteStore(database)
		},
	}

	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := build(t)

			if _, err := MustGet(ctx, store, TeamKey); !errors.Is(err, ErrNoCursor) {
				t.Fatalf("expected ErrNoCursor, got %v", err)
			}
			if err := store.Set(ctx, TeamKey, "4"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := store.Set(ctx, PortfolioKey, "11"); err != nil {
				t.Fatalf("set portfolio: %v", err)
			}
			value, ok, err := store.Get(ctx, TeamKey)
			if err != nil || !ok || value != "4" {
				t.Fatalf("unexpected get: value=%q ok=%v err=%v", value, ok, err)
			}
			if err := store.Clear(ctx, TeamKey); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if _, ok, _ := store.Get(ctx, TeamKey); ok {
				t.Fatal("expected cleared cursor")
			}
			value, err = MustGet(ctx, store, PortfolioKey)
			if err != nil || value != "11" {
				t.Fatalf("portfolio cursor changed: value=%q err=%v", value, err)
			}
		})
	}
}

func TestOpenRedisPings(t *testing.T) {
	t.Parallel()

	server := miniredis.RunT(t)
	client, err := OpenRedis(context.Background(), "redis://"+server.Addr()+"/0")
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	_ = client.Close()

	if _, err := OpenRedis(context.Background(), "not-a-url"); err == nil {
		t.Fatal("expected parse error")
	}
}
