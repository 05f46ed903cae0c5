package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/ugfund/ugfsync/internal/config"
	"github.com/ugfund/ugfsync/internal/cursor"
	"github.com/ugfund/ugfsync/internal/mediasync"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	dir := t.TempDir()
	return config.Config{
		Environment: "test",
		Server:      config.ServerConfig{Port: 8080},
		Database:    config.DatabaseConfig{Path: filepath.Join(dir, "sync")},
		Airtable: config.AirtableConfig{
			BaseID:    "appBase",
			RateLimit: 5,
			Team: config.TableConfig{
				TableID:       "tblTeam",
				WebhookID:     "achTeam",
				StatusFieldID: "fldTitle",
			},
		},
		Blob: config.BlobConfig{LocalDir: filepath.Join(dir, "blobs")},
		Site: config.SiteConfig{CacheTTL: time.Hour},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresConfiguredCategories(t *testing.T) {
	t.Parallel()

	application, err := New(context.Background(), testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer func() { _ = application.Close() }()

	if _, err := application.Pipeline(mediasync.CategoryTeam); err != nil {
		t.Fatalf("team pipeline: %v", err)
	}
	if _, err := application.Pipeline(mediasync.CategoryPortfolio); err == nil {
		t.Fatal("portfolio should not be configured")
	}
	if application.MediaDir == "" {
		t.Fatal("expected local media dir")
	}
	if _, ok := application.Cursors.(*cursor.SQLiteStore); !ok {
		t.Fatalf("expected sqlite cursor store, got %T", application.Cursors)
	}
}

func TestNewUsesRedisWhenConfigured(t *testing.T) {
	t.Parallel()

	server := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.URL = "redis://" + server.Addr()

	application, err := New(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer func() { _ = application.Close() }()

	if err := application.Cursors.Set(context.Background(), cursor.TeamKey, "9"); err != nil {
		t.Fatalf("set cursor: %v", err)
	}
	if got, _ := server.Get(cursor.TeamKey); got != "9" {
		t.Fatalf("unexpected redis value: got=%q want=%q", got, "9")
	}
}

func TestNewRequiresBlobStore(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Blob = config.BlobConfig{}
	if _, err := New(context.Background(), cfg, discardLogger()); !errors.Is(err, ErrNoBlobStore) {
		t.Fatalf("expected ErrNoBlobStore, got %v", err)
	}
}

func TestCursorKey(t *testing.T) {
	t.Parallel()

	if key, err := CursorKey("team"); err != nil || key != "airtable_webhook_cursor" {
		t.Fatalf("unexpected team key: %q err=%v", key, err)
	}
	if key, err := CursorKey("portfolio"); err != nil || key != "airtable_portco_webhook_cursor" {
		t.Fatalf("unexpected portfolio key: %q err=%v", key, err)
	}
	if _, err := CursorKey("other"); err == nil {
		t.Fatal("expected unknown category error")
	}
}
