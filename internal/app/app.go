// Package app wires configuration into the stores, clients and pipelines
// shared by the server and the ops CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ugfund/ugfsync/internal/airtable"
	"github.com/ugfund/ugfsync/internal/blob"
	"github.com/ugfund/ugfsync/internal/config"
	"github.com/ugfund/ugfsync/internal/cursor"
	"github.com/ugfund/ugfsync/internal/db"
	"github.com/ugfund/ugfsync/internal/mediasync"
	"github.com/ugfund/ugfsync/internal/observability"
	"github.com/ugfund/ugfsync/internal/revalidate"
	"github.com/ugfund/ugfsync/internal/site"
)

const (
	httpClientTimeout = 60 * time.Second
	siteCacheCapacity = 64
)

// ErrNoBlobStore is returned when neither a Vercel token nor a local directory is configured.
var ErrNoBlobStore = errors.New("no blob store configured: set BLOB_READ_WRITE_TOKEN or BLOB_LOCAL_DIR")

// App holds the long-lived dependencies built from Config.
type App struct {
	Config   config.Config
	Log      *slog.Logger
	Database *db.Database
	Cursors  cursor.Store
	// Records reads tables with the API key; Webhooks uses the webhook PAT.
	Records  *airtable.Client
	Webhooks *airtable.Client
	Blobs    blob.Store
	// MediaDir is set when blobs live on local disk.
	MediaDir    string
	Pipelines   map[string]*mediasync.Pipeline
	Site        *site.Service
	SiteCache   *site.Cache
	Revalidator *revalidate.Revalidator

	closers []func() error
}

// New opens the database and cursor store and builds every client.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, Log: log, Pipelines: map[string]*mediasync.Pipeline{}}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.Database = database
	a.closers = append(a.closers, database.Close)

	if cfg.Redis.URL != "" {
		client, err := cursor.OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Cursors = cursor.NewRedisStore(client)
		a.closers = append(a.closers, client.Close)
		log.Info("Using redis cursor store")
	} else {
		a.Cursors = cursor.NewSQLiteStore(database)
		log.Info("REDIS_URL not set, using sqlite cursor store")
	}

	httpClient := observability.InstrumentHTTPClient(&http.Client{Timeout: httpClientTimeout})
	limiter := airtable.NewRateLimiter(cfg.Airtable.RateLimit)
	a.Records = airtable.NewClient(airtable.Options{
		BaseURL:    cfg.Airtable.APIURL,
		Token:      cfg.Airtable.APIKey,
		Limiter:    limiter,
		HTTPClient: httpClient,
	})
	a.Webhooks = airtable.NewClient(airtable.Options{
		BaseURL:    cfg.Airtable.APIURL,
		Token:      cfg.Airtable.WebhookPAT,
		Limiter:    limiter,
		HTTPClient: httpClient,
	})

	switch {
	case cfg.Blob.Token != "":
		a.Blobs = blob.NewVercelStore(cfg.Blob.APIURL, cfg.Blob.Token, httpClient)
	case cfg.Blob.LocalDir != "":
		disk, err := blob.NewDiskStore(cfg.Blob.LocalDir, fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Blobs = disk
		a.MediaDir = disk.Root()
		log.Info("Using local blob store", "dir", disk.Root())
	default:
		_ = a.Close()
		return nil, ErrNoBlobStore
	}

	synchronizer := mediasync.NewSynchronizer(a.Blobs, httpClient, cfg.Media.DownloadTimeout)
	for _, category := range mediasync.Categories(cfg) {
		a.Pipelines[category.Name] = mediasync.NewPipeline(category, mediasync.Deps{
			Payloads: a.Webhooks,
			Records:  a.Records,
			Cursors:  a.Cursors,
			Media:    synchronizer,
			SyncLog:  database,
			Logger:   log,
		})
	}

	a.SiteCache = site.NewCache(siteCacheCapacity, cfg.Site.CacheTTL)
	a.Site = site.NewService(a.Records, a.Blobs, site.Tables{
		BaseID:     cfg.Airtable.BaseID,
		TeamTable:  cfg.Airtable.Team.TableID,
		TeamView:   cfg.Airtable.Team.ViewID,
		DealsTable: cfg.Airtable.Deals.TableID,
		DealsView:  cfg.Airtable.Deals.ViewID,
		VCCCTable:  cfg.Airtable.VCCC.TableID,
		VCCCView:   cfg.Airtable.VCCC.ViewID,
	}, log)

	revalidator, err := revalidate.New(a.SiteCache, revalidate.Options{
		URL:        cfg.Site.RevalidateURL,
		Secret:     cfg.Site.RevalidateSecret,
		HTTPClient: httpClient,
	}, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Revalidator = revalidator

	return a, nil
}

// Pipeline returns the pipeline for a category name.
func (a *App) Pipeline(category string) (*mediasync.Pipeline, error) {
	pipeline, ok := a.Pipelines[category]
	if !ok {
		return nil, fmt.Errorf("category %q is not configured", category)
	}
	return pipeline, nil
}

// CursorKey maps a category name to its cursor store key.
func CursorKey(category string) (string, error) {
	switch category {
	case mediasync.CategoryTeam:
		return cursor.TeamKey, nil
	case mediasync.CategoryPortfolio:
		return cursor.PortfolioKey, nil
	default:
		return "", fmt.Errorf("unknown category %q (want %s or %s)", category, mediasync.CategoryTeam, mediasync.CategoryPortfolio)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// LogDBLatencyStats logs the slowest queries every interval until ctx ends.
func (a *App) LogDBLatencyStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		stats := a.Database.QueryLatencyStats()
		limit := min(5, len(stats))
		for index := 0; index < limit; index++ {
			entry := stats[index]
			a.Log.Info("db_query_latency",
				"query", entry.Name,
				"count", entry.Count,
				"errors", entry.Errors,
				"p50_ms", entry.P50.Milliseconds(),
				"p95_ms", entry.P95.Milliseconds(),
				"max_ms", entry.Max.Milliseconds(),
			)
		}
	}
}
