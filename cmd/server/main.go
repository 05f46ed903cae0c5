package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ugfund/ugfsync/internal/app"
	"github.com/ugfund/ugfsync/internal/config"
	"github.com/ugfund/ugfsync/internal/mediasync"
	"github.com/ugfund/ugfsync/internal/observability"
	"github.com/ugfund/ugfsync/internal/server"
	"github.com/ugfund/ugfsync/internal/server/routes"
)

func Run() error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := observability.NewLogger(cfg.IsProduction())
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.SetupOpenTelemetry(ctx, log, observability.OpenTelemetryConfig{
		Enabled:           cfg.Observability.Enabled,
		OTLPEndpoint:      cfg.Observability.OTLPEndpoint,
		OTLPTraceHeaders:  cfg.Observability.OTLPTraceHeaders,
		OTLPMetricHeaders: cfg.Observability.OTLPMetricHeaders,
		ServiceName:       cfg.Observability.ServiceName,
		ServiceVer:        cfg.Observability.ServiceVer,
		SamplingRatio:     cfg.Observability.SamplingRatio,
		MetricsConsole:    cfg.Observability.MetricsConsole,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Error("Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			slog.Error("Failed to close application", "error", err)
		}
	}()

	if cfg.Airtable.BaseID == "" {
		slog.Warn("AIRTABLE_BASE_ID not configured, webhook notifications will be acknowledged without syncing")
	}
	if cfg.IsLocalDevelopment() && cfg.Cron.Secret == "" {
		slog.Warn("CRON_SECRET not set, cron and sync log endpoints will reject every request")
	}
	go application.LogDBLatencyStats(ctx, time.Minute)

	srv := server.New(log, server.Options{
		ServiceName: cfg.Observability.ServiceName,
		MediaDir:    application.MediaDir,
	})

	srv.RegisterRouter(routes.NewWebhookRoutes(cfg.Airtable.BaseID, []routes.WebhookEndpoint{
		routes.TeamWebhook(runnerFor(application, mediasync.CategoryTeam), cfg.Airtable.Team.WebhookSecret),
		routes.PortfolioWebhook(runnerFor(application, mediasync.CategoryPortfolio), cfg.Airtable.Deals.WebhookSecret),
	}, application.Revalidator, log))
	srv.RegisterRouter(routes.NewCronRoutes(cfg.Cron.Secret, cfg.Airtable.BaseID, []routes.RefreshTarget{
		{Category: mediasync.CategoryTeam, WebhookID: cfg.Airtable.Team.WebhookID},
		{Category: mediasync.CategoryPortfolio, WebhookID: cfg.Airtable.Deals.WebhookID},
	}, application.Webhooks, log))
	srv.RegisterRouter(routes.NewSiteRoutes(application.Site, application.SiteCache, log))
	srv.RegisterRouter(routes.NewSyncRoutes(cfg.Cron.Secret, application.Database, log))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Starting server", "port", cfg.Server.Port, "categories", len(application.Pipelines))
	return srv.Start(ctx, addr, 30*time.Second)
}

// runnerFor returns nil for unconfigured categories so routes see a nil interface.
func runnerFor(application *app.App, category string) routes.CycleRunner {
	pipeline, ok := application.Pipelines[category]
	if !ok {
		return nil
	}
	return pipeline
}

func main() {
	if err := Run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
