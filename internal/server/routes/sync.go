package routes

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ugfund/ugfsync/internal/db"
)

// SyncLogReader exposes the persisted sync history.
type SyncLogReader interface {
	ListSyncEvents(ctx context.Context, category string, limit int) ([]db.SyncEvent, error)
	ListSyncStates(ctx context.Context) ([]db.SyncState, error)
	QueryLatencyStats() []db.LatencyStats
}

// SyncRoutes registers the sync log API behind the cron secret.
type SyncRoutes struct {
	secret string
	log    SyncLogReader
	logger *slog.Logger
}

func NewSyncRoutes(secret string, reader SyncLogReader, logger *slog.Logger) *SyncRoutes {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncRoutes{secret: secret, log: reader, logger: logger.With("component", "sync_api")}
}

// RegisterRoutes registers sync log endpoints.
func (r *SyncRoutes) RegisterRoutes(s *echo.Echo) {
	group := s.Group("/api/sync", RequireCronSecret(r.secret, r.logger))
	group.GET("/events", r.handleEvents)
	group.GET("/state", r.handleState)
}

func (r *SyncRoutes) handleEvents(c echo.Context) error {
	ctx := c.Request().Context()
	limit := 0
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = parsed
	}

	events, err := r.log.ListSyncEvents(ctx, strings.TrimSpace(c.QueryParam("category")), limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "list sync events failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list sync events"})
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}

func (r *SyncRoutes) handleState(c echo.Context) error {
	ctx := c.Request().Context()
	states, err := r.log.ListSyncStates(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "list sync state failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list sync state"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"states":  states,
		"queries": r.log.QueryLatencyStats(),
	})
}
