package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ugfund/ugfsync/internal/airtable"
)

// WebhookRefresher extends the lifetime of an Airtable webhook.
type WebhookRefresher interface {
	Enabled() bool
	RefreshWebhook(ctx context.Context, baseID, webhookID string) (airtable.RefreshResult, error)
}

// RefreshTarget names one webhook to keep alive.
type RefreshTarget struct {
	Category  string
	WebhookID string
}

// CronRoutes registers scheduled maintenance endpoints.
type CronRoutes struct {
	secret    string
	baseID    string
	targets   []RefreshTarget
	refresher WebhookRefresher
	log       *slog.Logger
}

func NewCronRoutes(secret, baseID string, targets []RefreshTarget, refresher WebhookRefresher, logger *slog.Logger) *CronRoutes {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronRoutes{
		secret:    secret,
		baseID:    strings.TrimSpace(baseID),
		targets:   targets,
		refresher: refresher,
		log:       logger.With("component", "cron"),
	}
}

// RegisterRoutes registers the webhook refresh endpoint for both verbs.
func (r *CronRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/api/webhook-refresh", r.handleRefresh)
	s.POST("/api/webhook-refresh", r.handleRefresh)
}

func (r *CronRoutes) handleRefresh(c echo.Context) error {
	ctx := c.Request().Context()
	if err := authorizeCron(c.Request().Header.Get(echo.HeaderAuthorization), r.secret); err != nil {
		r.log.WarnContext(ctx, "unauthorized cron request")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": unauthorizedBody})
	}

	targets := r.configuredTargets()
	if r.refresher == nil || !r.refresher.Enabled() || r.baseID == "" || len(targets) == 0 {
		r.log.ErrorContext(ctx, "missing required environment variables for webhook refresh")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Missing required environment variables"})
	}

	data := make(map[string]airtable.RefreshResult, len(targets))
	for _, target := range targets {
		result, err := r.refresher.RefreshWebhook(ctx, r.baseID, target.WebhookID)
		if err != nil {
			r.log.ErrorContext(ctx, "webhook refresh failed", "category", target.Category, "webhook_id", target.WebhookID, "error", err)
			return c.JSON(http.StatusInternalServerError, refreshFailure(err))
		}
		r.log.InfoContext(ctx, "webhook refreshed", "category", target.Category, "webhook_id", target.WebhookID)
		data[target.Category] = result
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Webhook refreshed successfully",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"data":      data,
	})
}

func (r *CronRoutes) configuredTargets() []RefreshTarget {
	out := make([]RefreshTarget, 0, len(r.targets))
	for _, target := range r.targets {
		if strings.TrimSpace(target.WebhookID) != "" {
			out = append(out, target)
		}
	}
	return out
}

func refreshFailure(err error) map[string]any {
	status := airtable.StatusCode(err)
	if status == 0 {
		return map[string]any{
			"error":   "Internal server error",
			"details": err.Error(),
		}
	}
	details := err.Error()
	var apiErr *airtable.APIError
	if errors.As(err, &apiErr) {
		details = apiErr.Body
	}
	return map[string]any{
		"error":   "Webhook refresh failed",
		"status":  status,
		"details": details,
	}
}
