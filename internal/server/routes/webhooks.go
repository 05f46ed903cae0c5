package routes

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ugfund/ugfsync/internal/airtable"
	"github.com/ugfund/ugfsync/internal/mediasync"
)

const maxNotificationBytes = 1 << 20

// CycleRunner runs one sync cycle for a category.
type CycleRunner interface {
	Category() mediasync.Category
	RunCycle(ctx context.Context) (mediasync.CycleResult, error)
}

// Revalidator refreshes cached pages after a sync.
type Revalidator interface {
	Revalidate(ctx context.Context, path string) error
}

// WebhookEndpoint binds a notification path to the category it syncs.
type WebhookEndpoint struct {
	Path        string
	Description string
	// Runner is nil when the category's table or webhook is not configured.
	Runner CycleRunner
	// Secret is the webhook macSecretBase64. Empty disables MAC checks.
	Secret string
}

// WebhookRoutes registers the Airtable notification endpoints.
type WebhookRoutes struct {
	baseID      string
	endpoints   []WebhookEndpoint
	revalidator Revalidator
	log         *slog.Logger
}

// NewWebhookRoutes constructs webhook routes. An empty baseID acknowledges
// notifications without syncing.
func NewWebhookRoutes(baseID string, endpoints []WebhookEndpoint, revalidator Revalidator, logger *slog.Logger) *WebhookRoutes {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookRoutes{
		baseID:      strings.TrimSpace(baseID),
		endpoints:   endpoints,
		revalidator: revalidator,
		log:         logger.With("component", "webhooks"),
	}
}

// TeamWebhook is the team photo notification endpoint.
func TeamWebhook(runner CycleRunner, secret string) WebhookEndpoint {
	return WebhookEndpoint{
		Path:        "/api/airtable-webhook",
		Description: "Airtable webhook endpoint is active, hi there!",
		Runner:      runner,
		Secret:      secret,
	}
}

// PortfolioWebhook is the portfolio plaque notification endpoint.
func PortfolioWebhook(runner CycleRunner, secret string) WebhookEndpoint {
	return WebhookEndpoint{
		Path:        "/api/airtable-webhook-portcos",
		Description: "Airtable portco webhook endpoint is active, hi there!",
		Runner:      runner,
		Secret:      secret,
	}
}

// RegisterRoutes registers webhook endpoints.
func (w *WebhookRoutes) RegisterRoutes(s *echo.Echo) {
	for _, endpoint := range w.endpoints {
		s.GET(endpoint.Path, func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{
				"message":   endpoint.Description,
				"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			})
		})
		s.POST(endpoint.Path, func(c echo.Context) error {
			return w.handleNotification(c, endpoint)
		})
	}
}

func (w *WebhookRoutes) handleNotification(c echo.Context, endpoint WebhookEndpoint) error {
	ctx := c.Request().Context()
	logger := w.log.With("path", endpoint.Path)

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxNotificationBytes))
	if err != nil {
		logger.ErrorContext(ctx, "read notification failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Webhook processing failed"})
	}
	var notification airtable.Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		logger.ErrorContext(ctx, "decode notification failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Webhook processing failed"})
	}

	if endpoint.Secret != "" {
		if err := verifyWebhookMAC(body, endpoint.Secret, c.Request().Header.Get(macHeader)); err != nil {
			logger.WarnContext(ctx, "notification rejected", "error", err)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": unauthorizedBody})
		}
	}

	logger.InfoContext(ctx, "notification received",
		"base_id", notification.Base.ID,
		"webhook_id", notification.Webhook.ID,
		"timestamp", notification.Timestamp,
	)

	switch {
	case w.baseID == "":
		logger.WarnContext(ctx, "AIRTABLE_BASE_ID not configured, skipping payload fetch")
	case endpoint.Runner == nil:
		logger.WarnContext(ctx, "category not configured, skipping payload fetch")
	default:
		w.runCycle(context.WithoutCancel(ctx), endpoint, logger)
	}

	return c.JSON(http.StatusOK, map[string]int{"status": http.StatusOK})
}

func (w *WebhookRoutes) runCycle(ctx context.Context, endpoint WebhookEndpoint, logger *slog.Logger) {
	result, err := endpoint.Runner.RunCycle(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "sync cycle failed", "category", result.Category, "error", err)
		return
	}
	page := endpoint.Runner.Category().RevalidatePath
	if w.revalidator == nil || page == "" {
		return
	}
	if err := w.revalidator.Revalidate(ctx, page); err != nil {
		logger.ErrorContext(ctx, "revalidate failed", "page", page, "error", err)
		return
	}
	logger.InfoContext(ctx, "page revalidated", "page", page, "uploaded", result.Uploaded, "deleted", result.Deleted)
}
