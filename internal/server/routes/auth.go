package routes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	bearerPrefix     = "Bearer "
	macHeader        = "X-Airtable-Content-MAC"
	macHeaderPrefix  = "hmac-sha256="
	unauthorizedBody = "Unauthorized"
)

var (
	// ErrUnauthorized indicates a missing or wrong cron bearer secret.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidSignature indicates a webhook body whose MAC does not match.
	ErrInvalidSignature = errors.New("invalid signature")
)

// authorizeCron compares the Authorization header with "Bearer <secret>".
// An unset secret never authorizes.
func authorizeCron(header, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrUnauthorized
	}
	expected := bearerPrefix + secret
	if !hmac.Equal([]byte(strings.TrimSpace(header)), []byte(expected)) {
		return ErrUnauthorized
	}
	return nil
}

// RequireCronSecret rejects requests without the cron bearer secret.
func RequireCronSecret(secret string, logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authorizeCron(c.Request().Header.Get(echo.HeaderAuthorization), secret); err != nil {
				logger.WarnContext(c.Request().Context(), "unauthorized cron request", "path", c.Path())
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": unauthorizedBody})
			}
			return next(c)
		}
	}
}

// verifyWebhookMAC checks an X-Airtable-Content-MAC header against the raw
// body. secretBase64 is the webhook's macSecretBase64.
func verifyWebhookMAC(body []byte, secretBase64, header string) error {
	secret, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secretBase64))
	if err != nil {
		return ErrInvalidSignature
	}
	signature := strings.TrimSpace(header)
	if !strings.HasPrefix(signature, macHeaderPrefix) {
		return ErrInvalidSignature
	}
	signature = strings.ToLower(strings.TrimPrefix(signature, macHeaderPrefix))

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
