package airtable

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured is returned when a call needs a token or id that was not provided.
var ErrNotConfigured = errors.New("airtable: not configured")

// APIError is a non-2xx response from the Airtable API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable: %s %s: %s: %s", e.Method, e.Path, e.Status, strings.TrimSpace(e.Body))
}

// RateLimitError is returned for 429 responses.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("airtable: rate limited, retry after %s", e.RetryAfter)
}

// StatusCode extracts the HTTP status of an *APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return 429
	}
	return 0
}
