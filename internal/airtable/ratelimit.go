package airtable

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRate is Airtable's documented per-base request limit.
const DefaultRate = 5.0

const defaultRetryAfter = 30 * time.Second

// RateLimiter throttles requests proactively so one cycle never trips the per-base limit.
type RateLimiter struct {
	bucket *rate.Limiter
}

// NewRateLimiter allows perSecond requests with a burst of one.
func NewRateLimiter(perSecond float64) *RateLimiter {
	if perSecond <= 0 {
		perSecond = DefaultRate
	}
	return &RateLimiter{bucket: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until the next request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.bucket.Wait(ctx)
}

// CheckResponse converts a 429 into a *RateLimitError honoring Retry-After.
func (r *RateLimiter) CheckResponse(resp *http.Response) error {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	retryAfter := defaultRetryAfter
	if value := resp.Header.Get("Retry-After"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
			retryAfter = time.Duration(seconds) * time.Second
		}
	}
	return &RateLimitError{RetryAfter: retryAfter}
}
