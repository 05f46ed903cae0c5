// Package revalidate drops cached site documents after a sync and, when
// configured, asks the public website to revalidate the same page.
package revalidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/google/uuid"
)

const (
	EventType   = "org.ugf.site.revalidate"
	EventSource = "ugfsync"
)

// Request is the CloudEvent data sent to the website.
type Request struct {
	Path   string `json:"path"`
	Secret string `json:"secret,omitempty"`
}

// Invalidator drops local cache entries for a page path.
type Invalidator interface {
	Invalidate(ctx context.Context, path string) int
}

// Options configures the remote hook. An empty URL disables it.
type Options struct {
	URL        string
	Secret     string
	HTTPClient *http.Client
}

type Revalidator struct {
	local  Invalidator
	remote cloudevents.Client
	secret string
	log    *slog.Logger
}

func New(local Invalidator, opts Options, logger *slog.Logger) (*Revalidator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Revalidator{
		local:  local,
		secret: strings.TrimSpace(opts.Secret),
		log:    logger.With("component", "revalidate"),
	}

	target := strings.TrimSpace(opts.URL)
	if target == "" {
		return r, nil
	}

	httpOpts := []cehttp.Option{cloudevents.WithTarget(target)}
	if r.secret != "" {
		httpOpts = append(httpOpts, cehttp.WithHeader("Authorization", "Bearer "+r.secret))
	}
	if opts.HTTPClient != nil {
		httpOpts = append(httpOpts, cehttp.WithClient(*opts.HTTPClient))
	}
	protocol, err := cloudevents.NewHTTP(httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("revalidate protocol: %w", err)
	}
	client, err := cloudevents.NewClient(protocol, cloudevents.WithUUIDs(), cloudevents.WithTimeNow())
	if err != nil {
		return nil, fmt.Errorf("revalidate client: %w", err)
	}
	r.remote = client
	return r, nil
}

// RemoteEnabled reports whether a website hook is configured.
func (r *Revalidator) RemoteEnabled() bool {
	return r != nil && r.remote != nil
}

// Revalidate drops local entries for path and notifies the website.
func (r *Revalidator) Revalidate(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if r == nil || path == "" {
		return nil
	}

	if r.local != nil {
		dropped := r.local.Invalidate(ctx, path)
		r.log.DebugContext(ctx, "local cache invalidated", "path", path, "entries", dropped)
	}
	if r.remote == nil {
		return nil
	}

	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetType(EventType)
	event.SetSource(EventSource)
	event.SetSubject(path)
	if err := event.SetData(cloudevents.ApplicationJSON, Request{Path: path, Secret: r.secret}); err != nil {
		return fmt.Errorf("encode revalidate event: %w", err)
	}

	result := r.remote.Send(ctx, event)
	if cloudevents.IsUndelivered(result) {
		return fmt.Errorf("send revalidate event: %w", result)
	}
	if !cloudevents.IsACK(result) {
		var httpResult *cehttp.Result
		if errors.As(result, &httpResult) {
			return fmt.Errorf("revalidate rejected: status=%d", httpResult.StatusCode)
		}
		return fmt.Errorf("revalidate rejected: %w", result)
	}
	r.log.InfoContext(ctx, "site revalidated", "path", path, "event_id", event.ID())
	return nil
}
