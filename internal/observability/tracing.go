package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ugfund/ugfsync"

type contextKey string

const (
	requestIDKey contextKey = "observability.request_id"
	routeKey     contextKey = "observability.route"
	categoryKey  contextKey = "observability.category"
	runIDKey     contextKey = "observability.run_id"
)

// Span is the application-level tracing span contract.
type Span interface {
	End()
	RecordError(error)
	SetAttributes(...attribute.KeyValue)
}

type otelSpan struct {
	inner trace.Span
}

// StartSpan starts an internal span tagged with the current sync category and run.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	if category, ok := CategoryFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("ugf.category", category))
	}
	if runID, ok := RunIDFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("ugf.run_id", runID))
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, otelSpan{inner: span}
}

// StartDBSpan starts a database tracing span for one query operation.
func StartDBSpan(ctx context.Context, queryName, operation string) (context.Context, Span) {
	queryName = strings.TrimSpace(queryName)
	if queryName == "" {
		queryName = "unknown"
	}
	ctx, span := otel.Tracer(tracerName+"/db").Start(ctx, "db."+queryName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system.name", "sqlite"),
			attribute.String("db.query_name", queryName),
			attribute.String("db.operation", strings.TrimSpace(operation)),
		),
	)
	return ctx, otelSpan{inner: span}
}

// WithRequestMetadata enriches context and current span with request metadata.
func WithRequestMetadata(ctx context.Context, requestID, route string) context.Context {
	requestID = strings.TrimSpace(requestID)
	route = strings.TrimSpace(route)
	if requestID != "" {
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}
	if route != "" {
		ctx = context.WithValue(ctx, routeKey, route)
	}
	span := trace.SpanFromContext(ctx)
	if requestID != "" {
		span.SetAttributes(attribute.String("request.id", requestID))
	}
	if route != "" {
		span.SetAttributes(attribute.String("http.route", route))
	}
	return ctx
}

// WithSyncRun tags logs and spans below ctx with the sync category and cycle id.
func WithSyncRun(ctx context.Context, category, runID string) context.Context {
	if category = strings.TrimSpace(category); category != "" {
		ctx = context.WithValue(ctx, categoryKey, category)
	}
	if runID = strings.TrimSpace(runID); runID != "" {
		ctx = context.WithValue(ctx, runIDKey, runID)
	}
	return ctx
}

// RequestIDFromContext extracts request id.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

// RouteFromContext extracts normalized route path.
func RouteFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, routeKey)
}

// CategoryFromContext extracts the sync category.
func CategoryFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, categoryKey)
}

// RunIDFromContext extracts the sync cycle id.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	value, ok := ctx.Value(key).(string)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (s otelSpan) End() {
	if s.inner == nil {
		return
	}
	s.inner.End()
}

func (s otelSpan) RecordError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.RecordError(err)
	s.inner.SetStatus(codes.Error, err.Error())
}

func (s otelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	if s.inner == nil {
		return
	}
	s.inner.SetAttributes(attrs...)
}
