package mediasync

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type syncMetrics struct {
	cycles   metric.Int64Counter
	payloads metric.Int64Counter
	actions  metric.Int64Counter
	duration metric.Float64Histogram
}

func newSyncMetrics() syncMetrics {
	meter := otel.Meter("github.com/ugfund/ugfsync/internal/mediasync")
	cycles, _ := meter.Int64Counter("ugfsync.sync.cycles")
	payloads, _ := meter.Int64Counter("ugfsync.sync.payloads")
	actions, _ := meter.Int64Counter("ugfsync.media.actions")
	duration, _ := meter.Float64Histogram("ugfsync.sync.cycle.duration", metric.WithUnit("s"))
	return syncMetrics{
		cycles:   cycles,
		payloads: payloads,
		actions:  actions,
		duration: duration,
	}
}

func (m syncMetrics) recordCycle(ctx context.Context, category, outcome string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("outcome", outcome),
	)
	m.cycles.Add(ctx, 1, attrs)
	m.duration.Record(ctx, seconds, attrs)
}

func (m syncMetrics) recordPayloads(ctx context.Context, category string, count int) {
	m.payloads.Add(ctx, int64(count), metric.WithAttributes(attribute.String("category", category)))
}

func (m syncMetrics) recordAction(ctx context.Context, category, action, outcome string) {
	m.actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}
