package db

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ugfund/ugfsync/internal/observability"
)

// queryWindowSize bounds the samples kept per named statement.
const queryWindowSize = 256

// queryWindow is a fixed ring of recent durations for one statement.
type queryWindow struct {
	samples [queryWindowSize]time.Duration
	next    int
	filled  int
	errors  int
}

func (w *queryWindow) add(duration time.Duration, failed bool) {
	w.samples[w.next] = duration
	w.next = (w.next + 1) % queryWindowSize
	if w.filled < queryWindowSize {
		w.filled++
	}
	if failed {
		w.errors++
	}
}

func (w *queryWindow) stats(name string) LatencyStats {
	sorted := slices.Clone(w.samples[:w.filled])
	slices.Sort(sorted)
	last := len(sorted) - 1
	return LatencyStats{
		Name:   name,
		Count:  len(sorted),
		Errors: w.errors,
		P50:    sorted[last/2],
		P95:    sorted[last*95/100],
		Max:    sorted[last],
	}
}

type queryLatencyTracker struct {
	mu       sync.Mutex
	windows  map[string]*queryWindow
	duration metric.Float64Histogram
}

func newQueryLatencyTracker() *queryLatencyTracker {
	duration, _ := otel.Meter("github.com/ugfund/ugfsync/internal/db").
		Float64Histogram("ugfsync.db.query.duration", metric.WithUnit("ms"))
	return &queryLatencyTracker{windows: map[string]*queryWindow{}, duration: duration}
}

func (t *queryLatencyTracker) observe(ctx context.Context, name, operation string, duration time.Duration, err error) {
	if t == nil {
		return
	}

	t.mu.Lock()
	window, ok := t.windows[name]
	if !ok {
		window = &queryWindow{}
		t.windows[name] = window
	}
	window.add(duration, err != nil)
	t.mu.Unlock()

	if t.duration != nil {
		t.duration.Record(ctx, float64(duration)/float64(time.Millisecond), metric.WithAttributes(
			attribute.String("db.query_name", name),
			attribute.String("db.operation", operation),
			attribute.Bool("error", err != nil),
		))
	}
}

// snapshot orders statements slowest p95 first.
func (t *queryLatencyTracker) snapshot() []LatencyStats {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	stats := make([]LatencyStats, 0, len(t.windows))
	for name, window := range t.windows {
		if window.filled > 0 {
			stats = append(stats, window.stats(name))
		}
	}
	t.mu.Unlock()

	slices.SortFunc(stats, func(a, b LatencyStats) int {
		if a.P95 != b.P95 {
			if a.P95 > b.P95 {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return stats
}

// trackedDB times every statement by its "-- name:" marker and opens a span for it.
type trackedDB struct {
	inner   dbtx
	tracker *queryLatencyTracker
}

func newTrackedDB(inner dbtx, tracker *queryLatencyTracker) dbtx {
	if tracker == nil {
		return inner
	}
	return &trackedDB{inner: inner, tracker: tracker}
}

func timed[T any](ctx context.Context, tracker *queryLatencyTracker, query, operation string, run func(context.Context) (T, error)) (T, error) {
	name := queryName(query)
	ctx, span := observability.StartDBSpan(ctx, name, operation)
	defer span.End()

	start := time.Now()
	out, err := run(ctx)
	tracker.observe(ctx, name, operation, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
	}
	return out, err
}

func (d *trackedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return timed(ctx, d.tracker, query, "exec", func(ctx context.Context) (sql.Result, error) {
		return d.inner.ExecContext(ctx, query, args...)
	})
}

func (d *trackedDB) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return timed(ctx, d.tracker, query, "prepare", func(ctx context.Context) (*sql.Stmt, error) {
		return d.inner.PrepareContext(ctx, query)
	})
}

func (d *trackedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return timed(ctx, d.tracker, query, "query", func(ctx context.Context) (*sql.Rows, error) {
		return d.inner.QueryContext(ctx, query, args...)
	})
}

// QueryRowContext defers errors to Scan, so they are not counted here.
func (d *trackedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	row, _ := timed(ctx, d.tracker, query, "query_row", func(ctx context.Context) (*sql.Row, error) {
		return d.inner.QueryRowContext(ctx, query, args...), nil
	})
	return row
}

// queryName reads the "-- name: X" marker on the first line of a statement.
func queryName(query string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(query), "\n")
	name, ok := strings.CutPrefix(strings.TrimSpace(first), "-- name:")
	if !ok {
		return "unknown"
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "unknown"
	}
	return fields[0]
}
