package mediasync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ugfund/ugfsync/internal/airtable"
	"github.com/ugfund/ugfsync/internal/cursor"
	"github.com/ugfund/ugfsync/internal/db"
	"github.com/ugfund/ugfsync/internal/observability"
)

// PayloadSource lists webhook payloads.
type PayloadSource interface {
	ListWebhookPayloads(ctx context.Context, baseID, webhookID, cursor string) (airtable.PayloadsPage, error)
}

// RecordSource reads a single record.
type RecordSource interface {
	GetRecord(ctx context.Context, baseID, tableID, recordID string) (airtable.Record, error)
}

// SyncLog persists cycle state and media actions. *db.Database satisfies it.
type SyncLog interface {
	RecordSyncAttempt(ctx context.Context, scope string, at time.Time) error
	RecordSyncSuccess(ctx context.Context, scope, cursor string, at time.Time) error
	RecordSyncFailure(ctx context.Context, scope string, cause error, at time.Time) error
	AppendSyncEvent(ctx context.Context, event db.SyncEvent) error
}

// Deps are the collaborators of a Pipeline. SyncLog and Logger are optional.
type Deps struct {
	Payloads PayloadSource
	Records  RecordSource
	Cursors  cursor.Store
	Media    Media
	SyncLog  SyncLog
	Logger   *slog.Logger
}

// CycleResult summarises one RunCycle.
type CycleResult struct {
	Category    string `json:"category"`
	RunID       string `json:"run_id"`
	Payloads    int    `json:"payloads"`
	Uploaded    int    `json:"uploaded"`
	Deleted     int    `json:"deleted"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	Cursor      string `json:"cursor,omitempty"`
	CursorSaved bool   `json:"cursor_saved"`
}

// Pipeline runs sync cycles for one category. Cycles of the same Pipeline never overlap.
type Pipeline struct {
	category Category
	deps     Deps
	log      *slog.Logger
	metrics  syncMetrics
	mu       sync.Mutex
	now      func() time.Time
}

func NewPipeline(category Category, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		category: category,
		deps:     deps,
		log:      logger.With("component", "mediasync"),
		metrics:  newSyncMetrics(),
		now:      time.Now,
	}
}

// Category returns the category this pipeline serves.
func (p *Pipeline) Category() Category {
	return p.category
}

// RunCycle drains pending payloads, applies their media actions and advances the cursor.
// A fetch error aborts the cycle before the cursor is touched. Per-record failures
// are counted and logged and do not fail the cycle.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := CycleResult{Category: p.category.Name, RunID: uuid.NewString()}
	ctx = observability.WithSyncRun(ctx, p.category.Name, result.RunID)
	ctx, span := observability.StartSpan(ctx, "mediasync.cycle")
	defer span.End()

	started := p.now()
	p.recordAttempt(ctx, started)

	err := p.runCycle(ctx, &result)
	seconds := p.now().Sub(started).Seconds()
	span.SetAttributes(
		attribute.Int("ugf.payloads", result.Payloads),
		attribute.Int("ugf.uploaded", result.Uploaded),
		attribute.Int("ugf.deleted", result.Deleted),
		attribute.Int("ugf.failed", result.Failed),
	)
	if err != nil {
		span.RecordError(err)
		p.metrics.recordCycle(ctx, p.category.Name, "error", seconds)
		p.recordFailure(ctx, err)
		p.log.ErrorContext(ctx, "sync cycle failed", "error", err)
		return result, err
	}

	p.metrics.recordCycle(ctx, p.category.Name, "ok", seconds)
	p.recordSuccess(ctx, result.Cursor)
	p.log.InfoContext(ctx, "sync cycle finished",
		"payloads", result.Payloads,
		"uploaded", result.Uploaded,
		"deleted", result.Deleted,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"cursor", result.Cursor,
		"cursor_saved", result.CursorSaved,
	)
	return result, nil
}

func (p *Pipeline) runCycle(ctx context.Context, result *CycleResult) error {
	stored, _, err := p.deps.Cursors.Get(ctx, p.category.CursorKey)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}

	payloads, lastCursor, err := p.fetchAll(ctx, stored)
	if err != nil {
		return err
	}
	result.Payloads = len(payloads)
	p.metrics.recordPayloads(ctx, p.category.Name, len(payloads))

	for _, payload := range payloads {
		p.log.DebugContext(ctx, "processing payload", "base_transaction", payload.BaseTransactionNumber)
		for _, decision := range p.category.Plan(payload) {
			p.apply(ctx, decision, result)
		}
	}

	if lastCursor == "" {
		return nil
	}
	if err := p.deps.Cursors.Set(ctx, p.category.CursorKey, lastCursor); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	result.Cursor = lastCursor
	result.CursorSaved = true
	return nil
}

// fetchAll follows mightHaveMore, returning payloads in provider order and the
// cursor of the last page ("" when the provider sent none).
func (p *Pipeline) fetchAll(ctx context.Context, start string) ([]airtable.Payload, string, error) {
	var (
		payloads []airtable.Payload
		current  = start
		last     string
	)
	for {
		resp, err := p.deps.Payloads.ListWebhookPayloads(ctx, p.category.BaseID, p.category.WebhookID, current)
		if err != nil {
			return nil, "", fmt.Errorf("list payloads: %w", err)
		}
		payloads = append(payloads, resp.Payloads...)
		next, ok := resp.CursorString()
		if ok {
			last = next
		}
		p.log.DebugContext(ctx, "fetched payload page",
			"count", len(resp.Payloads),
			"might_have_more", resp.MightHaveMore,
			"cursor", next,
		)
		if !resp.MightHaveMore {
			return payloads, last, nil
		}
		if !ok {
			p.log.WarnContext(ctx, "provider reported more payloads without a cursor; stopping")
			return payloads, last, nil
		}
		current = next
	}
}

func (p *Pipeline) apply(ctx context.Context, decision Decision, result *CycleResult) {
	logger := p.log.With(
		"record_id", decision.RecordID,
		"transition", string(decision.Transition),
		"previous", decision.Previous.String(),
		"current", decision.Current.String(),
	)

	switch decision.Action {
	case ActionSync:
		p.syncRecord(ctx, logger, decision, result)
	case ActionDelete:
		p.deleteRecord(ctx, logger, decision, result)
	default:
		result.Skipped++
		if decision.Transition == TransitionIgnored {
			logger.WarnContext(ctx, "record change ignored, blob store unchanged")
		} else {
			logger.InfoContext(ctx, "no media action for record")
		}
	}
}

func (p *Pipeline) syncRecord(ctx context.Context, logger *slog.Logger, decision Decision, result *CycleResult) {
	ctx, span := observability.StartSpan(ctx, "mediasync.sync_record", attribute.String("ugf.record_id", decision.RecordID))
	defer span.End()

	path := p.category.BlobPath(decision.RecordID)
	imageURL, err := p.imageURL(ctx, decision.RecordID)
	if err != nil {
		result.Skipped++
		logger.WarnContext(ctx, "image lookup failed, skipping record", "error", err)
		p.recordAction(ctx, decision, "upload", "lookup_failed", path, err.Error())
		return
	}
	if imageURL == "" {
		result.Skipped++
		logger.InfoContext(ctx, "record has no image attachment")
		p.recordAction(ctx, decision, "upload", "no_image", path, "")
		return
	}

	publicURL, err := p.deps.Media.Sync(ctx, p.category, decision.RecordID, imageURL)
	if err != nil {
		result.Failed++
		span.RecordError(err)
		logger.ErrorContext(ctx, "image upload failed", "error", err)
		p.recordAction(ctx, decision, "upload", "failed", path, err.Error())
		return
	}
	result.Uploaded++
	logger.InfoContext(ctx, "image uploaded", "url", publicURL)
	p.recordAction(ctx, decision, "upload", "ok", path, publicURL)
}

func (p *Pipeline) deleteRecord(ctx context.Context, logger *slog.Logger, decision Decision, result *CycleResult) {
	ctx, span := observability.StartSpan(ctx, "mediasync.delete_record", attribute.String("ugf.record_id", decision.RecordID))
	defer span.End()

	path := p.category.BlobPath(decision.RecordID)
	if err := p.deps.Media.Delete(ctx, p.category, decision.RecordID); err != nil {
		result.Failed++
		span.RecordError(err)
		logger.ErrorContext(ctx, "image delete failed", "path", path, "error", err)
		p.recordAction(ctx, decision, "delete", "failed", path, err.Error())
		return
	}
	result.Deleted++
	logger.InfoContext(ctx, "image deleted", "path", path)
	p.recordAction(ctx, decision, "delete", "ok", path, "")
}

func (p *Pipeline) imageURL(ctx context.Context, recordID string) (string, error) {
	if p.deps.Records == nil {
		return "", errors.New("no record source configured")
	}
	record, err := p.deps.Records.GetRecord(ctx, p.category.BaseID, p.category.TableID, recordID)
	if err != nil {
		return "", err
	}
	return record.FirstAttachmentURL(p.category.AttachmentField), nil
}

func (p *Pipeline) recordAction(ctx context.Context, decision Decision, action, outcome, path, detail string) {
	p.metrics.recordAction(ctx, p.category.Name, action, outcome)
	if p.deps.SyncLog == nil {
		return
	}
	runID, _ := observability.RunIDFromContext(ctx)
	err := p.deps.SyncLog.AppendSyncEvent(ctx, db.SyncEvent{
		RunID:     runID,
		Category:  p.category.Name,
		RecordID:  decision.RecordID,
		Action:    action,
		Outcome:   outcome,
		BlobPath:  path,
		Detail:    string(decision.Transition) + ": " + detail,
		CreatedAt: p.now(),
	})
	if err != nil {
		p.log.WarnContext(ctx, "append sync event failed", "error", err)
	}
}

func (p *Pipeline) recordAttempt(ctx context.Context, at time.Time) {
	if p.deps.SyncLog == nil {
		return
	}
	if err := p.deps.SyncLog.RecordSyncAttempt(ctx, p.category.Name, at); err != nil {
		p.log.WarnContext(ctx, "record sync attempt failed", "error", err)
	}
}

func (p *Pipeline) recordSuccess(ctx context.Context, cursorValue string) {
	if p.deps.SyncLog == nil {
		return
	}
	if err := p.deps.SyncLog.RecordSyncSuccess(ctx, p.category.Name, cursorValue, p.now()); err != nil {
		p.log.WarnContext(ctx, "record sync success failed", "error", err)
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, cause error) {
	if p.deps.SyncLog == nil {
		return
	}
	if err := p.deps.SyncLog.RecordSyncFailure(ctx, p.category.Name, cause, p.now()); err != nil {
		p.log.WarnContext(ctx, "record sync failure failed", "error", err)
	}
}
