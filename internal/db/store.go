package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SyncState is the last known outcome of a category's sync cycle.
type SyncState struct {
	Scope         string     `json:"scope"`
	Cursor        string     `json:"cursor"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SyncEvent is one media action recorded by the sync pipeline.
type SyncEvent struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Category  string    `json:"category"`
	RecordID  string    `json:"record_id,omitempty"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	BlobPath  string    `json:"blob_path,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GetCursor returns the stored cursor for key; ok is false when none is stored.
func (c *Database) GetCursor(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.q.QueryRowContext(ctx, `-- name: GetCursor :one
SELECT cursor_value FROM sync_cursors WHERE cursor_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cursor %q: %w", key, err)
	}
	return value, true, nil
}

// SetCursor overwrites the cursor for key.
func (c *Database) SetCursor(ctx context.Context, key, value string) error {
	_, err := c.q.ExecContext(ctx, `-- name: SetCursor :exec
INSERT INTO sync_cursors (cursor_key, cursor_value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (cursor_key) DO UPDATE SET cursor_value = excluded.cursor_value, updated_at = excluded.updated_at`,
		key, value, now())
	if err != nil {
		return fmt.Errorf("set cursor %q: %w", key, err)
	}
	return nil
}

// DeleteCursor removes the cursor for key.
func (c *Database) DeleteCursor(ctx context.Context, key string) error {
	if _, err := c.q.ExecContext(ctx, `-- name: DeleteCursor :exec
DELETE FROM sync_cursors WHERE cursor_key = ?`, key); err != nil {
		return fmt.Errorf("delete cursor %q: %w", key, err)
	}
	return nil
}

// RecordSyncAttempt marks the start of a cycle for scope.
func (c *Database) RecordSyncAttempt(ctx context.Context, scope string, at time.Time) error {
	ts := at.UTC().Format(timeLayout)
	_, err := c.q.ExecContext(ctx, `-- name: RecordSyncAttempt :exec
INSERT INTO sync_state (scope, last_attempt_at, updated_at) VALUES (?, ?, ?)
ON CONFLICT (scope) DO UPDATE SET last_attempt_at = excluded.last_attempt_at, updated_at = excluded.updated_at`,
		scope, ts, ts)
	if err != nil {
		return fmt.Errorf("record sync attempt %q: %w", scope, err)
	}
	return nil
}

// RecordSyncSuccess stores the cursor reached by a successful cycle and clears the last error.
func (c *Database) RecordSyncSuccess(ctx context.Context, scope, cursor string, at time.Time) error {
	ts := at.UTC().Format(timeLayout)
	_, err := c.q.ExecContext(ctx, `-- name: RecordSyncSuccess :exec
INSERT INTO sync_state (scope, cursor, last_success_at, last_error, updated_at) VALUES (?, ?, ?, '', ?)
ON CONFLICT (scope) DO UPDATE SET
    cursor = CASE WHEN excluded.cursor = '' THEN sync_state.cursor ELSE excluded.cursor END,
    last_success_at = excluded.last_success_at,
    last_error = '',
    updated_at = excluded.updated_at`,
		scope, cursor, ts, ts)
	if err != nil {
		return fmt.Errorf("record sync success %q: %w", scope, err)
	}
	return nil
}

// RecordSyncFailure stores the error of a failed cycle.
func (c *Database) RecordSyncFailure(ctx context.Context, scope string, cause error, at time.Time) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	ts := at.UTC().Format(timeLayout)
	_, err := c.q.ExecContext(ctx, `-- name: RecordSyncFailure :exec
INSERT INTO sync_state (scope, last_error, updated_at) VALUES (?, ?, ?)
ON CONFLICT (scope) DO UPDATE SET last_error = excluded.last_error, updated_at = excluded.updated_at`,
		scope, message, ts)
	if err != nil {
		return fmt.Errorf("record sync failure %q: %w", scope, err)
	}
	return nil
}

// ListSyncStates returns the state row of every scope seen so far.
func (c *Database) ListSyncStates(ctx context.Context) ([]SyncState, error) {
	rows, err := c.q.QueryContext(ctx, `-- name: ListSyncStates :many
SELECT scope, cursor, last_attempt_at, last_success_at, last_error, updated_at
FROM sync_state ORDER BY scope`)
	if err != nil {
		return nil, fmt.Errorf("list sync states: %w", err)
	}
	defer rows.Close()

	var out []SyncState
	for rows.Next() {
		var (
			state            SyncState
			attempt, success sql.NullString
			updatedAt        string
		)
		if err := rows.Scan(&state.Scope, &state.Cursor, &attempt, &success, &state.LastError, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan sync state: %w", err)
		}
		state.LastAttemptAt = parseNullTime(attempt)
		state.LastSuccessAt = parseNullTime(success)
		state.UpdatedAt = parseTime(updatedAt)
		out = append(out, state)
	}
	return out, rows.Err()
}

// AppendSyncEvent records one media action.
func (c *Database) AppendSyncEvent(ctx context.Context, event SyncEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := c.q.ExecContext(ctx, `-- name: AppendSyncEvent :exec
INSERT INTO sync_events (run_id, category, record_id, action, outcome, blob_path, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, event.Category, event.RecordID, event.Action, event.Outcome,
		event.BlobPath, truncate(event.Detail, 2000), createdAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("append sync event: %w", err)
	}
	return nil
}

// ListSyncEvents returns the newest events first, optionally filtered by category.
func (c *Database) ListSyncEvents(ctx context.Context, category string, limit int) ([]SyncEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := c.q.QueryContext(ctx, `-- name: ListSyncEvents :many
SELECT id, run_id, category, record_id, action, outcome, blob_path, detail, created_at
FROM sync_events
WHERE (? = '' OR category = ?)
ORDER BY created_at DESC, id DESC
LIMIT ?`, category, category, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync events: %w", err)
	}
	defer rows.Close()

	var out []SyncEvent
	for rows.Next() {
		var (
			event     SyncEvent
			createdAt string
		)
		if err := rows.Scan(&event.ID, &event.RunID, &event.Category, &event.RecordID, &event.Action,
			&event.Outcome, &event.BlobPath, &event.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan sync event: %w", err)
		}
		event.CreatedAt = parseTime(createdAt)
		out = append(out, event)
	}
	return out, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(timeLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil
	}
	parsed := parseTime(value.String)
	if parsed.IsZero() {
		return nil
	}
	return &parsed
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
