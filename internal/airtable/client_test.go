package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{
		BaseURL:    server.URL + "/v0",
		Token:      "pat-test",
		Limiter:    NewRateLimiter(1000),
		HTTPClient: server.Client(),
	})
}

func TestListWebhookPayloadsSendsCursorAndToken(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/bases/appBase/webhooks/achHook/payloads" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("cursor"); got != "5" {
			t.Errorf("unexpected cursor: got=%q want=%q", got, "5")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer pat-test" {
			t.Errorf("unexpected auth header: %q", got)
		}
		_, _ = w.Write([]byte(`{"payloads":[{"baseTransactionNumber":3,"changedTablesById":{"tblTeam":{"changedRecordsById":{"recA":{"current":{"cellValuesByFieldId":{"fldTitle":{"id":"sel1","name":"Associates"}}},"previous":{"cellValuesByFieldId":{"fldTitle":null}}}}}}}],"cursor":6,"mightHaveMore":false}`))
	})

	page, err := client.ListWebhookPayloads(context.Background(), "appBase", "achHook", "5")
	if err != nil {
		t.Fatalf("list payloads: %v", err)
	}
	cursor, ok := page.CursorString()
	if !ok || cursor != "6" {
		t.Fatalf("unexpected cursor: got=%q ok=%v", cursor, ok)
	}
	if len(page.Payloads) != 1 {
		t.Fatalf("unexpected payloads len: got=%d want=1", len(page.Payloads))
	}
	change := page.Payloads[0].ChangedTablesByID["tblTeam"].ChangedRecordsByID["recA"]
	if name, ok := change.Current.SelectName("fldTitle"); !ok || name != "Associates" {
		t.Fatalf("unexpected current title: %q ok=%v", name, ok)
	}
	if _, ok := change.Previous.SelectName("fldTitle"); ok {
		t.Fatal("expected null previous title to be unknown")
	}
}

func TestListWebhookPayloadsOmitsEmptyCursor(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("expected no query, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"payloads":[],"mightHaveMore":false}`))
	})

	page, err := client.ListWebhookPayloads(context.Background(), "appBase", "achHook", "")
	if err != nil {
		t.Fatalf("list payloads: %v", err)
	}
	if _, ok := page.CursorString(); ok {
		t.Fatal("expected missing cursor")
	}
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"type":"INVALID_PERMISSIONS"}}`))
	})

	_, err := client.ListWebhookPayloads(context.Background(), "appBase", "achHook", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected status: got=%d want=%d", apiErr.StatusCode, http.StatusForbidden)
	}
	if StatusCode(err) != http.StatusForbidden {
		t.Fatalf("unexpected StatusCode helper result: %d", StatusCode(err))
	}
}

func TestTooManyRequestsBecomesRateLimitError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetRecord(context.Background(), "appBase", "tblTeam", "recA")
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rateErr.RetryAfter != 7*time.Second {
		t.Fatalf("unexpected retry after: %s", rateErr.RetryAfter)
	}
}

func TestListRecordsFollowsOffset(t *testing.T) {
	t.Parallel()

	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("view"); got != "viwActive" {
			t.Errorf("unexpected view: %q", got)
		}
		if got := r.URL.Query().Get("filterByFormula"); got != "{Title} = 'Analyst'" {
			t.Errorf("unexpected formula: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"records": []map[string]any{{"id": "rec1", "fields": map[string]any{"Name": "Ada"}}},
				"offset":  "itr2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{{"id": "rec2", "fields": map[string]any{"Name": []string{"Grace"}}}},
		})
	})

	records, err := client.ListRecords(context.Background(), "appBase", "tblTeam", ListOptions{
		View:            "viwActive",
		FilterByFormula: "{Title} = 'Analyst'",
	})
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if calls != 2 {
		t.Fatalf("unexpected calls: got=%d want=2", calls)
	}
	if len(records) != 2 || records[1].String("Name") != "Grace" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestRefreshWebhook(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v0/bases/appBase/webhooks/achHook/refresh" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"expirationTime":"2026-03-08T10:00:00.000Z"}`))
	})

	result, err := client.RefreshWebhook(context.Background(), "appBase", "achHook")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if result.ExpirationTime == nil || *result.ExpirationTime != "2026-03-08T10:00:00.000Z" {
		t.Fatalf("unexpected expiration: %v", result.ExpirationTime)
	}
}

func TestMissingTokenIsNotConfigured(t *testing.T) {
	t.Parallel()

	client := NewClient(Options{})
	_, err := client.RefreshWebhook(context.Background(), "appBase", "achHook")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRecordAttachmentURL(t *testing.T) {
	t.Parallel()

	var record Record
	if err := json.Unmarshal([]byte(`{"id":"recA","fields":{"Photo":[{"id":"att1","url":"https://dl.airtable.test/a.png"},{"id":"att2","url":"https://dl.airtable.test/b.png"}]}}`), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := record.FirstAttachmentURL("Photo"); got != "https://dl.airtable.test/a.png" {
		t.Fatalf("unexpected url: %q", got)
	}
	if got := record.FirstAttachmentURL("plaque"); got != "" {
		t.Fatalf("expected empty url, got %q", got)
	}
}
