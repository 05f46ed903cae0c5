package revalidate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	cebinding "github.com/cloudevents/sdk-go/v2/binding"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
)

type fakeInvalidator struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return 1
}

func TestRevalidateLocalOnly(t *testing.T) {
	t.Parallel()

	local := &fakeInvalidator{}
	revalidator, err := New(local, Options{}, nil)
	if err != nil {
		t.Fatalf("new revalidator: %v", err)
	}
	if revalidator.RemoteEnabled() {
		t.Fatal("remote should be disabled without url")
	}
	if err := revalidator.Revalidate(context.Background(), "/team"); err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if len(local.paths) != 1 || local.paths[0] != "/team" {
		t.Fatalf("unexpected invalidated paths: %+v", local.paths)
	}
}

func TestRevalidateSendsCloudEvent(t *testing.T) {
	t.Parallel()

	received := make(chan Request, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer s3cret" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		message := cehttp.NewMessageFromHttpRequest(r)
		defer func() { _ = message.Finish(nil) }()

		event, err := cebinding.ToEvent(r.Context(), message)
		if err != nil {
			t.Errorf("parse cloud event: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if event.Type() != EventType || event.Source() != EventSource || event.ID() == "" {
			t.Errorf("unexpected event attributes: %s", event)
		}
		var data Request
		if err := event.DataAs(&data); err != nil {
			t.Errorf("decode data: %v", err)
		}
		received <- data
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	local := &fakeInvalidator{}
	revalidator, err := New(local, Options{URL: server.URL, Secret: "s3cret", HTTPClient: server.Client()}, nil)
	if err != nil {
		t.Fatalf("new revalidator: %v", err)
	}
	if err := revalidator.Revalidate(context.Background(), "/portfolio"); err != nil {
		t.Fatalf("revalidate: %v", err)
	}

	data := <-received
	if data.Path != "/portfolio" || data.Secret != "s3cret" {
		t.Fatalf("unexpected event data: %+v", data)
	}
	if len(local.paths) != 1 {
		t.Fatalf("expected local invalidation too: %+v", local.paths)
	}
}

func TestRevalidateReportsRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	revalidator, err := New(nil, Options{URL: server.URL, HTTPClient: server.Client()}, nil)
	if err != nil {
		t.Fatalf("new revalidator: %v", err)
	}
	if err := revalidator.Revalidate(context.Background(), "/team"); err == nil {
		t.Fatal("expected rejection error")
	}
}
