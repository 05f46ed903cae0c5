package blob

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestVercelStorePutSendsHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/team/Abc.jpeg" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("unexpected auth: %q", got)
		}
		if got := r.Header.Get("x-content-type"); got != "image/jpeg" {
			t.Errorf("unexpected content type header: %q", got)
		}
		if got := r.Header.Get("x-allow-overwrite"); got != "1" {
			t.Errorf("unexpected overwrite header: %q", got)
		}
		if got := r.Header.Get("x-add-random-suffix"); got != "0" {
			t.Errorf("unexpected random suffix header: %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "jpeg-bytes" {
			t.Errorf("unexpected body: %q", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"url":      "https://store.public.blob.vercel-storage.com/team/Abc.jpeg",
			"pathname": "team/Abc.jpeg",
		})
	}))
	defer server.Close()

	store := NewVercelStore(server.URL, "token-1", server.Client())
	out, err := store.Put(context.Background(), "team/Abc.jpeg", []byte("jpeg-bytes"), PutOptions{ContentType: "image/jpeg", AllowOverwrite: true})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if out.URL != "https://store.public.blob.vercel-storage.com/team/Abc.jpeg" {
		t.Fatalf("unexpected url: %q", out.URL)
	}
}

func TestVercelStoreDeleteAndList(t *testing.T) {
	t.Parallel()

	var deleted []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/delete":
			var body struct {
				URLs []string `json:"urls"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			deleted = append(deleted, body.URLs...)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet:
			if r.URL.Query().Get("prefix") != "team/" {
				t.Errorf("unexpected prefix: %q", r.URL.Query().Get("prefix"))
			}
			if r.URL.Query().Get("cursor") == "" {
				_, _ = w.Write([]byte(`{"blobs":[{"url":"https://x/team/A.jpeg","pathname":"team/A.jpeg","size":3}],"cursor":"c2","hasMore":true}`))
				return
			}
			_, _ = w.Write([]byte(`{"blobs":[{"url":"https://x/team/B.jpeg","pathname":"team/B.jpeg","size":4}],"hasMore":false}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	store := NewVercelStore(server.URL, "token-1", server.Client())
	if err := store.Delete(context.Background(), "team/A.jpeg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "team/A.jpeg" {
		t.Fatalf("unexpected deleted: %v", deleted)
	}
	blobs, err := store.List(context.Background(), "team/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blobs) != 2 || blobs[1].Pathname != "team/B.jpeg" {
		t.Fatalf("unexpected blobs: %+v", blobs)
	}
}

func TestVercelStoreErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"forbidden"}}`))
	}))
	defer server.Close()

	store := NewVercelStore(server.URL, "token-1", server.Client())
	_, err := store.Put(context.Background(), "portfolio/rec1.jpeg", []byte("x"), PutOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden APIError, got %v", err)
	}
}

func TestDiskStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "blobs")
	store, err := NewDiskStore(root, "http://localhost:8080")
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}

	out, err := store.Put(ctx, "portfolio/rec1.jpeg", []byte("one"), PutOptions{ContentType: "image/jpeg", AllowOverwrite: true})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if out.URL != "http://localhost:8080/media/portfolio/rec1.jpeg" {
		t.Fatalf("unexpected url: %q", out.URL)
	}
	if _, err := store.Put(ctx, "portfolio/rec1.jpeg", []byte("two"), PutOptions{}); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if _, err := store.Put(ctx, "portfolio/rec1.jpeg", []byte("three"), PutOptions{AllowOverwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "portfolio", "rec1.jpeg"))
	if err != nil || string(data) != "three" {
		t.Fatalf("unexpected stored data: %q err=%v", data, err)
	}
	if _, err := store.Put(ctx, "team/A.jpeg", []byte("a"), PutOptions{AllowOverwrite: true}); err != nil {
		t.Fatalf("put team: %v", err)
	}

	blobs, err := store.List(ctx, "portfolio/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blobs) != 1 || blobs[0].Pathname != "portfolio/rec1.jpeg" {
		t.Fatalf("unexpected list: %+v", blobs)
	}

	if err := store.Delete(ctx, "portfolio/rec1.jpeg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "portfolio/rec1.jpeg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Put(ctx, "../escape.jpeg", []byte("x"), PutOptions{}); err == nil {
		t.Fatal("expected invalid path error")
	}
}
