package mediasync

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ugfund/ugfsync/internal/blob"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newDiskStore(t *testing.T) (*blob.DiskStore, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "blobs")
	store, err := blob.NewDiskStore(root, "http://localhost")
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	return store, root
}

func TestSynchronizerUploadsReencodedJPEG(t *testing.T) {
	t.Parallel()

	payload := pngBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "UGF-Webhook/1.0" {
			t.Errorf("unexpected user agent: %q", got)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	store, root := newDiskStore(t)
	synchronizer := NewSynchronizer(store, server.Client(), 0)

	url, err := synchronizer.Sync(context.Background(), testTeamCategory(), "recAbc", server.URL+"/photo.png")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if url != "http://localhost/media/team/Abc.jpeg" {
		t.Fatalf("unexpected public url: %q", url)
	}
	data, err := os.ReadFile(filepath.Join(root, "team", "Abc.jpeg"))
	if err != nil {
		t.Fatalf("read stored blob: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("stored blob is not a jpeg: %v", err)
	}
}

func TestSynchronizerRejectsNonImageContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	store, root := newDiskStore(t)
	synchronizer := NewSynchronizer(store, server.Client(), 0)

	_, err := synchronizer.Sync(context.Background(), testPortfolioCategory(), "recDeal", server.URL)
	if !errors.Is(err, ErrInvalidContentType) {
		t.Fatalf("expected ErrInvalidContentType, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(root, "portfolio", "recDeal.jpeg")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected no blob written, stat err=%v", statErr)
	}
}

func TestSynchronizerRejectsFailedDownload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	store, _ := newDiskStore(t)
	synchronizer := NewSynchronizer(store, server.Client(), 0)
	if _, err := synchronizer.Sync(context.Background(), testTeamCategory(), "recA", server.URL); err == nil {
		t.Fatal("expected download error")
	}
}

func TestSynchronizerDeleteMissingBlobIsNotAnError(t *testing.T) {
	t.Parallel()

	store, _ := newDiskStore(t)
	synchronizer := NewSynchronizer(store, nil, 0)
	if err := synchronizer.Delete(context.Background(), testTeamCategory(), "recMissing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}
