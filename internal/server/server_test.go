package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})
}

func serve(s *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServerServesHealthRoutesAndMedia(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "team"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "team", "Ada.jpeg"), []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}

	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{ServiceName: "ugfsync-test", MediaDir: dir})
	s.RegisterRouter(pingRoutes{})

	if rec := serve(s, "/healthz"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected healthz: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := serve(s, "/ping"); rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("unexpected ping: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := serve(s, "/media/team/Ada.jpeg"); rec.Code != http.StatusOK || rec.Body.String() != "jpeg-bytes" {
		t.Fatalf("unexpected media: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := serve(s, "/healthz"); rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("expected request id header")
	}
}

func TestServerWithoutMediaDir(t *testing.T) {
	t.Parallel()

	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{ServiceName: "ugfsync-test"})
	if rec := serve(s, "/media/team/Ada.jpeg"); rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNotFound)
	}
}
