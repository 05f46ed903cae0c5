package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("UGF_ENV", "test")
	t.Setenv("UGF_DB_PATH", filepath.Join(dir, "sync"))
	t.Setenv("BLOB_LOCAL_DIR", filepath.Join(dir, "blobs"))
	t.Setenv("REDIS_URL", "")
	t.Setenv("BLOB_READ_WRITE_TOKEN", "")
}

func TestCursorCommands(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "cursor", "get", "-c", "portfolio")
	if err != nil {
		t.Fatalf("cursor get: %v", err)
	}
	if !strings.Contains(out, "portfolio: no cursor stored") {
		t.Fatalf("unexpected output: %q", out)
	}

	if _, err := runCLI(t, "cursor", "set", "42", "-c", "portfolio"); err != nil {
		t.Fatalf("cursor set: %v", err)
	}
	out, err = runCLI(t, "cursor", "get", "-c", "portfolio")
	if err != nil || !strings.Contains(out, "portfolio: 42") {
		t.Fatalf("unexpected cursor after set: out=%q err=%v", out, err)
	}

	if _, err := runCLI(t, "cursor", "clear", "-c", "portfolio"); err != nil {
		t.Fatalf("cursor clear: %v", err)
	}
	out, _ = runCLI(t, "cursor", "get", "-c", "portfolio")
	if !strings.Contains(out, "no cursor stored") {
		t.Fatalf("unexpected cursor after clear: %q", out)
	}
}

func TestCursorSetRejectsInvalidValues(t *testing.T) {
	setupEnv(t)

	if _, err := runCLI(t, "cursor", "set", "abc", "-c", "team"); err == nil {
		t.Fatal("expected error for non-numeric cursor")
	}
	if _, err := runCLI(t, "cursor", "get", "-c", "nope"); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestSyncUnconfiguredCategory(t *testing.T) {
	setupEnv(t)
	t.Setenv("AIRTABLE_TEAM_TABLE_ID", "")

	if _, err := runCLI(t, "sync", "-c", "team"); err == nil {
		t.Fatal("expected error for unconfigured category")
	}
}

func TestEventsEmpty(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "events", "-n", "5", "-c", "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if !strings.Contains(out, "No sync events recorded.") {
		t.Fatalf("unexpected output: %q", out)
	}
}
