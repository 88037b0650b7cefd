package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ajsharma/page_verify/internal/events"
)

func TestWriterWriteAndClose(t *testing.T) {
	tmpDir := t.TempDir()
	path := EventsPath(tmpDir, "localhost_3000", "run-1")

	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if w.Path() != path {
		t.Errorf("Path() = %q, want %q", w.Path(), path)
	}

	if err := w.WriteEvent(events.NewRunStartEvent("run-1", "localhost_3000", "http://localhost:3000", "chromedp", "dev")); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}

	// Run events are synced immediately
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read events file: %v", err)
	}
	if !strings.Contains(string(content), `"event_type":"run.start"`) {
		t.Errorf("run.start not flushed, file contains %q", content)
	}

	if err := w.WriteEvent(events.NewStepOKEvent("run-1", "localhost_3000", "navigate", time.Millisecond)); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read events file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}

	for i, line := range lines {
		var event events.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Errorf("Line %d is not valid JSON: %v", i, err)
		}
		if event.RunID != "run-1" {
			t.Errorf("Line %d RunID = %q, want run-1", i, event.RunID)
		}
	}
}

func TestWriterCloseTwice(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "a", "b.jsonl"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	err = w.WriteEvent(events.NewEvent("run-1", "x", events.EventStepOK, nil))
	if !errors.Is(err, os.ErrClosed) {
		t.Errorf("WriteEvent after Close = %v, want os.ErrClosed", err)
	}
}

func TestOpenUnwritableDir(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create blocker: %v", err)
	}

	// A regular file in place of the parent directory
	if _, err := Open(filepath.Join(blocker, "run.jsonl")); err == nil {
		t.Error("expected error when parent is a file")
	}
}
