package events

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	event := NewEvent("run-1", "localhost_3000", "test.event", map[string]interface{}{
		"key": "value",
	})
	after := time.Now().UTC()

	if event.RunID != "run-1" {
		t.Errorf("expected RunID 'run-1', got %s", event.RunID)
	}
	if event.Site != "localhost_3000" {
		t.Errorf("expected Site 'localhost_3000', got %s", event.Site)
	}
	if event.EventType != "test.event" {
		t.Errorf("expected EventType 'test.event', got %s", event.EventType)
	}
	if event.Data["key"] != "value" {
		t.Errorf("expected Data['key'] 'value', got %v", event.Data["key"])
	}

	// Verify timestamp is valid and within range
	ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
	if err != nil {
		t.Errorf("failed to parse timestamp: %v", err)
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp %v not in expected range [%v, %v]", ts, before, after)
	}
}

func TestEventJSON(t *testing.T) {
	event := NewStepOKEvent("run-1", "localhost_3000", "navigate", 1500*time.Millisecond)

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	jsonStr := string(data)
	for _, field := range []string{
		`"run_id":"run-1"`,
		`"site":"localhost_3000"`,
		`"event_type":"step.ok"`,
		`"timestamp"`,
		`"duration_ms":1500`,
	} {
		if !strings.Contains(jsonStr, field) {
			t.Errorf("JSON missing %s in %s", field, jsonStr)
		}
	}
}

func TestNewRunStartEvent(t *testing.T) {
	event := NewRunStartEvent("run-1", "localhost_3000", "http://localhost:3000", "chromedp", "1.0.0")

	if event.EventType != EventRunStart {
		t.Errorf("expected EventType %s, got %s", EventRunStart, event.EventType)
	}
	if event.Data["url"] != "http://localhost:3000" {
		t.Errorf("expected url, got %v", event.Data["url"])
	}
	if event.Data["driver"] != "chromedp" {
		t.Errorf("expected driver 'chromedp', got %v", event.Data["driver"])
	}
	if event.Data["page_verify_version"] != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %v", event.Data["page_verify_version"])
	}
}

func TestNewStepFailedEvent(t *testing.T) {
	event := NewStepFailedEvent("run-1", "localhost_3000", "navigate", 20*time.Millisecond,
		errors.New("page load error net::ERR_CONNECTION_REFUSED"))

	if event.EventType != EventStepFailed {
		t.Errorf("expected EventType %s, got %s", EventStepFailed, event.EventType)
	}
	if event.Data["step"] != "navigate" {
		t.Errorf("expected step 'navigate', got %v", event.Data["step"])
	}
	if event.Data["error"] != "page load error net::ERR_CONNECTION_REFUSED" {
		t.Errorf("unexpected error field %v", event.Data["error"])
	}
	if event.Data["duration_ms"] != int64(20) {
		t.Errorf("expected duration_ms 20, got %v", event.Data["duration_ms"])
	}

	event = NewStepFailedEvent("run-1", "localhost_3000", "capture", 0, nil)
	if event.Data["error"] != "" {
		t.Errorf("expected empty error for nil, got %v", event.Data["error"])
	}
}

func TestNewRunFinishEvent(t *testing.T) {
	event := NewRunFinishEvent("run-1", "localhost_3000", true, "out.png", 2*time.Second)

	if event.EventType != EventRunFinish {
		t.Errorf("expected EventType %s, got %s", EventRunFinish, event.EventType)
	}
	if event.Data["ok"] != true {
		t.Errorf("expected ok true, got %v", event.Data["ok"])
	}
	if event.Data["screenshot"] != "out.png" {
		t.Errorf("expected screenshot 'out.png', got %v", event.Data["screenshot"])
	}
	if event.Data["duration_seconds"] != 2.0 {
		t.Errorf("expected duration_seconds 2, got %v", event.Data["duration_seconds"])
	}
}

func TestEventTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant string
		prefix   string
	}{
		{"run start", EventRunStart, "run."},
		{"run finish", EventRunFinish, "run."},
		{"step ok", EventStepOK, "step."},
		{"step failed", EventStepFailed, "step."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.constant, tt.prefix) {
				t.Errorf("constant %s should have prefix %s", tt.constant, tt.prefix)
			}
		})
	}
}
