// Package events defines the structured events a verification run emits.
package events

import (
	"time"
)

// Event represents a single run event in JSONL format.
type Event struct {
	Timestamp string                 `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Site      string                 `json:"site"`
	EventType string                 `json:"event_type"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(runID, site, eventType string, data map[string]interface{}) *Event {
	return &Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     runID,
		Site:      site,
		EventType: eventType,
		Data:      data,
	}
}

// Event type constants.
const (
	EventRunStart   = "run.start"
	EventRunFinish  = "run.finish"
	EventStepOK     = "step.ok"
	EventStepFailed = "step.failed"
)

// NewRunStartEvent creates a run.start event.
func NewRunStartEvent(runID, site, url, driver, version string) *Event {
	return NewEvent(runID, site, EventRunStart, map[string]interface{}{
		"url":                 url,
		"driver":              driver,
		"page_verify_version": version,
		"start_time":          time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// NewStepOKEvent creates a step.ok event.
func NewStepOKEvent(runID, site, step string, duration time.Duration) *Event {
	return NewEvent(runID, site, EventStepOK, map[string]interface{}{
		"step":        step,
		"duration_ms": duration.Milliseconds(),
	})
}

// NewStepFailedEvent creates a step.failed event.
func NewStepFailedEvent(runID, site, step string, duration time.Duration, err error) *Event {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return NewEvent(runID, site, EventStepFailed, map[string]interface{}{
		"step":        step,
		"duration_ms": duration.Milliseconds(),
		"error":       msg,
	})
}

// NewRunFinishEvent creates a run.finish event.
func NewRunFinishEvent(runID, site string, ok bool, screenshot string, duration time.Duration) *Event {
	return NewEvent(runID, site, EventRunFinish, map[string]interface{}{
		"ok":               ok,
		"screenshot":       screenshot,
		"duration_seconds": duration.Seconds(),
	})
}
