package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeReportRequested = "REPORT_REQUESTED"
	EventTypeReportCompleted = "REPORT_COMPLETED"
	EventTypeReportFailed    = "REPORT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ReportRequestedEvent asks a worker to run a report for an as-of date
type ReportRequestedEvent struct {
	BaseEvent
	Report string `json:"report"`
	AsOf   string `json:"as_of"`
}

// ReportCompletedEvent published when a report run finished
type ReportCompletedEvent struct {
	BaseEvent
	RunID      string `json:"run_id"`
	Report     string `json:"report"`
	AsOf       string `json:"as_of"`
	Rows       int    `json:"rows"`
	DurationMs int64  `json:"duration_ms"`
	Cached     bool   `json:"cached"`
}

// ReportFailedEvent published when a report run aborted
type ReportFailedEvent struct {
	BaseEvent
	RunID  string `json:"run_id"`
	Report string `json:"report"`
	AsOf   string `json:"as_of"`
	Reason string `json:"reason"`
}

// NewBaseEvent stamps a fresh event id and the current time
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}
