package engine

import (
	"time"

	"github.com/Paintersrp/warden/internal/runtime"
)

// EventType captures high level lifecycle notifications emitted by the
// supervisor.
type EventType string

const (
	EventTypeResolving EventType = "resolving"
	EventTypeResolved  EventType = "resolved"
	EventTypeStarting  EventType = "starting"
	EventTypeWaiting   EventType = "awaiting_window"
	EventTypeReady     EventType = "ready"
	EventTypeStopping  EventType = "stopping"
	EventTypeStopped   EventType = "stopped"
	EventTypeFailed    EventType = "failed"
	EventTypeVisible   EventType = "visibility"
	EventTypeDataReady EventType = "data_ready"
	EventTypeLog       EventType = "log"
	EventTypeError     EventType = "error"
)

// Event represents a single lifecycle or log notification.
type Event struct {
	Timestamp time.Time
	Role      Role
	LaunchID  string
	Type      EventType
	State     State
	Message   string
	Level     string
	Source    string
	Err       error
	Attempt   int
	Reason    Reason
	Path      string
	Code      *int
}

func eventTypeFor(state State) EventType {
	switch state {
	case StateResolving:
		return EventTypeResolving
	case StateLaunching:
		return EventTypeStarting
	case StateAwaitingWindow:
		return EventTypeWaiting
	case StateReady:
		return EventTypeReady
	case StateTerminating:
		return EventTypeStopping
	case StateStopped, StateNotConfigured:
		return EventTypeStopped
	case StateFailed:
		return EventTypeFailed
	default:
		return EventTypeLog
	}
}

func logEvent(role Role, launchID string, entry runtime.LogEntry) Event {
	level := entry.Level
	if level == "" {
		level = "info"
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Event{
		Timestamp: ts,
		Role:      role,
		LaunchID:  launchID,
		Type:      EventTypeLog,
		Message:   entry.Message,
		Level:     level,
		Source:    entry.Source,
	}
}
