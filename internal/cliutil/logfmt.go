// Package cliutil holds helpers shared by the command line front ends.
package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/Paintersrp/warden/internal/engine"
	"github.com/Paintersrp/warden/internal/runtime"
)

// EventRecord is the JSON shape of a supervisor event in headless mode.
type EventRecord struct {
	Timestamp time.Time `json:"ts"`
	Role      string    `json:"role"`
	LaunchID  string    `json:"launchId,omitempty"`
	Type      string    `json:"type"`
	State     string    `json:"state,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason,omitempty"`
	Path      string    `json:"path,omitempty"`
	Code      *int      `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewEventRecord converts an engine event into a record with secrets masked.
func NewEventRecord(event engine.Event) EventRecord {
	level := event.Level
	if level == "" {
		if inferred := inferLogLevel(event.Message); inferred != "" {
			level = inferred
		} else {
			level = "info"
		}
	}
	source := event.Source
	if source == "" {
		source = runtime.LogSourceSystem
	}
	record := EventRecord{
		Timestamp: event.Timestamp,
		Role:      string(event.Role),
		LaunchID:  event.LaunchID,
		Type:      string(event.Type),
		State:     string(event.State),
		Level:     level,
		Message:   RedactSecrets(event.Message),
		Source:    source,
		Reason:    string(event.Reason),
		Path:      event.Path,
		Code:      event.Code,
	}
	if event.Err != nil {
		record.Error = RedactSecrets(event.Err.Error())
	}
	return record
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|warning|info|debug)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	switch strings.ToLower(matches[1]) {
	case "error":
		return "error"
	case "warn", "warning":
		return "warn"
	case "debug":
		return "debug"
	default:
		return "info"
	}
}

// EncodeEvent writes event as one JSON line, reporting encoder failures to
// stderr.
func EncodeEvent(enc *json.Encoder, stderr io.Writer, event engine.Event) {
	if enc == nil {
		return
	}
	record := NewEventRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode event: %v\n", err)
	}
}
