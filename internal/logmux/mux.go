// Package logmux fans child process output from every role into one bounded
// stream for the console.
package logmux

import (
	"fmt"
	"sync"
	"time"

	"github.com/Paintersrp/warden/internal/engine"
	"github.com/Paintersrp/warden/internal/metrics"
	"github.com/Paintersrp/warden/internal/runtime"
)

// Mux fans in log events from multiple roles and delivers them via a bounded
// channel. When the consumer falls behind, log records are dropped and a
// synthesized warning reports how many were discarded for each role.
type Mux struct {
	out chan engine.Event

	mu     sync.Mutex
	drops  map[engine.Role]dropRecord
	inputs sync.WaitGroup
	closed bool
}

type dropRecord struct {
	count    int
	launchID string
}

// New constructs a mux backed by a channel of the provided size. A size of
// zero results in a minimally buffered channel.
func New(size int) *Mux {
	if size <= 0 {
		size = 1
	}
	return &Mux{
		out:   make(chan engine.Event, size),
		drops: make(map[engine.Role]dropRecord),
	}
}

// Output exposes the muxed event channel.
func (m *Mux) Output() <-chan engine.Event {
	return m.out
}

// Add registers a new source channel. The mux consumes log events until the
// source channel is closed. Sources added after Close are drained and
// discarded.
func (m *Mux) Add(source <-chan engine.Event) {
	if source == nil {
		return
	}
	m.mu.Lock()
	closed := m.closed
	if !closed {
		m.inputs.Add(1)
	}
	m.mu.Unlock()

	if closed {
		go func() {
			for range source {
			}
		}()
		return
	}
	go func() {
		defer m.inputs.Done()
		for evt := range source {
			if evt.Type != engine.EventTypeLog {
				continue
			}
			m.deliver(normalize(evt))
		}
	}()
}

// Close waits for all sources to be drained, emits any pending drop metadata,
// and closes the output channel.
func (m *Mux) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.inputs.Wait()
	m.flushDrops()
	close(m.out)
}

func (m *Mux) deliver(evt engine.Event) {
	if m.flushPending(evt.Role) && m.trySend(evt) {
		return
	}
	m.recordDrop(evt.Role, 1, evt.LaunchID)
}

// flushPending emits the drop summary owed to role before any newer line.
func (m *Mux) flushPending(role engine.Role) bool {
	rec := m.takeDrops(role)
	if rec.count == 0 {
		return true
	}
	if m.trySend(dropEvent(role, rec)) {
		return true
	}
	m.restoreDrops(role, rec)
	return false
}

func (m *Mux) takeDrops(role engine.Role) dropRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.drops[role]
	delete(m.drops, role)
	return rec
}

func (m *Mux) restoreDrops(role engine.Role, rec dropRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.drops[role]
	cur.count += rec.count
	if cur.launchID == "" {
		cur.launchID = rec.launchID
	}
	m.drops[role] = cur
}

func (m *Mux) recordDrop(role engine.Role, count int, launchID string) {
	metrics.IncDroppedEvents()
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.drops[role]
	rec.count += count
	if launchID != "" {
		rec.launchID = launchID
	}
	m.drops[role] = rec
}

func (m *Mux) flushDrops() {
	m.mu.Lock()
	pending := m.drops
	m.drops = make(map[engine.Role]dropRecord)
	m.mu.Unlock()

	for _, role := range engine.Roles() {
		if rec, ok := pending[role]; ok && rec.count > 0 {
			m.out <- dropEvent(role, rec)
			delete(pending, role)
		}
	}
	for role, rec := range pending {
		if rec.count > 0 {
			m.out <- dropEvent(role, rec)
		}
	}
}

func (m *Mux) trySend(evt engine.Event) bool {
	select {
	case m.out <- evt:
		return true
	default:
		return false
	}
}

func normalize(evt engine.Event) engine.Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Source == "" {
		evt.Source = runtime.LogSourceStdout
	}
	if evt.Level == "" {
		if evt.Source == runtime.LogSourceStderr {
			evt.Level = "warn"
		} else {
			evt.Level = "info"
		}
	}
	return evt
}

func dropEvent(role engine.Role, rec dropRecord) engine.Event {
	return engine.Event{
		Timestamp: time.Now(),
		Role:      role,
		LaunchID:  rec.launchID,
		Type:      engine.EventTypeLog,
		Message:   fmt.Sprintf("dropped=%d", rec.count),
		Level:     "warn",
		Source:    runtime.LogSourceSystem,
	}
}
