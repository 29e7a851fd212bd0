// Package journal records backend lifecycle events to a local store so a
// failed boot can be diagnosed from the app's data directory without
// reproducing it.
package journal

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStartupBegin  EventType = "startup_begin"
	EventAdopted       EventType = "adopted"        // existing backend reused on the well-known port
	EventPortAllocated EventType = "port_allocated" // ephemeral port chosen
	EventSpawned       EventType = "spawned"
	EventSpawnFailed   EventType = "spawn_failed"
	EventReady         EventType = "ready"
	EventReadyTimeout  EventType = "ready_timeout"
	EventBackendExited EventType = "backend_exited"
	EventTerminated    EventType = "terminated"
)

// Event is one row in the journal. RunID ties all events of a single
// application run together.
type Event struct {
	RunID      string    `json:"run_id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Port       int       `json:"port,omitempty"`
	PID        int       `json:"pid,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for journal events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, e Event) error
	Close() error
}

// Nop is a Sink that discards everything. Used when no journal DSN is
// configured.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }
