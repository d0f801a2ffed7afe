// Package testutil holds helpers shared by the integration suites.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
)

// LedgerEvents lists every event type the reconciler publishes
func LedgerEvents() []string {
	return []string{
		cvr.EventTypeCommitmentFactRecorded,
		cvr.EventTypeActualFactRecorded,
		cvr.EventTypeFactStatusChanged,
		cvr.EventTypeBackfillCompleted,
	}
}

// EventRecorder is an event handler that keeps everything it receives
type EventRecorder struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

// NewEventRecorder records the given event types, or every ledger event when none are given
func NewEventRecorder(eventTypes ...string) *EventRecorder {
	if len(eventTypes) == 0 {
		eventTypes = LedgerEvents()
	}
	return &EventRecorder{eventTypes: eventTypes}
}

func (r *EventRecorder) EventTypes() []string {
	return r.eventTypes
}

func (r *EventRecorder) Handle(_ context.Context, event shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handled = append(r.handled, event)
	return r.err
}

// FailWith makes subsequent Handle calls return err after recording the event
func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Events returns the recorded events of one type, or all of them for an empty type
func (r *EventRecorder) Events(eventType string) []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range r.handled {
		if eventType == "" || e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events of a type were recorded
func (r *EventRecorder) Count(eventType string) int {
	return len(r.Events(eventType))
}

// StatusChanges returns the recorded fact status transitions in order
func (r *EventRecorder) StatusChanges() []*cvr.FactStatusChangedEvent {
	var out []*cvr.FactStatusChangedEvent
	for _, e := range r.Events(cvr.EventTypeFactStatusChanged) {
		if sc, ok := e.(*cvr.FactStatusChangedEvent); ok {
			out = append(out, sc)
		}
	}
	return out
}

// Reset forgets everything recorded so far
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handled = nil
	r.err = nil
}

// WaitFor polls until the recorder holds at least n events of a type
func (r *EventRecorder) WaitFor(eventType string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.Count(eventType) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}
