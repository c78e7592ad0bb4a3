package server

import (
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/events"
)

const defaultEventLogSize = 200

// EventLog keeps a bounded in-memory history of bus events for the
// events endpoint. The newest entries win; older ones fall off.
type EventLog struct {
	mu       sync.Mutex
	buffer   []*events.Event
	next     int
	wrapped  bool
	capacity int
	log      zerolog.Logger
}

// NewEventLog creates an event log subscribed to every event type the
// pipeline emits.
func NewEventLog(bus *events.Bus, capacity int, log zerolog.Logger) *EventLog {
	if capacity < 1 {
		capacity = defaultEventLogSize
	}
	eventLog := &EventLog{
		buffer:   make([]*events.Event, capacity),
		capacity: capacity,
		log:      log.With().Str("component", "event_log").Logger(),
	}

	eventTypes := []events.EventType{
		events.WorkflowStarted,
		events.WorkflowCompleted,
		events.StageCompleted,
		events.SymbolFailed,
		events.DLQItemAdded,
		events.BackupCompleted,
		events.ErrorOccurred,
	}
	for _, eventType := range eventTypes {
		bus.Subscribe(eventType, eventLog.record)
	}

	return eventLog
}

func (l *EventLog) record(event *events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer[l.next] = event
	l.next++
	if l.next == l.capacity {
		l.next = 0
		l.wrapped = true
	}
}

// Recent returns up to limit events, newest first, optionally filtered
// by type.
func (l *EventLog) Recent(limit int, allowed map[events.EventType]bool) []*events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.wrapped {
		size = l.capacity
	}

	result := make([]*events.Event, 0, limit)
	for i := 1; i <= size && len(result) < limit; i++ {
		idx := (l.next - i + l.capacity) % l.capacity
		event := l.buffer[idx]
		if allowed != nil && !allowed[event.Type] {
			continue
		}
		result = append(result, event)
	}
	return result
}

// HandleRecent returns recent pipeline events, newest first. The types
// query parameter narrows the result to a comma-separated set.
// GET /api/events
func (l *EventLog) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	var allowed map[events.EventType]bool
	if typesFilter := r.URL.Query().Get("types"); typesFilter != "" {
		allowed = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowed[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	recent := l.Recent(limit, allowed)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": recent,
		"count":  len(recent),
	}, l.log)
}
