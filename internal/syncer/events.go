package syncer

import (
	"sync"
	"time"

	"github.com/kozaktomas/facesync/internal/constants"
	"github.com/kozaktomas/facesync/internal/status"
)

// EventType identifies the kind of run event.
type EventType string

// EventType constants emitted during a run.
const (
	EventRunStarted  EventType = "run_started"
	EventProgress    EventType = "progress"
	EventFace        EventType = "face"
	EventLog         EventType = "log"
	EventRunFinished EventType = "run_finished"
)

// FaceResult is the per-face outcome.
type FaceResult string

// FaceResult constants.
const (
	FaceTrained FaceResult = "trained"
	FaceSkipped FaceResult = "skipped"
	FaceFailed  FaceResult = "failed"
)

// Progress describes where a run is within the current person.
type Progress struct {
	Person    string `json:"person"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
}

// FaceOutcome describes what happened to one face.
type FaceOutcome struct {
	FaceID   string        `json:"face_id"`
	PersonID string        `json:"person_id"`
	Person   string        `json:"person"`
	Result   FaceResult    `json:"result"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Event is emitted by the orchestrator while a run progresses.
type Event struct {
	Type     EventType          `json:"type"`
	RunID    string             `json:"run_id"`
	Time     time.Time          `json:"time"`
	Message  string             `json:"message,omitempty"`
	Progress *Progress          `json:"progress,omitempty"`
	Face     *FaceOutcome       `json:"face,omitempty"`
	Summary  *status.RunSummary `json:"summary,omitempty"`
}

// Sink receives every run event synchronously on the run goroutine.
// Implementations must not block for long.
type Sink interface {
	HandleEvent(Event)
}

// Broadcaster provides listener management and event broadcasting for SSE subscribers.
type Broadcaster struct {
	listeners []chan Event
	closed    bool
	mu        sync.RWMutex
}

// AddListener adds an event listener. After Close it returns an already
// closed channel.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener and closes its channel.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes and drops every listener so SSE streams end, e.g. on server
// shutdown. It is safe to call more than once.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}

// Listeners returns the number of active listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// HandleEvent sends an event to all listeners.
func (b *Broadcaster) HandleEvent(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}
