package detect

import (
	"time"

	"github.com/mutecast/mutecast/internal/library"
)

// EventType classifies detection lifecycle events emitted by the [Monitor].
type EventType int

const (
	// EventDetected is emitted once when a commercial is first recognised.
	EventDetected EventType = iota

	// EventEnded is emitted once when a recognised commercial stops being
	// matched for longer than the grace period.
	EventEnded
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventDetected:
		return "DETECTED"
	case EventEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Event describes one detection transition. Exactly one Detected/Ended pair
// is open at a time and events are delivered in chronological order.
type Event struct {
	// Type indicates whether a commercial started or ended.
	Type EventType

	// Pattern is the matched library entry (fingerprint-free view).
	Pattern library.Info

	// Score is the similarity that triggered the detection. Set on
	// EventDetected only.
	Score float64

	// Duration is the time between the first and the last supporting match.
	// Set on EventEnded only.
	Duration time.Duration

	// At is when the transition was evaluated.
	At time.Time
}

// Listener receives detection events. Callbacks are invoked synchronously on
// the capture worker goroutine and must return promptly — a slow listener
// delays the next capture read.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a function to the [Listener] interface.
type ListenerFunc func(Event)

// HandleEvent calls f(e).
func (f ListenerFunc) HandleEvent(e Event) { f(e) }
