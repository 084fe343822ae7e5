package detect

import (
	"time"

	"github.com/mutecast/mutecast/internal/library"
)

// State enumerates the detection states.
type State int

const (
	// StateIdle means no commercial is currently recognised.
	StateIdle State = iota

	// StateActive means a commercial is being recognised.
	StateActive
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Machine converts noisy per-cycle match results into clean started/ended
// transitions with hysteresis: entry requires a single match, exit requires
// a sustained absence longer than the grace period. This absorbs brief dips
// below the match threshold during a real commercial without absorbing
// false positives of similar duration.
//
// Machine is not safe for concurrent use; the capture worker is the sole
// driver. Current state is published to other goroutines through
// [Monitor.Status] snapshots, never by direct access.
type Machine struct {
	grace time.Duration

	state       State
	pattern     library.Info
	score       float64
	enteredAt   time.Time
	lastMatchAt time.Time
}

// NewMachine creates a Machine in [StateIdle] with the given grace period.
func NewMachine(grace time.Duration) *Machine {
	return &Machine{grace: grace}
}

// State returns the current detection state.
func (m *Machine) State() State { return m.state }

// Active returns the currently recognised pattern and the time recognition
// began. Valid only while State is [StateActive].
func (m *Machine) Active() (library.Info, time.Time) {
	return m.pattern, m.enteredAt
}

// Observe feeds one evaluation cycle into the machine and returns the
// resulting transition event, if any.
//
// A match in Idle enters Active and emits a Detected event. A match in
// Active refreshes the last-match time (and adopts the newly matched pattern
// when it differs) without emitting. A non-match in Active ends the
// detection only once the time since the last supporting match exceeds the
// grace period — strictly exceeds, so a gap equal to the grace period keeps
// the detection alive. The Ended event reports the duration between entry
// and the last supporting match, excluding the trailing grace window.
func (m *Machine) Observe(result MatchResult, t time.Time) (Event, bool) {
	switch m.state {
	case StateIdle:
		if !result.IsMatch || result.Pattern == nil {
			return Event{}, false
		}
		m.state = StateActive
		m.pattern = library.Info{Name: result.Pattern.Name, Metadata: result.Pattern.Metadata}
		m.score = result.Score
		m.enteredAt = t
		m.lastMatchAt = t
		return Event{
			Type:    EventDetected,
			Pattern: m.pattern,
			Score:   result.Score,
			At:      t,
		}, true

	case StateActive:
		if result.IsMatch && result.Pattern != nil {
			m.pattern = library.Info{Name: result.Pattern.Name, Metadata: result.Pattern.Metadata}
			m.score = result.Score
			m.lastMatchAt = t
			return Event{}, false
		}
		if t.Sub(m.lastMatchAt) > m.grace {
			return m.end(t), true
		}
		return Event{}, false
	}
	return Event{}, false
}

// Finish forces an Active detection to end immediately, returning the Ended
// event. Used on shutdown so downstream mute/dim state is never left
// engaged. Returns false when the machine is Idle.
func (m *Machine) Finish(t time.Time) (Event, bool) {
	if m.state != StateActive {
		return Event{}, false
	}
	return m.end(t), true
}

// end transitions Active → Idle and builds the Ended event.
func (m *Machine) end(t time.Time) Event {
	ev := Event{
		Type:     EventEnded,
		Pattern:  m.pattern,
		Duration: m.lastMatchAt.Sub(m.enteredAt),
		At:       t,
	}
	m.state = StateIdle
	m.pattern = library.Info{}
	m.score = 0
	m.enteredAt = time.Time{}
	m.lastMatchAt = time.Time{}
	return ev
}
