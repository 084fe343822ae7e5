// Package controller reacts to detection events by adjusting playback:
// muting the output entirely or dimming it to a configured level, and
// restoring it once the commercial ends.
//
// The concrete volume mechanism is host-specific, so it sits behind the
// [Muter] and [Dimmer] capability interfaces. [CommandController] shells out
// to user-configured commands (amixer, pactl, osascript, a smart-home CLI);
// controller/mock provides a scripted implementation for tests.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mutecast/mutecast/internal/detect"
)

// Muter silences playback entirely.
type Muter interface {
	// Mute silences the output.
	Mute(ctx context.Context) error

	// Unmute restores the output to its pre-mute level.
	Unmute(ctx context.Context) error
}

// Dimmer lowers playback without silencing it.
type Dimmer interface {
	// Dim lowers the output to the configured level.
	Dim(ctx context.Context) error

	// Restore returns the output to its pre-dim level.
	Restore(ctx context.Context) error
}

// Mode selects how the sink reacts to a detection.
type Mode string

const (
	// ModeMute silences playback for the duration of the commercial.
	ModeMute Mode = "mute"

	// ModeDim lowers playback for the duration of the commercial.
	ModeDim Mode = "dim"
)

// Sink is a [detect.Listener] that engages the controller when a commercial
// is detected and disengages it when the commercial ends. Controller errors
// are logged, never propagated: a failed volume adjustment must not disturb
// the detection loop.
//
// Sink tracks whether it is currently engaged so that a forced Ended event
// on shutdown cannot double-restore, and so an Ended without a preceding
// Detected (listener registered mid-detection) is a no-op.
type Sink struct {
	mode    Mode
	muter   Muter
	dimmer  Dimmer
	timeout time.Duration

	mu      sync.Mutex
	engaged bool
}

// NewSink creates a Sink for the given mode. The matching controller must be
// non-nil: muter for [ModeMute], dimmer for [ModeDim]. Each controller call
// runs under the given timeout; zero means 5 seconds.
func NewSink(mode Mode, muter Muter, dimmer Dimmer, timeout time.Duration) (*Sink, error) {
	switch mode {
	case ModeMute:
		if muter == nil {
			return nil, fmt.Errorf("controller: mode %q requires a muter", mode)
		}
	case ModeDim:
		if dimmer == nil {
			return nil, fmt.Errorf("controller: mode %q requires a dimmer", mode)
		}
	default:
		return nil, fmt.Errorf("controller: unknown mode %q", mode)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sink{mode: mode, muter: muter, dimmer: dimmer, timeout: timeout}, nil
}

// HandleEvent implements [detect.Listener].
func (s *Sink) HandleEvent(ev detect.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	switch ev.Type {
	case detect.EventDetected:
		if s.engaged {
			return
		}
		if err := s.engage(ctx); err != nil {
			slog.Error("playback control engage failed",
				"mode", s.mode,
				"pattern", ev.Pattern.Name,
				"err", err,
			)
			return
		}
		s.engaged = true
	case detect.EventEnded:
		if !s.engaged {
			return
		}
		if err := s.disengage(ctx); err != nil {
			slog.Error("playback control restore failed",
				"mode", s.mode,
				"pattern", ev.Pattern.Name,
				"err", err,
			)
			// Engaged stays true so the next Ended can retry the restore.
			return
		}
		s.engaged = false
	}
}

// Engaged reports whether playback is currently muted or dimmed.
func (s *Sink) Engaged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engaged
}

func (s *Sink) engage(ctx context.Context) error {
	if s.mode == ModeMute {
		return s.muter.Mute(ctx)
	}
	return s.dimmer.Dim(ctx)
}

func (s *Sink) disengage(ctx context.Context) error {
	if s.mode == ModeMute {
		return s.muter.Unmute(ctx)
	}
	return s.dimmer.Restore(ctx)
}
