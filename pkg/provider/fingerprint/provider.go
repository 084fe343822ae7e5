// Package fingerprint defines the Provider interface for acoustic
// fingerprinting backends.
//
// A fingerprint provider turns a window of raw PCM audio into a compact,
// opaque signature and scores two signatures for acoustic similarity. The
// detection pipeline treats both operations as black boxes: any backend that
// produces stable signatures for similar audio satisfies the interface.
//
// Fingerprinting is synchronous by design: the capture loop calls
// [Provider.Fingerprint] once per evaluation cycle and blocks for its
// duration, so implementations should complete well within one chunk
// interval.
//
// Implementations must be safe for concurrent use.
package fingerprint

import (
	"context"
	"errors"
)

// ErrTooShort is returned by Fingerprint when the supplied audio window is
// shorter than the backend's minimum analysable duration.
var ErrTooShort = errors.New("fingerprint: audio window too short")

// Fingerprint is an opaque acoustic signature. Only the provider that
// produced a fingerprint can meaningfully compare it; callers store and
// forward the bytes without interpreting them.
type Fingerprint []byte

// Empty reports whether the fingerprint carries no signature data.
func (f Fingerprint) Empty() bool { return len(f) == 0 }

// AudioFormat describes the PCM layout a provider expects from
// [Provider.Fingerprint] calls.
type AudioFormat struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels of interleaved int16 samples.
	Channels int
}

// Provider is the capability interface for an acoustic fingerprinting
// backend.
type Provider interface {
	// Fingerprint computes the signature of a window of little-endian int16
	// PCM audio in the provider's configured [AudioFormat]. Failures (window
	// too short, malformed buffer, backend error) are returned as errors and
	// are recoverable: the caller treats them as a non-match for that
	// evaluation, never as fatal.
	Fingerprint(ctx context.Context, pcm []byte) (Fingerprint, error)

	// Compare scores the acoustic similarity of two fingerprints produced by
	// this provider. The result is in [0, 1], where 1 means identical.
	// Comparing fingerprints from a different provider yields an error.
	Compare(a, b Fingerprint) (float64, error)
}
