// Package audio defines the interfaces and types for audio capture
// connectivity within Mutecast.
//
// The two primary abstractions are:
//
//   - [Platform] — opens a capture device and returns a [Stream].
//   - [Stream] — an active capture session delivering fixed-size PCM chunks
//     on demand via blocking reads.
//
// Implementations wrap OS loopback devices, virtual audio drivers, or test
// fixtures. The interfaces are intentionally narrow to keep the detection
// monitor decoupled from any particular audio transport.
//
// This package lives under pkg/ because external code (third-party capture
// adapters) is expected to implement [Platform] and [Stream].
package audio

import "context"

// StreamConfig describes the capture format requested from a [Platform].
type StreamConfig struct {
	// SampleRate in Hz. Common values: 44100, 48000.
	SampleRate int

	// Channels requested from the device. The platform may deliver fewer
	// when the device does not support the requested count; the resulting
	// chunks report their actual channel count.
	Channels int

	// ChunkSize is the number of samples per channel delivered by each
	// [Stream.Read] call.
	ChunkSize int

	// Device is the platform-specific device identifier. Empty selects the
	// platform's default loopback/input device.
	Device string
}

// Stream is an active capture session.
//
// A Stream is obtained from [Platform.Open] and remains valid until
// [Stream.Close] is called. Read is driven by a single consumer goroutine;
// implementations need not support concurrent Read calls.
type Stream interface {
	// Read blocks until the next fixed-size chunk is available and returns it.
	// Transient faults (device overflow, short reads) are returned as errors;
	// the caller is expected to log and retry on the next interval rather
	// than tear down the stream. Read returns ctx.Err when ctx is cancelled
	// while waiting.
	Read(ctx context.Context) (Chunk, error)

	// Close releases the underlying device. Calling Close more than once is
	// safe and returns nil. The caller must not call Close while a Read is
	// in flight; stop the consumer first.
	Close() error
}

// Platform is the entry point for an audio capture provider.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Open acquires the capture device described by cfg and returns an active
	// [Stream]. The supplied ctx governs the lifetime of the open attempt
	// only; once open, the Stream remains alive until [Stream.Close].
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
}
