// Package mock provides test doubles for the audio package interfaces.
//
// Use Platform to verify that streams are opened with the expected
// StreamConfig. Use Stream to script the chunks delivered to the capture
// loop and to inject read faults.
//
// Example:
//
//	stream := &mock.Stream{Chunks: []audio.Chunk{{Data: pcm}}}
//	platform := &mock.Platform{Stream: stream}
//	s, _ := platform.Open(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/mutecast/mutecast/pkg/audio"
)

// OpenCall records a single invocation of Platform.Open.
type OpenCall struct {
	// Cfg is the StreamConfig passed to Open.
	Cfg audio.StreamConfig
}

// Platform is a mock implementation of audio.Platform.
type Platform struct {
	mu sync.Mutex

	// Stream is returned by Open. If nil, Open returns a new empty Stream.
	Stream audio.Stream

	// OpenErr, if non-nil, is returned as the error from Open.
	OpenErr error

	// OpenCalls records every call to Open in order.
	OpenCalls []OpenCall
}

// Open records the call and returns Stream, OpenErr.
func (p *Platform) Open(_ context.Context, cfg audio.StreamConfig) (audio.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenCalls = append(p.OpenCalls, OpenCall{Cfg: cfg})
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	if p.Stream != nil {
		return p.Stream, nil
	}
	return &Stream{}, nil
}

// Ensure Platform implements audio.Platform at compile time.
var _ audio.Platform = (*Platform)(nil)

// ReadResult scripts the outcome of a single Stream.Read call. When Err is
// non-nil the chunk is ignored and the error is returned instead.
type ReadResult struct {
	Chunk audio.Chunk
	Err   error
}

// Stream is a mock implementation of audio.Stream. Read consumes Chunks
// (or Results, when set) in order; once exhausted, Read blocks until the
// caller's context is cancelled, mimicking a device with no further data.
type Stream struct {
	mu sync.Mutex

	// Chunks are returned by successive Read calls when Results is nil.
	Chunks []audio.Chunk

	// Results, when non-nil, takes precedence over Chunks and allows
	// interleaving read faults with successful chunks.
	Results []ReadResult

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// ReadCallCount is the number of times Read was called.
	ReadCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	next int
}

// Read returns the next scripted result, blocking on ctx once the script is
// exhausted.
func (s *Stream) Read(ctx context.Context) (audio.Chunk, error) {
	s.mu.Lock()
	s.ReadCallCount++
	if s.Results != nil {
		if s.next < len(s.Results) {
			r := s.Results[s.next]
			s.next++
			s.mu.Unlock()
			return r.Chunk, r.Err
		}
	} else if s.next < len(s.Chunks) {
		c := s.Chunks[s.next]
		s.next++
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	<-ctx.Done()
	return audio.Chunk{}, ctx.Err()
}

// Close records the call and returns CloseErr.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// Ensure Stream implements audio.Stream at compile time.
var _ audio.Stream = (*Stream)(nil)
