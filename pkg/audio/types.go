package audio

import "time"

// Chunk is a fixed-length block of signed 16-bit little-endian PCM samples,
// the atomic unit of audio flowing through the detection pipeline. A chunk is
// immutable once produced; ownership passes from capture to preprocessing to
// the sliding window.
type Chunk struct {
	// PCM audio data, little-endian int16.
	Data []byte

	// SampleRate in Hz (e.g., 44100).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this chunk was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback duration of the chunk, or zero when the
// format fields are not set.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	samples := len(c.Data) / 2 / c.Channels
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}
