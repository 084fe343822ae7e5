// Package chromaprint provides a fingerprint.Provider backed by the
// Chromaprint library (the fingerprinting engine behind AcoustID) via the
// gochroma bindings.
//
// Fingerprints are the raw uint32 sub-fingerprint stream produced by
// Chromaprint, serialised little-endian. Similarity is the fraction of
// agreeing bits between the two streams at their best alignment, which is
// the standard way to score raw Chromaprint fingerprints: acoustically
// identical audio agrees on nearly every bit, unrelated audio agrees on
// roughly half of them.
//
// Usage:
//
//	p, err := chromaprint.New(fingerprint.AudioFormat{SampleRate: 44100, Channels: 1})
//	fprint, err := p.Fingerprint(ctx, pcm)
//	score, err := p.Compare(fprint, stored)
package chromaprint

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	gofingerprint "github.com/go-fingerprint/fingerprint"
	"github.com/go-fingerprint/gochroma"

	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
)

const (
	// minSamples is the shortest window Chromaprint can produce a usable
	// signature from (~0.5 s at 44.1 kHz mono).
	minSamples = 22050

	// defaultMaxSeconds caps the audio length handed to Chromaprint per
	// fingerprint call.
	defaultMaxSeconds = 120

	// maxAlignOffset is the furthest word shift tried when aligning two
	// fingerprints for comparison. Each word covers ~1/8 s of audio.
	maxAlignOffset = 16

	// minOverlap is the minimum number of overlapping words required for an
	// alignment to be scored.
	minOverlap = 8
)

// Compile-time assertion that Provider implements fingerprint.Provider.
var _ fingerprint.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithMaxSeconds caps the audio duration fingerprinted per call.
// Defaults to 120 s.
func WithMaxSeconds(s int) Option {
	return func(p *Provider) {
		p.maxSeconds = s
	}
}

// Provider implements fingerprint.Provider using Chromaprint.
type Provider struct {
	format     fingerprint.AudioFormat
	maxSeconds int

	// mu serialises access to the Chromaprint context, which keeps internal
	// feed state per fingerprint call.
	mu      sync.Mutex
	printer *gochroma.Printer
}

// New creates a Provider that fingerprints PCM audio in the given format.
// The caller should Close the provider when done to release the Chromaprint
// context.
func New(format fingerprint.AudioFormat, opts ...Option) (*Provider, error) {
	if format.SampleRate <= 0 {
		return nil, errors.New("chromaprint: sample rate must be positive")
	}
	if format.Channels <= 0 {
		return nil, errors.New("chromaprint: channel count must be positive")
	}
	p := &Provider{
		format:     format,
		maxSeconds: defaultMaxSeconds,
		printer:    gochroma.New(gochroma.AlgorithmDefault),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Fingerprint computes the raw Chromaprint signature of pcm.
func (p *Provider) Fingerprint(ctx context.Context, pcm []byte) (fingerprint.Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("chromaprint: %w", err)
	}
	if len(pcm)/2/p.format.Channels < minSamples*p.format.SampleRate/44100 {
		return nil, fingerprint.ErrTooShort
	}

	p.mu.Lock()
	raw, err := p.printer.RawFingerprint(gofingerprint.RawInfo{
		Src:        bytes.NewReader(pcm),
		Rate:       uint(p.format.SampleRate),
		Channels:   uint(p.format.Channels),
		MaxSeconds: uint(p.maxSeconds),
	})
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("chromaprint: fingerprint: %w", err)
	}
	if len(raw) == 0 {
		return nil, fingerprint.ErrTooShort
	}

	return encodeWords(raw), nil
}

// Compare returns the best-alignment bit agreement of a and b in [0, 1].
func (p *Provider) Compare(a, b fingerprint.Fingerprint) (float64, error) {
	wa, err := decodeWords(a)
	if err != nil {
		return 0, err
	}
	wb, err := decodeWords(b)
	if err != nil {
		return 0, err
	}
	if len(wa) == 0 || len(wb) == 0 {
		return 0, errors.New("chromaprint: cannot compare empty fingerprint")
	}
	return bestAlignmentScore(wa, wb), nil
}

// Close releases the Chromaprint context. The provider must not be used
// after Close.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printer != nil {
		p.printer.Close()
		p.printer = nil
	}
	return nil
}

// bestAlignmentScore slides b against a within ±maxAlignOffset words and
// returns the highest fraction of agreeing bits across any alignment with
// sufficient overlap.
func bestAlignmentScore(a, b []int32) float64 {
	best := 0.0
	for offset := -maxAlignOffset; offset <= maxAlignOffset; offset++ {
		score, overlap := alignedScore(a, b, offset)
		if overlap >= min(minOverlap, min(len(a), len(b))) && score > best {
			best = score
		}
	}
	return best
}

// alignedScore computes the bit-agreement fraction of a and b with b shifted
// by offset words, and the number of words that overlapped.
func alignedScore(a, b []int32, offset int) (float64, int) {
	matching, total, overlap := 0, 0, 0
	for i := range a {
		j := i + offset
		if j < 0 || j >= len(b) {
			continue
		}
		diff := uint32(a[i]) ^ uint32(b[j])
		matching += 32 - bits.OnesCount32(diff)
		total += 32
		overlap++
	}
	if total == 0 {
		return 0, 0
	}
	return float64(matching) / float64(total), overlap
}

// encodeWords serialises raw fingerprint words little-endian, 4 bytes each.
func encodeWords(words []int32) fingerprint.Fingerprint {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], uint32(w))
	}
	return out
}

// decodeWords parses a fingerprint produced by encodeWords.
func decodeWords(f fingerprint.Fingerprint) ([]int32, error) {
	if len(f)%4 != 0 {
		return nil, fmt.Errorf("chromaprint: malformed fingerprint of %d bytes", len(f))
	}
	words := make([]int32, len(f)/4)
	for i := range words {
		words[i] = int32(binary.LittleEndian.Uint32(f[i*4 : i*4+4]))
	}
	return words, nil
}
