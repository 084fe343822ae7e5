package chromaprint_test

import (
	"encoding/binary"
	"testing"

	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
	"github.com/mutecast/mutecast/pkg/provider/fingerprint/chromaprint"
)

// encodeWords builds a wire fingerprint from raw words, matching the
// little-endian serialisation Fingerprint produces.
func encodeWords(words []uint32) fingerprint.Fingerprint {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// patternWords returns n deterministic pseudo-random words.
func patternWords(n int) []uint32 {
	words := make([]uint32, n)
	state := uint32(0x2545f491)
	for i := range words {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		words[i] = state
	}
	return words
}

func newProvider(t *testing.T) *chromaprint.Provider {
	t.Helper()
	p, err := chromaprint.New(fingerprint.AudioFormat{SampleRate: 44100, Channels: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestNew_Validation(t *testing.T) {
	if _, err := chromaprint.New(fingerprint.AudioFormat{SampleRate: 0, Channels: 1}); err == nil {
		t.Error("New accepted zero sample rate")
	}
	if _, err := chromaprint.New(fingerprint.AudioFormat{SampleRate: 44100, Channels: 0}); err == nil {
		t.Error("New accepted zero channel count")
	}
}

func TestCompare_IdenticalFingerprints(t *testing.T) {
	p := newProvider(t)
	fp := encodeWords(patternWords(32))

	score, err := p.Compare(fp, fp)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if score != 1.0 {
		t.Errorf("score = %v, want 1.0 for identical fingerprints", score)
	}
}

func TestCompare_InvertedFingerprints(t *testing.T) {
	p := newProvider(t)
	words := patternWords(32)
	inverted := make([]uint32, len(words))
	for i, w := range words {
		inverted[i] = ^w
	}

	score, err := p.Compare(encodeWords(words), encodeWords(inverted))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if score != 0 {
		t.Errorf("score = %v, want 0 for bitwise-inverted fingerprints", score)
	}
}

func TestCompare_ShiftedFingerprintStillMatches(t *testing.T) {
	p := newProvider(t)
	words := patternWords(64)

	// Drop the first four words, as if capture started ~0.5 s late. The
	// alignment search should still line the streams up perfectly.
	shifted := words[4:]

	score, err := p.Compare(encodeWords(words), encodeWords(shifted))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if score != 1.0 {
		t.Errorf("score = %v, want 1.0 for a shifted copy within the search range", score)
	}
}

func TestCompare_UnrelatedFingerprintsScoreLow(t *testing.T) {
	p := newProvider(t)
	a := patternWords(64)
	b := make([]uint32, 64)
	state := uint32(0x9e3779b9)
	for i := range b {
		state = state*1664525 + 1013904223
		b[i] = state
	}

	score, err := p.Compare(encodeWords(a), encodeWords(b))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	// Independent bit streams agree on roughly half their bits.
	if score > 0.7 {
		t.Errorf("score = %v for unrelated fingerprints, want well below a match threshold", score)
	}
}

func TestCompare_MalformedFingerprint(t *testing.T) {
	p := newProvider(t)
	good := encodeWords(patternWords(16))

	if _, err := p.Compare(good, fingerprint.Fingerprint{1, 2, 3}); err == nil {
		t.Error("Compare accepted a fingerprint of non-word length")
	}
}

func TestCompare_EmptyFingerprint(t *testing.T) {
	p := newProvider(t)
	good := encodeWords(patternWords(16))

	if _, err := p.Compare(nil, good); err == nil {
		t.Error("Compare accepted an empty fingerprint")
	}
	if _, err := p.Compare(good, fingerprint.Fingerprint{}); err == nil {
		t.Error("Compare accepted an empty fingerprint")
	}
}
