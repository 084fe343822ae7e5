// Package mock provides test doubles for the fingerprint package interfaces.
//
// Use Provider to script fingerprint and comparison results and to inspect
// the audio windows submitted for fingerprinting.
//
// Example:
//
//	p := &mock.Provider{
//	    FingerprintResult: fingerprint.Fingerprint("live"),
//	    CompareScores:     map[string]float64{"live|stored": 0.85},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
)

// FingerprintCall records a single invocation of Provider.Fingerprint.
type FingerprintCall struct {
	// PCM is a copy of the bytes passed to Fingerprint.
	PCM []byte
}

// CompareCall records a single invocation of Provider.Compare.
type CompareCall struct {
	A fingerprint.Fingerprint
	B fingerprint.Fingerprint
}

// Provider is a mock implementation of fingerprint.Provider.
type Provider struct {
	mu sync.Mutex

	// FingerprintResult is returned by every Fingerprint call.
	FingerprintResult fingerprint.Fingerprint

	// FingerprintErr, if non-nil, is returned by every Fingerprint call.
	FingerprintErr error

	// CompareScores maps "a|b" (raw fingerprint bytes joined by a pipe) to
	// the similarity returned for that pair. Pairs not present fall back to
	// CompareResult.
	CompareScores map[string]float64

	// CompareResult is the similarity returned when CompareScores has no
	// entry for the pair.
	CompareResult float64

	// CompareErr, if non-nil, is returned by every Compare call.
	CompareErr error

	// --- Call records ---

	// FingerprintCalls records every call to Fingerprint in order.
	FingerprintCalls []FingerprintCall

	// CompareCalls records every call to Compare in order.
	CompareCalls []CompareCall
}

// Fingerprint records the call and returns FingerprintResult, FingerprintErr.
func (p *Provider) Fingerprint(_ context.Context, pcm []byte) (fingerprint.Fingerprint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.FingerprintCalls = append(p.FingerprintCalls, FingerprintCall{PCM: cp})
	if p.FingerprintErr != nil {
		return nil, p.FingerprintErr
	}
	return p.FingerprintResult, nil
}

// Compare records the call and returns the scripted similarity for the pair.
func (p *Provider) Compare(a, b fingerprint.Fingerprint) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompareCalls = append(p.CompareCalls, CompareCall{A: a, B: b})
	if p.CompareErr != nil {
		return 0, p.CompareErr
	}
	if p.CompareScores != nil {
		if score, ok := p.CompareScores[string(a)+"|"+string(b)]; ok {
			return score, nil
		}
	}
	return p.CompareResult, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.FingerprintCalls = nil
	p.CompareCalls = nil
}

// Ensure Provider implements fingerprint.Provider at compile time.
var _ fingerprint.Provider = (*Provider)(nil)
