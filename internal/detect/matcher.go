package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mutecast/mutecast/internal/library"
	"github.com/mutecast/mutecast/internal/observe"
	"github.com/mutecast/mutecast/pkg/dsp"
	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
)

// MatchResult is the outcome of scoring one audio window against the pattern
// library. Transient; produced once per evaluation.
type MatchResult struct {
	// IsMatch is true when the best similarity reached the match threshold.
	IsMatch bool

	// Pattern is the best-scoring library entry, nil when the library is
	// empty or the window was silent or unfingerprintable.
	Pattern *library.Entry

	// Score is the best similarity found, in [0, 1].
	Score float64
}

// Matcher scores audio windows against every entry in the pattern library
// using the fingerprint provider. The match threshold is runtime-adjustable;
// a new value takes effect on the next evaluation.
//
// Match itself is driven by the single capture worker; SetThreshold may be
// called from any goroutine.
type Matcher struct {
	provider         fingerprint.Provider
	lib              *library.Library
	metrics          *observe.Metrics
	silenceThreshold float64

	mu        sync.RWMutex
	threshold float64
}

// NewMatcher creates a Matcher. matchThreshold and silenceThreshold must be
// in [0, 1].
func NewMatcher(provider fingerprint.Provider, lib *library.Library, matchThreshold, silenceThreshold float64, metrics *observe.Metrics) (*Matcher, error) {
	if matchThreshold < 0 || matchThreshold > 1 {
		return nil, fmt.Errorf("detect: match threshold %.3f is out of range [0, 1]", matchThreshold)
	}
	if silenceThreshold < 0 || silenceThreshold > 1 {
		return nil, fmt.Errorf("detect: silence threshold %.3f is out of range [0, 1]", silenceThreshold)
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Matcher{
		provider:         provider,
		lib:              lib,
		metrics:          metrics,
		silenceThreshold: silenceThreshold,
		threshold:        matchThreshold,
	}, nil
}

// Threshold returns the current match threshold.
func (m *Matcher) Threshold() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.threshold
}

// SetThreshold updates the match threshold for subsequent evaluations.
// Values outside [0, 1] are rejected and the prior value is retained.
func (m *Matcher) SetThreshold(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("detect: match threshold %.3f is out of range [0, 1]", v)
	}
	m.mu.Lock()
	m.threshold = v
	m.mu.Unlock()
	slog.Info("match threshold updated", "threshold", v)
	return nil
}

// Match evaluates one combined audio window. Silent windows short-circuit
// without a provider call; fingerprinting failures are recoverable and yield
// a non-match. The library is read through a copied snapshot, so concurrent
// add/remove never produces a torn read. Ties go to the first entry in name
// order.
func (m *Matcher) Match(ctx context.Context, window []byte) MatchResult {
	if dsp.IsSilent(window, m.silenceThreshold) {
		return MatchResult{}
	}

	start := time.Now()
	fp, err := m.provider.Fingerprint(ctx, window)
	m.metrics.ProviderDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		// Recoverable: a window the provider cannot fingerprint is treated
		// as a non-match for this cycle.
		m.metrics.RecordProviderError(ctx, "fingerprint")
		slog.Debug("fingerprinting failed, treating cycle as non-match", "err", err)
		return MatchResult{}
	}

	// bestScore starts below zero so a legitimate 0.0 similarity still
	// selects an entry; the >= threshold rule must hold across all of [0, 1].
	var (
		best      *library.Entry
		bestScore = -1.0
	)
	for _, entry := range m.lib.Entries() {
		score, err := m.provider.Compare(fp, entry.Fingerprint)
		if err != nil {
			m.metrics.RecordProviderError(ctx, "compare")
			slog.Debug("fingerprint comparison failed", "pattern", entry.Name, "err", err)
			continue
		}
		if score > bestScore {
			bestScore = score
			e := entry
			best = &e
		}
	}
	if best == nil {
		return MatchResult{}
	}

	return MatchResult{
		IsMatch: bestScore >= m.Threshold(),
		Pattern: best,
		Score:   bestScore,
	}
}
