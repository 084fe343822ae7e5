// Package detect implements the real-time commercial detection pipeline:
// the sliding window of recent audio, fingerprint matching against the
// pattern library, the hysteresis state machine, and the capture loop that
// drives them.
//
// One dedicated worker goroutine executes [Monitor.Run]. It is the sole
// writer and reader of the sliding window and the sole driver of the state
// machine, so the hot path needs no locking. External readers obtain status
// via [Monitor.Status] snapshots; the pattern library and the match
// threshold are the only structures mutated concurrently and carry their
// own synchronisation.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mutecast/mutecast/internal/library"
	"github.com/mutecast/mutecast/internal/observe"
	"github.com/mutecast/mutecast/pkg/audio"
	"github.com/mutecast/mutecast/pkg/dsp"
)

// MonitorConfig holds the capture and detection parameters for a [Monitor].
type MonitorConfig struct {
	// SampleRate is the native pipeline rate in Hz. Captured chunks in a
	// different format are normalised to it.
	SampleRate int

	// Channels is the native pipeline channel count.
	Channels int

	// ChunkSize is the number of samples per channel per capture read.
	ChunkSize int

	// Device is the platform-specific capture device identifier.
	Device string

	// WindowChunks is the sliding-window capacity; matching starts once this
	// many non-silent chunks have accumulated.
	WindowChunks int

	// GracePeriod is how long matching may lapse before an Active detection
	// ends.
	GracePeriod time.Duration

	// SilenceThreshold is the normalised RMS level below which a chunk is
	// classified as silent.
	SilenceThreshold float64

	// Preprocess configures the gain and noise-shaping stage. Its SampleRate
	// is overridden with the pipeline rate.
	Preprocess dsp.PreprocessConfig
}

// validate reports the first problem with the config.
func (c MonitorConfig) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("detect: sample rate %d must be positive", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("detect: channel count %d must be positive", c.Channels)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("detect: chunk size %d must be positive", c.ChunkSize)
	}
	if c.WindowChunks <= 0 {
		return fmt.Errorf("detect: window size %d must be positive", c.WindowChunks)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("detect: grace period %s must not be negative", c.GracePeriod)
	}
	return nil
}

// Status is an immutable snapshot of the monitor's state for external
// observers.
type Status struct {
	// Running is true while the capture loop is executing.
	Running bool `json:"running"`

	// State is the detection state, "idle" or "active".
	State string `json:"state"`

	// Pattern is the currently recognised pattern name, empty when idle.
	Pattern string `json:"pattern,omitempty"`

	// ActiveFor is how long the current detection has been running.
	ActiveFor time.Duration `json:"active_for,omitempty"`

	// BufferedChunks is the current sliding-window fill level.
	BufferedChunks int `json:"buffered_chunks"`

	// SilenceFor is how long the input has been continuously silent.
	SilenceFor time.Duration `json:"silence_for"`

	// Threshold is the current match threshold.
	Threshold float64 `json:"threshold"`
}

// Monitor owns the capture/dispatch loop. Create with [NewMonitor], start
// with [Monitor.Run], and stop by cancelling the context passed to Run. The
// caller must wait for Run to return before releasing the capture platform.
type Monitor struct {
	cfg      MonitorConfig
	platform audio.Platform
	matcher  *Matcher
	pre      *dsp.Preprocessor
	machine  *Machine
	window   *SlidingWindow
	metrics  *observe.Metrics

	listenerMu sync.RWMutex
	listeners  []Listener

	// statusMu guards the published snapshot; the worker writes it once per
	// iteration and Status copies it out.
	statusMu sync.RWMutex
	status   Status

	// worker-owned diagnostics, touched only inside Run.
	silenceFor time.Duration
}

// NewMonitor creates a Monitor. The matcher is expected to share the
// pipeline's pattern library; listeners registered here receive events
// synchronously on the worker goroutine.
func NewMonitor(cfg MonitorConfig, platform audio.Platform, matcher *Matcher, metrics *observe.Metrics) (*Monitor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if platform == nil {
		return nil, errors.New("detect: platform must not be nil")
	}
	if matcher == nil {
		return nil, errors.New("detect: matcher must not be nil")
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	cfg.Preprocess.SampleRate = cfg.SampleRate
	return &Monitor{
		cfg:      cfg,
		platform: platform,
		matcher:  matcher,
		pre:      dsp.NewPreprocessor(cfg.Preprocess),
		machine:  NewMachine(cfg.GracePeriod),
		window:   NewSlidingWindow(cfg.WindowChunks),
		metrics:  metrics,
	}, nil
}

// AddListener registers a listener for detection events. Safe to call
// before or during Run.
func (m *Monitor) AddListener(l Listener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Status returns the latest published snapshot.
func (m *Monitor) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status
}

// SetThreshold forwards to the matcher; see [Matcher.SetThreshold].
func (m *Monitor) SetThreshold(v float64) error {
	return m.matcher.SetThreshold(v)
}

// Run opens the capture stream and executes the monitoring loop until ctx
// is cancelled. The stop request is observed at the top of each iteration;
// the current iteration, including any in-flight event emission, completes
// before Run returns, and an Active detection is force-ended so mute/dim
// state is never left engaged. Returns ctx.Err on clean shutdown.
func (m *Monitor) Run(ctx context.Context) error {
	stream, err := m.platform.Open(ctx, audio.StreamConfig{
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
		ChunkSize:  m.cfg.ChunkSize,
		Device:     m.cfg.Device,
	})
	if err != nil {
		return fmt.Errorf("detect: open capture stream: %w", err)
	}

	slog.Info("monitoring started",
		"sample_rate", m.cfg.SampleRate,
		"channels", m.cfg.Channels,
		"chunk_size", m.cfg.ChunkSize,
		"window_chunks", m.cfg.WindowChunks,
		"grace_period", m.cfg.GracePeriod,
	)

	m.setRunning(true)
	defer func() {
		// Even on an unexpected exit an open detection must be closed out.
		if ev, ok := m.machine.Finish(time.Now()); ok {
			m.emit(context.WithoutCancel(ctx), ev)
		}
		m.setRunning(false)
		if cerr := stream.Close(); cerr != nil {
			slog.Warn("capture stream close failed", "err", cerr)
		}
		slog.Info("monitoring stopped")
	}()

	normalizer := &audio.Normalizer{Target: audio.Format{
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}}

	// Pace retries after a read fault at the natural chunk cadence, so a dead
	// capture source does not turn the loop into a busy spin.
	retryDelay := time.Duration(m.cfg.ChunkSize) * time.Second / time.Duration(m.cfg.SampleRate)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := stream.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Transport faults are transient: skip the interval and retry.
			m.metrics.TransportErrors.Add(ctx, 1)
			slog.Warn("capture read failed, skipping interval", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}

		m.step(ctx, normalizer.Normalize(chunk), time.Now())
	}
}

// step processes a single captured chunk: preprocess, gate on silence,
// slide the window, and evaluate once the window is full.
func (m *Monitor) step(ctx context.Context, chunk audio.Chunk, now time.Time) {
	if len(chunk.Data) == 0 {
		return
	}

	processed := m.pre.Process(chunk.Data)
	m.metrics.ChunksProcessed.Add(ctx, 1)

	if dsp.IsSilent(processed, m.cfg.SilenceThreshold) {
		// No fingerprinting work on silence, but the state machine still
		// observes the cycle so an Active detection can age out through its
		// grace period.
		m.silenceFor += chunk.Duration()
		m.observe(ctx, MatchResult{}, now)
		m.publishStatus(now)
		return
	}
	m.silenceFor = 0

	m.window.Push(processed)
	if !m.window.Full() {
		m.publishStatus(now)
		return
	}

	start := time.Now()
	result := m.matcher.Match(ctx, m.window.Snapshot())
	m.metrics.EvaluationDuration.Record(ctx, time.Since(start).Seconds())

	m.observe(ctx, result, now)
	m.publishStatus(now)
}

// observe feeds the state machine and emits any resulting transition.
func (m *Monitor) observe(ctx context.Context, result MatchResult, now time.Time) {
	ev, ok := m.machine.Observe(result, now)
	if !ok {
		return
	}
	m.emit(ctx, ev)
}

// emit records metrics, logs, and invokes every listener synchronously.
func (m *Monitor) emit(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventDetected:
		m.metrics.RecordDetection(ctx, ev.Pattern.Name)
		m.metrics.ActiveDetections.Add(ctx, 1)
		slog.Info("commercial detected",
			"pattern", ev.Pattern.Name,
			"score", ev.Score,
		)
	case EventEnded:
		m.metrics.ActiveDetections.Add(ctx, -1)
		slog.Info("commercial ended",
			"pattern", ev.Pattern.Name,
			"duration", ev.Duration,
		)
	}

	m.listenerMu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenerMu.RUnlock()

	for _, l := range listeners {
		l.HandleEvent(ev)
	}
}

// publishStatus writes the snapshot external observers read.
func (m *Monitor) publishStatus(now time.Time) {
	s := Status{
		Running:        true,
		State:          m.machine.State().String(),
		BufferedChunks: m.window.Len(),
		SilenceFor:     m.silenceFor,
		Threshold:      m.matcher.Threshold(),
	}
	if m.machine.State() == StateActive {
		pattern, enteredAt := m.machine.Active()
		s.Pattern = pattern.Name
		s.ActiveFor = now.Sub(enteredAt)
	}

	m.statusMu.Lock()
	m.status = s
	m.statusMu.Unlock()
}

// setRunning updates only the Running field of the published snapshot.
func (m *Monitor) setRunning(running bool) {
	m.statusMu.Lock()
	m.status.Running = running
	if !running {
		m.status.State = StateIdle.String()
		m.status.Pattern = ""
		m.status.ActiveFor = 0
	}
	m.statusMu.Unlock()
}

// Library is a convenience accessor for the matcher's pattern library.
func (m *Monitor) Library() *library.Library {
	return m.matcher.lib
}
