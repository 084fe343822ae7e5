// Package recorder captures new commercial patterns from the live input:
// it records a bounded stretch of audio, fingerprints it, and registers the
// result in the pattern library and the backing store.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mutecast/mutecast/internal/library"
	"github.com/mutecast/mutecast/pkg/audio"
	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
)

// Config holds the capture parameters for a recording session.
type Config struct {
	// SampleRate, Channels and ChunkSize describe the capture format, in the
	// same terms as the monitor's stream config.
	SampleRate int
	Channels   int
	ChunkSize  int

	// Device is the platform-specific capture device identifier.
	Device string
}

// Recorder captures and registers commercial patterns. It opens its own
// stream per recording, so it must not run while the monitor holds the
// capture device.
type Recorder struct {
	cfg      Config
	platform audio.Platform
	provider fingerprint.Provider
	lib      *library.Library
	store    library.Store
}

// New creates a Recorder. The store may be nil, in which case recorded
// patterns live only in memory.
func New(cfg Config, platform audio.Platform, provider fingerprint.Provider, lib *library.Library, store library.Store) (*Recorder, error) {
	if platform == nil {
		return nil, errors.New("recorder: platform must not be nil")
	}
	if provider == nil {
		return nil, errors.New("recorder: provider must not be nil")
	}
	if lib == nil {
		return nil, errors.New("recorder: library must not be nil")
	}
	return &Recorder{cfg: cfg, platform: platform, provider: provider, lib: lib, store: store}, nil
}

// Record captures at least the requested duration of audio, fingerprints
// it, and registers the pattern under name. A fingerprint failure aborts
// the whole operation; nothing is added to the library. A store failure
// after a successful Add is reported, but the in-memory pattern survives
// and will be re-persisted on the next successful save.
func (r *Recorder) Record(ctx context.Context, name string, d time.Duration) (library.Info, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return library.Info{}, errors.New("recorder: pattern name must not be empty")
	}
	if d <= 0 {
		return library.Info{}, fmt.Errorf("recorder: duration %s must be positive", d)
	}

	pcm, err := r.capture(ctx, d)
	if err != nil {
		return library.Info{}, fmt.Errorf("recorder: capture %q: %w", name, err)
	}

	fp, err := r.provider.Fingerprint(ctx, pcm)
	if err != nil {
		return library.Info{}, fmt.Errorf("recorder: fingerprint %q: %w", name, err)
	}

	entry := library.Entry{
		Name:        name,
		Fingerprint: fp,
		Metadata: library.Metadata{
			Duration:   d,
			SampleRate: r.cfg.SampleRate,
			Channels:   r.cfg.Channels,
			CreatedAt:  time.Now().UTC(),
		},
	}
	if err := r.lib.Add(entry); err != nil {
		return library.Info{}, fmt.Errorf("recorder: register %q: %w", name, err)
	}
	slog.Info("pattern recorded", "name", name, "duration", d, "fingerprint_bytes", len(fp))

	if r.store != nil {
		if err := r.store.Save(ctx, entry); err != nil {
			return library.Info{}, fmt.Errorf("recorder: persist %q: %w", name, err)
		}
	}

	return library.Info{Name: entry.Name, Metadata: entry.Metadata}, nil
}

// capture reads chunks until at least d of audio has accumulated. Chunks in
// a foreign format are normalised to the configured capture format first.
func (r *Recorder) capture(ctx context.Context, d time.Duration) ([]byte, error) {
	stream, err := r.platform.Open(ctx, audio.StreamConfig{
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
		ChunkSize:  r.cfg.ChunkSize,
		Device:     r.cfg.Device,
	})
	if err != nil {
		return nil, fmt.Errorf("open capture stream: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			slog.Warn("recording stream close failed", "err", cerr)
		}
	}()

	normalizer := &audio.Normalizer{Target: audio.Format{
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
	}}

	var (
		pcm      []byte
		captured time.Duration
	)
	for captured < d {
		chunk, err := stream.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("read after %s of %s: %w", captured, d, err)
		}
		chunk = normalizer.Normalize(chunk)
		if len(chunk.Data) == 0 {
			continue
		}
		pcm = append(pcm, chunk.Data...)
		captured += chunk.Duration()
	}
	return pcm, nil
}
