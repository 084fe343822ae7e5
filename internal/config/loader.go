package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about likely typos without rejecting third-party
// registrations.
var ValidProviderNames = map[string][]string{
	"fingerprint": {"chromaprint", "fpserver"},
	"audio":       {"pipe"},
}

// Load reads the YAML configuration file at path, applies defaults, and
// returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Unknown fields are rejected so typos surface at
// startup instead of silently falling back to defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found; soft issues are
// logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", cfg.Audio.Channels))
	}
	if cfg.Audio.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_size %d must be positive", cfg.Audio.ChunkSize))
	}

	// Detection
	if cfg.Detection.MatchThreshold < 0 || cfg.Detection.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("detection.match_threshold %.3f is out of range [0, 1]", cfg.Detection.MatchThreshold))
	}
	if cfg.Detection.SilenceThreshold < 0 || cfg.Detection.SilenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("detection.silence_threshold %.3f is out of range [0, 1]", cfg.Detection.SilenceThreshold))
	}
	if cfg.Detection.WindowChunks <= 0 {
		errs = append(errs, fmt.Errorf("detection.window_chunks %d must be positive", cfg.Detection.WindowChunks))
	}
	if cfg.Detection.GracePeriodSeconds < 0 {
		errs = append(errs, fmt.Errorf("detection.grace_period_seconds %.2f must not be negative", cfg.Detection.GracePeriodSeconds))
	}
	if cfg.Detection.Gain <= 0 {
		errs = append(errs, fmt.Errorf("detection.gain %.2f must be positive", cfg.Detection.Gain))
	}
	if !cfg.Detection.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("detection.mode %q is invalid; valid values: mute, dim, off", cfg.Detection.Mode))
	}

	// Reaction mode ↔ control command cross-validation.
	switch cfg.Detection.Mode {
	case ReactMute:
		if cfg.Detection.Control.MuteCommand == "" || cfg.Detection.Control.UnmuteCommand == "" {
			errs = append(errs, errors.New("detection.mode \"mute\" requires detection.control.mute_command and unmute_command"))
		}
	case ReactDim:
		if cfg.Detection.Control.DimCommand == "" || cfg.Detection.Control.RestoreCommand == "" {
			errs = append(errs, errors.New("detection.mode \"dim\" requires detection.control.dim_command and restore_command"))
		}
	}

	// Patterns
	if cfg.Patterns.RecordDurationSeconds <= 0 {
		errs = append(errs, fmt.Errorf("patterns.record_duration_seconds %.2f must be positive", cfg.Patterns.RecordDurationSeconds))
	}
	if cfg.Patterns.Dir != "" && cfg.Patterns.PostgresDSN != "" {
		slog.Warn("both patterns.dir and patterns.postgres_dsn are set; postgres takes precedence",
			"dir", cfg.Patterns.Dir,
		)
	}

	// Providers
	if cfg.Providers.Fingerprint.Name == "" {
		errs = append(errs, errors.New("providers.fingerprint.name is required"))
	}
	validateProviderName("fingerprint", cfg.Providers.Fingerprint.Name)
	if cfg.Providers.Audio.Name == "" {
		errs = append(errs, errors.New("providers.audio.name is required"))
	}
	validateProviderName("audio", cfg.Providers.Audio.Name)

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
