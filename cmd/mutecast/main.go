// Command mutecast is the main entry point for the Mutecast commercial
// detector. It monitors a live audio input, recognises known commercials by
// acoustic fingerprint, and mutes or dims playback while they run.
//
// Run without extra flags to start monitoring. Use -record to capture a new
// commercial pattern instead:
//
//	mutecast -config config.yaml
//	mutecast -config config.yaml -record "ACME Spring Sale" -record-duration 25
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mutecast/mutecast/internal/app"
	"github.com/mutecast/mutecast/internal/config"
	"github.com/mutecast/mutecast/internal/observe"
	"github.com/mutecast/mutecast/pkg/audio"
	"github.com/mutecast/mutecast/pkg/audio/pipe"
	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
	"github.com/mutecast/mutecast/pkg/provider/fingerprint/chromaprint"
	"github.com/mutecast/mutecast/pkg/provider/fingerprint/fpserver"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	recordName := flag.String("record", "", "record a new pattern under this name instead of monitoring")
	recordSecs := flag.Float64("record-duration", 0, "recording length in seconds (default: patterns.record_duration_seconds)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "mutecast: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "mutecast: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("mutecast starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "mutecast",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		if err := application.Shutdown(); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	// ── Record mode ───────────────────────────────────────────────────────────
	if *recordName != "" {
		duration := time.Duration(*recordSecs * float64(time.Second))
		slog.Info("recording pattern — play the commercial now", "name", *recordName)
		info, err := application.RecordPattern(ctx, *recordName, duration)
		if err != nil {
			slog.Error("recording failed", "err", err)
			return 1
		}
		fmt.Printf("recorded pattern %q (%s)\n", info.Name, info.Metadata.Duration)
		return 0
	}

	// ── Monitor mode ──────────────────────────────────────────────────────────
	slog.Info("monitoring — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages. cfg supplies the capture format the
// fingerprint providers operate on.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	format := fingerprint.AudioFormat{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	}

	// ── Fingerprint ───────────────────────────────────────────────────────────

	reg.RegisterFingerprint("chromaprint", func(entry config.ProviderEntry) (fingerprint.Provider, error) {
		var opts []chromaprint.Option
		if max := optInt(entry.Options, "max_seconds"); max > 0 {
			opts = append(opts, chromaprint.WithMaxSeconds(max))
		}
		return chromaprint.New(format, opts...)
	})

	reg.RegisterFingerprint("fpserver", func(entry config.ProviderEntry) (fingerprint.Provider, error) {
		opts := []fpserver.Option{fpserver.WithFormat(format)}
		if secs := optInt(entry.Options, "timeout_seconds"); secs > 0 {
			opts = append(opts, fpserver.WithTimeout(time.Duration(secs)*time.Second))
		}
		return fpserver.New(entry.BaseURL, opts...)
	})

	// ── Audio capture ─────────────────────────────────────────────────────────

	reg.RegisterAudio("pipe", func(entry config.ProviderEntry) (audio.Platform, error) {
		return &pipe.Platform{Command: optString(entry.Options, "command")}, nil
	})
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	fp, err := reg.CreateFingerprint(cfg.Providers.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("create fingerprint provider %q: %w", cfg.Providers.Fingerprint.Name, err)
	}
	ps.Fingerprint = fp
	slog.Info("provider created", "kind", "fingerprint", "name", cfg.Providers.Fingerprint.Name)

	platform, err := reg.CreateAudio(cfg.Providers.Audio)
	if err != nil {
		return nil, fmt.Errorf("create audio provider %q: %w", cfg.Providers.Audio.Name, err)
	}
	ps.Audio = platform
	slog.Info("provider created", "kind", "audio", "name", cfg.Providers.Audio.Name)

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Mutecast — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Fingerprint", cfg.Providers.Fingerprint.Name)
	printRow("Audio", cfg.Providers.Audio.Name)
	printRow("Format", fmt.Sprintf("%d Hz / %dch", cfg.Audio.SampleRate, cfg.Audio.Channels))
	printRow("Window", fmt.Sprintf("%d chunks", cfg.Detection.WindowChunks))
	printRow("Threshold", fmt.Sprintf("%.2f", cfg.Detection.MatchThreshold))
	printRow("Reaction", string(cfg.Detection.Mode))
	if cfg.Patterns.PostgresDSN != "" {
		printRow("Patterns", "postgres")
	} else {
		printRow("Patterns", cfg.Patterns.Dir)
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	} else {
		printRow("Listen addr", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s   : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map. Returns ""
// if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a provider Options map. YAML decodes
// unqualified numbers as int; returns 0 when absent or not an int.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	n, _ := opts[key].(int)
	return n
}
