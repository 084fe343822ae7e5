// Package app wires all Mutecast subsystems into a running application.
//
// The App struct owns the full lifecycle: [New] creates and connects all
// subsystems, [App.Run] executes the capture loop and the control API until
// the context is cancelled, and [App.Shutdown] tears everything down in
// order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithMuter, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/mutecast/mutecast/internal/config"
	"github.com/mutecast/mutecast/internal/controller"
	"github.com/mutecast/mutecast/internal/detect"
	"github.com/mutecast/mutecast/internal/library"
	"github.com/mutecast/mutecast/internal/observe"
	"github.com/mutecast/mutecast/internal/recorder"
	"github.com/mutecast/mutecast/internal/server"
	"github.com/mutecast/mutecast/pkg/audio"
	"github.com/mutecast/mutecast/pkg/dsp"
	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
)

// Providers holds one interface value per capability slot. Populated by
// main.go via the config registry.
type Providers struct {
	Fingerprint fingerprint.Provider
	Audio       audio.Platform
}

// App owns all subsystem lifetimes and orchestrates the detection pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	lib     *library.Library
	store   library.Store
	matcher *detect.Matcher
	monitor *detect.Monitor
	sink    *controller.Sink
	srv     *server.Server

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a pattern store instead of creating one from config.
func WithStore(s library.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSink injects a playback-control sink instead of building one from the
// configured reaction mode.
func WithSink(s *controller.Sink) Option {
	return func(a *App) { a.sink = s }
}

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go, populated via the config registry.
//
// New performs all initialisation synchronously: store connection, pattern
// loading, matcher and monitor construction, playback-control setup, and
// control-API assembly.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Fingerprint == nil {
		return nil, errors.New("app: fingerprint provider is required")
	}
	if providers.Audio == nil {
		return nil, errors.New("app: audio platform is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if c, ok := providers.Fingerprint.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init pattern store: %w", err)
	}
	if err := a.loadPatterns(ctx); err != nil {
		return nil, fmt.Errorf("app: load patterns: %w", err)
	}
	if err := a.initDetection(); err != nil {
		return nil, fmt.Errorf("app: init detection: %w", err)
	}
	if err := a.initControl(); err != nil {
		return nil, fmt.Errorf("app: init playback control: %w", err)
	}
	a.initServer()

	return a, nil
}

// initStore connects the configured pattern store: PostgreSQL when a DSN is
// set, the pattern directory otherwise.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	if dsn := a.cfg.Patterns.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})

		store := library.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate pattern schema: %w", err)
		}
		a.store = store
		slog.Info("pattern store ready", "backend", "postgres")
		return nil
	}

	store, err := library.NewDiskStore(a.cfg.Patterns.Dir)
	if err != nil {
		return fmt.Errorf("open pattern directory: %w", err)
	}
	a.store = store
	slog.Info("pattern store ready", "backend", "disk", "dir", a.cfg.Patterns.Dir)
	return nil
}

// loadPatterns populates the in-memory library from the store.
func (a *App) loadPatterns(ctx context.Context) error {
	a.lib = library.New()
	entries, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := a.lib.Add(entry); err != nil {
			slog.Warn("skipping stored pattern", "name", entry.Name, "err", err)
		}
	}
	slog.Info("pattern library loaded", "patterns", a.lib.Len())
	return nil
}

// initDetection builds the matcher and the capture monitor.
func (a *App) initDetection() error {
	metrics := observe.DefaultMetrics()

	matcher, err := detect.NewMatcher(
		a.providers.Fingerprint,
		a.lib,
		a.cfg.Detection.MatchThreshold,
		a.cfg.Detection.SilenceThreshold,
		metrics,
	)
	if err != nil {
		return err
	}
	a.matcher = matcher

	monitor, err := detect.NewMonitor(detect.MonitorConfig{
		SampleRate:       a.cfg.Audio.SampleRate,
		Channels:         a.cfg.Audio.Channels,
		ChunkSize:        a.cfg.Audio.ChunkSize,
		Device:           a.cfg.Audio.Device,
		WindowChunks:     a.cfg.Detection.WindowChunks,
		GracePeriod:      a.cfg.Detection.GracePeriod(),
		SilenceThreshold: a.cfg.Detection.SilenceThreshold,
		Preprocess: dsp.PreprocessConfig{
			Gain:           a.cfg.Detection.Gain,
			NoiseThreshold: a.cfg.Detection.NoiseThreshold,
			NoiseReduction: a.cfg.Detection.NoiseReductionEnabled(),
			SampleRate:     a.cfg.Audio.SampleRate,
		},
	}, a.providers.Audio, matcher, metrics)
	if err != nil {
		return err
	}
	a.monitor = monitor
	return nil
}

// initControl builds the playback-control sink for the configured reaction
// mode and registers it as an event listener.
func (a *App) initControl() error {
	if a.sink == nil {
		if a.cfg.Detection.Mode == config.ReactOff {
			slog.Info("playback control disabled, detect-only mode")
			return nil
		}

		cmd := &controller.CommandController{
			MuteCmd:    a.cfg.Detection.Control.MuteCommand,
			UnmuteCmd:  a.cfg.Detection.Control.UnmuteCommand,
			DimCmd:     a.cfg.Detection.Control.DimCommand,
			RestoreCmd: a.cfg.Detection.Control.RestoreCommand,
		}
		mode := controller.ModeMute
		if a.cfg.Detection.Mode == config.ReactDim {
			mode = controller.ModeDim
		}
		sink, err := controller.NewSink(mode, cmd, cmd, 0)
		if err != nil {
			return err
		}
		a.sink = sink
	}
	a.monitor.AddListener(a.sink)
	return nil
}

// initServer assembles the HTTP control surface when a listen address is
// configured.
func (a *App) initServer() {
	if a.cfg.Server.ListenAddr == "" {
		slog.Info("http server disabled, no listen address configured")
		return
	}

	a.srv = server.New(a.cfg.Server.ListenAddr, a.monitor, a.lib, a.store, observe.DefaultMetrics())
	a.monitor.AddListener(a.srv.Hub())

	a.srv.Health().AddCheck("capture", func(_ context.Context) error {
		if !a.monitor.Status().Running {
			return errors.New("capture loop not running")
		}
		return nil
	})
	a.srv.Health().AddCheck("patterns", func(ctx context.Context) error {
		_, err := a.store.Load(ctx)
		return err
	})
}

// Run executes the capture loop and the control API until ctx is cancelled
// or either subsystem fails. A clean cancellation returns nil.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.monitor.Run(gctx)
	})
	if a.srv != nil {
		g.Go(func() error {
			return a.srv.Run(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RecordPattern captures a new commercial pattern from the live input and
// registers it. Intended for the record subcommand, which runs instead of
// the monitor so the capture device is free.
func (a *App) RecordPattern(ctx context.Context, name string, d time.Duration) (library.Info, error) {
	if d <= 0 {
		d = a.cfg.Patterns.RecordDuration()
	}
	rec, err := recorder.New(recorder.Config{
		SampleRate: a.cfg.Audio.SampleRate,
		Channels:   a.cfg.Audio.Channels,
		ChunkSize:  a.cfg.Audio.ChunkSize,
		Device:     a.cfg.Audio.Device,
	}, a.providers.Audio, a.providers.Fingerprint, a.lib, a.store)
	if err != nil {
		return library.Info{}, err
	}
	return rec.Record(ctx, name, d)
}

// Status exposes the monitor snapshot, primarily for the CLI.
func (a *App) Status() detect.Status {
	return a.monitor.Status()
}

// Shutdown releases all resources acquired in New, in reverse order. Safe
// to call multiple times; only the first call runs the closers.
func (a *App) Shutdown() error {
	var err error
	a.stopOnce.Do(func() {
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if cerr := a.closers[i](); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		err = errors.Join(errs...)
	})
	return err
}
