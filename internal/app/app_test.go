package app_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/mutecast/mutecast/internal/app"
	"github.com/mutecast/mutecast/internal/config"
	"github.com/mutecast/mutecast/internal/library"
	"github.com/mutecast/mutecast/pkg/audio"
	audiomock "github.com/mutecast/mutecast/pkg/audio/mock"
	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
	fpmock "github.com/mutecast/mutecast/pkg/provider/fingerprint/mock"
)

// testConfig returns a minimal detect-only configuration: no HTTP server, no
// playback control, disk-backed patterns in a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Server.ListenAddr = ""
	cfg.Detection.Mode = config.ReactOff
	cfg.Patterns.Dir = t.TempDir()
	return cfg
}

func testProviders(stream *audiomock.Stream) *app.Providers {
	return &app.Providers{
		Fingerprint: &fpmock.Provider{FingerprintResult: fingerprint.Fingerprint("fp")},
		Audio:       &audiomock.Platform{Stream: stream},
	}
}

// captureChunks returns n chunks of quiet PCM in the capture format.
func captureChunks(n int) []audio.Chunk {
	chunks := make([]audio.Chunk, n)
	for i := range chunks {
		data := make([]byte, 2048)
		for j := 0; j < len(data); j += 2 {
			binary.LittleEndian.PutUint16(data[j:], uint16(int16(4000)))
		}
		chunks[i] = audio.Chunk{Data: data, SampleRate: 44100, Channels: 1}
	}
	return chunks
}

func TestNew_RequiresProviders(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		providers *app.Providers
	}{
		{name: "nil providers", providers: nil},
		{name: "missing fingerprint", providers: &app.Providers{Audio: &audiomock.Platform{}}},
		{name: "missing audio", providers: &app.Providers{Fingerprint: &fpmock.Provider{}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := app.New(ctx, cfg, tc.providers); err == nil {
				t.Error("New accepted incomplete providers")
			}
		})
	}
}

// stubStore scripts Load results for exercising the pattern-loading path.
type stubStore struct {
	entries []library.Entry
	loadErr error
}

func (s *stubStore) Save(context.Context, library.Entry) error { return nil }
func (s *stubStore) Delete(context.Context, string) error      { return nil }
func (s *stubStore) Load(context.Context) ([]library.Entry, error) {
	return s.entries, s.loadErr
}

func TestNew_SkipsUnloadablePatterns(t *testing.T) {
	store := &stubStore{entries: []library.Entry{
		{Name: "good", Fingerprint: []byte("fp-good")},
		{Name: "bad"}, // no fingerprint, rejected by the library
	}}

	stream := &audiomock.Stream{}
	a, err := app.New(context.Background(), testConfig(t), testProviders(stream), app.WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()
}

func TestRun_StopsOnCancel(t *testing.T) {
	stream := &audiomock.Stream{}
	a, err := app.New(context.Background(), testConfig(t), testProviders(stream))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil on clean cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRecordPattern_UsesConfiguredDefaultDuration(t *testing.T) {
	cfg := testConfig(t)
	cfg.Patterns.RecordDurationSeconds = 0.05

	stream := &audiomock.Stream{Chunks: captureChunks(5)}
	a, err := app.New(context.Background(), cfg, testProviders(stream))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()

	info, err := a.RecordPattern(context.Background(), "jingle", 0)
	if err != nil {
		t.Fatalf("RecordPattern: %v", err)
	}
	if info.Name != "jingle" {
		t.Errorf("Name = %q, want %q", info.Name, "jingle")
	}

	// The recording landed in the pattern directory.
	store, err := library.NewDiskStore(cfg.Patterns.Dir)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	stored, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stored) != 1 || stored[0].Name != "jingle" {
		t.Errorf("store holds %+v, want the recorded pattern", stored)
	}
}

// closableProvider wraps the fingerprint mock with a Close method so the app
// registers it as a closer.
type closableProvider struct {
	fpmock.Provider
	closeCalls int
}

func (c *closableProvider) Close() error {
	c.closeCalls++
	return nil
}

func TestShutdown_ClosesProviderOnce(t *testing.T) {
	provider := &closableProvider{}
	providers := &app.Providers{
		Fingerprint: provider,
		Audio:       &audiomock.Platform{},
	}

	a, err := app.New(context.Background(), testConfig(t), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
	if provider.closeCalls != 1 {
		t.Errorf("provider closed %d times, want 1", provider.closeCalls)
	}
}
