package pipe

import (
	"context"
	"testing"

	"github.com/mutecast/mutecast/pkg/audio"
)

func TestExpandCommand(t *testing.T) {
	cfg := audio.StreamConfig{SampleRate: 44100, Channels: 2, ChunkSize: 1024, Device: "hw:1,0"}

	tests := []struct {
		name    string
		command string
		cfg     audio.StreamConfig
		want    string
	}{
		{
			name: "default without device",
			cfg:  audio.StreamConfig{SampleRate: 44100, Channels: 1, ChunkSize: 1024},
			want: "arecord -q -f S16_LE -r 44100 -c 1 -t raw",
		},
		{
			name: "default with device",
			cfg:  cfg,
			want: "arecord -q -f S16_LE -r 44100 -c 2 -t raw -D hw:1,0",
		},
		{
			name:    "custom command with placeholders",
			command: "parec --rate={rate} --channels={channels} --device={device} --raw",
			cfg:     cfg,
			want:    "parec --rate=44100 --channels=2 --device=hw:1,0 --raw",
		},
		{
			name:    "custom command without placeholders",
			command: "ffmpeg -f pulse -i default -f s16le -",
			cfg:     cfg,
			want:    "ffmpeg -f pulse -i default -f s16le -",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &Platform{Command: tc.command}
			if got := p.expandCommand(tc.cfg); got != tc.want {
				t.Errorf("expandCommand() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	p := &Platform{}
	if _, err := p.Open(context.Background(), audio.StreamConfig{}); err == nil {
		t.Error("Open accepted a zero stream config")
	}
}

func TestOpen_MissingBinary(t *testing.T) {
	p := &Platform{Command: "no-such-capture-binary-xyz"}
	cfg := audio.StreamConfig{SampleRate: 44100, Channels: 1, ChunkSize: 1024}
	if _, err := p.Open(context.Background(), cfg); err == nil {
		t.Error("Open succeeded with a nonexistent capture binary")
	}
}

func TestStream_ReadsFixedChunksFromSubprocess(t *testing.T) {
	// 8192 zero bytes yield exactly four 2048-byte chunks at 1024 mono
	// samples per chunk.
	p := &Platform{Command: "head -c 8192 /dev/zero"}
	cfg := audio.StreamConfig{SampleRate: 44100, Channels: 1, ChunkSize: 1024}

	stream, err := p.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()

	ctx := context.Background()
	var chunks []audio.Chunk
	for i := 0; i < 4; i++ {
		chunk, err := stream.Read(ctx)
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		chunks = append(chunks, chunk)
	}

	for i, chunk := range chunks {
		if len(chunk.Data) != 2048 {
			t.Errorf("chunk %d holds %d bytes, want 2048", i, len(chunk.Data))
		}
		if chunk.SampleRate != 44100 || chunk.Channels != 1 {
			t.Errorf("chunk %d format = %dHz %dch, want capture format", i, chunk.SampleRate, chunk.Channels)
		}
	}

	// Timestamps advance by one chunk duration per read.
	if chunks[0].Timestamp != 0 {
		t.Errorf("first timestamp = %s, want 0", chunks[0].Timestamp)
	}
	if step := chunks[1].Timestamp - chunks[0].Timestamp; step != chunks[0].Duration() {
		t.Errorf("timestamp step = %s, want %s", step, chunks[0].Duration())
	}

	// The subprocess has exited; the next read fails.
	if _, err := stream.Read(ctx); err == nil {
		t.Error("Read succeeded past the end of subprocess output")
	}
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	p := &Platform{Command: "cat /dev/zero"}
	cfg := audio.StreamConfig{SampleRate: 44100, Channels: 1, ChunkSize: 1024}

	stream, err := p.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := stream.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestStream_ReadHonoursCancelledContext(t *testing.T) {
	p := &Platform{Command: "cat /dev/zero"}
	cfg := audio.StreamConfig{SampleRate: 44100, Channels: 1, ChunkSize: 1024}

	stream, err := p.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := stream.Read(ctx); err != context.Canceled {
		t.Errorf("Read = %v, want context.Canceled", err)
	}
}
