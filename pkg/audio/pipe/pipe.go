// Package pipe implements [audio.Platform] on top of a capture subprocess.
//
// It launches a recording command (arecord by default, or any command that
// writes signed 16-bit little-endian PCM to stdout, such as parec or
// ffmpeg) and slices its output into fixed-size chunks. This keeps the
// binary free of cgo audio bindings while working against every capture
// stack that ships a CLI recorder.
package pipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mutecast/mutecast/pkg/audio"
)

// Platform launches one capture subprocess per opened stream.
type Platform struct {
	// Command is the capture command line. The placeholders {rate},
	// {channels} and {device} are replaced from the stream config. Empty
	// selects the arecord default:
	//
	//   arecord -q -f S16_LE -r {rate} -c {channels} -t raw
	//
	// with "-D {device}" appended when a device is configured.
	Command string
}

// Open implements [audio.Platform]. The subprocess is started immediately;
// cancelling ctx kills it.
func (p *Platform) Open(ctx context.Context, cfg audio.StreamConfig) (audio.Stream, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 || cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("pipe: invalid stream config %+v", cfg)
	}

	fields := strings.Fields(p.expandCommand(cfg))
	if len(fields) == 0 {
		return nil, errors.New("pipe: empty capture command")
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("pipe: start %q: %w", fields[0], err)
	}

	return &stream{
		cmd:       cmd,
		stdout:    stdout,
		cfg:       cfg,
		chunkSize: cfg.ChunkSize * cfg.Channels * 2,
	}, nil
}

// expandCommand builds the final command line for cfg.
func (p *Platform) expandCommand(cfg audio.StreamConfig) string {
	command := p.Command
	if command == "" {
		command = "arecord -q -f S16_LE -r {rate} -c {channels} -t raw"
		if cfg.Device != "" {
			command += " -D {device}"
		}
	}
	r := strings.NewReplacer(
		"{rate}", strconv.Itoa(cfg.SampleRate),
		"{channels}", strconv.Itoa(cfg.Channels),
		"{device}", cfg.Device,
	)
	return r.Replace(command)
}

// stream reads fixed-size PCM chunks from the subprocess stdout.
type stream struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	cfg       audio.StreamConfig
	chunkSize int

	// elapsed tracks the running timestamp, derived from bytes read rather
	// than wall clock so replayed input keeps consistent chunk times.
	elapsed time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Read implements [audio.Stream]. It blocks until a full chunk is
// available; a killed or exited subprocess surfaces as a read error.
func (s *stream) Read(ctx context.Context) (audio.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return audio.Chunk{}, err
	}

	buf := make([]byte, s.chunkSize)
	if _, err := io.ReadFull(s.stdout, buf); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return audio.Chunk{}, cerr
		}
		return audio.Chunk{}, fmt.Errorf("pipe: read capture output: %w", err)
	}

	chunk := audio.Chunk{
		Data:       buf,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		Timestamp:  s.elapsed,
	}
	s.elapsed += chunk.Duration()
	return chunk, nil
}

// Close implements [audio.Stream]: it terminates the subprocess and reaps
// it. Safe to call multiple times.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.stdout.Close()
		if err := s.cmd.Wait(); err != nil {
			// Kill produces a non-zero exit; only report unexpected failures.
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				s.closeErr = fmt.Errorf("pipe: wait for capture process: %w", err)
			}
		}
	})
	return s.closeErr
}
