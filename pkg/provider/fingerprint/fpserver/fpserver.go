// Package fpserver provides a fingerprint.Provider backed by a remote
// fingerprinting service over HTTP.
//
// The service is expected to expose two endpoints:
//
//   - POST /fingerprint — multipart/form-data with a "file" field containing
//     a WAV recording; responds with {"fingerprint": "<base64>"}.
//   - POST /compare — JSON {"a": "<base64>", "b": "<base64>"}; responds with
//     {"similarity": 0.87}.
//
// This keeps the acoustic algorithm fully out of process, which is useful
// when the fingerprinting engine is easier to run as a sidecar (GPU hosts,
// licensing constraints) than to link natively.
//
// Usage:
//
//	p, err := fpserver.New("http://localhost:9090",
//	    fpserver.WithFormat(fingerprint.AudioFormat{SampleRate: 44100, Channels: 1}),
//	)
//	fprint, err := p.Fingerprint(ctx, pcm)
package fpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
)

const (
	// bitsPerSample is fixed at 16 for the signed little-endian PCM audio
	// the service expects.
	bitsPerSample = 16

	defaultSampleRate = 44100
	defaultChannels   = 1
	defaultTimeout    = 15 * time.Second
)

// Compile-time assertion that Provider implements fingerprint.Provider.
var _ fingerprint.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithFormat sets the PCM format of audio passed to Fingerprint.
// Defaults to 44100 Hz mono.
func WithFormat(f fingerprint.AudioFormat) Option {
	return func(p *Provider) {
		p.format = f
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 15 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements fingerprint.Provider against a remote HTTP service.
// It is stateless between calls and safe for concurrent use.
type Provider struct {
	serverURL  string
	format     fingerprint.AudioFormat
	httpClient *http.Client
}

// New creates a Provider that connects to the fingerprint service at
// serverURL (e.g., "http://localhost:9090"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("fpserver: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		format:     fingerprint.AudioFormat{SampleRate: defaultSampleRate, Channels: defaultChannels},
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Fingerprint encodes pcm as WAV and POSTs it to the /fingerprint endpoint.
func (p *Provider) Fingerprint(ctx context.Context, pcm []byte) (fingerprint.Fingerprint, error) {
	if len(pcm) == 0 {
		return nil, fingerprint.ErrTooShort
	}

	wav := encodeWAV(pcm, p.format.SampleRate, p.format.Channels)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "window.wav")
	if err != nil {
		return nil, fmt.Errorf("fpserver: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("fpserver: write wav data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("fpserver: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/fingerprint", &body)
	if err != nil {
		return nil, fmt.Errorf("fpserver: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		Fingerprint string `json:"fingerprint"`
	}
	if err := p.do(req, &result); err != nil {
		return nil, err
	}
	if result.Fingerprint == "" {
		return nil, errors.New("fpserver: server returned empty fingerprint")
	}

	raw, err := base64.StdEncoding.DecodeString(result.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("fpserver: decode fingerprint: %w", err)
	}
	return raw, nil
}

// Compare submits both fingerprints to the /compare endpoint and returns the
// reported similarity, clamped to [0, 1].
func (p *Provider) Compare(a, b fingerprint.Fingerprint) (float64, error) {
	if a.Empty() || b.Empty() {
		return 0, errors.New("fpserver: cannot compare empty fingerprint")
	}

	payload, err := json.Marshal(struct {
		A string `json:"a"`
		B string `json:"b"`
	}{
		A: base64.StdEncoding.EncodeToString(a),
		B: base64.StdEncoding.EncodeToString(b),
	})
	if err != nil {
		return 0, fmt.Errorf("fpserver: marshal compare request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, p.serverURL+"/compare", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("fpserver: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Similarity float64 `json:"similarity"`
	}
	if err := p.do(req, &result); err != nil {
		return 0, err
	}

	score := result.Similarity
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	return score, nil
}

// do executes req and decodes the JSON response body into out.
func (p *Provider) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fpserver: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fpserver: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fpserver: read response body: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("fpserver: parse JSON response: %w", err)
	}
	return nil
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
