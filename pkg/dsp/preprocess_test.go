package dsp_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/mutecast/mutecast/pkg/dsp"
)

// samplesToBytes converts int16 samples to little-endian PCM bytes.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts little-endian PCM bytes to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestProcess_GainScalesSamples(t *testing.T) {
	p := dsp.NewPreprocessor(dsp.PreprocessConfig{Gain: 2.0})

	got := bytesToSamples(p.Process(samplesToBytes([]int16{100, -250, 0, 4000})))
	want := []int16{200, -500, 0, 8000}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestProcess_GainClipsAtFullScale(t *testing.T) {
	p := dsp.NewPreprocessor(dsp.PreprocessConfig{Gain: 4.0})

	got := bytesToSamples(p.Process(samplesToBytes([]int16{30000, -30000})))
	if got[0] != 32767 {
		t.Errorf("positive overflow: got %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("negative overflow: got %d, want -32768", got[1])
	}
}

func TestProcess_NoiseAttenuation(t *testing.T) {
	// SampleRate 0 disables the high-pass stage so only the attenuation is
	// observable. Threshold 0.02 of full scale is ~655.
	p := dsp.NewPreprocessor(dsp.PreprocessConfig{
		Gain:           1.0,
		NoiseThreshold: 0.02,
		NoiseReduction: true,
	})

	got := bytesToSamples(p.Process(samplesToBytes([]int16{100, -400, 5000, -5000})))
	want := []int16{10, -40, 5000, -5000}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestProcess_NoiseReductionDisabled(t *testing.T) {
	p := dsp.NewPreprocessor(dsp.PreprocessConfig{
		Gain:           1.0,
		NoiseThreshold: 0.5,
		NoiseReduction: false,
		SampleRate:     44100,
	})

	in := samplesToBytes([]int16{100, -400, 5000})
	got := p.Process(in)
	if !bytes.Equal(got, in) {
		t.Errorf("got %v, want input unchanged %v", bytesToSamples(got), bytesToSamples(in))
	}
}

func TestProcess_HighpassRemovesDCOffset(t *testing.T) {
	p := dsp.NewPreprocessor(dsp.PreprocessConfig{
		Gain:           1.0,
		NoiseReduction: true,
		SampleRate:     44100,
	})

	// 100 ms of pure DC offset. A 100 Hz high-pass should flatten it apart
	// from edge transients.
	in := make([]int16, 4410)
	for i := range in {
		in[i] = 1000
	}

	got := bytesToSamples(p.Process(samplesToBytes(in)))
	var sum float64
	for _, s := range got {
		sum += math.Abs(float64(s))
	}
	mean := sum / float64(len(got))
	if mean > 100 {
		t.Errorf("mean absolute level after high-pass = %.1f, want < 100", mean)
	}
}

func TestProcess_PreservesLengthAndInput(t *testing.T) {
	p := dsp.NewPreprocessor(dsp.PreprocessConfig{
		Gain:           3.0,
		NoiseThreshold: 0.02,
		NoiseReduction: true,
		SampleRate:     44100,
	})

	in := samplesToBytes([]int16{100, 200, 300, 400})
	orig := bytes.Clone(in)

	got := p.Process(in)
	if len(got) != len(in) {
		t.Errorf("output length = %d, want %d", len(got), len(in))
	}
	if !bytes.Equal(in, orig) {
		t.Error("Process modified its input buffer")
	}
}

func TestProcess_ZeroValuePassesThrough(t *testing.T) {
	var p dsp.Preprocessor

	in := samplesToBytes([]int16{1, -2, 3})
	if got := p.Process(in); !bytes.Equal(got, in) {
		t.Errorf("got %v, want input unchanged", bytesToSamples(got))
	}
}
