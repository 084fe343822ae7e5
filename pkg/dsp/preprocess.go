// Package dsp implements the per-chunk signal conditioning applied to
// captured audio before fingerprint matching: gain scaling, noise-floor
// attenuation, high-pass rumble removal, and silence classification.
//
// All transforms operate on raw little-endian int16 PCM and return buffers of
// identical length. They are deterministic and carry no state across chunks,
// so a single Preprocessor can be reused for the lifetime of a stream as long
// as it is driven from one goroutine at a time.
package dsp

import (
	"encoding/binary"
	"math"
)

// fullScale is the magnitude of a full-scale 16-bit sample. Thresholds
// expressed as a fraction of full scale are multiplied by this value.
const fullScale = 32768.0

// noiseAttenuation is the factor applied to samples below the noise
// threshold. Matches the fixed attenuation used by the capture tuning the
// pattern library was recorded with; changing it invalidates stored patterns.
const noiseAttenuation = 0.1

// highpassCutoffHz is the corner frequency of the rumble filter.
const highpassCutoffHz = 100.0

// PreprocessConfig holds the tuning parameters for a [Preprocessor].
type PreprocessConfig struct {
	// Gain multiplies every sample. 1.0 is a no-op; values above 1.0
	// compensate for quiet loopback devices. Results are clipped to the
	// int16 range.
	Gain float64

	// NoiseThreshold is the magnitude, as a fraction of full scale, below
	// which a sample is treated as noise floor and attenuated. Only applied
	// when NoiseReduction is true.
	NoiseThreshold float64

	// NoiseReduction enables the noise-floor attenuation and high-pass
	// filtering stage. When false, chunks pass through that stage unchanged.
	NoiseReduction bool

	// SampleRate of the incoming PCM, used to derive filter coefficients.
	SampleRate int
}

// Preprocessor applies gain and noise shaping to PCM chunks. Construct with
// [NewPreprocessor]; the zero value passes chunks through unchanged.
//
// Not safe for concurrent use — the capture loop is the only caller by
// design.
type Preprocessor struct {
	cfg      PreprocessConfig
	sections [2]biquad
}

// NewPreprocessor returns a Preprocessor with high-pass coefficients derived
// from cfg.SampleRate. A non-positive sample rate disables the filter stage.
func NewPreprocessor(cfg PreprocessConfig) *Preprocessor {
	p := &Preprocessor{cfg: cfg}
	if cfg.SampleRate > 0 {
		// A 4th-order Butterworth high-pass is realised as two cascaded
		// second-order sections with the standard Butterworth Q pairing.
		p.sections[0] = highpassBiquad(highpassCutoffHz, float64(cfg.SampleRate), 0.54119610)
		p.sections[1] = highpassBiquad(highpassCutoffHz, float64(cfg.SampleRate), 1.30656296)
	}
	return p
}

// Process returns a conditioned copy of pcm with identical length. The input
// is never modified. Stages, in order: gain with clipping, then (when noise
// reduction is enabled) noise-floor attenuation followed by zero-phase
// high-pass filtering.
func (p *Preprocessor) Process(pcm []byte) []byte {
	samples := decodeSamples(pcm)

	if p.cfg.Gain != 0 && p.cfg.Gain != 1.0 {
		for i, s := range samples {
			samples[i] = clip(s * p.cfg.Gain)
		}
	}

	if p.cfg.NoiseReduction {
		floor := p.cfg.NoiseThreshold * fullScale
		for i, s := range samples {
			if math.Abs(s) < floor {
				samples[i] = s * noiseAttenuation
			}
		}
		if p.cfg.SampleRate > 0 {
			p.filtfilt(samples)
			for i, s := range samples {
				samples[i] = clip(s)
			}
		}
	}

	return encodeSamples(samples)
}

// filtfilt applies both high-pass sections forward, then backward, for a
// zero-phase response. Filter state is fresh per call so chunks remain
// independent.
func (p *Preprocessor) filtfilt(samples []float64) {
	for _, section := range p.sections {
		s := section
		s.run(samples)
		reverse(samples)
		s = section
		s.run(samples)
		reverse(samples)
	}
}

// biquad is a single second-order IIR section in direct form II transposed.
// Coefficients are normalised so a0 == 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

// run filters samples in place.
func (f *biquad) run(samples []float64) {
	for i, x := range samples {
		y := f.b0*x + f.z1
		f.z1 = f.b1*x - f.a1*y + f.z2
		f.z2 = f.b2*x - f.a2*y
		samples[i] = y
	}
}

// highpassBiquad computes RBJ audio-EQ-cookbook high-pass coefficients for
// the given cutoff, sample rate, and section Q.
func highpassBiquad(cutoff, rate, q float64) biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha
	return biquad{
		b0: (1 + cosW0) / 2 / a0,
		b1: -(1 + cosW0) / a0,
		b2: (1 + cosW0) / 2 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
}

// clip bounds a sample to the representable int16 range.
func clip(s float64) float64 {
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return s
}

// reverse flips samples in place.
func reverse(samples []float64) {
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
}

// decodeSamples converts little-endian int16 PCM bytes to float64 samples.
// A trailing odd byte is ignored.
func decodeSamples(pcm []byte) []float64 {
	n := len(pcm) / 2
	out := make([]float64, n)
	for i := range n {
		out[i] = float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
	}
	return out
}

// encodeSamples converts float64 samples back to little-endian int16 PCM.
// Samples are rounded and clipped.
func encodeSamples(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(clip(math.Round(s)))))
	}
	return out
}
