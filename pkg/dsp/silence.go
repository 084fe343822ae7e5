package dsp

import (
	"encoding/binary"
	"math"
)

// RMS returns the root-mean-square energy of a little-endian int16 PCM
// buffer, normalised to [0, 1] by full-scale amplitude. Returns 0 for
// buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum/float64(n)) / fullScale
}

// IsSilent reports whether the chunk's normalised RMS energy is below
// threshold. Used to skip fingerprinting work on silent windows and to
// accumulate silence-duration diagnostics in the capture loop.
func IsSilent(pcm []byte, threshold float64) bool {
	return RMS(pcm) < threshold
}
