package audio

import (
	"encoding/binary"
	"math"
)

// Quantize clips float samples to [-1, 1] and converts them to int16.
// It also returns the peak magnitude seen before clipping, so callers can
// flag a hot signal.
func Quantize(samples []float32) ([]int16, float32) {
	out := make([]int16, len(samples))
	var peak float32
	for i, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out, peak
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	PutSamples(buf, samples)
	return buf
}

// PutSamples encodes samples into buf, which must hold len(samples)*2 bytes.
func PutSamples(buf []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
}

// BytesToSamples decodes little-endian int16 samples. A trailing odd byte
// is ignored.
func BytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return samples
}
