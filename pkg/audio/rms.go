package audio

import "math"

// RMS computes the root-mean-square energy of 16-bit little-endian PCM on the
// raw int16 scale (0..32767). Returns 0 for input shorter than one sample.
func RMS(pcm []byte) float64 {
	samples := BytesToInt16(pcm)
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSFloat32 computes the root-mean-square energy of normalized float32
// samples on the [0, 1] scale. Returns 0 for empty input.
func RMSFloat32(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
