// Package audio provides PCM helpers shared by the interpreter pipeline and
// the provider adapters: int16 little-endian conversion, RMS energy, duration
// arithmetic, WAV container framing, and linear-interpolation resampling.
//
// All functions operate on 16-bit little-endian signed PCM unless stated
// otherwise.
package audio

import "encoding/binary"

// BytesPerSample is the size of one 16-bit PCM sample.
const BytesPerSample = 2

// BytesToInt16 decodes little-endian 16-bit PCM into int16 samples. A
// trailing odd byte is ignored.
func BytesToInt16(pcm []byte) []int16 {
	n := len(pcm) / BytesPerSample
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// Int16ToBytes encodes int16 samples as little-endian 16-bit PCM.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToFloat32 decodes little-endian 16-bit PCM into normalized float32
// samples in [-1, 1). This is the input format expected by whisper.cpp.
func BytesToFloat32(pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	out := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32ToBytes quantizes normalized float32 samples to little-endian 16-bit
// PCM, clamping to the int16 range.
func Float32ToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, f := range samples {
		v := f * 32768.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// DurationMs returns the duration in milliseconds of n bytes of mono 16-bit
// PCM at the given sample rate.
func DurationMs(n, sampleRate int) int {
	if sampleRate <= 0 {
		return 0
	}
	return n * 1000 / (sampleRate * BytesPerSample)
}

// BytesForMs returns the byte length of ms milliseconds of mono 16-bit PCM at
// the given sample rate.
func BytesForMs(ms, sampleRate int) int {
	return ms * sampleRate * BytesPerSample / 1000
}
