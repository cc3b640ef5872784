// Package vad segments a speaker's PCM stream into speech and silence. A
// per-frame classifier feeds a small state machine that reports when a
// sentence has ended (sustained silence after sustained speech).
package vad

import (
	"errors"
	"fmt"

	"github.com/voxbridge/voxbridge/pkg/audio"
)

// FrameClassifier decides whether a single fixed-size PCM frame contains
// speech. Implementations must be safe for concurrent use only if shared;
// the processor uses one classifier per stream.
type FrameClassifier interface {
	// IsSpeech reports whether the frame (16-bit mono little-endian PCM at
	// sampleRate) contains speech. An error means the classifier could not
	// decide; callers fall back to plain energy thresholding.
	IsSpeech(frame []byte, sampleRate int) (bool, error)
}

// energyThresholds maps aggressiveness (0..3) to the minimum frame RMS, on
// the int16 scale, considered speech. Higher aggressiveness rejects more.
var energyThresholds = [4]float64{150, 250, 400, 600}

// EnergyClassifier is the built-in [FrameClassifier]. It combines frame RMS
// with a zero-crossing-rate bound that rejects pure hiss and hum.
type EnergyClassifier struct {
	// Aggressiveness selects the energy threshold, 0 (lenient) to 3
	// (strict).
	Aggressiveness int
}

// IsSpeech implements [FrameClassifier].
func (c *EnergyClassifier) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if c.Aggressiveness < 0 || c.Aggressiveness > 3 {
		return false, fmt.Errorf("vad: aggressiveness %d out of range [0,3]", c.Aggressiveness)
	}
	if len(frame) < audio.BytesPerSample {
		return false, errors.New("vad: frame too short")
	}
	if audio.RMS(frame) < energyThresholds[c.Aggressiveness] {
		return false, nil
	}
	// Voiced speech keeps the zero-crossing rate well below white noise
	// (~0.5). A loud but noise-like frame is not speech.
	return zeroCrossingRate(frame) < 0.35, nil
}

func zeroCrossingRate(frame []byte) float64 {
	samples := audio.BytesToInt16(frame)
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

var _ FrameClassifier = (*EnergyClassifier)(nil)
