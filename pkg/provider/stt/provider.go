// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// A transcriber turns one finalized utterance of normalized PCM into text.
// Implementations must be safe for concurrent use; multiple sessions
// transcribe in parallel.
package stt

import (
	"context"

	"github.com/voxbridge/voxbridge/pkg/audio"
)

// DefaultConfidence is reported when a backend does not supply a confidence
// score of its own.
const DefaultConfidence = 0.95

// silenceRMS is the normalized RMS below which audio is treated as silence
// and never sent to a backend.
const silenceRMS = 1e-3

// Result is one transcription.
type Result struct {
	// Text is the transcribed text, empty when the audio held no speech.
	Text string
	// Confidence is the backend's score in [0, 1], or [DefaultConfidence].
	Confidence float64
}

// Transcriber is the abstraction over any STT backend.
type Transcriber interface {
	// Transcribe converts one utterance of mono float32 PCM, normalized to
	// [-1, 1], into text. language is an ISO 639-1 hint passed to the
	// backend verbatim. Implementations must return an empty [Result]
	// without contacting any remote service when [IsSilence] holds, and
	// must honor ctx cancellation and deadlines.
	Transcribe(ctx context.Context, samples []float32, language string) (Result, error)
}

// IsSilence reports whether the samples are quiet enough to skip
// transcription entirely.
func IsSilence(samples []float32) bool {
	return audio.RMSFloat32(samples) < silenceRMS
}
