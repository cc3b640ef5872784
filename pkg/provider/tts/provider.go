// Package tts defines the Synthesizer interface for Text-to-Speech backends
// and the per-language voice tables the implementations pick from.
//
// Implementations must be safe for concurrent use; one utterance fans out to
// a synthesis call per target language.
package tts

import "context"

// OutputSampleRate is the sample rate of all synthesized audio in Hz.
const OutputSampleRate = 24000

// Format is the container format of all synthesized audio.
const Format = "mp3"

// Result is one synthesized utterance.
type Result struct {
	// Audio is the encoded MP3 payload.
	Audio []byte
	// DurationMs is the playback duration, estimated from the byte count
	// when the backend does not report one.
	DurationMs int
}

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize renders text as speech in the voice configured for
	// language. Implementations must honor ctx cancellation and deadlines.
	Synthesize(ctx context.Context, text, language string) (Result, error)
}

// EstimateDurationMs estimates playback duration from an MP3 byte count.
// It is deliberately rough; clients only use it for progress display.
func EstimateDurationMs(audioBytes int) int {
	return audioBytes / 24 * 8
}
