package vad

import (
	"github.com/voxbridge/voxbridge/pkg/audio"
)

// Defaults for [Config]; values match the tuning the interpreter pipeline was
// calibrated with.
const (
	DefaultSampleRate        = 16000
	DefaultFrameMs           = 30
	DefaultSilenceDurationMs = 350
	DefaultMinSpeechFrames   = 3
	DefaultSpeechRatio       = 0.3
	DefaultRMSFallback       = 30
	DefaultAggressiveness    = 2
)

// Config tunes a [Processor]. Zero fields take the package defaults.
type Config struct {
	// SampleRate of the incoming PCM in Hz.
	SampleRate int
	// FrameMs is the classifier frame length in milliseconds.
	FrameMs int
	// SilenceDurationMs is how long silence must persist after speech
	// before a sentence end is declared.
	SilenceDurationMs int
	// MinSpeechFrames is the minimum number of speech chunks an utterance
	// needs before silence may close it.
	MinSpeechFrames int
	// SpeechRatio is the fraction of speech frames a chunk needs to count
	// as speech.
	SpeechRatio float64
	// RMSFallback is the chunk RMS threshold (int16 scale) used when the
	// classifier errors.
	RMSFallback float64
	// Classifier decides per-frame speech. Nil selects an
	// [EnergyClassifier] with [DefaultAggressiveness].
	Classifier FrameClassifier
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.FrameMs <= 0 {
		c.FrameMs = DefaultFrameMs
	}
	if c.SilenceDurationMs <= 0 {
		c.SilenceDurationMs = DefaultSilenceDurationMs
	}
	if c.MinSpeechFrames <= 0 {
		c.MinSpeechFrames = DefaultMinSpeechFrames
	}
	if c.SpeechRatio <= 0 {
		c.SpeechRatio = DefaultSpeechRatio
	}
	if c.RMSFallback <= 0 {
		c.RMSFallback = DefaultRMSFallback
	}
	if c.Classifier == nil {
		c.Classifier = &EnergyClassifier{Aggressiveness: DefaultAggressiveness}
	}
}

// Processor tracks speech/silence state across the chunks of one audio
// stream. It is not safe for concurrent use; each stream owns one.
type Processor struct {
	cfg        Config
	frameBytes int
	// maxSilenceFrames is SilenceDurationMs expressed in chunks, rounded
	// up so a sentence end never fires early.
	maxSilenceFrames int

	speaking      bool
	speechFrames  int
	silenceFrames int
}

// NewProcessor creates a [Processor] from cfg with defaults applied.
func NewProcessor(cfg Config) *Processor {
	cfg.applyDefaults()
	return &Processor{
		cfg:              cfg,
		frameBytes:       audio.BytesForMs(cfg.FrameMs, cfg.SampleRate),
		maxSilenceFrames: (cfg.SilenceDurationMs + cfg.FrameMs - 1) / cfg.FrameMs,
	}
}

// Speaking reports whether the processor is inside an utterance.
func (p *Processor) Speaking() bool { return p.speaking }

// HasSpeech reports whether chunk contains speech: at least
// [Config.SpeechRatio] of its complete frames classify as speech. A trailing
// partial frame is ignored. Empty chunks are silence.
func (p *Processor) HasSpeech(chunk []byte) bool {
	frames := len(chunk) / p.frameBytes
	if frames == 0 {
		return false
	}
	speech := 0
	for i := range frames {
		if p.isSpeechFrame(chunk[i*p.frameBytes : (i+1)*p.frameBytes]) {
			speech++
		}
	}
	return float64(speech) >= float64(frames)*p.cfg.SpeechRatio
}

// FilterSpeech returns the concatenation of the complete frames of chunk
// that classify as speech. The result may be empty.
func (p *Processor) FilterSpeech(chunk []byte) []byte {
	frames := len(chunk) / p.frameBytes
	out := make([]byte, 0, frames*p.frameBytes)
	for i := range frames {
		frame := chunk[i*p.frameBytes : (i+1)*p.frameBytes]
		if p.isSpeechFrame(frame) {
			out = append(out, frame...)
		}
	}
	return out
}

// ProcessChunk advances the state machine with one chunk and returns whether
// the chunk contained speech and whether it closed a sentence.
//
// The machine enters the speaking state after [Config.MinSpeechFrames] speech
// chunks. Once speaking, silence persisting for [Config.SilenceDurationMs]
// closes the sentence and resets the machine to idle. Silence while idle
// never closes a sentence.
func (p *Processor) ProcessChunk(chunk []byte) (hasSpeech, sentenceEnd bool) {
	hasSpeech = p.HasSpeech(chunk)

	if p.speaking {
		if hasSpeech {
			p.silenceFrames = 0
			return true, false
		}
		p.silenceFrames++
		if p.silenceFrames >= p.maxSilenceFrames {
			p.Reset()
			return false, true
		}
		return false, false
	}

	if hasSpeech {
		p.speechFrames++
		p.silenceFrames = 0
		if p.speechFrames >= p.cfg.MinSpeechFrames {
			p.speaking = true
		}
		return true, false
	}
	return false, false
}

// Reset clears all speech/silence state, returning the processor to idle.
func (p *Processor) Reset() {
	p.speaking = false
	p.speechFrames = 0
	p.silenceFrames = 0
}

// isSpeechFrame asks the classifier, falling back to a plain RMS threshold
// when the classifier cannot decide.
func (p *Processor) isSpeechFrame(frame []byte) bool {
	speech, err := p.cfg.Classifier.IsSpeech(frame, p.cfg.SampleRate)
	if err != nil {
		return audio.RMS(frame) > p.cfg.RMSFallback
	}
	return speech
}
