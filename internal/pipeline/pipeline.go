// Package pipeline drives one finalized utterance through the interpreter's
// three stages: transcription, translation per target language, and speech
// synthesis per translation. Results are multiplexed onto the caller's
// stream through an emit callback, preserving the transcript-before-audio
// ordering contract per utterance.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/voxbridge/voxbridge/internal/cache"
	"github.com/voxbridge/voxbridge/internal/lang"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/rpc"
	"github.com/voxbridge/voxbridge/internal/session"
	"github.com/voxbridge/voxbridge/pkg/audio"
	"github.com/voxbridge/voxbridge/pkg/provider/mt"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

// Defaults for [Timeouts] and [Config].
const (
	DefaultSTTTimeout    = 15 * time.Second
	DefaultMTTimeout     = 10 * time.Second
	DefaultTTSTimeout    = 8 * time.Second
	DefaultMinTTSTextLen = 2
)

// Backends bundles the three stage adapters.
type Backends struct {
	STT stt.Transcriber
	MT  mt.Translator
	TTS tts.Synthesizer
}

// Timeouts bounds each backend call. Zero fields take the package defaults.
type Timeouts struct {
	STT time.Duration
	MT  time.Duration
	TTS time.Duration
}

func (t *Timeouts) applyDefaults() {
	if t.STT <= 0 {
		t.STT = DefaultSTTTimeout
	}
	if t.MT <= 0 {
		t.MT = DefaultMTTimeout
	}
	if t.TTS <= 0 {
		t.TTS = DefaultTTSTimeout
	}
}

// Config assembles a [Pipeline].
type Config struct {
	Backends Backends
	Cache    *cache.RoomCache
	Metrics  *observe.Metrics
	Timeouts Timeouts
	// MinTTSTextLen is the minimum translated-text length (in code
	// points) worth synthesizing. Zero takes [DefaultMinTTSTextLen].
	MinTTSTextLen int
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Pipeline is safe for concurrent use across sessions; all per-utterance
// state lives on the stack.
type Pipeline struct {
	backends      Backends
	cache         *cache.RoomCache
	metrics       *observe.Metrics
	timeouts      Timeouts
	minTTSTextLen int
	log           *slog.Logger
}

// New validates cfg and creates a [Pipeline].
func New(cfg Config) (*Pipeline, error) {
	if cfg.Backends.STT == nil || cfg.Backends.MT == nil || cfg.Backends.TTS == nil {
		return nil, errors.New("pipeline: all three backends must be set")
	}
	if cfg.Cache == nil {
		return nil, errors.New("pipeline: cache must be set")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	cfg.Timeouts.applyDefaults()
	if cfg.MinTTSTextLen <= 0 {
		cfg.MinTTSTextLen = DefaultMinTTSTextLen
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		backends:      cfg.Backends,
		cache:         cfg.Cache,
		metrics:       cfg.Metrics,
		timeouts:      cfg.Timeouts,
		minTTSTextLen: cfg.MinTTSTextLen,
		log:           cfg.Logger,
	}, nil
}

// Process runs one drained utterance through the pipeline, emitting zero or
// more server messages. Backend failures are absorbed: the worst outcome of
// a flaky backend is a missing translation or audio for this utterance. A
// non-nil return means emit failed, i.e. the stream itself is broken.
func (p *Pipeline) Process(ctx context.Context, sess *session.Session, pcm []byte, isFinal bool, emit func(*rpc.ServerMessage) error) error {
	start := time.Now()
	speaker := sess.Speaker()

	sess.Counters.ChunksProcessed++
	if isFinal {
		sess.Counters.SentencesCompleted++
	}

	text, confidence, ok := p.transcribe(ctx, sess, pcm)
	if !ok || text == "" {
		return nil
	}

	transcriptID := uuid.NewString()[:8]
	fillerOnly := lang.IsFiller(text)
	tooShort := utf8.RuneCountInString(text) <= 1

	var entries []rpc.TranslationEntry
	if !fillerOnly && !tooShort {
		entries = p.translateAll(ctx, sess, text)
	}

	transcript := &rpc.ServerMessage{
		SessionID: sess.ID,
		RoomID:    sess.RoomID,
		Transcript: &rpc.TranscriptResult{
			ID: transcriptID,
			Speaker: rpc.SpeakerInfo{
				ParticipantID:  speaker.ParticipantID,
				Nickname:       speaker.Nickname,
				ProfileImg:     speaker.ProfileImg,
				SourceLanguage: speaker.SourceLanguage,
			},
			OriginalText:     text,
			OriginalLanguage: speaker.SourceLanguage,
			Translations:     entries,
			IsPartial:        !isFinal,
			IsFinal:          isFinal,
			TimestampMs:      time.Now().UnixMilli(),
			Confidence:       confidence,
		},
	}
	if err := emit(transcript); err != nil {
		return fmt.Errorf("pipeline: emit transcript: %w", err)
	}

	for _, entry := range entries {
		msg := p.synthesize(ctx, sess, transcriptID, speaker.ParticipantID, entry)
		if msg == nil {
			continue
		}
		if err := emit(msg); err != nil {
			return fmt.Errorf("pipeline: emit audio: %w", err)
		}
	}

	p.metrics.RecordUtterance(ctx, speaker.SourceLanguage, time.Since(start))
	return nil
}

// transcribe runs the STT stage through the room cache. ok is false when the
// stage failed; an empty text with ok true means the audio held no speech.
func (p *Pipeline) transcribe(ctx context.Context, sess *session.Session, pcm []byte) (text string, confidence float64, ok bool) {
	speaker := sess.Speaker()
	samples := audio.BytesToFloat32(pcm)

	stageStart := time.Now()
	res, hit, err := p.cache.GetOrCreateSTT(sess.RoomID, speaker.ParticipantID, pcm, func() (cache.STTResult, error) {
		// The produce call is shared across sessions through single flight;
		// only the stage timeout may cancel it, not the winning caller's
		// stream.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeouts.STT)
		defer cancel()
		r, err := p.backends.STT.Transcribe(cctx, samples, speaker.SourceLanguage)
		if err != nil {
			return cache.STTResult{}, err
		}
		return cache.STTResult{Text: strings.TrimSpace(r.Text), Confidence: r.Confidence}, nil
	})
	elapsed := time.Since(stageStart)
	sess.Counters.STTLatency += elapsed
	p.metrics.RecordStage(ctx, "stt", elapsed, err)
	p.metrics.RecordCache(ctx, "stt", hit)

	if err != nil {
		p.log.Warn("transcription failed",
			"session", sess.ID, "room", sess.RoomID, "err", err)
		return "", 0, false
	}
	if res.Confidence == 0 {
		res.Confidence = stt.DefaultConfidence
	}
	return res.Text, res.Confidence, true
}

// translateAll runs the MT stage for every target language of the session.
// Failed or empty translations are dropped; the remaining entries keep the
// session's stable target ordering.
func (p *Pipeline) translateAll(ctx context.Context, sess *session.Session, text string) []rpc.TranslationEntry {
	speaker := sess.Speaker()
	var entries []rpc.TranslationEntry

	for _, target := range sess.TargetLanguages() {
		stageStart := time.Now()
		translated, hit, err := p.cache.GetOrCreateMT(sess.RoomID, text, speaker.SourceLanguage, target, func() (string, error) {
			cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeouts.MT)
			defer cancel()
			out, err := p.backends.MT.Translate(cctx, text, speaker.SourceLanguage, target)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(out), nil
		})
		elapsed := time.Since(stageStart)
		sess.Counters.MTLatency += elapsed
		p.metrics.RecordStage(ctx, "mt", elapsed, err)
		p.metrics.RecordCache(ctx, "mt", hit)

		if err != nil {
			p.log.Warn("translation failed",
				"session", sess.ID, "room", sess.RoomID, "target", target, "err", err)
			continue
		}
		if translated == "" {
			continue
		}
		entries = append(entries, rpc.TranslationEntry{
			TargetLanguage:       target,
			TranslatedText:       translated,
			TargetParticipantIDs: sess.ParticipantsByTarget(target),
		})
	}
	return entries
}

// synthesize runs the TTS stage for one translation. Returns nil when the
// text is not worth synthesizing or the stage failed.
func (p *Pipeline) synthesize(ctx context.Context, sess *session.Session, transcriptID, speakerID string, entry rpc.TranslationEntry) *rpc.ServerMessage {
	text := entry.TranslatedText
	if utf8.RuneCountInString(text) < p.minTTSTextLen || lang.IsFiller(text) {
		return nil
	}

	stageStart := time.Now()
	res, hit, err := p.cache.GetOrCreateTTS(sess.RoomID, text, entry.TargetLanguage, func() (cache.TTSResult, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeouts.TTS)
		defer cancel()
		r, err := p.backends.TTS.Synthesize(cctx, text, entry.TargetLanguage)
		if err != nil {
			return cache.TTSResult{}, err
		}
		return cache.TTSResult{Audio: r.Audio, DurationMs: r.DurationMs}, nil
	})
	elapsed := time.Since(stageStart)
	sess.Counters.TTSLatency += elapsed
	p.metrics.RecordStage(ctx, "tts", elapsed, err)
	p.metrics.RecordCache(ctx, "tts", hit)

	if err != nil {
		p.log.Warn("synthesis failed",
			"session", sess.ID, "room", sess.RoomID, "target", entry.TargetLanguage, "err", err)
		return nil
	}
	if len(res.Audio) == 0 {
		return nil
	}

	return &rpc.ServerMessage{
		SessionID: sess.ID,
		RoomID:    sess.RoomID,
		Audio: &rpc.AudioResult{
			TranscriptID:         transcriptID,
			TargetLanguage:       entry.TargetLanguage,
			TargetParticipantIDs: entry.TargetParticipantIDs,
			AudioData:            res.Audio,
			Format:               tts.Format,
			SampleRate:           tts.OutputSampleRate,
			DurationMs:           res.DurationMs,
			SpeakerParticipantID: speakerID,
		},
	}
}
