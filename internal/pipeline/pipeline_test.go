package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/voxbridge/voxbridge/internal/cache"
	"github.com/voxbridge/voxbridge/internal/rpc"
	"github.com/voxbridge/voxbridge/internal/session"
	"github.com/voxbridge/voxbridge/internal/vad"
	"github.com/voxbridge/voxbridge/pkg/provider/mt"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

// ---- fakes -----------------------------------------------------------------

type fakeSTT struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeSTT) Transcribe(_ context.Context, _ []float32, _ string) (stt.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return stt.Result{}, f.err
	}
	return stt.Result{Text: f.text}, nil
}

type fakeMT struct {
	out   map[string]string // target language -> translation
	err   error
	calls atomic.Int32
}

func (f *fakeMT) Translate(_ context.Context, _ string, _, target string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.out[target], nil
}

type fakeTTS struct {
	audio []byte
	err   error
	calls atomic.Int32
}

func (f *fakeTTS) Synthesize(_ context.Context, _, _ string) (tts.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return tts.Result{}, f.err
	}
	return tts.Result{Audio: f.audio, DurationMs: tts.EstimateDurationMs(len(f.audio))}, nil
}

var (
	_ stt.Transcriber = (*fakeSTT)(nil)
	_ mt.Translator   = (*fakeMT)(nil)
	_ tts.Synthesizer = (*fakeTTS)(nil)
)

// ctxSTT, ctxMT, and ctxTTS fail when their call context is already done.

type ctxSTT struct {
	text  string
	calls atomic.Int32
}

func (f *ctxSTT) Transcribe(ctx context.Context, _ []float32, _ string) (stt.Result, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}
	return stt.Result{Text: f.text}, nil
}

type ctxMT struct{ out string }

func (f *ctxMT) Translate(ctx context.Context, _ string, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.out, nil
}

type ctxTTS struct{ audio []byte }

func (f *ctxTTS) Synthesize(ctx context.Context, _, _ string) (tts.Result, error) {
	if err := ctx.Err(); err != nil {
		return tts.Result{}, err
	}
	return tts.Result{Audio: f.audio, DurationMs: tts.EstimateDurationMs(len(f.audio))}, nil
}

// ---- helpers ---------------------------------------------------------------

func newTestPipeline(t *testing.T, b Backends) *Pipeline {
	t.Helper()
	p, err := New(Config{Backends: b, Cache: cache.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func koEnSession(id string) *session.Session {
	speaker := session.Speaker{ParticipantID: "spk-1", Nickname: "Mina", SourceLanguage: "ko"}
	participants := []session.Participant{
		{ParticipantID: "p1", TargetLanguage: "en", TranslationEnabled: true},
	}
	return session.New(id, "room-1", speaker, participants, 16000, vad.NewProcessor(vad.Config{}))
}

func collector() (func(*rpc.ServerMessage) error, *[]*rpc.ServerMessage) {
	var msgs []*rpc.ServerMessage
	return func(m *rpc.ServerMessage) error {
		msgs = append(msgs, m)
		return nil
	}, &msgs
}

func loudPCM(n int) []byte {
	pcm := make([]byte, n)
	for i := 0; i < n; i += 2 {
		pcm[i] = 0x00
		pcm[i+1] = 0x20 // 8192 amplitude
	}
	return pcm
}

// ---- tests -----------------------------------------------------------------

func TestFullPathTranscriptBeforeAudio(t *testing.T) {
	t.Parallel()

	b := Backends{
		STT: &fakeSTT{text: "안녕하세요"},
		MT:  &fakeMT{out: map[string]string{"en": "Hello"}},
		TTS: &fakeTTS{audio: []byte("mp3-bytes")},
	}
	p := newTestPipeline(t, b)
	sess := koEnSession("sess-1")
	emit, msgs := collector()

	if err := p.Process(context.Background(), sess, loudPCM(48000), true, emit); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(*msgs) != 2 {
		t.Fatalf("emitted %d messages, want 2", len(*msgs))
	}

	transcript := (*msgs)[0].Transcript
	if transcript == nil {
		t.Fatal("first message is not a transcript")
	}
	if transcript.OriginalText != "안녕하세요" || transcript.OriginalLanguage != "ko" {
		t.Errorf("transcript = %q (%s)", transcript.OriginalText, transcript.OriginalLanguage)
	}
	if !transcript.IsFinal || transcript.IsPartial {
		t.Errorf("flags: isFinal=%v isPartial=%v", transcript.IsFinal, transcript.IsPartial)
	}
	if transcript.Confidence != stt.DefaultConfidence {
		t.Errorf("confidence = %v, want default %v", transcript.Confidence, stt.DefaultConfidence)
	}
	if len(transcript.ID) != 8 {
		t.Errorf("transcript id %q, want 8 characters", transcript.ID)
	}
	if len(transcript.Translations) != 1 || transcript.Translations[0].TranslatedText != "Hello" {
		t.Fatalf("translations = %+v", transcript.Translations)
	}
	if got := transcript.Translations[0].TargetParticipantIDs; len(got) != 1 || got[0] != "p1" {
		t.Errorf("target participants = %v, want [p1]", got)
	}

	audio := (*msgs)[1].Audio
	if audio == nil {
		t.Fatal("second message is not audio")
	}
	if audio.TranscriptID != transcript.ID {
		t.Errorf("audio transcript id %q != %q", audio.TranscriptID, transcript.ID)
	}
	if audio.Format != "mp3" || audio.SampleRate != 24000 {
		t.Errorf("audio format %q rate %d", audio.Format, audio.SampleRate)
	}
	if audio.SpeakerParticipantID != "spk-1" || audio.TargetLanguage != "en" {
		t.Errorf("audio speaker %q target %q", audio.SpeakerParticipantID, audio.TargetLanguage)
	}

	if sess.Counters.ChunksProcessed != 1 || sess.Counters.SentencesCompleted != 1 {
		t.Errorf("counters = %+v", sess.Counters)
	}
}

func TestEmptyTranscriptEmitsNothing(t *testing.T) {
	t.Parallel()

	b := Backends{STT: &fakeSTT{text: ""}, MT: &fakeMT{}, TTS: &fakeTTS{}}
	p := newTestPipeline(t, b)
	emit, msgs := collector()

	if err := p.Process(context.Background(), koEnSession("sess-1"), loudPCM(48000), true, emit); err != nil {
		t.Fatal(err)
	}
	if len(*msgs) != 0 {
		t.Errorf("emitted %d messages for empty transcript, want 0", len(*msgs))
	}
}

func TestSTTFailureEmitsNothing(t *testing.T) {
	t.Parallel()

	b := Backends{STT: &fakeSTT{err: errors.New("down")}, MT: &fakeMT{}, TTS: &fakeTTS{}}
	p := newTestPipeline(t, b)
	emit, msgs := collector()

	if err := p.Process(context.Background(), koEnSession("sess-1"), loudPCM(48000), true, emit); err != nil {
		t.Fatal(err)
	}
	if len(*msgs) != 0 {
		t.Errorf("emitted %d messages after STT failure, want 0", len(*msgs))
	}
}

func TestFillerGate(t *testing.T) {
	t.Parallel()

	mtFake := &fakeMT{out: map[string]string{"en": "unused"}}
	ttsFake := &fakeTTS{audio: []byte("x")}
	b := Backends{STT: &fakeSTT{text: "음..."}, MT: mtFake, TTS: ttsFake}
	p := newTestPipeline(t, b)
	emit, msgs := collector()

	if err := p.Process(context.Background(), koEnSession("sess-1"), loudPCM(48000), true, emit); err != nil {
		t.Fatal(err)
	}
	if len(*msgs) != 1 {
		t.Fatalf("emitted %d messages, want transcript only", len(*msgs))
	}
	tr := (*msgs)[0].Transcript
	if tr == nil || tr.OriginalText != "음..." || len(tr.Translations) != 0 {
		t.Errorf("transcript = %+v", tr)
	}
	if mtFake.calls.Load() != 0 || ttsFake.calls.Load() != 0 {
		t.Error("filler must not reach MT or TTS")
	}
}

func TestSingleCodePointGate(t *testing.T) {
	t.Parallel()

	mtFake := &fakeMT{out: map[string]string{"en": "unused"}}
	b := Backends{STT: &fakeSTT{text: "왜"}, MT: mtFake, TTS: &fakeTTS{}}
	p := newTestPipeline(t, b)
	emit, msgs := collector()

	if err := p.Process(context.Background(), koEnSession("sess-1"), loudPCM(48000), true, emit); err != nil {
		t.Fatal(err)
	}
	if len(*msgs) != 1 || (*msgs)[0].Transcript == nil {
		t.Fatalf("want a single transcript, got %d messages", len(*msgs))
	}
	if len((*msgs)[0].Transcript.Translations) != 0 {
		t.Error("single code point must not be translated")
	}
	if mtFake.calls.Load() != 0 {
		t.Error("MT consulted for single code point")
	}
}

func TestMTFailureStillEmitsTranscript(t *testing.T) {
	t.Parallel()

	b := Backends{
		STT: &fakeSTT{text: "안녕하세요"},
		MT:  &fakeMT{err: errors.New("rate limited")},
		TTS: &fakeTTS{audio: []byte("x")},
	}
	p := newTestPipeline(t, b)
	emit, msgs := collector()

	if err := p.Process(context.Background(), koEnSession("sess-1"), loudPCM(48000), true, emit); err != nil {
		t.Fatal(err)
	}
	if len(*msgs) != 1 {
		t.Fatalf("emitted %d messages, want transcript only", len(*msgs))
	}
	if tr := (*msgs)[0].Transcript; tr == nil || len(tr.Translations) != 0 {
		t.Errorf("transcript = %+v, want no translations", (*msgs)[0])
	}
}

func TestTTSFailureStillEmitsTranscriptWithTranslation(t *testing.T) {
	t.Parallel()

	b := Backends{
		STT: &fakeSTT{text: "안녕하세요"},
		MT:  &fakeMT{out: map[string]string{"en": "Hello"}},
		TTS: &fakeTTS{err: errors.New("quota")},
	}
	p := newTestPipeline(t, b)
	emit, msgs := collector()

	if err := p.Process(context.Background(), koEnSession("sess-1"), loudPCM(48000), true, emit); err != nil {
		t.Fatal(err)
	}
	if len(*msgs) != 1 {
		t.Fatalf("emitted %d messages, want 1", len(*msgs))
	}
	if tr := (*msgs)[0].Transcript; tr == nil || len(tr.Translations) != 1 {
		t.Errorf("transcript should still carry the translation")
	}
}

func TestShortTranslationSkipsTTS(t *testing.T) {
	t.Parallel()

	ttsFake := &fakeTTS{audio: []byte("x")}
	b := Backends{
		STT: &fakeSTT{text: "안녕하세요"},
		MT:  &fakeMT{out: map[string]string{"en": "a"}}, // one code point
		TTS: ttsFake,
	}
	p := newTestPipeline(t, b)
	emit, msgs := collector()

	if err := p.Process(context.Background(), koEnSession("sess-1"), loudPCM(48000), true, emit); err != nil {
		t.Fatal(err)
	}
	if len(*msgs) != 1 {
		t.Fatalf("emitted %d messages, want transcript only", len(*msgs))
	}
	if ttsFake.calls.Load() != 0 {
		t.Error("TTS consulted for sub-minimum text")
	}
}

func TestCacheSharedAcrossSessions(t *testing.T) {
	t.Parallel()

	sttFake := &fakeSTT{text: "안녕하세요"}
	mtFake := &fakeMT{out: map[string]string{"en": "Hello"}}
	ttsFake := &fakeTTS{audio: []byte("mp3")}
	p := newTestPipeline(t, Backends{STT: sttFake, MT: mtFake, TTS: ttsFake})

	pcm := loudPCM(48000)
	for _, id := range []string{"sess-1", "sess-2"} {
		emit, msgs := collector()
		if err := p.Process(context.Background(), koEnSession(id), pcm, true, emit); err != nil {
			t.Fatal(err)
		}
		if len(*msgs) != 2 {
			t.Fatalf("%s emitted %d messages, want 2", id, len(*msgs))
		}
		if got := (*msgs)[0].Transcript.OriginalText; got != "안녕하세요" {
			t.Errorf("%s transcript = %q", id, got)
		}
	}

	// Same room, same speaker id, identical bytes: every stage runs once.
	if sttFake.calls.Load() != 1 {
		t.Errorf("STT called %d times, want 1", sttFake.calls.Load())
	}
	if mtFake.calls.Load() != 1 {
		t.Errorf("MT called %d times, want 1", mtFake.calls.Load())
	}
	if ttsFake.calls.Load() != 1 {
		t.Errorf("TTS called %d times, want 1", ttsFake.calls.Load())
	}
}

func TestEmitErrorPropagates(t *testing.T) {
	t.Parallel()

	b := Backends{
		STT: &fakeSTT{text: "안녕하세요"},
		MT:  &fakeMT{out: map[string]string{"en": "Hello"}},
		TTS: &fakeTTS{audio: []byte("x")},
	}
	p := newTestPipeline(t, b)

	broken := errors.New("stream closed")
	err := p.Process(context.Background(), koEnSession("sess-1"), loudPCM(48000), true, func(*rpc.ServerMessage) error {
		return broken
	})
	if !errors.Is(err, broken) {
		t.Errorf("err = %v, want wrapped stream error", err)
	}
}

func TestBackendCallsSurviveCallerCancellation(t *testing.T) {
	t.Parallel()

	sttFake := &ctxSTT{text: "안녕하세요"}
	b := Backends{
		STT: sttFake,
		MT:  &ctxMT{out: "Hello"},
		TTS: &ctxTTS{audio: []byte("mp3-bytes")},
	}
	p := newTestPipeline(t, b)

	// The stage results are shared across sessions, so a disconnecting
	// caller must not cancel the backend calls it happens to be driving.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	emit, msgs := collector()
	if err := p.Process(cancelled, koEnSession("sess-a"), loudPCM(48000), true, emit); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(*msgs) != 2 {
		t.Fatalf("emitted %d messages under a cancelled caller, want transcript + audio", len(*msgs))
	}
	if tr := (*msgs)[0].Transcript; tr == nil || tr.OriginalText != "안녕하세요" {
		t.Errorf("first message = %+v, want the transcript", (*msgs)[0])
	}

	// A second session racing on the same utterance gets the cached result.
	emit2, msgs2 := collector()
	if err := p.Process(context.Background(), koEnSession("sess-b"), loudPCM(48000), true, emit2); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(*msgs2) != 2 {
		t.Errorf("second session emitted %d messages, want 2", len(*msgs2))
	}
	if sttFake.calls.Load() != 1 {
		t.Errorf("STT called %d times, want the cached result reused", sttFake.calls.Load())
	}
}
