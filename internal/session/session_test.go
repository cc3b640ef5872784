package session

import (
	"slices"
	"testing"

	"github.com/voxbridge/voxbridge/internal/lang"
	"github.com/voxbridge/voxbridge/internal/vad"
)

func newKoSession(participants ...Participant) *Session {
	speaker := Speaker{ParticipantID: "spk-1", Nickname: "Mina", SourceLanguage: "ko"}
	return New("sess-1", "room-1", speaker, participants, 16000, vad.NewProcessor(vad.Config{}))
}

func TestTargetLanguagesExcludesDisabledAndSource(t *testing.T) {
	t.Parallel()

	s := newKoSession(
		Participant{ParticipantID: "p1", TargetLanguage: "en", TranslationEnabled: true},
		Participant{ParticipantID: "p2", TargetLanguage: "ja", TranslationEnabled: true},
		Participant{ParticipantID: "p3", TargetLanguage: "fr", TranslationEnabled: false},
		Participant{ParticipantID: "p4", TargetLanguage: "ko", TranslationEnabled: true},
		Participant{ParticipantID: "p5", TargetLanguage: "en", TranslationEnabled: true},
	)

	got := s.TargetLanguages()
	want := []string{"en", "ja"}
	if !slices.Equal(got, want) {
		t.Errorf("TargetLanguages() = %v, want %v", got, want)
	}
}

func TestParticipantsByTarget(t *testing.T) {
	t.Parallel()

	s := newKoSession(
		Participant{ParticipantID: "p2", TargetLanguage: "en", TranslationEnabled: true},
		Participant{ParticipantID: "p1", TargetLanguage: "en", TranslationEnabled: true},
		Participant{ParticipantID: "p3", TargetLanguage: "en", TranslationEnabled: false},
	)

	got := s.ParticipantsByTarget("en")
	want := []string{"p1", "p2"}
	if !slices.Equal(got, want) {
		t.Errorf("ParticipantsByTarget(en) = %v, want %v", got, want)
	}
}

func TestStrategySameFamily(t *testing.T) {
	t.Parallel()

	// ko -> ja stays inside SOV, so short chunks are safe.
	s := newKoSession(Participant{ParticipantID: "p1", TargetLanguage: "ja", TranslationEnabled: true})
	strategy, primary, bufMs := s.Strategy()
	if strategy != lang.StrategyChunk {
		t.Errorf("strategy = %v, want %v", strategy, lang.StrategyChunk)
	}
	if primary != "ja" {
		t.Errorf("primary target = %q, want %q", primary, "ja")
	}
	if bufMs != 1500 {
		t.Errorf("max buffer = %d ms, want 1500", bufMs)
	}
	if got := s.MaxBufferBytes(); got != 48000 {
		t.Errorf("MaxBufferBytes() = %d, want 48000", got)
	}
}

func TestStrategyCrossFamilyWins(t *testing.T) {
	t.Parallel()

	// en is SVO, so the session must buffer whole sentences even though ja
	// alone would allow chunking.
	s := newKoSession(
		Participant{ParticipantID: "p1", TargetLanguage: "ja", TranslationEnabled: true},
		Participant{ParticipantID: "p2", TargetLanguage: "en", TranslationEnabled: true},
	)
	strategy, primary, bufMs := s.Strategy()
	if strategy != lang.StrategySentence {
		t.Errorf("strategy = %v, want %v", strategy, lang.StrategySentence)
	}
	if primary != "en" {
		t.Errorf("primary target = %q, want %q", primary, "en")
	}
	if bufMs != 2500 {
		t.Errorf("max buffer = %d ms, want 2500", bufMs)
	}
	if got := s.MaxBufferBytes(); got != 80000 {
		t.Errorf("MaxBufferBytes() = %d, want 80000", got)
	}
}

func TestStrategyNoTargets(t *testing.T) {
	t.Parallel()

	s := newKoSession()
	strategy, primary, _ := s.Strategy()
	if strategy != lang.StrategyChunk {
		t.Errorf("strategy = %v, want %v", strategy, lang.StrategyChunk)
	}
	if primary != "" {
		t.Errorf("primary target = %q, want empty", primary)
	}
}

func TestSetSpeakerPreservesBuffer(t *testing.T) {
	t.Parallel()

	s := newKoSession(Participant{ParticipantID: "p1", TargetLanguage: "en", TranslationEnabled: true})
	s.Buffer = append(s.Buffer, make([]byte, 16000)...)

	s.SetSpeaker(Speaker{ParticipantID: "spk-2", SourceLanguage: "en"})
	if len(s.Buffer) != 16000 {
		t.Errorf("buffer length = %d after speaker update, want 16000", len(s.Buffer))
	}
	// With an en speaker the en participant no longer needs translation.
	if got := s.TargetLanguages(); len(got) != 0 {
		t.Errorf("TargetLanguages() = %v, want empty", got)
	}
}

func TestRegistryLifecycle(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := newKoSession()
	b := New("sess-2", "room-1", Speaker{ParticipantID: "spk-2", SourceLanguage: "en"}, nil, 16000, vad.NewProcessor(vad.Config{}))

	if !r.Register(a) {
		t.Error("first session in room did not report a new room")
	}
	if r.Register(b) {
		t.Error("second session in room reported a new room")
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	if got, ok := r.Get("sess-1"); !ok || got != a {
		t.Fatal("Get(sess-1) did not return the registered session")
	}

	if empty := r.Unregister("sess-1"); empty {
		t.Error("room reported empty with one session remaining")
	}
	if empty := r.Unregister("sess-2"); !empty {
		t.Error("room not reported empty after last session left")
	}
	if r.Unregister("sess-2") {
		t.Error("double unregister reported an empty room")
	}
}

func TestUpdateParticipantIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	s := newKoSession(Participant{ParticipantID: "p1", TargetLanguage: "ja", TranslationEnabled: true})
	r.Register(s)

	for range 2 {
		if n := r.UpdateParticipant("room-1", "p1", "en", true); n != 1 {
			t.Fatalf("UpdateParticipant = %d sessions, want 1", n)
		}
		strategy, primary, _ := s.Strategy()
		if strategy != lang.StrategySentence || primary != "en" {
			t.Fatalf("strategy = %v/%q, want SENTENCE_BASED/en", strategy, primary)
		}
		if got := s.TargetLanguages(); !slices.Equal(got, []string{"en"}) {
			t.Fatalf("TargetLanguages() = %v, want [en]", got)
		}
	}

	if n := r.UpdateParticipant("room-1", "unknown", "en", true); n != 0 {
		t.Errorf("unknown participant updated %d sessions, want 0", n)
	}
	if n := r.UpdateParticipant("other-room", "p1", "en", true); n != 0 {
		t.Errorf("wrong room updated %d sessions, want 0", n)
	}
}
