// Package session holds the per-stream interpreter state: the speaker, the
// participant roster, the ingress audio buffer, the VAD instance, and the
// buffering strategy derived from the language topology. A process-wide
// [Registry] tracks live sessions so the unary settings endpoint can reach
// them.
package session

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/voxbridge/voxbridge/internal/lang"
	"github.com/voxbridge/voxbridge/internal/vad"
	"github.com/voxbridge/voxbridge/pkg/audio"
)

// Speaker identifies the person whose audio a session carries.
type Speaker struct {
	ParticipantID  string
	Nickname       string
	ProfileImg     string
	SourceLanguage string
}

// Participant is a listener in the room with a translation preference.
type Participant struct {
	ParticipantID      string
	Nickname           string
	ProfileImg         string
	TargetLanguage     string
	TranslationEnabled bool
}

// Counters accumulate per-session observability totals. They are written by
// the owning stream handler only.
type Counters struct {
	ChunksProcessed    int
	SentencesCompleted int
	SilenceSkipped     int

	STTLatency time.Duration
	MTLatency  time.Duration
	TTSLatency time.Duration
}

// Session is the state of one speaker stream. The audio buffer, VAD state,
// and counters are owned exclusively by the stream handler. The speaker,
// roster, and derived strategy can additionally be mutated through the
// [Registry] (settings updates arrive on a different goroutine), so those
// fields live behind an internal lock.
type Session struct {
	ID     string
	RoomID string

	// Buffer accumulates speech-only PCM between drains. Handler-owned.
	Buffer []byte
	// VAD is the per-stream voice activity state machine. Handler-owned.
	VAD *vad.Processor

	Counters Counters

	SampleRate int

	mu            sync.RWMutex
	speaker       Speaker
	participants  map[string]Participant
	strategy      lang.Strategy
	primaryTarget string
	maxBufferMs   int
}

// New creates a session for the given speaker and roster and computes its
// initial buffering strategy.
func New(id, roomID string, speaker Speaker, participants []Participant, sampleRate int, v *vad.Processor) *Session {
	s := &Session{
		ID:           id,
		RoomID:       roomID,
		VAD:          v,
		SampleRate:   sampleRate,
		speaker:      speaker,
		participants: make(map[string]Participant, len(participants)),
	}
	for _, p := range participants {
		s.participants[p.ParticipantID] = p
	}
	s.recomputeStrategy()
	return s
}

// Speaker returns the current speaker identity.
func (s *Session) Speaker() Speaker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speaker
}

// SetSpeaker replaces the speaker identity and recomputes the buffering
// strategy. The audio buffer and VAD state are untouched, so a mid-session
// speaker update never loses buffered speech.
func (s *Session) SetSpeaker(sp Speaker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaker = sp
	s.recomputeStrategy()
}

// Participants returns a roster snapshot sorted by participant id.
func (s *Session) Participants() []Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Participant) int {
		return strings.Compare(a.ParticipantID, b.ParticipantID)
	})
	return out
}

// applySettings updates one participant's target language and enabled flag
// atomically and recomputes the strategy. Returns false if the participant is
// not in this session's roster.
func (s *Session) applySettings(participantID, targetLang string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return false
	}
	p.TargetLanguage = targetLang
	p.TranslationEnabled = enabled
	s.participants[participantID] = p
	s.recomputeStrategy()
	return true
}

// TargetLanguages returns the sorted set of target languages across enabled
// participants whose target differs from the speaker's source. Sorting keeps
// per-utterance emission order stable.
func (s *Session) TargetLanguages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.targetLanguagesLocked()
}

func (s *Session) targetLanguagesLocked() []string {
	seen := make(map[string]struct{})
	for _, p := range s.participants {
		if !p.TranslationEnabled || p.TargetLanguage == "" || p.TargetLanguage == s.speaker.SourceLanguage {
			continue
		}
		seen[p.TargetLanguage] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// ParticipantsByTarget returns the sorted ids of enabled participants
// preferring the given target language.
func (s *Session) ParticipantsByTarget(target string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, p := range s.participants {
		if p.TranslationEnabled && p.TargetLanguage == target {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Strategy returns the session's current buffering strategy, the primary
// target language it was derived from (empty when there are no targets), and
// the effective max buffer duration in milliseconds.
func (s *Session) Strategy() (lang.Strategy, string, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strategy, s.primaryTarget, s.maxBufferMs
}

// MaxBufferBytes returns the drain threshold for the current strategy in
// bytes of ingress PCM.
func (s *Session) MaxBufferBytes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return audio.BytesForMs(s.maxBufferMs, s.SampleRate)
}

// BufferMs returns the duration of the buffered speech in milliseconds.
func (s *Session) BufferMs() int {
	return audio.DurationMs(len(s.Buffer), s.SampleRate)
}

// recomputeStrategy derives the primary strategy from the target set:
// sentence-based if any target pair requires it, chunk-based otherwise. The
// primary target is the first target demanding the chosen strategy. Called
// with s.mu held.
func (s *Session) recomputeStrategy() {
	targets := s.targetLanguagesLocked()
	src := s.speaker.SourceLanguage

	s.strategy = lang.StrategyChunk
	s.primaryTarget = ""
	if len(targets) > 0 {
		s.primaryTarget = targets[0]
	}
	for _, t := range targets {
		if lang.StrategyFor(src, t) == lang.StrategySentence {
			s.strategy = lang.StrategySentence
			s.primaryTarget = t
			break
		}
	}
	s.maxBufferMs = lang.ChunkDurationMs
	if s.strategy == lang.StrategySentence {
		s.maxBufferMs = lang.SentenceMaxMs
	}
}
