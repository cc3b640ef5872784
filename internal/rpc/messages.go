// Package rpc defines the wire messages of the voxbridge.Interpreter service
// and registers it by hand against a JSON codec, so the bidirectional stream
// works without generated stubs.
//
// Both directions are discriminated unions: a message carries exactly one
// payload variant. [ClientMessage.Variant] and [ServerMessage.Variant]
// enforce that before any handler runs.
package rpc

import (
	"errors"
	"fmt"
)

// SpeakerInfo identifies the person speaking on a stream.
type SpeakerInfo struct {
	ParticipantID  string `json:"participant_id"`
	Nickname       string `json:"nickname,omitempty"`
	ProfileImg     string `json:"profile_img,omitempty"`
	SourceLanguage string `json:"source_language"`
}

// ParticipantInfo describes a listener and their translation preference.
type ParticipantInfo struct {
	ParticipantID      string `json:"participant_id"`
	Nickname           string `json:"nickname,omitempty"`
	ProfileImg         string `json:"profile_img,omitempty"`
	TargetLanguage     string `json:"target_language"`
	TranslationEnabled bool   `json:"translation_enabled"`
}

// SessionInit opens (or, re-sent, updates the speaker of) a session.
type SessionInit struct {
	Speaker      SpeakerInfo       `json:"speaker"`
	Participants []ParticipantInfo `json:"participants,omitempty"`
}

// SessionEnd closes a session gracefully.
type SessionEnd struct {
	Reason string `json:"reason,omitempty"`
}

// ClientMessage is one inbound message. Exactly one payload field must be
// set.
type ClientMessage struct {
	SessionID     string `json:"session_id"`
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id,omitempty"`

	SessionInit *SessionInit `json:"session_init,omitempty"`
	AudioChunk  []byte       `json:"audio_chunk,omitempty"`
	SessionEnd  *SessionEnd  `json:"session_end,omitempty"`
}

// ClientPayload names a [ClientMessage] variant.
type ClientPayload int

const (
	PayloadSessionInit ClientPayload = iota + 1
	PayloadAudioChunk
	PayloadSessionEnd
)

// ErrBadVariant marks messages that set zero or multiple payload variants.
var ErrBadVariant = errors.New("rpc: message must carry exactly one payload variant")

// Variant returns which payload the message carries, or [ErrBadVariant].
func (m *ClientMessage) Variant() (ClientPayload, error) {
	var (
		p ClientPayload
		n int
	)
	if m.SessionInit != nil {
		p, n = PayloadSessionInit, n+1
	}
	if len(m.AudioChunk) > 0 {
		p, n = PayloadAudioChunk, n+1
	}
	if m.SessionEnd != nil {
		p, n = PayloadSessionEnd, n+1
	}
	if n != 1 {
		return 0, fmt.Errorf("%w: got %d", ErrBadVariant, n)
	}
	return p, nil
}

// BufferingStrategy reports the segmentation choice for a session.
type BufferingStrategy struct {
	SourceLanguage        string `json:"source_language"`
	PrimaryTargetLanguage string `json:"primary_target_language,omitempty"`
	Strategy              string `json:"strategy"`
	BufferSizeMs          int    `json:"buffer_size_ms"`
}

// Status values carried by [SessionStatus].
const (
	StatusReady = "READY"
	StatusError = "ERROR"
)

// SessionStatus acknowledges session control messages.
type SessionStatus struct {
	Status    string             `json:"status"`
	Message   string             `json:"message,omitempty"`
	Buffering *BufferingStrategy `json:"buffering_strategy,omitempty"`
}

// TranslationEntry is one rendered translation inside a transcript.
type TranslationEntry struct {
	TargetLanguage       string   `json:"target_language"`
	TranslatedText       string   `json:"translated_text"`
	TargetParticipantIDs []string `json:"target_participant_ids,omitempty"`
}

// TranscriptResult carries the recognized text of one utterance together
// with its translations.
type TranscriptResult struct {
	ID               string             `json:"id"`
	Speaker          SpeakerInfo        `json:"speaker"`
	OriginalText     string             `json:"original_text"`
	OriginalLanguage string             `json:"original_language"`
	Translations     []TranslationEntry `json:"translations,omitempty"`
	IsPartial        bool               `json:"is_partial"`
	IsFinal          bool               `json:"is_final"`
	TimestampMs      int64              `json:"timestamp_ms"`
	Confidence       float64            `json:"confidence"`
}

// AudioResult carries synthesized speech for one translation of one
// utterance. TranscriptID matches the [TranscriptResult] emitted earlier.
type AudioResult struct {
	TranscriptID         string   `json:"transcript_id"`
	TargetLanguage       string   `json:"target_language"`
	TargetParticipantIDs []string `json:"target_participant_ids,omitempty"`
	AudioData            []byte   `json:"audio_data"`
	Format               string   `json:"format"`
	SampleRate           int      `json:"sample_rate"`
	DurationMs           int      `json:"duration_ms"`
	SpeakerParticipantID string   `json:"speaker_participant_id"`
}

// Error codes carried by [ErrorResponse].
const (
	CodeStreamError = "STREAM_ERROR"
)

// ErrorResponse reports a stream-level failure.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ServerMessage is one outbound message. Exactly one payload field is set.
type ServerMessage struct {
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id"`

	Status     *SessionStatus    `json:"status,omitempty"`
	Transcript *TranscriptResult `json:"transcript,omitempty"`
	Audio      *AudioResult      `json:"audio,omitempty"`
	Error      *ErrorResponse    `json:"error,omitempty"`
}

// ServerPayload names a [ServerMessage] variant.
type ServerPayload int

const (
	PayloadStatus ServerPayload = iota + 1
	PayloadTranscript
	PayloadAudio
	PayloadError
)

// Variant returns which payload the message carries, or [ErrBadVariant].
func (m *ServerMessage) Variant() (ServerPayload, error) {
	var (
		p ServerPayload
		n int
	)
	if m.Status != nil {
		p, n = PayloadStatus, n+1
	}
	if m.Transcript != nil {
		p, n = PayloadTranscript, n+1
	}
	if m.Audio != nil {
		p, n = PayloadAudio, n+1
	}
	if m.Error != nil {
		p, n = PayloadError, n+1
	}
	if n != 1 {
		return 0, fmt.Errorf("%w: got %d", ErrBadVariant, n)
	}
	return p, nil
}

// ParticipantSettingsRequest atomically updates one participant's target
// language and enabled flag across all sessions of a room.
type ParticipantSettingsRequest struct {
	RoomID             string `json:"room_id"`
	ParticipantID      string `json:"participant_id"`
	TargetLanguage     string `json:"target_language"`
	TranslationEnabled bool   `json:"translation_enabled"`
}

// ParticipantSettingsResponse acknowledges a settings update.
type ParticipantSettingsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
