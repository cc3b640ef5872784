// Package openai implements stt.Transcriber against the OpenAI audio
// transcription API (hosted Whisper).
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxbridge/voxbridge/pkg/audio"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

var _ stt.Transcriber = (*Transcriber)(nil)

const defaultModel = oai.AudioModelWhisper1

// Transcriber sends utterances to the OpenAI transcription endpoint.
type Transcriber struct {
	client     oai.Client
	model      oai.AudioModel
	sampleRate int
}

// Option is a functional option for configuring a [Transcriber].
type Option func(*Transcriber)

// WithModel overrides the transcription model (default whisper-1).
func WithModel(model string) Option {
	return func(t *Transcriber) { t.model = oai.AudioModel(model) }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(t *Transcriber) {
		t.client = oai.NewClient(append(t.client.Options, option.WithBaseURL(url))...)
	}
}

// New creates a [Transcriber]. apiKey must be non-empty. sampleRate is the
// rate of the PCM handed to Transcribe; the API receives it as a WAV upload.
func New(apiKey string, sampleRate int, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("openai stt: invalid sample rate %d", sampleRate)
	}
	t := &Transcriber{
		client:     oai.NewClient(option.WithAPIKey(apiKey)),
		model:      defaultModel,
		sampleRate: sampleRate,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Transcribe implements [stt.Transcriber]. The normalized samples are
// requantized to 16-bit PCM and wrapped in a WAV container for upload.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, language string) (stt.Result, error) {
	if stt.IsSilence(samples) {
		return stt.Result{}, nil
	}

	wav := audio.WrapWAV(audio.Float32ToBytes(samples), t.sampleRate)
	params := oai.AudioTranscriptionNewParams{
		Model: t.model,
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
	}
	if language != "" {
		params.Language = oai.String(language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Result{}, fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return stt.Result{
		Text:       strings.TrimSpace(resp.Text),
		Confidence: stt.DefaultConfidence,
	}, nil
}
