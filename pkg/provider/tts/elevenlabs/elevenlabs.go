// Package elevenlabs implements tts.Synthesizer against the ElevenLabs
// non-streaming synthesis REST API, requesting MP3 output directly.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

var _ tts.Synthesizer = (*Synthesizer)(nil)

const (
	endpointFmt  = "https://api.elevenlabs.io/v1/text-to-speech/%s?output_format=%s"
	defaultModel = "eleven_multilingual_v2"
	// outputFormat matches the pipeline's 24 kHz MP3 egress contract.
	outputFormat = "mp3_24000_32"
)

// voices maps ISO 639-1 codes to an ElevenLabs premade multilingual voice.
// The model is multilingual, so any voice can speak any language; distinct
// voices per language keep speakers recognizable across a meeting.
var voices = map[string]string{
	"ko": "21m00Tcm4TlvDq8ikWAM", // Rachel
	"en": "21m00Tcm4TlvDq8ikWAM", // Rachel
	"ja": "AZnzlk1XvdvUeBnXmlld", // Domi
	"zh": "AZnzlk1XvdvUeBnXmlld", // Domi
	"es": "EXAVITQu4vr4xnSDxMaL", // Bella
	"fr": "EXAVITQu4vr4xnSDxMaL", // Bella
	"de": "ErXwobaYiN019PkySvjV", // Antoni
	"pt": "EXAVITQu4vr4xnSDxMaL", // Bella
	"ru": "ErXwobaYiN019PkySvjV", // Antoni
	"ar": "ErXwobaYiN019PkySvjV", // Antoni
	"hi": "AZnzlk1XvdvUeBnXmlld", // Domi
	"tr": "AZnzlk1XvdvUeBnXmlld", // Domi
}

const defaultVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel

// Option is a functional option for configuring the [Synthesizer].
type Option func(*Synthesizer)

// WithModel sets the ElevenLabs model ID (e.g. "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(s *Synthesizer) { s.model = model }
}

// WithHTTPClient replaces the HTTP client; tests point it at a local server.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) { s.httpClient = c }
}

// WithBaseURL overrides the API endpoint format. Must contain the voice id
// and output format verbs in that order.
func WithBaseURL(format string) Option {
	return func(s *Synthesizer) { s.endpointFmt = format }
}

// Synthesizer calls the ElevenLabs text-to-speech endpoint.
type Synthesizer struct {
	apiKey      string
	model       string
	endpointFmt string
	httpClient  *http.Client
}

// New creates a [Synthesizer]. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	s := &Synthesizer{
		apiKey:      apiKey,
		model:       defaultModel,
		endpointFmt: endpointFmt,
		httpClient:  &http.Client{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// request is the JSON body of a synthesis call.
type request struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize implements [tts.Synthesizer].
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (tts.Result, error) {
	if text == "" {
		return tts.Result{}, errors.New("elevenlabs: text must not be empty")
	}
	voiceID, ok := voices[language]
	if !ok {
		voiceID = defaultVoiceID
	}

	body, err := json.Marshal(request{Text: text, ModelID: s.model})
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	url := fmt.Sprintf(s.endpointFmt, voiceID, outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Result{}, fmt.Errorf("elevenlabs: unexpected status %d: %s", resp.StatusCode, msg)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return tts.Result{
		Audio:      audio,
		DurationMs: tts.EstimateDurationMs(len(audio)),
	}, nil
}
