// Package polly implements tts.Synthesizer with Amazon Polly. Credentials
// and region come from the standard AWS environment/config chain.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

var _ tts.Synthesizer = (*Synthesizer)(nil)

// voice is one entry of the per-language voice table.
type voice struct {
	id     types.VoiceId
	engine types.Engine
}

// voices maps ISO 639-1 codes to a Polly voice, preferring the neural engine
// where Polly offers one for the language and falling back to standard
// elsewhere. One voice per language keeps cached TTS results stable.
var voices = map[string]voice{
	"ko": {types.VoiceIdSeoyeon, types.EngineNeural},
	"en": {types.VoiceIdJoanna, types.EngineNeural},
	"zh": {types.VoiceIdZhiyu, types.EngineNeural},
	"ja": {types.VoiceIdTakumi, types.EngineNeural},
	"es": {types.VoiceIdLucia, types.EngineNeural},
	"fr": {types.VoiceIdLea, types.EngineNeural},
	"de": {types.VoiceIdVicki, types.EngineNeural},
	"pt": {types.VoiceIdCamila, types.EngineNeural},
	"ru": {types.VoiceIdTatyana, types.EngineStandard},
	"ar": {types.VoiceIdZeina, types.EngineStandard},
	"hi": {types.VoiceIdAditi, types.EngineStandard},
	"tr": {types.VoiceIdFiliz, types.EngineStandard},
}

// defaultVoice serves languages missing from the table.
var defaultVoice = voice{types.VoiceIdJoanna, types.EngineNeural}

// Synthesizer calls the Polly SynthesizeSpeech API.
type Synthesizer struct {
	client *polly.Client
}

// New creates a [Synthesizer]. region overrides the region of the default
// AWS config chain when non-empty.
func New(ctx context.Context, region string) (*Synthesizer, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("polly: load aws config: %w", err)
	}
	return &Synthesizer{client: polly.NewFromConfig(cfg)}, nil
}

// Synthesize implements [tts.Synthesizer].
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (tts.Result, error) {
	if text == "" {
		return tts.Result{}, errors.New("polly: text must not be empty")
	}
	v, ok := voices[language]
	if !ok {
		v = defaultVoice
	}

	sampleRate := fmt.Sprintf("%d", tts.OutputSampleRate)
	out, err := s.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         &text,
		VoiceId:      v.id,
		Engine:       v.engine,
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   &sampleRate,
	})
	if err != nil {
		return tts.Result{}, fmt.Errorf("polly: synthesize: %w", err)
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return tts.Result{}, fmt.Errorf("polly: read audio stream: %w", err)
	}
	return tts.Result{
		Audio:      audio,
		DurationMs: tts.EstimateDurationMs(len(audio)),
	}, nil
}

// VoiceFor reports the Polly voice id used for a language; tests and
// diagnostics use it to confirm the table.
func VoiceFor(language string) string {
	v, ok := voices[language]
	if !ok {
		v = defaultVoice
	}
	return string(v.id)
}
