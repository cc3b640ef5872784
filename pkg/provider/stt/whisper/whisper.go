// Package whisper implements stt.Transcriber with the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded once at construction and shared by all sessions; each
// call runs inference on a fresh whisper context, which is the unit of
// thread confinement in the bindings.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber runs whisper.cpp inference in-process.
type Transcriber struct {
	model   whisperlib.Model
	threads int
}

// Option is a functional option for configuring a [Transcriber].
type Option func(*Transcriber)

// WithThreads caps the number of CPU threads one inference may use. Zero
// leaves the binding default.
func WithThreads(n int) Option {
	return func(t *Transcriber) { t.threads = n }
}

// New loads the whisper.cpp model from modelPath. The caller must call Close
// when the transcriber is no longer needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	t := &Transcriber{model: model}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close releases the model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Warm runs one tiny inference so the first real utterance does not pay the
// cold-start cost. The sample must clear the silence gate or no inference
// would happen, hence the quiet tone.
func (t *Transcriber) Warm(ctx context.Context) error {
	samples := make([]float32, 1600) // 100 ms at 16 kHz
	for i := range samples {
		samples[i] = 0.01 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	_, err := t.Transcribe(ctx, samples, "en")
	return err
}

// Transcribe implements [stt.Transcriber]. Inference is synchronous CGO, so
// it runs on its own goroutine and the call returns early when ctx expires;
// the abandoned inference finishes in the background and is discarded.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, language string) (stt.Result, error) {
	if stt.IsSilence(samples) {
		return stt.Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := t.infer(samples, language)
		done <- outcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return stt.Result{}, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return stt.Result{}, out.err
		}
		return stt.Result{Text: out.text, Confidence: stt.DefaultConfidence}, nil
	}
}

// infer runs whisper.cpp on a fresh context and concatenates the segments.
func (t *Transcriber) infer(samples []float32, language string) (string, error) {
	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if t.threads > 0 {
		wctx.SetThreads(uint(t.threads))
	}
	if err := wctx.SetLanguage(language); err != nil {
		slog.Warn("whisper: unsupported language hint", "language", language, "err", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
