package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per pipeline stage.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper-native", "openai"},
	"mt":  {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts": {"polly", "elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions %d must not be negative", cfg.Server.MaxSessions))
	}
	if cfg.Server.ShutdownGraceMs < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_grace_ms %d must not be negative", cfg.Server.ShutdownGraceMs))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.SpeechRatio < 0 || cfg.Audio.SpeechRatio > 1 {
		errs = append(errs, fmt.Errorf("audio.speech_ratio %.2f is out of range [0, 1]", cfg.Audio.SpeechRatio))
	}
	if cfg.Audio.VADAggressiveness < 0 || cfg.Audio.VADAggressiveness > 3 {
		errs = append(errs, fmt.Errorf("audio.vad_aggressiveness %d is out of range [0, 3]", cfg.Audio.VADAggressiveness))
	}
	if cfg.Audio.FinalDrainMinMs > cfg.Audio.MinDrainMs && cfg.Audio.MinDrainMs > 0 {
		slog.Warn("audio.final_drain_min_ms exceeds audio.min_drain_ms; session-end drains will be rarer than regular drains",
			"final_drain_min_ms", cfg.Audio.FinalDrainMinMs,
			"min_drain_ms", cfg.Audio.MinDrainMs,
		)
	}

	// Providers: all three stages are mandatory.
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.MT.Name == "" {
		errs = append(errs, errors.New("providers.mt.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("mt", cfg.Providers.MT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for _, fb := range cfg.Providers.MTFallbacks {
		validateProviderName("mt", fb.Name)
	}

	if cfg.Providers.TTS.Name == "polly" && cfg.Providers.TTS.Region == "" {
		slog.Warn("providers.tts.region is empty; the AWS SDK default region chain will be used")
	}

	// Pipeline
	if cfg.Pipeline.MinTTSTextLen < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_tts_text_len %d must not be negative", cfg.Pipeline.MinTTSTextLen))
	}
	for _, tm := range []struct {
		name string
		ms   int
	}{
		{"pipeline.stt_timeout_ms", cfg.Pipeline.STTTimeoutMs},
		{"pipeline.mt_timeout_ms", cfg.Pipeline.MTTimeoutMs},
		{"pipeline.tts_timeout_ms", cfg.Pipeline.TTSTimeoutMs},
	} {
		if tm.ms < 0 {
			errs = append(errs, fmt.Errorf("%s %d must not be negative", tm.name, tm.ms))
		}
	}

	// Cache
	if cfg.Cache.EntriesPerKind < 0 {
		errs = append(errs, fmt.Errorf("cache.entries_per_kind %d must not be negative", cfg.Cache.EntriesPerKind))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
