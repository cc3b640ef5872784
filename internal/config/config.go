// Package config provides the configuration schema, loader, provider registry,
// and file watcher for the voxbridge interpreter server.
package config

import "log/slog"

// LogLevel controls log verbosity for the voxbridge server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to its slog equivalent. Unrecognised or empty values map to
// info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure for voxbridge.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig holds network and logging settings for the voxbridge server.
type ServerConfig struct {
	// ListenAddr is the TCP address the gRPC server listens on (e.g., ":50051").
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr is the TCP address of the sidecar HTTP listener serving
	// Prometheus metrics and health endpoints. Empty disables the sidecar.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxStreams caps concurrent gRPC streams per connection. Zero uses the
	// server default.
	MaxStreams uint32 `yaml:"max_streams"`

	// MaxSessions caps live sessions across all connections. Zero uses the
	// server default.
	MaxSessions int `yaml:"max_sessions"`

	// ShutdownGraceMs bounds graceful shutdown in milliseconds.
	ShutdownGraceMs int `yaml:"shutdown_grace_ms"`
}

// AudioConfig holds ingress audio and voice-activity-detection settings.
type AudioConfig struct {
	// SampleRate of the inbound PCM in Hz (e.g., 16000).
	SampleRate int `yaml:"sample_rate"`

	// FrameMs is the VAD classifier frame length in milliseconds.
	FrameMs int `yaml:"frame_ms"`

	// SilenceDurationMs is how long silence must persist after speech before
	// a sentence end is declared.
	SilenceDurationMs int `yaml:"silence_duration_ms"`

	// MinSpeechFrames is the minimum number of speech chunks an utterance
	// needs before silence may close it.
	MinSpeechFrames int `yaml:"min_speech_frames"`

	// SpeechRatio is the fraction of speech frames a chunk needs to count as
	// speech, in (0, 1].
	SpeechRatio float64 `yaml:"speech_ratio"`

	// VADAggressiveness tunes the energy classifier in [0, 3]; higher values
	// reject more borderline audio as silence.
	VADAggressiveness int `yaml:"vad_aggressiveness"`

	// MinDrainMs is the minimum buffered speech, in milliseconds, required
	// for a sentence-end drain.
	MinDrainMs int `yaml:"min_drain_ms"`

	// FinalDrainMinMs is the minimum buffered speech worth draining when a
	// session ends.
	FinalDrainMinMs int `yaml:"final_drain_min_ms"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each entry selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	MT  ProviderEntry `yaml:"mt"`
	TTS ProviderEntry `yaml:"tts"`

	// MTFallbacks lists translators tried in order when the primary MT
	// provider fails.
	MTFallbacks []ProviderEntry `yaml:"mt_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "whisper-native", "polly").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini",
	// "whisper-1", or a local model file path).
	Model string `yaml:"model"`

	// Region selects the cloud region for region-scoped providers such as
	// Polly.
	Region string `yaml:"region"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or
	// nested maps.
	Options map[string]any `yaml:"options"`
}

// PipelineConfig tunes the transcribe/translate/synthesize pipeline.
type PipelineConfig struct {
	// MinTTSTextLen is the minimum translated-text length (in code points)
	// worth synthesizing.
	MinTTSTextLen int `yaml:"min_tts_text_len"`

	// Per-stage backend call timeouts in milliseconds.
	STTTimeoutMs int `yaml:"stt_timeout_ms"`
	MTTimeoutMs  int `yaml:"mt_timeout_ms"`
	TTSTimeoutMs int `yaml:"tts_timeout_ms"`
}

// CacheConfig tunes the room-scoped result cache.
type CacheConfig struct {
	// EntriesPerKind bounds each of the STT, MT, and TTS caches per room.
	EntriesPerKind int `yaml:"entries_per_kind"`
}
