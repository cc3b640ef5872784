// Command voxbridge is the main entry point for the voxbridge interpreter
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/voxbridge/voxbridge/internal/cache"
	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/internal/health"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/pipeline"
	"github.com/voxbridge/voxbridge/internal/server"
	"github.com/voxbridge/voxbridge/internal/session"
	"github.com/voxbridge/voxbridge/internal/vad"
	"github.com/voxbridge/voxbridge/pkg/provider/mt"
	"github.com/voxbridge/voxbridge/pkg/provider/mt/anyllm"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
	oaistt "github.com/voxbridge/voxbridge/pkg/provider/stt/openai"
	"github.com/voxbridge/voxbridge/pkg/provider/stt/whisper"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
	"github.com/voxbridge/voxbridge/pkg/provider/tts/elevenlabs"
	"github.com/voxbridge/voxbridge/pkg/provider/tts/polly"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env is optional; real deployments inject environment directly.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment")
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxbridge: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxbridge: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Server.LogLevel.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("voxbridge starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ──────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	backends, err := buildBackends(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	// ── Core wiring ───────────────────────────────────────────────────────────
	var cacheOpts []cache.Option
	if cfg.Cache.EntriesPerKind > 0 {
		cacheOpts = append(cacheOpts, cache.WithEntriesPerKind(cfg.Cache.EntriesPerKind))
	}
	roomCache := cache.New(cacheOpts...)
	sessions := session.NewRegistry()

	pipe, err := pipeline.New(pipeline.Config{
		Backends: backends,
		Cache:    roomCache,
		Timeouts: pipeline.Timeouts{
			STT: time.Duration(cfg.Pipeline.STTTimeoutMs) * time.Millisecond,
			MT:  time.Duration(cfg.Pipeline.MTTimeoutMs) * time.Millisecond,
			TTS: time.Duration(cfg.Pipeline.TTSTimeoutMs) * time.Millisecond,
		},
		MinTTSTextLen: cfg.Pipeline.MinTTSTextLen,
		Logger:        logger,
	})
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	srv, err := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		SampleRate: cfg.Audio.SampleRate,
		VAD: vad.Config{
			SampleRate:        cfg.Audio.SampleRate,
			FrameMs:           cfg.Audio.FrameMs,
			SilenceDurationMs: cfg.Audio.SilenceDurationMs,
			MinSpeechFrames:   cfg.Audio.MinSpeechFrames,
			SpeechRatio:       cfg.Audio.SpeechRatio,
			Classifier:        &vad.EnergyClassifier{Aggressiveness: cfg.Audio.VADAggressiveness},
		},
		MinDrainMs:      cfg.Audio.MinDrainMs,
		FinalDrainMinMs: cfg.Audio.FinalDrainMinMs,
		MaxStreams:      cfg.Server.MaxStreams,
		MaxSessions:     cfg.Server.MaxSessions,
		ShutdownGrace:   time.Duration(cfg.Server.ShutdownGraceMs) * time.Millisecond,
		Logger:          logger,
	}, pipe, roomCache, sessions)
	if err != nil {
		slog.Error("failed to build server", "err", err)
		return 1
	}

	// ── Warm-up and readiness ─────────────────────────────────────────────────
	var ready health.ReadyFlag
	go server.WarmUp(ctx, logger, &ready, map[string]any{
		"stt": backends.STT,
		"mt":  backends.MT,
		"tts": backends.TTS,
	})

	// ── Config watcher (hot log level) ────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_, _ *config.Config, diff config.ConfigDiff) {
		if diff.LogLevelChanged {
			logLevel.Set(diff.NewLogLevel.Level())
			slog.Info("log level updated", "level", diff.NewLogLevel)
		}
		if diff.RestartRequired {
			slog.Warn("configuration change requires a restart to take effect")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })

	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error { return serveSidecar(gctx, cfg.Server.MetricsAddr, &ready) })
	}

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// serveSidecar runs the HTTP listener for Prometheus metrics and health
// probes next to the gRPC server.
func serveSidecar(ctx context.Context, addr string, ready *health.ReadyFlag) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", observe.MetricsHandler())
	health.New(ready.Checker("warmup")).Register(mux)

	hs := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()
	slog.Info("metrics listener up", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// envKeys maps provider names to the environment variable consulted when the
// config does not carry an api_key.
var envKeys = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
	"mistral":    "MISTRAL_API_KEY",
	"groq":       "GROQ_API_KEY",
	"elevenlabs": "ELEVENLABS_API_KEY",
}

func apiKey(entry config.ProviderEntry) string {
	if entry.APIKey != "" {
		return entry.APIKey
	}
	return os.Getenv(envKeys[entry.Name])
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper-native", func(_ context.Context, entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if threads := optInt(entry.Options, "threads"); threads > 0 {
			opts = append(opts, whisper.WithThreads(threads))
		}
		return whisper.New(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(_ context.Context, entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []oaistt.Option
		if entry.Model != "" {
			opts = append(opts, oaistt.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(entry.BaseURL))
		}
		return oaistt.New(apiKey(entry), cfg.Audio.SampleRate, opts...)
	})

	// ── MT ────────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterMT(providerName, func(_ context.Context, entry config.ProviderEntry) (mt.Translator, error) {
			var opts []anyllmlib.Option
			if key := apiKey(entry); key != "" {
				opts = append(opts, anyllmlib.WithAPIKey(key))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterMT("ollama", func(_ context.Context, entry config.ProviderEntry) (mt.Translator, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("polly", func(ctx context.Context, entry config.ProviderEntry) (tts.Synthesizer, error) {
		return polly.New(ctx, entry.Region)
	})

	reg.RegisterTTS("elevenlabs", func(_ context.Context, entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(apiKey(entry), opts...)
	})
}

// buildBackends instantiates the providers named in cfg using the registry.
// The MT backend is a fallback chain when mt_fallbacks is configured.
func buildBackends(ctx context.Context, cfg *config.Config, reg *config.Registry) (pipeline.Backends, error) {
	var b pipeline.Backends

	sttProvider, err := reg.CreateSTT(ctx, cfg.Providers.STT)
	if err != nil {
		return b, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	primary, err := reg.CreateMT(ctx, cfg.Providers.MT)
	if err != nil {
		return b, fmt.Errorf("create mt provider %q: %w", cfg.Providers.MT.Name, err)
	}
	slog.Info("provider created", "kind", "mt", "name", cfg.Providers.MT.Name)

	chain := mt.NewFallback(cfg.Providers.MT.Name, primary)
	for _, entry := range cfg.Providers.MTFallbacks {
		fb, err := reg.CreateMT(ctx, entry)
		if err != nil {
			return b, fmt.Errorf("create mt fallback %q: %w", entry.Name, err)
		}
		chain.Add(entry.Name, fb)
		slog.Info("provider created", "kind", "mt-fallback", "name", entry.Name)
	}

	ttsProvider, err := reg.CreateTTS(ctx, cfg.Providers.TTS)
	if err != nil {
		return b, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	b.STT = sttProvider
	b.MT = chain
	b.TTS = ttsProvider
	return b, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voxbridge — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("MT", cfg.Providers.MT.Name, cfg.Providers.MT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  MT fallbacks    : %-19d ║\n", len(cfg.Providers.MTFallbacks))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	if cfg.Server.MetricsAddr != "" {
		fmt.Printf("║  Metrics addr    : %-19s ║\n", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optInt extracts an integer value from a provider Options map. YAML decodes
// bare numbers as int; strings are parsed as a convenience.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case int:
		return v
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
