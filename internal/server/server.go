// Package server implements the voxbridge.Interpreter gRPC service: the
// bidirectional StreamChat handler that segments inbound speaker audio and
// streams transcripts and synthesized speech back, plus the unary
// UpdateParticipantSettings endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/voxbridge/voxbridge/internal/cache"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/pipeline"
	"github.com/voxbridge/voxbridge/internal/rpc"
	"github.com/voxbridge/voxbridge/internal/session"
	"github.com/voxbridge/voxbridge/internal/vad"
	"github.com/voxbridge/voxbridge/pkg/audio"
)

// Defaults for [Config].
const (
	DefaultListenAddr      = ":50051"
	DefaultSampleRate      = 16000
	DefaultMinDrainMs      = 500
	DefaultFinalDrainMinMs = 300
	DefaultMaxStreams      = 32
	DefaultMaxSessions     = 32
	DefaultShutdownGrace   = 5 * time.Second
)

// Config assembles a [Server]. Zero fields take the package defaults.
type Config struct {
	// ListenAddr is the TCP address the gRPC server binds to.
	ListenAddr string

	// SampleRate is the expected ingress PCM sample rate in Hz.
	SampleRate int

	// VAD configures the per-session voice activity detector.
	VAD vad.Config

	// MinDrainMs is the minimum buffered speech, in milliseconds, required
	// for a sentence-end drain. Shorter tails wait for more audio.
	MinDrainMs int

	// FinalDrainMinMs is the minimum buffered speech worth draining when a
	// session ends.
	FinalDrainMinMs int

	// MaxStreams caps concurrent gRPC streams per connection.
	MaxStreams uint32

	// MaxSessions caps live sessions across all connections. Inits beyond
	// the cap are rejected with an ERROR status.
	MaxSessions int

	// ShutdownGrace bounds how long graceful shutdown waits for in-flight
	// streams before forcing them closed.
	ShutdownGrace time.Duration

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.MinDrainMs <= 0 {
		c.MinDrainMs = DefaultMinDrainMs
	}
	if c.FinalDrainMinMs <= 0 {
		c.FinalDrainMinMs = DefaultFinalDrainMinMs
	}
	if c.MaxStreams == 0 {
		c.MaxStreams = DefaultMaxStreams
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	if c.Metrics == nil {
		c.Metrics = observe.DefaultMetrics()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server implements [rpc.InterpreterServer].
type Server struct {
	cfg      Config
	registry *session.Registry
	cache    *cache.RoomCache
	pipe     *pipeline.Pipeline
	metrics  *observe.Metrics
	log      *slog.Logger
}

var _ rpc.InterpreterServer = (*Server)(nil)

// New creates a [Server] around the given pipeline, cache, and registry.
func New(cfg Config, pipe *pipeline.Pipeline, c *cache.RoomCache, reg *session.Registry) (*Server, error) {
	if pipe == nil {
		return nil, errors.New("server: pipeline must be set")
	}
	if c == nil {
		return nil, errors.New("server: cache must be set")
	}
	if reg == nil {
		return nil, errors.New("server: registry must be set")
	}
	cfg.applyDefaults()
	return &Server{
		cfg:      cfg,
		registry: reg,
		cache:    c,
		pipe:     pipe,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}, nil
}

// StreamChat is the bidirectional interpreter stream. The client sends
// session_init, then audio_chunk messages, then session_end; the server
// answers with session status, transcripts, and synthesized audio on the same
// stream. All sends happen from this goroutine, so per-utterance ordering is
// preserved.
func (s *Server) StreamChat(stream rpc.Interpreter_StreamChatServer) error {
	ctx := stream.Context()
	// Sessions opened on this stream, cleaned up when the stream closes.
	open := make(map[string]*session.Session)

	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			s.finishAll(ctx, stream, open, true)
			return nil
		}
		if err != nil {
			s.reportStreamError(stream, open, err)
			s.finishAll(ctx, stream, open, false)
			return err
		}

		variant, verr := msg.Variant()
		if verr != nil {
			s.log.Warn("dropping malformed client message",
				"session", msg.SessionID, "room", msg.RoomID, "err", verr)
			continue
		}

		switch variant {
		case rpc.PayloadSessionInit:
			err = s.handleInit(ctx, stream, open, msg)
		case rpc.PayloadAudioChunk:
			err = s.handleAudio(ctx, stream, open, msg)
		case rpc.PayloadSessionEnd:
			err = s.handleEnd(ctx, stream, open, msg)
		}
		if err != nil {
			s.finishAll(ctx, stream, open, false)
			return err
		}
	}
}

// handleInit opens a session, or updates the speaker of an existing one. Only
// a fresh session is acknowledged with READY; a re-sent init keeps the audio
// buffer and VAD state intact.
func (s *Server) handleInit(ctx context.Context, stream rpc.Interpreter_StreamChatServer, open map[string]*session.Session, msg *rpc.ClientMessage) error {
	init := msg.SessionInit
	speaker := session.Speaker{
		ParticipantID:  init.Speaker.ParticipantID,
		Nickname:       init.Speaker.Nickname,
		ProfileImg:     init.Speaker.ProfileImg,
		SourceLanguage: init.Speaker.SourceLanguage,
	}

	if sess, ok := s.registry.Get(msg.SessionID); ok {
		sess.SetSpeaker(speaker)
		open[sess.ID] = sess
		s.log.Info("session speaker updated",
			"session", sess.ID, "room", sess.RoomID,
			"speaker", speaker.ParticipantID, "source", speaker.SourceLanguage)
		return nil
	}

	if s.registry.Len() >= s.cfg.MaxSessions {
		s.log.Warn("session limit reached, rejecting init",
			"session", msg.SessionID, "room", msg.RoomID,
			"limit", s.cfg.MaxSessions)
		return stream.Send(&rpc.ServerMessage{
			SessionID: msg.SessionID,
			RoomID:    msg.RoomID,
			Status: &rpc.SessionStatus{
				Status:  rpc.StatusError,
				Message: fmt.Sprintf("session limit of %d reached", s.cfg.MaxSessions),
			},
		})
	}

	participants := make([]session.Participant, 0, len(init.Participants))
	for _, p := range init.Participants {
		participants = append(participants, session.Participant{
			ParticipantID:      p.ParticipantID,
			Nickname:           p.Nickname,
			ProfileImg:         p.ProfileImg,
			TargetLanguage:     p.TargetLanguage,
			TranslationEnabled: p.TranslationEnabled,
		})
	}

	sess := session.New(msg.SessionID, msg.RoomID, speaker, participants,
		s.cfg.SampleRate, vad.NewProcessor(s.cfg.VAD))
	roomNew := s.registry.Register(sess)
	open[sess.ID] = sess

	s.metrics.ActiveSessions.Add(ctx, 1)
	if roomNew {
		s.metrics.ActiveRooms.Add(ctx, 1)
	}

	strategy, primaryTarget, bufferMs := sess.Strategy()
	s.log.Info("session initialized",
		"session", sess.ID, "room", sess.RoomID,
		"speaker", speaker.ParticipantID, "source", speaker.SourceLanguage,
		"strategy", string(strategy), "buffer_ms", bufferMs)

	return stream.Send(&rpc.ServerMessage{
		SessionID: sess.ID,
		RoomID:    sess.RoomID,
		Status: &rpc.SessionStatus{
			Status:  rpc.StatusReady,
			Message: "session initialized",
			Buffering: &rpc.BufferingStrategy{
				SourceLanguage:        speaker.SourceLanguage,
				PrimaryTargetLanguage: primaryTarget,
				Strategy:              string(strategy),
				BufferSizeMs:          bufferMs,
			},
		},
	})
}

// handleAudio feeds one chunk through the VAD, buffers the speech content,
// and drains when a sentence ended or the buffer reached its strategy cap.
func (s *Server) handleAudio(ctx context.Context, stream rpc.Interpreter_StreamChatServer, open map[string]*session.Session, msg *rpc.ClientMessage) error {
	// Only sessions initialized on this stream may feed audio; the buffer
	// and VAD state belong to a single handler goroutine.
	sess, ok := open[msg.SessionID]
	if !ok {
		s.log.Warn("audio chunk for unknown session",
			"session", msg.SessionID, "room", msg.RoomID)
		return nil
	}

	hasSpeech, sentenceEnd := sess.VAD.ProcessChunk(msg.AudioChunk)
	if hasSpeech {
		sess.Buffer = append(sess.Buffer, sess.VAD.FilterSpeech(msg.AudioChunk)...)
	} else {
		sess.Counters.SilenceSkipped++
		s.metrics.SilenceSkipped.Add(ctx, 1)
	}

	switch {
	case sentenceEnd && sess.BufferMs() >= s.cfg.MinDrainMs:
		return s.drain(ctx, stream, sess, "sentence_end")
	case len(sess.Buffer) >= sess.MaxBufferBytes():
		sess.VAD.Reset()
		return s.drain(ctx, stream, sess, "buffer_full")
	}
	return nil
}

// handleEnd drains a worthwhile remainder, then tears the session down.
func (s *Server) handleEnd(ctx context.Context, stream rpc.Interpreter_StreamChatServer, open map[string]*session.Session, msg *rpc.ClientMessage) error {
	sess, ok := open[msg.SessionID]
	if !ok {
		s.log.Warn("session_end for unknown session",
			"session", msg.SessionID, "room", msg.RoomID)
		return nil
	}

	var err error
	if sess.BufferMs() >= s.cfg.FinalDrainMinMs {
		err = s.drain(ctx, stream, sess, "session_end")
	}
	s.closeSession(ctx, sess)
	delete(open, sess.ID)
	return err
}

// drain detaches the buffered speech and runs it through the pipeline as one
// finalized utterance. A non-nil return means the outbound stream is broken.
func (s *Server) drain(ctx context.Context, stream rpc.Interpreter_StreamChatServer, sess *session.Session, reason string) error {
	buf := sess.Buffer
	sess.Buffer = nil
	if len(buf) == 0 {
		return nil
	}

	s.log.Debug("draining session buffer",
		"session", sess.ID, "room", sess.RoomID, "reason", reason,
		"ms", audio.DurationMs(len(buf), sess.SampleRate))

	if err := s.pipe.Process(ctx, sess, buf, true, stream.Send); err != nil {
		return fmt.Errorf("server: drain %s: %w", reason, err)
	}
	return nil
}

// closeSession unregisters a session, drops the room cache when the room is
// now empty, and logs the session's counters.
func (s *Server) closeSession(ctx context.Context, sess *session.Session) {
	roomEmpty := s.registry.Unregister(sess.ID)
	s.metrics.ActiveSessions.Add(ctx, -1)
	if roomEmpty {
		s.cache.DropRoom(sess.RoomID)
		s.metrics.ActiveRooms.Add(ctx, -1)
	}

	c := sess.Counters
	s.log.Info("session closed",
		"session", sess.ID, "room", sess.RoomID,
		"chunks", c.ChunksProcessed,
		"sentences", c.SentencesCompleted,
		"silence_skipped", c.SilenceSkipped,
		"stt_latency", c.STTLatency,
		"mt_latency", c.MTLatency,
		"tts_latency", c.TTSLatency)
}

// finishAll tears down every session still open on a closing stream. When the
// close was graceful the remaining buffers get a final drain.
func (s *Server) finishAll(ctx context.Context, stream rpc.Interpreter_StreamChatServer, open map[string]*session.Session, graceful bool) {
	for id, sess := range open {
		if graceful && sess.BufferMs() >= s.cfg.FinalDrainMinMs {
			if err := s.drain(ctx, stream, sess, "stream_close"); err != nil {
				s.log.Warn("final drain failed", "session", id, "err", err)
			}
		}
		s.closeSession(ctx, sess)
		delete(open, id)
	}
}

// reportStreamError sends one STREAM_ERROR response, best effort, before the
// stream is torn down.
func (s *Server) reportStreamError(stream rpc.Interpreter_StreamChatServer, open map[string]*session.Session, cause error) {
	msg := &rpc.ServerMessage{
		Error: &rpc.ErrorResponse{
			Code:    rpc.CodeStreamError,
			Message: cause.Error(),
		},
	}
	for _, sess := range open {
		msg.SessionID = sess.ID
		msg.RoomID = sess.RoomID
		break
	}
	if err := stream.Send(msg); err != nil {
		s.log.Debug("stream error report not delivered", "err", err)
	}
}

// UpdateParticipantSettings atomically updates one participant's target
// language and enabled flag across every session of a room. The operation is
// idempotent; unknown participants update zero sessions and still succeed.
func (s *Server) UpdateParticipantSettings(ctx context.Context, req *rpc.ParticipantSettingsRequest) (*rpc.ParticipantSettingsResponse, error) {
	if req.RoomID == "" || req.ParticipantID == "" {
		return nil, status.Error(codes.InvalidArgument, "room_id and participant_id are required")
	}

	n := s.registry.UpdateParticipant(req.RoomID, req.ParticipantID, req.TargetLanguage, req.TranslationEnabled)
	s.log.Info("participant settings updated",
		"room", req.RoomID, "participant", req.ParticipantID,
		"target", req.TargetLanguage, "enabled", req.TranslationEnabled,
		"sessions", n)

	return &rpc.ParticipantSettingsResponse{
		Success: true,
		Message: fmt.Sprintf("updated %d sessions", n),
	}, nil
}

// Serve binds the listener and serves gRPC until ctx is cancelled, then
// shuts down gracefully within the configured grace period.
func (s *Server) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}

	gs := grpc.NewServer(
		rpc.ServerCodecOption(),
		grpc.MaxConcurrentStreams(s.cfg.MaxStreams),
	)
	rpc.RegisterInterpreterServer(gs, s)

	s.log.Info("interpreter server listening", "addr", lis.Addr().String())

	serveErr := make(chan error, 1)
	go func() { serveErr <- gs.Serve(lis) }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down", "grace", s.cfg.ShutdownGrace)
	stopped := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(s.cfg.ShutdownGrace):
		s.log.Warn("grace period elapsed, forcing stop")
		gs.Stop()
	}
	return nil
}
