// Command voxstream is a terminal client for the voxbridge interpreter: it
// captures microphone audio, streams it to a server, and prints the
// transcripts and translations coming back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/voxbridge/voxbridge/internal/rpc"
	"github.com/voxbridge/voxbridge/pkg/audio"
)

const (
	captureRate = 48000 // most capture devices are happiest at 48 kHz
	ingressRate = 16000
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "localhost:50051", "voxbridge server address")
	room := flag.String("room", "demo", "room id to join")
	speaker := flag.String("speaker", "speaker-1", "speaker participant id")
	nickname := flag.String("nickname", "voxstream", "speaker display name")
	source := flag.String("source", "ko", "speaker source language code")
	targets := flag.String("targets", "en", "comma-separated target language codes")
	chunkMs := flag.Int("chunk-ms", 1500, "audio chunk duration in milliseconds")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cc, err := grpc.NewClient(*addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(rpc.CallCodecOption()),
	)
	if err != nil {
		slog.Error("failed to dial", "addr", *addr, "err", err)
		return 1
	}
	defer cc.Close()

	stream, err := rpc.NewInterpreterClient(cc).StreamChat(ctx)
	if err != nil {
		slog.Error("failed to open stream", "err", err)
		return 1
	}

	sessionID := uuid.NewString()
	init := &rpc.ClientMessage{
		SessionID: sessionID,
		RoomID:    *room,
		SessionInit: &rpc.SessionInit{
			Speaker: rpc.SpeakerInfo{
				ParticipantID:  *speaker,
				Nickname:       *nickname,
				SourceLanguage: *source,
			},
			Participants: listeners(*targets),
		},
	}
	if err := stream.Send(init); err != nil {
		slog.Error("failed to send session_init", "err", err)
		return 1
	}

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		printServerMessages(stream)
	}()

	// ── Microphone capture ──────────────────────────────────────────────────
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		slog.Error("failed to initialise audio context", "err", err)
		return 1
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	var (
		mu       sync.Mutex
		captured []byte
	)
	onSamples := func(_, pInput []byte, _ uint32) {
		if pInput == nil {
			return
		}
		mu.Lock()
		captured = append(captured, pInput...)
		mu.Unlock()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = captureRate
	deviceConfig.Alsa.NoMMap = 1 // better compatibility on some systems

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		slog.Error("failed to open capture device", "err", err)
		return 1
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		slog.Error("failed to start capture", "err", err)
		return 1
	}
	fmt.Printf("streaming %s audio to %s (room %s) — Ctrl+C to stop\n", *source, *addr, *room)

	// ── Send loop ───────────────────────────────────────────────────────────
	ticker := time.NewTicker(time.Duration(*chunkMs) * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			mu.Lock()
			pcm := captured
			captured = nil
			mu.Unlock()
			if len(pcm) == 0 {
				continue
			}
			chunk := audio.ResampleMono16(pcm, captureRate, ingressRate)
			err := stream.Send(&rpc.ClientMessage{
				SessionID:  sessionID,
				RoomID:     *room,
				AudioChunk: chunk,
			})
			if err != nil {
				slog.Error("failed to send audio chunk", "err", err)
				break loop
			}
		}
	}

	// Graceful teardown: stop capture, flush the session, read the tail.
	_ = device.Stop()
	end := &rpc.ClientMessage{
		SessionID:  sessionID,
		RoomID:     *room,
		SessionEnd: &rpc.SessionEnd{Reason: "client shutdown"},
	}
	if err := stream.Send(end); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("failed to send session_end", "err", err)
	}
	if err := stream.CloseSend(); err != nil {
		slog.Warn("close send failed", "err", err)
	}

	select {
	case <-recvDone:
	case <-time.After(5 * time.Second):
		slog.Warn("timed out waiting for final server messages")
	}
	return 0
}

// listeners builds one enabled participant per requested target language.
func listeners(targets string) []rpc.ParticipantInfo {
	var out []rpc.ParticipantInfo
	for _, lang := range strings.Split(targets, ",") {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		out = append(out, rpc.ParticipantInfo{
			ParticipantID:      "listener-" + lang,
			TargetLanguage:     lang,
			TranslationEnabled: true,
		})
	}
	return out
}

// printServerMessages renders inbound messages until the stream closes.
func printServerMessages(stream rpc.Interpreter_StreamChatClient) {
	for {
		msg, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("stream closed", "err", err)
			}
			return
		}
		switch {
		case msg.Status != nil:
			s := msg.Status
			if s.Buffering != nil {
				fmt.Printf("[%s] %s (strategy %s, buffer %dms)\n",
					s.Status, s.Message, s.Buffering.Strategy, s.Buffering.BufferSizeMs)
			} else {
				fmt.Printf("[%s] %s\n", s.Status, s.Message)
			}
		case msg.Transcript != nil:
			t := msg.Transcript
			fmt.Printf("%s %s: %s\n", t.ID, t.Speaker.Nickname, t.OriginalText)
			for _, tr := range t.Translations {
				fmt.Printf("    %s: %s\n", tr.TargetLanguage, tr.TranslatedText)
			}
		case msg.Audio != nil:
			a := msg.Audio
			fmt.Printf("%s audio %s: %d bytes %s (%dms)\n",
				a.TranscriptID, a.TargetLanguage, len(a.AudioData), a.Format, a.DurationMs)
		case msg.Error != nil:
			fmt.Printf("[%s] %s\n", msg.Error.Code, msg.Error.Message)
		}
	}
}
