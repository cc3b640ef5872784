package server

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxbridge/voxbridge/internal/health"
)

// Warmer is implemented by providers that benefit from a priming call before
// the first live utterance (model load, connection setup, token exchange).
type Warmer interface {
	Warm(ctx context.Context) error
}

// WarmUp primes the given providers concurrently and flips flag when done.
// Warm-up failures are logged and otherwise ignored: a provider that failed
// to warm still serves, it just pays the cold-start cost on the first real
// request. A nil provider or one that does not implement [Warmer] is skipped.
func WarmUp(ctx context.Context, log *slog.Logger, flag *health.ReadyFlag, providers map[string]any) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	for name, p := range providers {
		w, ok := p.(Warmer)
		if !ok || p == nil {
			continue
		}
		g.Go(func() error {
			if err := w.Warm(gctx); err != nil {
				log.Warn("provider warm-up failed", "provider", name, "err", err)
				return nil
			}
			log.Info("provider warmed", "provider", name)
			return nil
		})
	}

	_ = g.Wait()
	if flag != nil {
		flag.Set()
	}
	log.Info("warm-up complete", "elapsed", time.Since(start))
}
