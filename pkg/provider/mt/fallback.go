package mt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var _ Translator = (*Fallback)(nil)

// Fallback chains translators: each request tries them in order and returns
// the first success. A translation service outage then degrades latency, not
// availability, as long as one backend in the chain is up.
type Fallback struct {
	entries []fallbackEntry
}

type fallbackEntry struct {
	name string
	t    Translator
}

// NewFallback creates a chain with the given primary translator.
func NewFallback(name string, primary Translator) *Fallback {
	return &Fallback{entries: []fallbackEntry{{name: name, t: primary}}}
}

// Add appends a translator to the end of the chain and returns the chain for
// call chaining.
func (f *Fallback) Add(name string, t Translator) *Fallback {
	f.entries = append(f.entries, fallbackEntry{name: name, t: t})
	return f
}

// Translate implements [Translator]. Failures short of the last backend are
// logged and absorbed; when every backend fails the joined errors are
// returned. Context cancellation stops the chain immediately.
func (f *Fallback) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == targetLang {
		return text, nil
	}

	var errs []error
	for i, e := range f.entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out, err := e.t.Translate(ctx, text, sourceLang, targetLang)
		if err == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		if i < len(f.entries)-1 {
			slog.Warn("translator failed, falling back",
				"translator", e.name,
				"next", f.entries[i+1].name,
				"source", sourceLang,
				"target", targetLang,
				"err", err)
		}
	}
	return "", fmt.Errorf("mt: all translators failed: %w", errors.Join(errs...))
}
