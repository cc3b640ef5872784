package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/pkg/provider/mt"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

type nopTranscriber struct{}

func (nopTranscriber) Transcribe(context.Context, []float32, string) (stt.Result, error) {
	return stt.Result{}, nil
}

type nopTranslator struct{}

func (nopTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

func TestRegistryCreate(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var gotEntry config.ProviderEntry
	reg.RegisterSTT("fake", func(_ context.Context, entry config.ProviderEntry) (stt.Transcriber, error) {
		gotEntry = entry
		return nopTranscriber{}, nil
	})

	entry := config.ProviderEntry{Name: "fake", APIKey: "key", Model: "m"}
	p, err := reg.CreateSTT(context.Background(), entry)
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p == nil {
		t.Fatal("CreateSTT returned nil provider")
	}
	if gotEntry.APIKey != "key" || gotEntry.Model != "m" {
		t.Errorf("factory received entry %+v", gotEntry)
	}
}

func TestRegistryUnregisteredName(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	_, err := reg.CreateMT(context.Background(), config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
	_, err = reg.CreateTTS(context.Background(), config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	reg.RegisterMT("dup", func(context.Context, config.ProviderEntry) (mt.Translator, error) {
		t.Error("overwritten factory was called")
		return nil, nil
	})
	reg.RegisterMT("dup", func(context.Context, config.ProviderEntry) (mt.Translator, error) {
		return nopTranslator{}, nil
	})

	p, err := reg.CreateMT(context.Background(), config.ProviderEntry{Name: "dup"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(nopTranslator); !ok {
		t.Errorf("got %T, want the last registered factory's provider", p)
	}
}
