package mt

import (
	"context"
	"errors"
	"testing"
)

func TestClean(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"bare", "Hello there", "Hello there"},
		{"prefix", "Translation: Hello there", "Hello there"},
		{"prefix case", "translation: Hello there", "Hello there"},
		{"long prefix", "Here is the translation: Hello there", "Hello there"},
		{"apostrophe prefix", "Here's the translation: Hello there", "Hello there"},
		{"quoted", `"Hello there"`, "Hello there"},
		{"curly quoted", "“Hello there”", "Hello there"},
		{"corner brackets", "「こんにちは」", "こんにちは"},
		{"prefix then quoted", `Translation: "Hello there"`, "Hello there"},
		{"multiline", "Hello there\n\nNote: informal register.", "Hello there"},
		{"leading blank line", "\n\nHello there", "Hello there"},
		{"whitespace", "  Hello there  ", "Hello there"},
		{"single char kept", "네", "네"},
		{"empty", "", ""},
		{"apostrophe inside", "It's fine", "It's fine"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := Clean(c.raw); got != c.want {
				t.Errorf("Clean(%q) = %q, want %q", c.raw, got, c.want)
			}
		})
	}
}

func TestLanguageName(t *testing.T) {
	t.Parallel()

	if got := LanguageName("ko"); got != "Korean" {
		t.Errorf("LanguageName(ko) = %q, want Korean", got)
	}
	if got := LanguageName("xx"); got != "xx" {
		t.Errorf("LanguageName(xx) = %q, want verbatim code", got)
	}
}

// scriptedTranslator returns a fixed output or error.
type scriptedTranslator struct {
	out   string
	err   error
	calls int
}

func (s *scriptedTranslator) Translate(_ context.Context, text, src, tgt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.out, nil
}

func TestFallbackPrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &scriptedTranslator{out: "안녕하세요"}
	backup := &scriptedTranslator{out: "unused"}
	chain := NewFallback("primary", primary).Add("backup", backup)

	got, err := chain.Translate(context.Background(), "hello", "en", "ko")
	if err != nil || got != "안녕하세요" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
	if backup.calls != 0 {
		t.Error("backup consulted although primary succeeded")
	}
}

func TestFallbackUsesBackup(t *testing.T) {
	t.Parallel()

	primary := &scriptedTranslator{err: errors.New("rate limited")}
	backup := &scriptedTranslator{out: "안녕하세요"}
	chain := NewFallback("primary", primary).Add("backup", backup)

	got, err := chain.Translate(context.Background(), "hello", "en", "ko")
	if err != nil || got != "안녕하세요" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
}

func TestFallbackAllFail(t *testing.T) {
	t.Parallel()

	errA := errors.New("down")
	errB := errors.New("also down")
	chain := NewFallback("a", &scriptedTranslator{err: errA}).Add("b", &scriptedTranslator{err: errB})

	_, err := chain.Translate(context.Background(), "hello", "en", "ko")
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("joined error should carry both causes, got %v", err)
	}
}

func TestFallbackSameLanguageShortCircuit(t *testing.T) {
	t.Parallel()

	primary := &scriptedTranslator{out: "unused"}
	chain := NewFallback("primary", primary)

	got, err := chain.Translate(context.Background(), "hello", "en", "en")
	if err != nil || got != "hello" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
	if primary.calls != 0 {
		t.Error("backend consulted for identity translation")
	}
}
