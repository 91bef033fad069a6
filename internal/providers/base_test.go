package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestResponseNeverCarriesBoth(t *testing.T) {
	ok := Success("answer", "openai", "gpt")
	if !ok.OK() || ok.Error != "" || ok.Err() != nil {
		t.Errorf("unexpected success response: %+v", ok)
	}

	fail := Failure(errors.New("boom"), "openai")
	if fail.OK() || fail.Answer != "" {
		t.Errorf("unexpected failure response: %+v", fail)
	}
	if fail.Err() == nil {
		t.Error("Expected Err() to be non-nil for failure")
	}

	empty := Failure(nil, "ollama")
	if empty.OK() {
		t.Error("Failure(nil) must still be a failure")
	}
}

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"You exceeded your current quota", true},
		{"insufficient_quota", true},
		{"status 429", true},
		{"Rate limit reached for requests", true},
		{ErrQuotaExceeded.Error(), true},
		{"rate_limit_exceeded", true},
		{"HTTP 429: Too Many Requests", true},
		{"prompt resulted in 4290 tokens", false},
		{"error code 14291", false},
		{"connection refused", false},
		{ErrTimeout.Error(), false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := IsQuotaError(tt.text); got != tt.want {
				t.Errorf("IsQuotaError(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestUserContent(t *testing.T) {
	if got := UserContent("вопрос", ""); got != "вопрос" {
		t.Errorf("Expected bare prompt, got %q", got)
	}
	if got := UserContent("вопрос", "   "); got != "вопрос" {
		t.Errorf("Expected bare prompt for blank context, got %q", got)
	}

	want := "Контекст: профиль\n\nВопрос: вопрос"
	if got := UserContent("вопрос", "профиль"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestClassifyTransportError(t *testing.T) {
	if ClassifyTransportError(nil) != nil {
		t.Error("Expected nil for nil error")
	}

	wrapped := fmt.Errorf("post: %w", context.DeadlineExceeded)
	if !errors.Is(ClassifyTransportError(wrapped), ErrTimeout) {
		t.Error("Expected deadline to map to ErrTimeout")
	}

	other := errors.New("connection refused")
	if ClassifyTransportError(other) != other {
		t.Error("Expected other errors to pass through")
	}
}

func TestNewBaseProviderDefaults(t *testing.T) {
	b := NewBaseProvider(Options{Name: "x"})
	opts := b.Options()

	if opts.Timeout <= 0 || opts.ProbeTimeout <= 0 {
		t.Errorf("Expected default timeouts, got %+v", opts)
	}
	if opts.MaxTokens != 800 {
		t.Errorf("Expected default max tokens 800, got %d", opts.MaxTokens)
	}

	if got := b.Success("  hi  ").Answer; got != "hi" {
		t.Errorf("Expected trimmed answer, got %q", got)
	}
}
