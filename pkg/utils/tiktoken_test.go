package utils

import (
	"strings"
	"testing"
)

func TestNewTokenCounter(t *testing.T) {
	for _, model := range []string{"gemini-3-pro-preview", "claude-sonnet-4-5", "unknown-model"} {
		t.Run(model, func(t *testing.T) {
			counter, err := NewTokenCounter(model)
			if err != nil {
				t.Fatalf("NewTokenCounter(%s) failed: %v", model, err)
			}
			if counter == nil {
				t.Fatalf("NewTokenCounter(%s) returned nil counter", model)
			}
		})
	}
}

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	if err != nil {
		t.Fatalf("Failed to create counter: %v", err)
	}

	if got := counter.CountTokens(""); got != 0 {
		t.Errorf("CountTokens(\"\") = %d, want 0", got)
	}
	if got := counter.CountTokens("Hello world"); got < 1 || got > 5 {
		t.Errorf("CountTokens(\"Hello world\") = %d, want 1..5", got)
	}

	var nilCounter *TokenCounter
	if got := nilCounter.CountTokens("abcdefgh"); got != 2 {
		t.Errorf("nil counter estimate = %d, want 2", got)
	}
}

func TestCountTokensSimple(t *testing.T) {
	if CountTokensSimple("The OmniAgent Strategist builds plans.") == 0 {
		t.Error("expected non-zero token count")
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	if err != nil {
		t.Fatalf("Failed to create counter: %v", err)
	}

	short := "short text"
	if got := counter.TruncateToTokenLimit(short, 100); got != short {
		t.Errorf("short text should be unchanged, got %q", got)
	}

	long := strings.Repeat("research findings ", 200)
	got := counter.TruncateToTokenLimit(long, 20)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncation marker, got %q", got[len(got)-10:])
	}
	if len(got) >= len(long) {
		t.Error("expected truncated text to be shorter")
	}
}
