package ai

import (
	"strings"
	"testing"

	"animeavatar/pkg/domain"
)

func TestPromptForIsDeterministicAndDistinct(t *testing.T) {
	styles := []domain.Style{domain.StyleModern, domain.StyleChibi, domain.StyleGhibli, domain.StyleCyberpunk}
	seen := make(map[string]domain.Style)
	for _, style := range styles {
		prompt := PromptFor(style)
		if prompt == "" {
			t.Fatalf("empty prompt for %q", style)
		}
		if prompt != PromptFor(style) {
			t.Fatalf("prompt for %q not deterministic", style)
		}
		if other, dup := seen[prompt]; dup {
			t.Fatalf("styles %q and %q share a prompt", style, other)
		}
		seen[prompt] = style
		if !strings.Contains(prompt, "profile avatar") {
			t.Fatalf("prompt for %q missing the avatar framing", style)
		}
	}
}

func TestPromptForUnknownStyleFallsBackToModern(t *testing.T) {
	if PromptFor(domain.Style("vaporwave")) != PromptFor(domain.StyleModern) {
		t.Fatal("unknown style should use the modern template")
	}
}
