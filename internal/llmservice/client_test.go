package llmservice

import (
	"context"
	"errors"
	"testing"

	"pdf-qa/internal/config"
	"pdf-qa/internal/llmtest"
)

func TestGenerateContent_PassesPromptAndTemperature(t *testing.T) {
	llm := llmtest.NewRecordingLLM("Paris")

	got, err := GenerateContent(context.Background(), llm, "What is the capital?", 0.3)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if got != "Paris" {
		t.Fatalf("expected raw completion, got %q", got)
	}
	if prompts := llm.Prompts(); len(prompts) != 1 || prompts[0] != "What is the capital?" {
		t.Fatalf("unexpected prompts %q", prompts)
	}
	if temp := llm.LastOptions().Temperature; temp != 0.3 {
		t.Fatalf("expected temperature 0.3, got %v", temp)
	}
}

func TestGenerateContent_ReturnsRawText(t *testing.T) {
	llm := llmtest.NewRecordingLLM("  spaced answer \n")

	got, err := GenerateContent(context.Background(), llm, "q", 0.3)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if got != "  spaced answer \n" {
		t.Fatalf("expected completion unmodified, got %q", got)
	}
}

func TestGenerateContent_PropagatesError(t *testing.T) {
	boom := errors.New("502 bad gateway")
	llm := llmtest.NewFailingLLM(boom)

	if _, err := GenerateContent(context.Background(), llm, "q", 0.3); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewModel_Providers(t *testing.T) {
	if _, err := NewModel(&config.LLMConfig{Provider: config.ProviderOpenAI, Key: "k", Model: "gpt-4o-mini"}); err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, err := NewModel(&config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "llama3"}); err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if _, err := NewModel(&config.LLMConfig{Provider: "unknown"}); err == nil {
		t.Fatalf("expected unknown provider to fail")
	}
}
