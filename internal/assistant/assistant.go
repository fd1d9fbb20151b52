// Package assistant answers free-text medication questions. Every responder
// degrades to a fixed fallback instead of returning an error.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SystemPrompt is sent with every remote completion.
const SystemPrompt = "You are the DoseWise Assistant, a helpful medical companion. You provide information about medications, schedules, and health. Always remind users to consult a doctor."

// Fallback is returned when a remote provider fails.
const Fallback = "I'm sorry, I couldn't process that request."

// Responder produces a reply for a user message.
type Responder interface {
	Reply(ctx context.Context, message string) string
}

// Provider names.
const (
	ProviderStatic = "static"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// New builds the responder named by cfg.Provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Responder, error) {
	switch cfg.Provider {
	case "", ProviderStatic:
		return Static{}, nil
	case ProviderOpenAI:
		return NewOpenAI(cfg, logger), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("assistant: unknown provider %q", cfg.Provider)
	}
}
