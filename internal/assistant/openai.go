package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	http   *resty.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates the client. An empty BaseURL targets api.openai.com.
func NewOpenAI(cfg Config, logger *slog.Logger) *OpenAI {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &OpenAI{http: client, model: model, logger: logger}
}

func (o *OpenAI) Reply(ctx context.Context, message string) string {
	var out chatResponse
	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: o.model,
			Messages: []chatMessage{
				{Role: "system", Content: SystemPrompt},
				{Role: "user", Content: message},
			},
			Temperature: 0.7,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		o.logger.Warn("assistant: openai request failed", slog.String("error", err.Error()))
		return Fallback
	}
	if resp.IsError() {
		o.logger.Warn("assistant: openai error status", slog.Int("status", resp.StatusCode()))
		return Fallback
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return Fallback
	}
	return out.Choices[0].Message.Content
}
