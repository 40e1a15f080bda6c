package generator

import (
	"context"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/quizbot/internal/config"
	"github.com/edgard/quizbot/internal/errs"
)

// ProviderOpenAI selects the OpenAI chat completion backend, or any server
// speaking the same protocol via ai.base_url.
const ProviderOpenAI = "openai"

// OpenAICompleter calls the chat completion endpoint with the prompt as the system message.
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAICompleter creates a completer from the ai config section.
func NewOpenAICompleter(cfg config.AIConfig) *OpenAICompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Name implements Completer.
func (c *OpenAICompleter) Name() string { return ProviderOpenAI }

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", errs.NewGenerationAPIError(ProviderOpenAI, statusOf(err), "chat completion failed", err)
	}

	if len(resp.Choices) == 0 {
		return "", errs.NewGenerationAPIError(ProviderOpenAI, http.StatusOK, "chat completion returned no choices", nil)
	}

	return resp.Choices[0].Message.Content, nil
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
