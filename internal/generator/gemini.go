package generator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/edgard/quizbot/internal/config"
	"github.com/edgard/quizbot/internal/errs"
)

// ProviderGemini selects Google's Gemini API.
const ProviderGemini = "gemini"

// questionSchema constrains Gemini's JSON mode to the shape parseJSON reads.
var questionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"question": {Type: genai.TypeString, Description: "The question stem, English line first, Hindi line second."},
		"options": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Exactly four options in order A, B, C, D, without letter prefixes.",
		},
		"correct":     {Type: genai.TypeString, Enum: []string{"A", "B", "C", "D"}, Description: "Letter of the correct option."},
		"explanation": {Type: genai.TypeString, Description: "One sentence justifying the answer, under 200 characters."},
	},
	Required: []string{"question", "options", "correct", "explanation"},
}

// GeminiCompleter calls Gemini in JSON schema mode with the prompt as system instruction.
type GeminiCompleter struct {
	client        *genai.Client
	model         string
	contentConfig *genai.GenerateContentConfig
}

// NewGeminiCompleter creates a completer from the ai config section.
func NewGeminiCompleter(ctx context.Context, cfg config.AIConfig) (*GeminiCompleter, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gi, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, errs.NewConfigError("failed to create genai client", err)
	}

	temperature := cfg.Temperature
	return &GeminiCompleter{
		client: gi,
		model:  cfg.Model,
		contentConfig: &genai.GenerateContentConfig{
			Temperature:      &temperature,
			MaxOutputTokens:  int32(cfg.MaxTokens),
			ResponseMIMEType: "application/json",
			ResponseSchema:   questionSchema,
		},
	}, nil
}

// Name implements Completer.
func (c *GeminiCompleter) Name() string { return ProviderGemini }

// Complete implements Completer.
func (c *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	cfg := *c.contentConfig
	cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: prompt + jsonModeSuffix}}}

	contents := []*genai.Content{genai.NewContentFromText(generateRequest, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &cfg)
	if err != nil {
		status := 0
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		return "", errs.NewGenerationAPIError(ProviderGemini, status, "generate content failed", err)
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", errs.NewGenerationAPIError(ProviderGemini, 0,
			fmt.Sprintf("prompt blocked: %v", fb.BlockReason), nil)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errs.NewGenerationAPIError(ProviderGemini, 0, "response has no candidates", nil)
	}

	return resp.Text(), nil
}
