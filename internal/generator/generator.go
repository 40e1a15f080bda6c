// Package generator produces quiz questions from a language-model completion API.
// A Generator sends a fixed instruction prompt through a Completer and parses
// the reply into a quiz.Question.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/quizbot/internal/config"
	"github.com/edgard/quizbot/internal/errs"
	"github.com/edgard/quizbot/internal/logger"
	"github.com/edgard/quizbot/internal/quiz"
)

// Completer sends a prompt to a completion backend and returns the raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Name identifies the backend in logs and errors.
	Name() string
}

// Generator turns completions into validated questions. It never retries;
// the scheduler's next tick is the retry.
type Generator struct {
	completer Completer
	prompt    string
	timeout   time.Duration
	log       *slog.Logger
}

// New creates a Generator. A zero timeout leaves the deadline to ctx.
func New(completer Completer, prompt string, timeout time.Duration, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		completer: completer,
		prompt:    prompt,
		timeout:   timeout,
		log:       log.With("component", "generator", "provider", completer.Name()),
	}
}

// NewCompleter builds the Completer selected by cfg.Provider.
//
//nolint:ireturn // provider is chosen at runtime
func NewCompleter(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewOpenAICompleter(cfg), nil
	case ProviderGemini:
		return NewGeminiCompleter(ctx, cfg)
	default:
		return nil, errs.NewConfigError(fmt.Sprintf("unknown ai provider %q", cfg.Provider), nil)
	}
}

// Generate requests one completion and parses it.
// Errors are *errs.GenerationAPIError or *errs.GenerationParseError.
func (g *Generator) Generate(ctx context.Context) (*quiz.Question, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	g.log.DebugContext(ctx, "Requesting completion", "prompt_chars", len(g.prompt))

	raw, err := g.completer.Complete(ctx, g.prompt)
	if err != nil {
		var apiErr *errs.GenerationAPIError
		if !errors.As(err, &apiErr) {
			err = errs.NewGenerationAPIError(g.completer.Name(), 0, "completion request failed", err)
		}
		g.log.ErrorContext(ctx, "Completion request failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	if strings.TrimSpace(raw) == "" {
		err := errs.NewGenerationAPIError(g.completer.Name(), 0, "completion returned no text", nil)
		g.log.ErrorContext(ctx, "Empty completion", "duration", time.Since(start))
		return nil, err
	}

	q, err := Parse(raw)
	if err != nil {
		g.log.WarnContext(ctx, "Completion did not match the question template",
			"error", err,
			"response_preview", logger.Truncate(raw, 300))
		return nil, err
	}

	g.log.InfoContext(ctx, "Question generated",
		"stem_preview", logger.Truncate(q.Stem, 50),
		"correct", quiz.Letter(q.CorrectIndex),
		"duration", time.Since(start))
	return q, nil
}
