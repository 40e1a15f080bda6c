package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edgard/quizbot/internal/config"
	"github.com/edgard/quizbot/internal/errs"
	"github.com/edgard/quizbot/internal/logger"
)

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
	deadline bool
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	_, f.deadline = ctx.Deadline()
	return f.response, f.err
}

const capitalResponse = "Q: What is the capital of India?\nA) Mumbai\nB) New Delhi\nC) Kolkata\nD) Chennai\nCorrect: B\nExplanation: New Delhi is the capital."

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		fc := &fakeCompleter{response: capitalResponse}
		g := New(fc, "the prompt", time.Minute, logger.Discard())

		q, err := g.Generate(context.Background())
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if q.CorrectIndex != 1 || q.Options[1] != "New Delhi" {
			t.Errorf("unexpected question %+v", q)
		}
		if len(fc.prompts) != 1 || fc.prompts[0] != "the prompt" {
			t.Errorf("prompts sent = %q", fc.prompts)
		}
		if !fc.deadline {
			t.Error("completion context should carry the configured timeout")
		}
	})

	t.Run("transport error becomes GenerationAPIError", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("dial tcp: connection refused")
		g := New(&fakeCompleter{err: cause}, "p", 0, logger.Discard())

		q, err := g.Generate(context.Background())
		if q != nil {
			t.Errorf("expected no question, got %+v", q)
		}
		var apiErr *errs.GenerationAPIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error type = %T, want *errs.GenerationAPIError", err)
		}
		if apiErr.Provider != "fake" || !errors.Is(err, cause) {
			t.Errorf("error lost context: %+v", apiErr)
		}
	})

	t.Run("typed api error passes through", func(t *testing.T) {
		t.Parallel()
		orig := errs.NewGenerationAPIError("fake", 429, "rate limited", nil)
		g := New(&fakeCompleter{err: orig}, "p", 0, logger.Discard())

		_, err := g.Generate(context.Background())
		if err != orig {
			t.Errorf("Generate() error = %v, want the original error", err)
		}
	})

	t.Run("empty completion", func(t *testing.T) {
		t.Parallel()
		g := New(&fakeCompleter{response: "   "}, "p", 0, logger.Discard())

		_, err := g.Generate(context.Background())
		if errs.Code(err) != errs.CodeGenerationAPI {
			t.Errorf("Code = %s, want %s (%v)", errs.Code(err), errs.CodeGenerationAPI, err)
		}
	})

	t.Run("malformed completion", func(t *testing.T) {
		t.Parallel()
		g := New(&fakeCompleter{response: "Q: x\nA) 1\nB) 2\nCorrect: A"}, "p", 0, logger.Discard())

		q, err := g.Generate(context.Background())
		if q != nil {
			t.Errorf("expected no question, got %+v", q)
		}
		if errs.Code(err) != errs.CodeGenerationParse {
			t.Errorf("Code = %s, want %s (%v)", errs.Code(err), errs.CodeGenerationParse, err)
		}
	})
}

func TestNewCompleter(t *testing.T) {
	t.Parallel()

	c, err := NewCompleter(context.Background(), config.AIConfig{Provider: "openai", APIKey: "k", Model: "m", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewCompleter(openai) error = %v", err)
	}
	if c.Name() != ProviderOpenAI {
		t.Errorf("Name() = %q", c.Name())
	}

	_, err = NewCompleter(context.Background(), config.AIConfig{Provider: "llama"})
	if !errs.IsFatal(err) {
		t.Errorf("unknown provider should be a ConfigError, got %v", err)
	}
}
