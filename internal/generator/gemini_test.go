package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edgard/quizbot/internal/config"
	"github.com/edgard/quizbot/internal/errs"
)

const capitalJSON = `{"question":"What is the capital of India?","options":["Mumbai","New Delhi","Kolkata","Chennai"],"correct":"B","explanation":"New Delhi is the capital."}`

func newGeminiServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("x-goog-api-key"); got != "gm-test" {
			t.Errorf("x-goog-api-key header = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if seen != nil {
			if err := json.Unmarshal(raw, seen); err != nil {
				t.Errorf("request body is not json: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func geminiConfig(baseURL string) config.AIConfig {
	return config.AIConfig{
		Provider:    ProviderGemini,
		APIKey:      "gm-test",
		BaseURL:     baseURL,
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
		MaxTokens:   400,
		Timeout:     5 * time.Second,
	}
}

func geminiCandidate(text string) string {
	reply, _ := json.Marshal(text)
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` + string(reply) + `}]},"finishReason":"STOP","index":0}]}`
}

func TestGeminiCompleter(t *testing.T) {
	t.Parallel()

	t.Run("sends json schema request", func(t *testing.T) {
		t.Parallel()
		var seen map[string]any
		srv := newGeminiServer(t, http.StatusOK, geminiCandidate(capitalJSON), &seen)
		c, err := NewGeminiCompleter(context.Background(), geminiConfig(srv.URL))
		if err != nil {
			t.Fatalf("NewGeminiCompleter() error = %v", err)
		}

		got, err := c.Complete(context.Background(), "system prompt")
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if got != capitalJSON {
			t.Errorf("Complete() = %q", got)
		}

		gen, _ := seen["generationConfig"].(map[string]any)
		if gen["responseMimeType"] != "application/json" {
			t.Errorf("responseMimeType = %v", gen["responseMimeType"])
		}
		if gen["maxOutputTokens"] != float64(400) {
			t.Errorf("maxOutputTokens = %v", gen["maxOutputTokens"])
		}
		schema, _ := gen["responseSchema"].(map[string]any)
		if schema["type"] != "OBJECT" {
			t.Errorf("responseSchema type = %v", schema["type"])
		}
		required, _ := schema["required"].([]any)
		if len(required) != 4 {
			t.Errorf("responseSchema required = %v", schema["required"])
		}

		sys, _ := seen["systemInstruction"].(map[string]any)
		parts, _ := sys["parts"].([]any)
		if len(parts) != 1 {
			t.Fatalf("systemInstruction parts = %v", sys["parts"])
		}
		first, _ := parts[0].(map[string]any)
		text, _ := first["text"].(string)
		if !strings.HasPrefix(text, "system prompt") || !strings.HasSuffix(text, jsonModeSuffix) {
			t.Errorf("systemInstruction text = %q", text)
		}

		contents, _ := seen["contents"].([]any)
		if len(contents) != 1 {
			t.Fatalf("contents = %v", seen["contents"])
		}
		user, _ := contents[0].(map[string]any)
		if user["role"] != "user" {
			t.Errorf("contents role = %v", user["role"])
		}
	})

	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		errPart    string
	}{
		{
			name:    "prompt blocked",
			status:  http.StatusOK,
			body:    `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			errPart: "SAFETY",
		},
		{
			name:    "no candidates",
			status:  http.StatusOK,
			body:    `{"candidates":[]}`,
			errPart: "no candidates",
		},
		{
			name:    "candidate without content",
			status:  http.StatusOK,
			body:    `{"candidates":[{"finishReason":"MAX_TOKENS","index":0}]}`,
			errPart: "no candidates",
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			body:       `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`,
			wantStatus: http.StatusTooManyRequests,
			errPart:    "generate content failed",
		},
		{
			name:       "server error",
			status:     http.StatusInternalServerError,
			body:       `{"error":{"code":500,"message":"Internal error","status":"INTERNAL"}}`,
			wantStatus: http.StatusInternalServerError,
			errPart:    "generate content failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newGeminiServer(t, tt.status, tt.body, nil)
			c, err := NewGeminiCompleter(context.Background(), geminiConfig(srv.URL))
			if err != nil {
				t.Fatalf("NewGeminiCompleter() error = %v", err)
			}

			_, err = c.Complete(context.Background(), "p")
			var apiErr *errs.GenerationAPIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error type = %T (%v), want *errs.GenerationAPIError", err, err)
			}
			if apiErr.Provider != ProviderGemini || apiErr.Status != tt.wantStatus {
				t.Errorf("apiErr = %+v", apiErr)
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error = %q, want it to contain %q", err, tt.errPart)
			}
		})
	}

	t.Run("generator end to end", func(t *testing.T) {
		t.Parallel()
		srv := newGeminiServer(t, http.StatusOK, geminiCandidate(capitalJSON), nil)
		c, err := NewGeminiCompleter(context.Background(), geminiConfig(srv.URL))
		if err != nil {
			t.Fatalf("NewGeminiCompleter() error = %v", err)
		}

		g := New(c, "p", time.Minute, nil)
		q, err := g.Generate(context.Background())
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if q.Stem != "What is the capital of India?" || q.CorrectIndex != 1 || q.Explanation != "New Delhi is the capital." {
			t.Errorf("question = %+v", q)
		}
	})
}
