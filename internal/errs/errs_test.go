package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	tests := []struct {
		name  string
		err   error
		code  string
		fatal bool
	}{
		{name: "nil", err: nil, code: CodeUnknown},
		{name: "plain error", err: cause, code: CodeUnknown},
		{name: "config", err: NewConfigError("missing token", nil), code: CodeConfig, fatal: true},
		{name: "wrapped config", err: fmt.Errorf("load: %w", NewConfigError("bad", cause)), code: CodeConfig, fatal: true},
		{name: "database", err: NewDatabaseError("insert", cause), code: CodeDatabase},
		{name: "generation api", err: NewGenerationAPIError("openai", 500, "completion failed", cause), code: CodeGenerationAPI},
		{name: "generation parse", err: NewGenerationParseError("no marker", "raw"), code: CodeGenerationParse},
		{name: "dispatch auth", err: NewDispatchAuthError("@chan", "forbidden", cause), code: CodeDispatchAuth},
		{name: "dispatch api", err: NewDispatchAPIError("@chan", 3, "rate limited", cause), code: CodeDispatchAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Code(tt.err); got != tt.code {
				t.Errorf("Code() = %q, want %q", got, tt.code)
			}
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.fatal)
			}
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewDispatchAPIError("-100123", 0, "send poll failed", cause)

	if got, want := err.Error(), "send poll failed: connection reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}

	var apiErr *DispatchAPIError
	if !errors.As(err, &apiErr) {
		t.Fatal("errors.As should match *DispatchAPIError")
	}
	if apiErr.ChannelID != "-100123" {
		t.Errorf("ChannelID = %q", apiErr.ChannelID)
	}

	parseErr := NewGenerationParseError("expected 4 options, found 3", "Q: x")
	if got, want := parseErr.Error(), "expected 4 options, found 3"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
