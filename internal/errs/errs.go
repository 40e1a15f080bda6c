// Package errs defines the coded error types shared across quizbot components.
package errs

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown         = "UNKNOWN"
	CodeConfig          = "CONFIG"
	CodeDatabase        = "DATABASE"
	CodeGenerationAPI   = "GENERATION_API"
	CodeGenerationParse = "GENERATION_PARSE"
	CodeDispatchAuth    = "DISPATCH_AUTH"
	CodeDispatchAPI     = "DISPATCH_API"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't carry one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// IsFatal reports whether err must stop the process instead of a single cycle.
func IsFatal(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

type ConfigError struct {
	base Error
}

func (e *ConfigError) Error() string { return e.base.Error() }
func (e *ConfigError) Code() string  { return e.base.Code() }
func (e *ConfigError) Unwrap() error { return e.base.Unwrap() }

func NewConfigError(message string, cause error) error {
	return &ConfigError{base: Error{code: CodeConfig, message: message, err: cause}}
}

type DatabaseError struct {
	base Error
}

func (e *DatabaseError) Error() string { return e.base.Error() }
func (e *DatabaseError) Code() string  { return e.base.Code() }
func (e *DatabaseError) Unwrap() error { return e.base.Unwrap() }

func NewDatabaseError(message string, cause error) error {
	return &DatabaseError{base: Error{code: CodeDatabase, message: message, err: cause}}
}

// GenerationAPIError reports a failed call to the completion API.
type GenerationAPIError struct {
	base Error

	// Provider names the completion backend ("openai", "gemini").
	Provider string
	// Status is the HTTP status reported by the provider, 0 when unknown.
	Status int
}

func (e *GenerationAPIError) Error() string { return e.base.Error() }
func (e *GenerationAPIError) Code() string  { return e.base.Code() }
func (e *GenerationAPIError) Unwrap() error { return e.base.Unwrap() }

func NewGenerationAPIError(provider string, status int, message string, cause error) error {
	return &GenerationAPIError{
		base:     Error{code: CodeGenerationAPI, message: message, err: cause},
		Provider: provider,
		Status:   status,
	}
}

// GenerationParseError reports a completion that does not follow the question template.
type GenerationParseError struct {
	base Error

	// Raw holds the completion text that failed to parse.
	Raw string
}

func (e *GenerationParseError) Error() string { return e.base.Error() }
func (e *GenerationParseError) Code() string  { return e.base.Code() }
func (e *GenerationParseError) Unwrap() error { return e.base.Unwrap() }

func NewGenerationParseError(message, raw string) error {
	return &GenerationParseError{
		base: Error{code: CodeGenerationParse, message: message},
		Raw:  raw,
	}
}

// DispatchAuthError reports that the bot is not allowed to post to the channel.
type DispatchAuthError struct {
	base Error

	ChannelID string
}

func (e *DispatchAuthError) Error() string { return e.base.Error() }
func (e *DispatchAuthError) Code() string  { return e.base.Code() }
func (e *DispatchAuthError) Unwrap() error { return e.base.Unwrap() }

func NewDispatchAuthError(channelID, message string, cause error) error {
	return &DispatchAuthError{
		base:      Error{code: CodeDispatchAuth, message: message, err: cause},
		ChannelID: channelID,
	}
}

// DispatchAPIError reports a delivery failure (network, rate limit, rejected payload).
type DispatchAPIError struct {
	base Error

	ChannelID string
	// RetryAfter is the server-requested wait in seconds when rate limited.
	RetryAfter int
}

func (e *DispatchAPIError) Error() string { return e.base.Error() }
func (e *DispatchAPIError) Code() string  { return e.base.Code() }
func (e *DispatchAPIError) Unwrap() error { return e.base.Unwrap() }

func NewDispatchAPIError(channelID string, retryAfter int, message string, cause error) error {
	return &DispatchAPIError{
		base:       Error{code: CodeDispatchAPI, message: message, err: cause},
		ChannelID:  channelID,
		RetryAfter: retryAfter,
	}
}
