package llm

import (
	"context"
	"errors"
	"strings"

	"peerprep/interview/internal/models"
)

// defines the interface for LLM providers
type Provider interface {
	GenerateContent(ctx context.Context, prompt string, requestID string) (*models.GenerationResponse, error)
	GetProviderName() string
}

// StreamingProvider is implemented by providers that can emit partial output.
// onDelta is called for every chunk in order; returning an error aborts the call.
type StreamingProvider interface {
	Provider
	StreamContent(ctx context.Context, prompt string, requestID string, onDelta func(string) error) error
}

// represents an error from an LLM provider
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes
// For current and future use across different providers
const (
	ErrCodeAPIKey       = "invalid_api_key"
	ErrCodeRateLimit    = "rate_limit_exceeded"
	ErrCodeServiceDown  = "service_unavailable"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeTimeout      = "timeout"
)

// Classify wraps err into a ProviderError with the best matching code.
func Classify(provider, message string, err error) *ProviderError {
	var existing *ProviderError
	if errors.As(err, &existing) {
		return existing
	}
	return &ProviderError{
		Provider: provider,
		Code:     codeFor(err),
		Message:  message,
		Err:      err,
	}
}

func codeFor(err error) string {
	switch {
	case err == nil:
		return ErrCodeServiceDown
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case IsRateLimitError(err):
		return ErrCodeRateLimit
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"), strings.Contains(msg, "api key"), strings.Contains(msg, "unauthorized"):
		return ErrCodeAPIKey
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return ErrCodeTimeout
	}
	return ErrCodeServiceDown
}

// IsRateLimitError matches the rate limit wording used by the upstream APIs.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}
