package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"peerprep/interview/internal/models"
)

type fakeProvider struct{}

func (fakeProvider) GenerateContent(context.Context, string, string) (*models.GenerationResponse, error) {
	return &models.GenerationResponse{Content: "ok"}, nil
}

func (fakeProvider) GetProviderName() string { return "fake" }

func TestProviderErrorFormatting(t *testing.T) {
	inner := errors.New("boom")
	err := &ProviderError{Provider: "gemini", Message: "failed", Err: inner}
	if err.Error() != "gemini error: failed (boom)" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Fatal("expected ProviderError to unwrap to its cause")
	}

	plain := &ProviderError{Provider: "dify", Message: "down"}
	if plain.Error() != "dify error: down" {
		t.Fatalf("unexpected error string %q", plain.Error())
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]struct {
		err  error
		code string
	}{
		"deadline":   {fmt.Errorf("call: %w", context.DeadlineExceeded), ErrCodeTimeout},
		"rate limit": {errors.New("API returned unexpected status code: 429"), ErrCodeRateLimit},
		"quota":      {errors.New("RESOURCE_EXHAUSTED: quota"), ErrCodeRateLimit},
		"auth":       {errors.New("status 401 unauthorized"), ErrCodeAPIKey},
		"other":      {errors.New("connection refused"), ErrCodeServiceDown},
	}
	for name, tc := range cases {
		got := Classify("openai", "failed", tc.err)
		if got.Code != tc.code {
			t.Fatalf("%s: expected code %s, got %s", name, tc.code, got.Code)
		}
	}

	original := &ProviderError{Provider: "dify", Code: ErrCodeAPIKey}
	if got := Classify("other", "x", fmt.Errorf("wrapped: %w", original)); got != original {
		t.Fatal("expected existing ProviderError to be returned as is")
	}
}

func TestRegistry(t *testing.T) {
	RegisterProvider("fake", func() (Provider, error) { return fakeProvider{}, nil })

	p, err := NewProvider("fake")
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	if p.GetProviderName() != "fake" {
		t.Fatalf("unexpected provider %s", p.GetProviderName())
	}
	if _, err := NewProvider("missing"); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	found := false
	for _, name := range RegisteredProviders() {
		if name == "fake" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected fake provider to be listed")
	}
}
