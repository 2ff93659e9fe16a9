// Package openai provides an llm.Provider backed by langchaingo's OpenAI client.
package openai

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"peerprep/interview/internal/llm"
	"peerprep/interview/internal/models"
)

const providerName = "openai"

type Client struct {
	model  llms.Model
	config *Config
}

func NewClient(config *Config) (*Client, error) {
	opts := []lcopenai.Option{
		lcopenai.WithToken(config.APIKey),
		lcopenai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(config.BaseURL))
	}

	model, err := lcopenai.New(opts...)
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  "Failed to create OpenAI client",
			Err:      err,
		}
	}
	return &Client{model: model, config: config}, nil
}

func (c *Client) GenerateContent(ctx context.Context, prompt string, requestID string) (*models.GenerationResponse, error) {
	start := time.Now()
	text, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
	if err != nil {
		return nil, llm.Classify(providerName, "Failed to generate content", err)
	}
	if text == "" {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "Empty response generated",
		}
	}
	return &models.GenerationResponse{
		Content: text,
		Metadata: models.GenerationMetadata{
			ProcessingTime: int(time.Since(start).Milliseconds()),
			Provider:       providerName,
			Model:          c.config.Model,
			GeneratedAt:    time.Now(),
		},
	}, nil
}

// StreamContent relays completion chunks as they arrive.
func (c *Client) StreamContent(ctx context.Context, prompt string, requestID string, onDelta func(string) error) error {
	_, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onDelta(string(chunk))
		}),
	)
	if err != nil {
		return llm.Classify(providerName, "Failed to stream content", err)
	}
	return nil
}

func (c *Client) GetProviderName() string {
	return providerName
}
