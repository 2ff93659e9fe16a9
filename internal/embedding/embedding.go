// Package embedding turns text into vectors through an OpenAI-compatible
// embeddings endpoint (OpenAI itself or a local TEI server).
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"peerprep/interview/internal/llm"
	"peerprep/interview/internal/models"
)

const providerName = "embedding"

// Gateway embeds a single text. Dimensionality is fixed per configuration.
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("embedding model required")
	}
	return nil
}

// Service implements Gateway with langchaingo's embedder.
type Service struct {
	embedder embeddings.Embedder
	timeout  time.Duration
}

func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// TEI ignores the token but langchaingo insists on one
		apiKey = "placeholder"
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return NewServiceWithEmbedder(embedder, config.Timeout), nil
}

// NewServiceWithEmbedder wraps an existing langchaingo embedder.
func NewServiceWithEmbedder(embedder embeddings.Embedder, timeout time.Duration) *Service {
	return &Service{embedder: embedder, timeout: timeout}
}

func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text to embed is empty", models.ErrInvalidInput)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingProvider, llm.Classify(providerName, "Failed to embed text", err))
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingProvider, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "Empty embedding returned",
		})
	}
	return vector, nil
}
