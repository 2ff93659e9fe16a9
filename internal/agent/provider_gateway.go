package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"peerprep/interview/internal/llm"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/prompts"
)

// ProviderGateway plays every role with a single LLM provider by prefixing
// the role's persona prompt to the query.
type ProviderGateway struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
}

func NewProviderGateway(provider llm.Provider, pm prompts.PromptProvider) *ProviderGateway {
	return &ProviderGateway{provider: provider, prompts: pm}
}

func (g *ProviderGateway) prompt(role models.InterviewerRole, in Inputs) (string, error) {
	if in.Query == "" {
		return "", fmt.Errorf("%w: empty agent query", models.ErrInvalidInput)
	}
	persona, err := g.prompts.BuildPrompt("persona", string(role), in)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return persona + "\n\n" + in.Query, nil
}

func (g *ProviderGateway) Ask(ctx context.Context, role models.InterviewerRole, in Inputs) (string, error) {
	prompt, err := g.prompt(role, in)
	if err != nil {
		return "", err
	}
	resp, err := g.provider.GenerateContent(ctx, prompt, requestID(in))
	if err != nil {
		return "", Unavailable(g.provider.GetProviderName(), "generation failed", err)
	}
	return resp.Content, nil
}

func (g *ProviderGateway) AskStream(ctx context.Context, role models.InterviewerRole, in Inputs) (Stream, error) {
	prompt, err := g.prompt(role, in)
	if err != nil {
		return nil, err
	}

	streamer, ok := g.provider.(llm.StreamingProvider)
	if !ok {
		text, err := g.Ask(ctx, role, in)
		if err != nil {
			return nil, err
		}
		return NewStaticStream(text), nil
	}

	name := g.provider.GetProviderName()
	id := requestID(in)
	return NewFuncStream(ctx, func(ctx context.Context, emit func(string) error) error {
		err := streamer.StreamContent(ctx, prompt, id, emit)
		if err != nil && !errors.Is(err, context.Canceled) {
			return Unavailable(name, "streaming failed", err)
		}
		return err
	}), nil
}

func requestID(in Inputs) string {
	if in.SessionID != "" {
		return in.SessionID + "/" + uuid.NewString()
	}
	return uuid.NewString()
}
