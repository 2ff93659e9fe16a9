package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"text/template"

	"peerprep/interview/internal/llm"
	"peerprep/interview/internal/models"
)

type mockProvider struct {
	generateContentFn func(ctx context.Context, prompt, requestID string) (*models.GenerationResponse, error)
}

func (m *mockProvider) GenerateContent(ctx context.Context, prompt, requestID string) (*models.GenerationResponse, error) {
	return m.generateContentFn(ctx, prompt, requestID)
}

func (m *mockProvider) GetProviderName() string { return "mock" }

type mockStreamingProvider struct {
	mockProvider
	streamContentFn func(ctx context.Context, prompt, requestID string, onDelta func(string) error) error
}

func (m *mockStreamingProvider) StreamContent(ctx context.Context, prompt, requestID string, onDelta func(string) error) error {
	return m.streamContentFn(ctx, prompt, requestID, onDelta)
}

type mockPromptManager struct{}

func (mockPromptManager) BuildPrompt(mode, variant string, data interface{}) (string, error) {
	if variant == "missing" {
		return "", fmt.Errorf("variant '%s' not found", variant)
	}
	return "persona:" + variant, nil
}

func (mockPromptManager) GetTemplates() map[string]map[string]*template.Template {
	return nil
}

func TestRolePickerNeverRepeatsConsecutively(t *testing.T) {
	for seed := uint64(0); seed < 200; seed++ {
		picker := NewRolePicker(seed)
		prev := picker.First()
		if !prev.Valid() {
			t.Fatalf("seed %d: invalid first role %q", seed, prev)
		}
		for i := 0; i < 50; i++ {
			next := picker.Next(prev)
			if next == prev {
				t.Fatalf("seed %d: role %s repeated at draw %d", seed, next, i)
			}
			if !next.Valid() {
				t.Fatalf("seed %d: invalid role %q", seed, next)
			}
			prev = next
		}
	}
}

func TestRolePickerCoversAllRoles(t *testing.T) {
	picker := NewRolePicker(42)
	seen := map[models.InterviewerRole]int{}
	for i := 0; i < 300; i++ {
		seen[picker.First()]++
	}
	for _, r := range models.InterviewerRoles {
		if seen[r] == 0 {
			t.Fatalf("role %s never drawn as first role: %v", r, seen)
		}
	}

	// with prev=A only B and C are eligible, both should appear
	seen = map[models.InterviewerRole]int{}
	for i := 0; i < 300; i++ {
		seen[picker.Next(models.RoleA)]++
	}
	if seen[models.RoleA] != 0 || seen[models.RoleB] == 0 || seen[models.RoleC] == 0 {
		t.Fatalf("unexpected distribution after A: %v", seen)
	}
}

func TestProviderGatewayAsk(t *testing.T) {
	var gotPrompt string
	provider := &mockProvider{generateContentFn: func(_ context.Context, prompt, requestID string) (*models.GenerationResponse, error) {
		gotPrompt = prompt
		if !strings.HasPrefix(requestID, "s1/") {
			t.Errorf("expected request id scoped to session, got %s", requestID)
		}
		return &models.GenerationResponse{Content: "다음 질문"}, nil
	}}
	gw := NewProviderGateway(provider, mockPromptManager{})

	text, err := gw.Ask(context.Background(), models.RoleB, Inputs{SessionID: "s1", Query: "query"})
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if text != "다음 질문" || gotPrompt != "persona:B\n\nquery" {
		t.Fatalf("unexpected result %q / prompt %q", text, gotPrompt)
	}
}

func TestProviderGatewayWrapsFailures(t *testing.T) {
	provider := &mockProvider{generateContentFn: func(context.Context, string, string) (*models.GenerationResponse, error) {
		return nil, &llm.ProviderError{Provider: "mock", Code: llm.ErrCodeServiceDown, Message: "down"}
	}}
	gw := NewProviderGateway(provider, mockPromptManager{})

	_, err := gw.Ask(context.Background(), models.RoleA, Inputs{Query: "q"})
	if !errors.Is(err, models.ErrAgentUnavailable) {
		t.Fatalf("expected agent unavailable, got %v", err)
	}
	var provErr *llm.ProviderError
	if !errors.As(err, &provErr) || provErr.Code != llm.ErrCodeServiceDown {
		t.Fatalf("expected provider details, got %v", err)
	}

	if _, err := gw.AskStream(context.Background(), models.RoleA, Inputs{Query: "q"}); !errors.Is(err, models.ErrAgentUnavailable) {
		t.Fatalf("expected agent unavailable from non-streaming fallback, got %v", err)
	}
	if _, err := gw.Ask(context.Background(), models.RoleA, Inputs{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty query, got %v", err)
	}
}

func TestProviderGatewayStreamsNatively(t *testing.T) {
	provider := &mockStreamingProvider{
		streamContentFn: func(ctx context.Context, prompt, requestID string, onDelta func(string) error) error {
			for _, d := range []string{"최근 ", "프로젝트는", "?"} {
				if err := onDelta(d); err != nil {
					return err
				}
			}
			return nil
		},
	}
	gw := NewProviderGateway(provider, mockPromptManager{})

	stream, err := gw.AskStream(context.Background(), models.RoleC, Inputs{Query: "q"})
	if err != nil {
		t.Fatalf("AskStream returned error: %v", err)
	}
	text, err := Collect(stream)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if text != "최근 프로젝트는?" {
		t.Fatalf("unexpected streamed text %q", text)
	}
}

func TestFuncStreamReportsProducerError(t *testing.T) {
	stream := NewFuncStream(context.Background(), func(ctx context.Context, emit func(string) error) error {
		emit("partial")
		return errors.New("upstream dropped")
	})

	if d, err := stream.Recv(); err != nil || d != "partial" {
		t.Fatalf("expected partial delta, got %q %v", d, err)
	}
	if _, err := stream.Recv(); err == nil || err == io.EOF {
		t.Fatalf("expected producer error, got %v", err)
	}
}

func TestFuncStreamCloseCancelsProducer(t *testing.T) {
	stopped := make(chan struct{})
	stream := NewFuncStream(context.Background(), func(ctx context.Context, emit func(string) error) error {
		defer close(stopped)
		for {
			if err := emit("tick"); err != nil {
				return err
			}
		}
	})

	if _, err := stream.Recv(); err != nil {
		t.Fatalf("Recv returned error: %v", err)
	}
	stream.Close()
	<-stopped
	stream.Close()
}

func TestStaticStream(t *testing.T) {
	stream := NewStaticStream("a", "b")
	text, err := Collect(stream)
	if err != nil || text != "ab" {
		t.Fatalf("unexpected collect result %q %v", text, err)
	}
	if _, err := stream.Recv(); err != io.EOF {
		t.Fatalf("expected EOF after close, got %v", err)
	}
}

func TestInputsVariables(t *testing.T) {
	vars := Inputs{CandidateName: "지원자", Avoid: []string{"q1", "q2"}, Mode: "followup"}.Variables()
	if vars["name"] != "지원자" || vars["avoid"] != "q1\nq2" || vars["mode"] != "followup" {
		t.Fatalf("unexpected variables %v", vars)
	}
}

type countingGateway struct{ calls int }

func (c *countingGateway) Ask(context.Context, models.InterviewerRole, Inputs) (string, error) {
	c.calls++
	return "ok", nil
}

func (c *countingGateway) AskStream(context.Context, models.InterviewerRole, Inputs) (Stream, error) {
	c.calls++
	return NewStaticStream("ok"), nil
}

func TestWithRateLimit(t *testing.T) {
	inner := &countingGateway{}
	if WithRateLimit(inner, 0, 0) != Gateway(inner) {
		t.Fatal("expected zero rate to disable limiting")
	}

	gw := WithRateLimit(inner, 0.001, 1)
	if _, err := gw.Ask(context.Background(), models.RoleA, Inputs{}); err != nil {
		t.Fatalf("first call should use the burst: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gw.AskStream(ctx, models.RoleA, Inputs{})
	if !errors.Is(err, models.ErrAgentUnavailable) {
		t.Fatalf("expected agent unavailable when limiter wait fails, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", inner.calls)
	}
}
