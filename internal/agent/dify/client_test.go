package dify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"peerprep/interview/internal/agent"
	"peerprep/interview/internal/llm"
	"peerprep/interview/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL: server.URL + "/v1/",
		Keys: map[models.InterviewerRole]string{
			models.RoleA: "key-a",
			models.RoleB: "key-b",
		},
	}, server.Client())
}

func TestAskBlocking(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat-messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-b" {
			t.Errorf("expected role B key, got %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseMode != "blocking" || req.User != "s1" || req.Inputs["name"] != "지원자" || req.Query != "query" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"answer": " 팀에서 갈등이 있었던 경험이 있나요? "})
	})

	answer, err := client.Ask(context.Background(), models.RoleB, agent.Inputs{SessionID: "s1", CandidateName: "지원자", Query: "query"})
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if answer != "팀에서 갈등이 있었던 경험이 있나요?" {
		t.Fatalf("unexpected answer %q", answer)
	}
}

func TestAskStreaming(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"event":"message","answer":"최근 "}`,
			`{"event":"ping"}`,
			`{"event":"agent_message","answer":"프로젝트에서"}`,
			`{"event":"message","answer":" 맡은 역할은?"}`,
			`{"event":"message_end"}`,
			`{"event":"message","answer":"ignored"}`,
		}
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
		}
	})

	stream, err := client.AskStream(context.Background(), models.RoleA, agent.Inputs{Query: "q"})
	if err != nil {
		t.Fatalf("AskStream returned error: %v", err)
	}
	text, err := agent.Collect(stream)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if text != "최근 프로젝트에서 맡은 역할은?" {
		t.Fatalf("unexpected streamed text %q", text)
	}
}

func TestAskStreamingErrorEvent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"event\":\"message\",\"answer\":\"부분\"}\n\n")
		fmt.Fprint(w, "data: {\"event\":\"error\",\"code\":\"provider_quota\",\"message\":\"quota exceeded\"}\n\n")
	})

	stream, err := client.AskStream(context.Background(), models.RoleA, agent.Inputs{Query: "q"})
	if err != nil {
		t.Fatalf("AskStream returned error: %v", err)
	}
	defer stream.Close()

	if d, err := stream.Recv(); err != nil || d != "부분" {
		t.Fatalf("expected first delta, got %q %v", d, err)
	}
	_, err = stream.Recv()
	if !errors.Is(err, models.ErrAgentUnavailable) {
		t.Fatalf("expected agent unavailable, got %v", err)
	}
	if _, err := stream.Recv(); err != io.EOF {
		t.Fatalf("expected EOF after error, got %v", err)
	}
}

func TestUpstreamFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"too_many_requests"}`, http.StatusTooManyRequests)
	})

	_, err := client.Ask(context.Background(), models.RoleA, agent.Inputs{Query: "q"})
	var provErr *llm.ProviderError
	if !errors.Is(err, models.ErrAgentUnavailable) || !errors.As(err, &provErr) || provErr.Code != llm.ErrCodeRateLimit {
		t.Fatalf("expected rate limited agent error, got %v", err)
	}

	_, err = client.Ask(context.Background(), models.RoleC, agent.Inputs{Query: "q"})
	if !errors.As(err, &provErr) || provErr.Code != llm.ErrCodeAPIKey {
		t.Fatalf("expected missing key error for role C, got %v", err)
	}
}

func TestAskTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Ask(ctx, models.RoleA, agent.Inputs{Query: "q"})
	var provErr *llm.ProviderError
	if !errors.Is(err, models.ErrAgentUnavailable) || !errors.As(err, &provErr) || provErr.Code != llm.ErrCodeTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}
