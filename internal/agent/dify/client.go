// Package dify implements agent.Gateway on top of Dify chat apps, one app
// (and API key) per interviewer role.
package dify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"peerprep/interview/internal/agent"
	"peerprep/interview/internal/llm"
	"peerprep/interview/internal/models"
)

const providerName = "dify"

type Config struct {
	BaseURL string
	// Keys maps each role, including the summarizer, to its app key.
	Keys map[models.InterviewerRole]string
}

type Client struct {
	baseURL string
	keys    map[models.InterviewerRole]string
	http    *http.Client
}

// NewClient builds a client. Deadlines come from the caller's context so a
// streamed answer is not cut off by a fixed client timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		keys:    cfg.Keys,
		http:    httpClient,
	}
}

type chatRequest struct {
	Inputs       map[string]string `json:"inputs"`
	Query        string            `json:"query"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

type streamEvent struct {
	Event   string `json:"event"`
	Answer  string `json:"answer"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (c *Client) Ask(ctx context.Context, role models.InterviewerRole, in agent.Inputs) (string, error) {
	resp, err := c.post(ctx, role, in, "blocking")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", agent.Unavailable(providerName, "invalid blocking response", err)
	}
	answer := strings.TrimSpace(out.Answer)
	if answer == "" {
		return "", fmt.Errorf("%w: %w", models.ErrAgentUnavailable, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "empty answer",
		})
	}
	return answer, nil
}

func (c *Client) AskStream(ctx context.Context, role models.InterviewerRole, in agent.Inputs) (agent.Stream, error) {
	resp, err := c.post(ctx, role, in, "streaming")
	if err != nil {
		return nil, err
	}
	reader := bufio.NewReaderSize(resp.Body, 64*1024)
	return &sseStream{body: resp.Body, reader: reader}, nil
}

func (c *Client) post(ctx context.Context, role models.InterviewerRole, in agent.Inputs, mode string) (*http.Response, error) {
	key := c.keys[role]
	if key == "" {
		return nil, fmt.Errorf("%w: %w", models.ErrAgentUnavailable, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  fmt.Sprintf("no API key configured for role %s", role),
		})
	}

	user := in.SessionID
	if user == "" {
		user = "interview"
	}
	body, err := json.Marshal(chatRequest{
		Inputs:       in.Variables(),
		Query:        in.Query,
		ResponseMode: mode,
		User:         user,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat-messages", bytes.NewReader(body))
	if err != nil {
		return nil, agent.Unavailable(providerName, "building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, agent.Unavailable(providerName, "request failed", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, agent.Unavailable(providerName, "unexpected status",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	return resp, nil
}

// sseStream reads Dify's server-sent events and yields answer deltas.
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

func (s *sseStream) Recv() (string, error) {
	for !s.done {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				// stream ended without message_end; what we have is the answer
				return "", io.EOF
			}
			return "", agent.Unavailable(providerName, "stream read failed", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		switch ev.Event {
		case "message", "agent_message":
			if ev.Answer != "" {
				return ev.Answer, nil
			}
		case "message_end":
			s.done = true
		case "error":
			s.done = true
			return "", agent.Unavailable(providerName, "stream error event",
				fmt.Errorf("%s: %s", ev.Code, ev.Message))
		}
	}
	return "", io.EOF
}

func (s *sseStream) Close() error {
	s.done = true
	return s.body.Close()
}
