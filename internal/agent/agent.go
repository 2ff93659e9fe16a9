// Package agent talks to the conversational agents that play the interviewers.
package agent

import (
	"context"
	"fmt"
	"io"
	"strings"

	"peerprep/interview/internal/llm"
	"peerprep/interview/internal/models"
)

// Gateway returns the next interviewer utterance for a role, either whole or
// as a stream of deltas.
type Gateway interface {
	Ask(ctx context.Context, role models.InterviewerRole, in Inputs) (string, error)
	AskStream(ctx context.Context, role models.InterviewerRole, in Inputs) (Stream, error)
}

// Stream yields text deltas in order. Recv returns io.EOF once the agent has
// finished. Close releases the upstream connection and may be called at any
// time, more than once.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Inputs is the context handed to the agent for one question.
type Inputs struct {
	SessionID      string
	CandidateName  string
	JobRole        string
	ProfileSummary string
	Answer         string
	Reaction       string
	Mode           string
	Avoid          []string
	AskedQuestions []string
	// Query is the fully composed request text.
	Query string
}

// Variables flattens the inputs into the string map agent apps expect.
func (in Inputs) Variables() map[string]string {
	return map[string]string{
		"name":            in.CandidateName,
		"job_role":        in.JobRole,
		"profile_summary": in.ProfileSummary,
		"answer":          in.Answer,
		"reaction":        in.Reaction,
		"mode":            in.Mode,
		"avoid":           strings.Join(in.Avoid, "\n"),
		"asked_questions": strings.Join(in.AskedQuestions, "\n"),
	}
}

// Unavailable wraps a provider failure as ErrAgentUnavailable.
func Unavailable(provider, message string, err error) error {
	return fmt.Errorf("%w: %w", models.ErrAgentUnavailable, llm.Classify(provider, message, err))
}

// Collect drains a stream into a single string and closes it.
func Collect(s Stream) (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		delta, err := s.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		b.WriteString(delta)
	}
}
