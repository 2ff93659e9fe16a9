package models

import (
	"strings"
	"unicode/utf8"
)

const (
	maxAnswerRunes  = 5000
	maxProfileRunes = 4000
	maxSpeechRunes  = 2000
)

type StartRequest struct {
	CandidateName  string `json:"candidate_name"`
	JobRole        string `json:"job_role"`
	ProfileSummary string `json:"profile_summary,omitempty"`
}

// implements the Validator interface. Name and job role fall back to defaults
// downstream, so only the free-text profile is bounded here.
func (r *StartRequest) Validate() error {
	r.ProfileSummary = strings.TrimSpace(r.ProfileSummary)
	if utf8.RuneCountInString(r.ProfileSummary) > maxProfileRunes {
		return &ErrorResponse{
			Code:    "profile_too_long",
			Message: "profile_summary must be at most 4000 characters",
			Details: []ValidationErrorDetail{{Field: "profile_summary", Reason: "too_long"}},
		}
	}
	return nil
}

type AnswerRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// blank text is left to the orchestrator, which reports it as invalid input
func (r *AnswerRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return &ErrorResponse{Code: "missing_session_id", Message: "session_id is required"}
	}
	if utf8.RuneCountInString(r.Text) > maxAnswerRunes {
		return &ErrorResponse{
			Code:    "answer_too_long",
			Message: "text must be at most 5000 characters",
			Details: []ValidationErrorDetail{{Field: "text", Reason: "too_long"}},
		}
	}
	return nil
}

type FinishRequest struct {
	SessionID string `json:"session_id"`
}

func (r *FinishRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return &ErrorResponse{Code: "missing_session_id", Message: "session_id is required"}
	}
	return nil
}

type SpeechRequest struct {
	Text string          `json:"text"`
	Role InterviewerRole `json:"role,omitempty"`
}

func (r *SpeechRequest) Validate() error {
	r.Text = strings.TrimSpace(r.Text)
	if r.Text == "" {
		return &ErrorResponse{Code: "missing_text", Message: "text is required"}
	}
	if utf8.RuneCountInString(r.Text) > maxSpeechRunes {
		return &ErrorResponse{Code: "text_too_long", Message: "text must be at most 2000 characters"}
	}
	r.Role = InterviewerRole(strings.ToUpper(string(r.Role)))
	if r.Role != "" && !r.Role.Valid() {
		return &ErrorResponse{Code: "invalid_role", Message: "role must be one of A, B, C"}
	}
	return nil
}
