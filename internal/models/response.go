package models

import "time"

// uniform error responses
type ErrorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Details []ValidationErrorDetail `json:"details,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Code + ": " + e.Message
}

// single field validation error
type ValidationErrorDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type StartResponse struct {
	SessionID string          `json:"session_id"`
	Role      InterviewerRole `json:"role"`
	Question  string          `json:"question"`
	Round     int             `json:"round"`
}

// AnswerMeta is sent ahead of the streamed question.
type AnswerMeta struct {
	Role     InterviewerRole `json:"role,omitempty"`
	Round    int             `json:"round"`
	Ended    bool            `json:"ended"`
	Reaction string          `json:"reaction,omitempty"`
}

type AnswerResponse struct {
	Role     InterviewerRole `json:"role,omitempty"`
	Question string          `json:"question"`
	Round    int             `json:"round"`
	Ended    bool            `json:"ended"`
	Reaction string          `json:"reaction,omitempty"`
}

// AnswerFrame is a websocket message. Clients send {"text": ...}; the server
// answers with a meta frame, delta frames and a done frame, or an error frame.
type AnswerFrame struct {
	Type  string         `json:"type,omitempty"`
	Text  string         `json:"text,omitempty"`
	Delta string         `json:"delta,omitempty"`
	Meta  *AnswerMeta    `json:"meta,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// websocket frame types
const (
	FrameMeta  = "meta"
	FrameDelta = "delta"
	FrameDone  = "done"
	FrameError = "error"
)

type Summary struct {
	Summary string   `json:"summary"`
	Bullets []string `json:"bullets"`
}

type Report struct {
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	Recommendations []string `json:"recommendations"`
}

type SessionListResponse struct {
	Items  []SessionRecord `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type SessionDetailResponse struct {
	Session  SessionRecord   `json:"session"`
	Messages []MessageRecord `json:"messages"`
}

type TranscriptionResponse struct {
	Text string `json:"text"`
}

// GenerationResponse is what an llm.Provider returns for a single prompt.
type GenerationResponse struct {
	Content  string             `json:"content"`
	Metadata GenerationMetadata `json:"metadata"`
}

type GenerationMetadata struct {
	ProcessingTime int       `json:"processing_time_ms"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	ModelVersion   string    `json:"model_version,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
}
