package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionRecord is the persisted header of an interview.
type SessionRecord struct {
	ID             string         `gorm:"primaryKey;size:64" json:"id"`
	UserID         string         `gorm:"index;size:64" json:"user_id,omitempty"`
	CandidateName  string         `gorm:"size:64;not null" json:"candidate_name"`
	JobRole        string         `gorm:"size:128;not null" json:"job_role"`
	ProfileSummary string         `gorm:"type:text" json:"profile_summary,omitempty"`
	Status         SessionStatus  `gorm:"size:16;not null;index" json:"status"`
	StartedAt      time.Time      `gorm:"not null" json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// MessageRecord is one persisted turn.
type MessageRecord struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	SessionID       string          `gorm:"size:64;not null;index:idx_message_turn,priority:1" json:"session_id"`
	Turn            int             `gorm:"not null;index:idx_message_turn,priority:2" json:"turn"`
	Speaker         Speaker         `gorm:"size:16;not null" json:"speaker"`
	InterviewerRole InterviewerRole `gorm:"size:16" json:"interviewer_role,omitempty"`
	Text            string          `gorm:"type:text;not null" json:"text"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ArtifactRecord holds the first generated summary or report of a session.
// The payload is stored verbatim so later reads are byte-identical.
type ArtifactRecord struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"size:64;not null;uniqueIndex:idx_artifact_kind,priority:1"`
	Kind      string    `gorm:"size:16;not null;uniqueIndex:idx_artifact_kind,priority:2"`
	Payload   string    `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// AllRecords lists the tables owned by this service, in migration order.
func AllRecords() []interface{} {
	return []interface{}{&SessionRecord{}, &MessageRecord{}, &ArtifactRecord{}}
}
