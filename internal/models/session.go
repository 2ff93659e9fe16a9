package models

import "time"

// Turn is a single utterance in an interview.
type Turn struct {
	Speaker   Speaker
	Role      InterviewerRole // empty for candidate turns
	Seq       int
	Text      string
	Reaction  string
	Embedding []float32
	CreatedAt time.Time
}

// Session is the in-memory state of one interview.
type Session struct {
	ID             string
	CandidateName  string
	JobRole        string
	ProfileSummary string
	Round          int
	Status         SessionStatus
	Questions      []Turn
	Answers        []Turn
	CreatedAt      time.Time
	EndedAt        *time.Time
	LastActivity   time.Time
}

func (s *Session) Ended() bool {
	return s.Status == StatusEnded
}

// LastRole returns the role of the most recent interviewer turn.
func (s *Session) LastRole() InterviewerRole {
	if len(s.Questions) == 0 {
		return ""
	}
	return s.Questions[len(s.Questions)-1].Role
}

// NextSeq is the sequence index the next turn will carry.
func (s *Session) NextSeq() int {
	return len(s.Questions) + len(s.Answers) + 1
}

// QuestionVectors returns the embeddings of every question asked so far.
func (s *Session) QuestionVectors() [][]float32 {
	return vectors(s.Questions)
}

func (s *Session) AnswerVectors() [][]float32 {
	return vectors(s.Answers)
}

func vectors(turns []Turn) [][]float32 {
	out := make([][]float32, 0, len(turns))
	for _, t := range turns {
		if len(t.Embedding) > 0 {
			out = append(out, t.Embedding)
		}
	}
	return out
}

// Clone returns a deep copy safe to read without holding the store lock.
func (s *Session) Clone() *Session {
	c := *s
	c.Questions = cloneTurns(s.Questions)
	c.Answers = cloneTurns(s.Answers)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t
		if t.Embedding != nil {
			out[i].Embedding = append([]float32(nil), t.Embedding...)
		}
	}
	return out
}
