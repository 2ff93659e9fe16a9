package similarity

import "peerprep/interview/internal/models"

const (
	DefaultQuestionThreshold = 0.85
	DefaultAnswerThreshold   = 0.88
)

// Guard applies the per-session duplicate thresholds. A duplicate question is
// only reported; a duplicate answer makes the next interviewer react to it.
type Guard struct {
	QuestionThreshold float64
	AnswerThreshold   float64
}

func NewGuard(questionThreshold, answerThreshold float64) *Guard {
	if questionThreshold <= 0 {
		questionThreshold = DefaultQuestionThreshold
	}
	if answerThreshold <= 0 {
		answerThreshold = DefaultAnswerThreshold
	}
	return &Guard{QuestionThreshold: questionThreshold, AnswerThreshold: answerThreshold}
}

// DuplicateQuestion compares v with every question already in the session.
func (g *Guard) DuplicateQuestion(s *models.Session, v []float32) (bool, float64) {
	score, idx := Max(s.QuestionVectors(), v)
	return idx >= 0 && score >= g.QuestionThreshold, score
}

// DuplicateAnswer compares v with every answer already in the session.
func (g *Guard) DuplicateAnswer(s *models.Session, v []float32) (bool, float64) {
	score, idx := Max(s.AnswerVectors(), v)
	return idx >= 0 && score >= g.AnswerThreshold, score
}

// AvoidHints returns prior questions close to v so the agent can steer away.
func (g *Guard) AvoidHints(s *models.Session, v []float32, limit int) []string {
	candidates := make([]Candidate, 0, len(s.Questions))
	for _, q := range s.Questions {
		candidates = append(candidates, Candidate{Text: q.Text, Vector: q.Embedding})
	}
	return Similar(candidates, v, g.QuestionThreshold, limit)
}
