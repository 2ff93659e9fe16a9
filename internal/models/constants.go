package models

// InterviewerRole tags which persona produced an interviewer turn.
type InterviewerRole string

const (
	RoleA InterviewerRole = "A"
	RoleB InterviewerRole = "B"
	RoleC InterviewerRole = "C"

	// not an interviewer; used for summaries and reports
	RoleSummarizer InterviewerRole = "summarizer"
)

// InterviewerRoles is the fixed set the role picker draws from.
var InterviewerRoles = []InterviewerRole{RoleA, RoleB, RoleC}

func (r InterviewerRole) Valid() bool {
	switch r {
	case RoleA, RoleB, RoleC:
		return true
	}
	return false
}

type SessionStatus string

const (
	StatusOngoing SessionStatus = "ongoing"
	StatusEnded   SessionStatus = "ended"
)

type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerCandidate   Speaker = "candidate"
)

// question generation modes passed to the agent
const (
	ModeFollowup = "followup"
	ModeNewTopic = "new_topic"
)

// artifact kinds stored per session
const (
	ArtifactSummary = "summary"
	ArtifactReport  = "report"
)

const (
	DefaultCandidateName = "지원자"
	DefaultJobRole       = "직무 미지정"
	ClosingMessage       = "면접이 종료되었습니다. 참여해 주셔서 감사합니다."
	EmptyTranscriptText  = "대화 기록이 없습니다."
)
