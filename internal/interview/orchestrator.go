// Package interview drives a mock interview: it owns the round counter, picks
// the interviewer for every question and decides when the session ends.
package interview

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"peerprep/interview/internal/agent"
	"peerprep/interview/internal/embedding"
	"peerprep/interview/internal/events"
	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/prompts"
	"peerprep/interview/internal/session"
	"peerprep/interview/internal/similarity"
	"peerprep/interview/internal/utils"
)

const (
	avoidHintLimit     = 3
	askedQuestionLimit = 5
)

// Config holds the interview policy knobs.
type Config struct {
	MaxRounds int
	// CountOpeningQuestion makes the templated opening question count as
	// round 1 toward MaxRounds.
	CountOpeningQuestion bool
	// FollowupRatio is the probability of asking a follow-up instead of
	// moving to a new topic.
	FollowupRatio   float64
	ProviderTimeout time.Duration
}

// Recorder persists the transcript.
type Recorder interface {
	CreateSession(ctx context.Context, rec *models.SessionRecord, opening *models.MessageRecord) error
	AppendMessages(ctx context.Context, sessionID string, msgs ...*models.MessageRecord) error
	MarkEnded(ctx context.Context, sessionID string, endedAt time.Time) error
}

// Deps are the collaborators of an Orchestrator. Publisher, Logger and
// ModeSource are optional.
type Deps struct {
	Store     *session.Store
	Embedder  embedding.Gateway
	Guard     *similarity.Guard
	Agent     agent.Gateway
	Roles     *agent.RolePicker
	Prompts   prompts.PromptProvider
	Recorder  Recorder
	Publisher events.Publisher
	Logger    *zap.Logger
	// ModeSource returns a value in [0,1) used to pick the question mode.
	ModeSource func() float64
}

type Orchestrator struct {
	cfg        Config
	store      *session.Store
	embedder   embedding.Gateway
	guard      *similarity.Guard
	agent      agent.Gateway
	roles      *agent.RolePicker
	prompts    prompts.PromptProvider
	recorder   Recorder
	publisher  events.Publisher
	logger     *zap.Logger
	modeSource func() float64
	userIDs    *userIndex
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 5
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Guard == nil {
		deps.Guard = similarity.NewGuard(0, 0)
	}
	if deps.Roles == nil {
		deps.Roles = agent.NewRandomRolePicker()
	}
	if deps.ModeSource == nil {
		deps.ModeSource = rand.Float64
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      deps.Store,
		embedder:   deps.Embedder,
		guard:      deps.Guard,
		agent:      deps.Agent,
		roles:      deps.Roles,
		prompts:    deps.Prompts,
		recorder:   deps.Recorder,
		publisher:  deps.Publisher,
		logger:     utils.LoggerOr(deps.Logger),
		modeSource: deps.ModeSource,
		userIDs:    newUserIndex(),
	}
}

type StartInput struct {
	CandidateName  string
	JobRole        string
	ProfileSummary string
	UserID         string
}

// Start opens a session with the fixed self-introduction question.
func (o *Orchestrator) Start(ctx context.Context, in StartInput) (*models.StartResponse, error) {
	name := utils.CleanCandidateName(in.CandidateName, models.DefaultCandidateName)
	jobRole := utils.NormalizeJobRole(in.JobRole, models.DefaultJobRole)
	profile := strings.TrimSpace(in.ProfileSummary)

	sess := o.store.Create(name, jobRole, profile)
	role := o.roles.First()
	question := OpeningQuestion(name)

	vec, err := o.embedder.Embed(ctx, question)
	if err != nil {
		// the opening question only feeds later duplicate checks
		metrics.RecordUpstreamError("embedding")
		o.logger.Warn("Failed to embed opening question",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		vec = nil
	}

	rec := &models.SessionRecord{
		ID:             sess.ID,
		UserID:         in.UserID,
		CandidateName:  name,
		JobRole:        jobRole,
		ProfileSummary: profile,
		Status:         models.StatusOngoing,
		StartedAt:      sess.CreatedAt,
	}
	opening := &models.MessageRecord{
		Turn:            1,
		Speaker:         models.SpeakerInterviewer,
		InterviewerRole: role,
		Text:            question,
	}
	if err := o.recorder.CreateSession(ctx, rec, opening); err != nil {
		o.store.Remove(sess.ID)
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	if err := o.store.RecordQuestion(sess.ID, models.Turn{Role: role, Seq: 1, Text: question, Embedding: vec}); err != nil {
		return nil, err
	}
	o.userIDs.set(sess.ID, in.UserID)
	metrics.SetActiveSessions(o.store.Len())

	o.logger.Info("Interview started",
		zap.String("session_id", sess.ID),
		zap.String("role", string(role)),
		zap.String("job_role", jobRole))

	return &models.StartResponse{
		SessionID: sess.ID,
		Role:      role,
		Question:  question,
		Round:     1,
	}, nil
}

// OpeningQuestion is the templated first question of every interview.
func OpeningQuestion(name string) string {
	return name + "님, 자기소개 부탁드립니다."
}

// SubmitAnswer takes the candidate's answer and returns the exchange that
// produces the next question. The session stays locked until the exchange is
// drained or closed; on any error nothing is recorded.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, sessionID, text string) (*Exchange, error) {
	release, err := o.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	ex, err := o.submit(ctx, sessionID, text, release)
	if err != nil {
		release()
		return nil, err
	}
	return ex, nil
}

func (o *Orchestrator) submit(ctx context.Context, sessionID, text string, release func()) (*Exchange, error) {
	sess, err := o.store.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return nil, models.ErrSessionEnded
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: answer text is empty", models.ErrInvalidInput)
	}

	answerVec, err := o.embedder.Embed(ctx, text)
	if err != nil {
		metrics.RecordUpstreamError("embedding")
		metrics.RecordTurn(metrics.TurnFailed)
		return nil, err
	}
	answer := models.Turn{
		Speaker:   models.SpeakerCandidate,
		Seq:       sess.NextSeq(),
		Text:      text,
		Embedding: answerVec,
	}

	if o.limitReached(sess) {
		if err := o.closeOut(ctx, sess, answer); err != nil {
			metrics.RecordTurn(metrics.TurnFailed)
			return nil, err
		}
		metrics.RecordTurn(metrics.TurnEnded)
		release()
		return &Exchange{
			Role:    sess.LastRole(),
			Round:   sess.Round,
			Ended:   true,
			pending: []string{models.ClosingMessage},
			done:    true,
		}, nil
	}

	role := o.roles.Next(sess.LastRole())

	var reaction string
	if dup, score := o.guard.DuplicateAnswer(sess, answerVec); dup {
		metrics.RecordDuplicate("answer")
		reaction, err = o.prompts.BuildPrompt("reaction", string(role), nil)
		if err != nil {
			return nil, err
		}
		o.logger.Info("Repeated answer detected",
			zap.String("session_id", sessionID),
			zap.Float64("similarity", score))
	}

	in := agent.Inputs{
		SessionID:      sessionID,
		CandidateName:  sess.CandidateName,
		JobRole:        sess.JobRole,
		ProfileSummary: sess.ProfileSummary,
		Answer:         text,
		Reaction:       reaction,
		Mode:           o.pickMode(),
		Avoid:          o.guard.AvoidHints(sess, answerVec, avoidHintLimit),
		AskedQuestions: recentQuestions(sess, askedQuestionLimit),
	}
	in.Query, err = o.prompts.BuildPrompt("question", in.Mode, in)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	started := time.Now()
	stream, err := o.agent.AskStream(streamCtx, role, in)
	if err != nil {
		cancel()
		metrics.RecordUpstreamError("agent")
		metrics.RecordTurn(metrics.TurnFailed)
		o.logger.Error("Agent request failed",
			zap.String("session_id", sessionID),
			zap.String("role", string(role)),
			zap.Error(err))
		return nil, err
	}

	ex := &Exchange{
		Role:      role,
		Round:     sess.Round + 1,
		Reaction:  reaction,
		o:         o,
		ctx:       streamCtx,
		cancel:    cancel,
		release:   release,
		sessionID: sessionID,
		stream:    stream,
		answer:    answer,
		started:   started,
	}
	if reaction != "" {
		ex.pending = []string{reaction + " "}
	}
	return ex, nil
}

// limitReached reports whether the answer being submitted is the last one.
func (o *Orchestrator) limitReached(sess *models.Session) bool {
	counted := sess.Round
	if !o.cfg.CountOpeningQuestion {
		counted--
	}
	return counted >= o.cfg.MaxRounds
}

func (o *Orchestrator) pickMode() string {
	if o.modeSource() < o.cfg.FollowupRatio {
		return models.ModeFollowup
	}
	return models.ModeNewTopic
}

// closeOut records the final answer and ends the session.
func (o *Orchestrator) closeOut(ctx context.Context, sess *models.Session, answer models.Turn) error {
	if err := o.recorder.AppendMessages(ctx, sess.ID, answerRecord(answer)); err != nil {
		return fmt.Errorf("failed to persist answer: %w", err)
	}
	if err := o.store.RecordAnswer(sess.ID, answer); err != nil {
		return err
	}
	return o.end(ctx, sess.ID, events.ReasonRoundLimit)
}

// Finish ends a session on request. Finishing an ended session is a no-op.
func (o *Orchestrator) Finish(ctx context.Context, sessionID string) error {
	release, err := o.store.Acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()
	return o.end(ctx, sessionID, events.ReasonFinished)
}

// end must be called with the turn lock held.
func (o *Orchestrator) end(ctx context.Context, sessionID, reason string) error {
	sess, err := o.store.Snapshot(sessionID)
	if err != nil {
		return err
	}
	if sess.Ended() {
		return nil
	}
	endedAt := time.Now()
	if err := o.recorder.MarkEnded(ctx, sessionID, endedAt); err != nil {
		return fmt.Errorf("failed to mark session ended: %w", err)
	}
	if _, err := o.store.End(sessionID); err != nil {
		return err
	}

	o.logger.Info("Interview ended",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.Int("round", sess.Round))

	event := events.InterviewEndedEvent{
		SessionID:     sessionID,
		UserID:        o.userIDs.get(sessionID),
		CandidateName: sess.CandidateName,
		JobRole:       sess.JobRole,
		Rounds:        sess.Round,
		Reason:        reason,
		StartedAt:     sess.CreatedAt.UTC().Format(time.RFC3339),
		EndedAt:       endedAt.UTC().Format(time.RFC3339),
		DurationSec:   int(endedAt.Sub(sess.CreatedAt).Seconds()),
	}
	if err := o.publisher.PublishEnded(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Warn("Failed to publish interview_ended",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	return nil
}

// Answer runs a whole exchange and returns the generated question in one piece.
func (o *Orchestrator) Answer(ctx context.Context, sessionID, text string) (*models.AnswerResponse, error) {
	ex, err := o.SubmitAnswer(ctx, sessionID, text)
	if err != nil {
		return nil, err
	}
	if _, err := agent.Collect(ex); err != nil {
		return nil, err
	}
	return &models.AnswerResponse{
		Role:     ex.Role,
		Question: ex.Question(),
		Round:    ex.Round,
		Ended:    ex.Ended,
		Reaction: ex.Reaction,
	}, nil
}

// Session returns a copy of the live session.
func (o *Orchestrator) Session(sessionID string) (*models.Session, error) {
	return o.store.Snapshot(sessionID)
}

// ExpireIdle ends ongoing sessions without activity for longer than idle.
// Sessions in the middle of an exchange are skipped.
func (o *Orchestrator) ExpireIdle(ctx context.Context, idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	ids := o.store.Sweep(func(s *models.Session) bool {
		return !s.Ended() && s.LastActivity.Before(cutoff)
	})

	expired := 0
	for _, id := range ids {
		release, err := o.store.Acquire(id)
		if err != nil {
			continue
		}
		if err := o.end(ctx, id, events.ReasonIdle); err != nil {
			o.logger.Warn("Failed to expire idle session", zap.String("session_id", id), zap.Error(err))
		} else {
			expired++
		}
		release()
	}
	return expired
}

// EvictEnded drops sessions that ended more than retention ago from memory.
// Their transcripts stay in the database.
func (o *Orchestrator) EvictEnded(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	ids := o.store.Sweep(func(s *models.Session) bool {
		return s.Ended() && s.EndedAt != nil && s.EndedAt.Before(cutoff)
	})
	for _, id := range ids {
		o.store.Remove(id)
		o.userIDs.delete(id)
	}
	metrics.SetActiveSessions(o.store.Len())
	return len(ids)
}

func recentQuestions(sess *models.Session, n int) []string {
	qs := sess.Questions
	if len(qs) > n {
		qs = qs[len(qs)-n:]
	}
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Text)
	}
	return out
}

func answerRecord(t models.Turn) *models.MessageRecord {
	return &models.MessageRecord{
		Turn:    t.Seq,
		Speaker: models.SpeakerCandidate,
		Text:    t.Text,
	}
}

func questionRecord(t models.Turn) *models.MessageRecord {
	text := t.Text
	if t.Reaction != "" {
		text = t.Reaction + " " + t.Text
	}
	return &models.MessageRecord{
		Turn:            t.Seq,
		Speaker:         models.SpeakerInterviewer,
		InterviewerRole: t.Role,
		Text:            text,
	}
}

// IsClientError reports whether err is caused by the caller rather than a
// provider or the database.
func IsClientError(err error) bool {
	return errors.Is(err, models.ErrSessionNotFound) ||
		errors.Is(err, models.ErrSessionEnded) ||
		errors.Is(err, models.ErrSessionBusy) ||
		errors.Is(err, models.ErrInvalidInput)
}
