package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"peerprep/interview/internal/agent"
	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/models"
)

// Exchange is one answer/question turn in flight. It implements agent.Stream:
// Recv yields the reaction (if any) and then the generated question. The turn
// is committed when Recv returns io.EOF; closing it earlier discards it.
// An Exchange is not safe for concurrent use.
type Exchange struct {
	Role     models.InterviewerRole
	Round    int
	Reaction string
	Ended    bool

	o         *Orchestrator
	ctx       context.Context
	cancel    context.CancelFunc
	release   func()
	sessionID string
	stream    agent.Stream
	answer    models.Turn
	started   time.Time

	pending  []string
	question strings.Builder
	done     bool
	err      error
}

var _ agent.Stream = (*Exchange)(nil)

func (e *Exchange) Recv() (string, error) {
	if len(e.pending) > 0 {
		delta := e.pending[0]
		e.pending = e.pending[1:]
		return delta, nil
	}
	if e.err != nil {
		return "", e.err
	}
	if e.done {
		return "", io.EOF
	}

	delta, err := e.stream.Recv()
	if err == io.EOF {
		if err := e.commit(); err != nil {
			e.fail(err)
			return "", err
		}
		return "", io.EOF
	}
	if err != nil {
		metrics.RecordUpstreamError("agent")
		e.fail(err)
		return "", err
	}
	e.question.WriteString(delta)
	return delta, nil
}

// Meta describes the exchange ahead of its text.
func (e *Exchange) Meta() models.AnswerMeta {
	return models.AnswerMeta{Role: e.Role, Round: e.Round, Ended: e.Ended, Reaction: e.Reaction}
}

// Question is the generated question text, complete once Recv returned io.EOF.
func (e *Exchange) Question() string {
	if e.Ended {
		return models.ClosingMessage
	}
	return strings.TrimSpace(e.question.String())
}

// Close aborts an uncommitted exchange. It is safe to call more than once.
func (e *Exchange) Close() error {
	if e.done || e.err != nil {
		return nil
	}
	metrics.RecordTurn(metrics.TurnAborted)
	e.o.logger.Info("Exchange aborted before completion",
		zap.String("session_id", e.sessionID),
		zap.Int("round", e.Round-1))
	e.finish()
	e.err = io.ErrClosedPipe
	return nil
}

func (e *Exchange) commit() error {
	text := e.Question()
	if text == "" {
		return agent.Unavailable("agent", "empty question", errors.New("agent returned no text"))
	}
	o := e.o

	vec, err := o.embedder.Embed(e.ctx, text)
	if err != nil {
		metrics.RecordUpstreamError("embedding")
		return err
	}
	if sess, err := o.store.Snapshot(e.sessionID); err == nil {
		if dup, score := o.guard.DuplicateQuestion(sess, vec); dup {
			metrics.RecordDuplicate("question")
			o.logger.Warn("Generated question repeats an earlier one",
				zap.String("session_id", e.sessionID),
				zap.String("role", string(e.Role)),
				zap.Float64("similarity", score))
		}
	}

	question := models.Turn{
		Speaker:   models.SpeakerInterviewer,
		Role:      e.Role,
		Seq:       e.answer.Seq + 1,
		Text:      text,
		Reaction:  e.Reaction,
		Embedding: vec,
	}
	if err := o.recorder.AppendMessages(e.ctx, e.sessionID, answerRecord(e.answer), questionRecord(question)); err != nil {
		return fmt.Errorf("failed to persist exchange: %w", err)
	}
	if err := o.store.RecordAnswer(e.sessionID, e.answer); err != nil {
		return err
	}
	if err := o.store.RecordQuestion(e.sessionID, question); err != nil {
		return err
	}
	round, err := o.store.AdvanceRound(e.sessionID)
	if err != nil {
		return err
	}
	e.Round = round

	metrics.RecordTurn(metrics.TurnCompleted)
	metrics.ObserveAgentLatency(string(e.Role), time.Since(e.started))
	o.logger.Info("Exchange completed",
		zap.String("session_id", e.sessionID),
		zap.String("role", string(e.Role)),
		zap.Int("round", round))

	e.finish()
	e.done = true
	return nil
}

func (e *Exchange) fail(err error) {
	metrics.RecordTurn(metrics.TurnFailed)
	e.o.logger.Error("Exchange failed",
		zap.String("session_id", e.sessionID),
		zap.String("role", string(e.Role)),
		zap.Error(err))
	e.finish()
	e.err = err
}

func (e *Exchange) finish() {
	if e.stream != nil {
		_ = e.stream.Close()
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.release != nil {
		e.release()
	}
}

// userIndex remembers which user started a session, for ended events.
type userIndex struct {
	mu  sync.RWMutex
	ids map[string]string
}

func newUserIndex() *userIndex {
	return &userIndex{ids: make(map[string]string)}
}

func (u *userIndex) set(sessionID, userID string) {
	if userID == "" {
		return
	}
	u.mu.Lock()
	u.ids[sessionID] = userID
	u.mu.Unlock()
}

func (u *userIndex) get(sessionID string) string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.ids[sessionID]
}

func (u *userIndex) delete(sessionID string) {
	u.mu.Lock()
	delete(u.ids, sessionID)
	u.mu.Unlock()
}
