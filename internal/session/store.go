// Package session keeps the live state of every running interview.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"peerprep/interview/internal/models"
)

type entry struct {
	mu      sync.Mutex // guards session
	turn    sync.Mutex // held for the duration of one exchange
	session *models.Session
}

// Store is the in-process session registry. The store lock only protects the
// id map; each session carries its own locks, so sessions never contend.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Create registers a new ongoing session at round 1.
func (s *Store) Create(candidateName, jobRole, profileSummary string) *models.Session {
	now := s.now()
	sess := &models.Session{
		ID:             uuid.NewString(),
		CandidateName:  candidateName,
		JobRole:        jobRole,
		ProfileSummary: profileSummary,
		Round:          1,
		Status:         models.StatusOngoing,
		Questions:      []models.Turn{},
		Answers:        []models.Turn{},
		CreatedAt:      now,
		LastActivity:   now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &entry{session: sess}
	s.mu.Unlock()

	return sess.Clone()
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return e, nil
}

func (s *Store) update(id string, fn func(*models.Session) error) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e.session); err != nil {
		return err
	}
	e.session.LastActivity = s.now()
	return nil
}

// Acquire takes the exclusive turn lock of a session. It never waits: a
// second caller gets ErrSessionBusy until release is called.
func (s *Store) Acquire(id string) (release func(), err error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if !e.turn.TryLock() {
		return nil, models.ErrSessionBusy
	}
	var once sync.Once
	return func() { once.Do(e.turn.Unlock) }, nil
}

// Snapshot returns a deep copy of the session.
func (s *Store) Snapshot(id string) (*models.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

func (s *Store) RecordQuestion(id string, turn models.Turn) error {
	return s.update(id, func(sess *models.Session) error {
		turn.Speaker = models.SpeakerInterviewer
		sess.Questions = append(sess.Questions, stamp(turn, sess, s.now()))
		return nil
	})
}

func (s *Store) RecordAnswer(id string, turn models.Turn) error {
	return s.update(id, func(sess *models.Session) error {
		turn.Speaker = models.SpeakerCandidate
		turn.Role = ""
		sess.Answers = append(sess.Answers, stamp(turn, sess, s.now()))
		return nil
	})
}

func stamp(turn models.Turn, sess *models.Session, now time.Time) models.Turn {
	if turn.Seq == 0 {
		turn.Seq = sess.NextSeq()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = now
	}
	return turn
}

// AdvanceRound increments the round and returns the new value.
func (s *Store) AdvanceRound(id string) (int, error) {
	var round int
	err := s.update(id, func(sess *models.Session) error {
		if sess.Ended() {
			return models.ErrSessionEnded
		}
		sess.Round++
		round = sess.Round
		return nil
	})
	return round, err
}

// End marks the session ended. It reports whether this call made the
// transition; ending an ended session is a no-op.
func (s *Store) End(id string) (bool, error) {
	changed := false
	err := s.update(id, func(sess *models.Session) error {
		if sess.Ended() {
			return nil
		}
		now := s.now()
		sess.Status = models.StatusEnded
		sess.EndedAt = &now
		changed = true
		return nil
	})
	return changed, err
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sweep returns the ids of sessions matching pred. pred sees each session
// under its own lock.
func (s *Store) Sweep(pred func(*models.Session) bool) []string {
	s.mu.RLock()
	entries := make(map[string]*entry, len(s.sessions))
	for id, e := range s.sessions {
		entries[id] = e
	}
	s.mu.RUnlock()

	var ids []string
	for id, e := range entries {
		e.mu.Lock()
		match := pred(e.session)
		e.mu.Unlock()
		if match {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
