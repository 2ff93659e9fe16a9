// Package transcript persists interview sessions, their messages and the
// generated summary/report artifacts.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"peerprep/interview/internal/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the tables owned by the repository.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(models.AllRecords()...); err != nil {
		return fmt.Errorf("failed to migrate transcript tables: %w", err)
	}
	return nil
}

// Ping checks the database connection for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) CreateSession(ctx context.Context, rec *models.SessionRecord, opening *models.MessageRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		if opening != nil {
			opening.SessionID = rec.ID
			if err := tx.Create(opening).Error; err != nil {
				return fmt.Errorf("failed to store opening question: %w", err)
			}
		}
		return nil
	})
}

// AppendMessages stores the messages of one exchange atomically.
func (r *Repository) AppendMessages(ctx context.Context, sessionID string, msgs ...*models.MessageRecord) error {
	if len(msgs) == 0 {
		return nil
	}
	for _, m := range msgs {
		m.SessionID = sessionID
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msgs).Error; err != nil {
			return fmt.Errorf("failed to append messages: %w", err)
		}
		return nil
	})
}

// MarkEnded records the end of a session. Already ended sessions keep their
// original end time.
func (r *Repository) MarkEnded(ctx context.Context, sessionID string, endedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.SessionRecord{}).
		Where("id = ? AND status <> ?", sessionID, models.StatusEnded).
		Updates(map[string]interface{}{"status": models.StatusEnded, "ended_at": endedAt}).Error
}

func (r *Repository) GetSession(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &rec, nil
}

type ListOptions struct {
	Query  string
	UserID string
	Limit  int
	Offset int
}

// Normalize applies the default and maximum page size.
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	o.Query = strings.TrimSpace(o.Query)
}

// ListSessions returns sessions newest first, optionally filtered by a
// substring of the candidate name or job role.
func (r *Repository) ListSessions(ctx context.Context, opts ListOptions) ([]models.SessionRecord, int64, error) {
	opts.Normalize()

	q := r.db.WithContext(ctx).Model(&models.SessionRecord{})
	if opts.UserID != "" {
		q = q.Where("user_id = ?", opts.UserID)
	}
	if opts.Query != "" {
		like := "%" + opts.Query + "%"
		q = q.Where("candidate_name LIKE ? OR job_role LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	var items []models.SessionRecord
	err := q.Order("started_at DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return items, total, nil
}

// Messages returns the transcript of a session in turn order.
func (r *Repository) Messages(ctx context.Context, sessionID string) ([]models.MessageRecord, error) {
	var msgs []models.MessageRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("turn ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return msgs, nil
}

// SoftDelete hides a session from lookups and listings.
func (r *Repository) SoftDelete(ctx context.Context, sessionID string) error {
	res := r.db.WithContext(ctx).Delete(&models.SessionRecord{}, "id = ?", sessionID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// FindArtifact returns the stored payload, or "" when none exists yet.
func (r *Repository) FindArtifact(ctx context.Context, sessionID, kind string) (string, error) {
	var rec models.ArtifactRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND kind = ?", sessionID, kind).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", kind, err)
	}
	return rec.Payload, nil
}

// SaveArtifact stores payload unless one already exists, and returns the
// payload that won. Concurrent writers therefore all observe the same value.
func (r *Repository) SaveArtifact(ctx context.Context, sessionID, kind, payload string) (string, error) {
	rec := models.ArtifactRecord{SessionID: sessionID, Kind: kind, Payload: payload}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", kind, err)
	}
	return r.FindArtifact(ctx, sessionID, kind)
}
