package gorm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/activable/pkg/activable"
)

// Session statuses.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// SessionStore provides session-related database operations using GORM.
type SessionStore struct {
	db   *gorm.DB
	repo *activable.Repository[Session, *Session]
}

// NewSessionStore creates a session store. Removing a session cascades to
// its observations; summaries is accepted as a target but, holding plain
// rows, is skipped.
func NewSessionStore(store *Store, observations *ObservationStore, summaries *SummaryStore, opts ...activable.Option) (*SessionStore, error) {
	opts = append(opts[:len(opts):len(opts)], activable.WithAssociations(
		activable.Association{
			Name:   "Observations",
			Policy: activable.CascadeRemoval,
			Target: observations,
		},
		activable.Association{
			Name:   "Summaries",
			Policy: activable.CascadeRemoval,
			Target: summaries,
		},
	))
	repo, err := activable.NewRepository[Session](store.DB, opts...)
	if err != nil {
		return nil, fmt.Errorf("session repository: %w", err)
	}
	return &SessionStore{db: store.DB, repo: repo}, nil
}

// Repository exposes the removal repository for hook and observer registration.
func (s *SessionStore) Repository() *activable.Repository[Session, *Session] {
	return s.repo
}

// CreateSession starts a session in project. The project must be active.
func (s *SessionStore) CreateSession(ctx context.Context, projectID int64, externalID, userPrompt string) (*Session, error) {
	var session *Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("project %d: %w", projectID, gorm.ErrRecordNotFound)
		}

		session = &Session{
			ProjectID:  projectID,
			ExternalID: externalID,
			UserPrompt: nullString(userPrompt),
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create session %q: %w", externalID, err)
	}
	return session, nil
}

// GetSessionByID retrieves a session whether or not it was removed.
// Returns nil if no such session exists.
func (s *SessionStore) GetSessionByID(ctx context.Context, id int64) (*Session, error) {
	return findByID(ctx, s.repo, id)
}

// FindSession finds an active session by its external ID.
func (s *SessionStore) FindSession(ctx context.Context, externalID string) (*Session, error) {
	var session Session
	err := s.repo.Query(ctx).
		Where("external_id = ?", externalID).
		First(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CompleteSession marks an active session as completed.
func (s *SessionStore) CompleteSession(ctx context.Context, id int64) error {
	// The default scope covers reads only, so updates ask for the alive view.
	result := s.repo.Alive(ctx).
		Where("id = ?", id).
		Update("status", SessionCompleted)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// ListSessions returns active sessions.
func (s *SessionStore) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	return s.repo.List(ctx, clampLimit(limit))
}

// ListSessionsByProject returns the active sessions of a project, newest first.
func (s *SessionStore) ListSessionsByProject(ctx context.Context, projectID int64, limit int) ([]*Session, error) {
	var sessions []*Session
	err := s.repo.Query(ctx).
		Where("project_id = ?", projectID).
		Order("started_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&sessions).Error
	return sessions, err
}

// ListAllSessions returns sessions including removed ones.
func (s *SessionStore) ListAllSessions(ctx context.Context, limit int) ([]*Session, error) {
	var sessions []*Session
	err := s.repo.Unscoped(ctx).
		Order("id").
		Limit(clampLimit(limit)).
		Find(&sessions).Error
	return sessions, err
}

// ListRemovedSessions returns removed sessions only.
func (s *SessionStore) ListRemovedSessions(ctx context.Context, limit int) ([]*Session, error) {
	return s.repo.ListRemoved(ctx, clampLimit(limit))
}

// RemoveSession removes a session and its active observations.
func (s *SessionStore) RemoveSession(ctx context.Context, id int64) (*Session, error) {
	return removeByID(ctx, s.repo, id)
}

// RemoveAllSessions removes every active session one by one.
func (s *SessionStore) RemoveAllSessions(ctx context.Context) (int, error) {
	return s.repo.RemoveAll(ctx)
}

// RemoveWhere removes the active sessions matching conds inside tx.
// Project removal cascades through it.
func (s *SessionStore) RemoveWhere(ctx context.Context, tx *gorm.DB, conds ...clause.Expression) (int, error) {
	return s.repo.RemoveWhere(ctx, tx, conds...)
}

// RemoveFinishedBefore removes the sessions that are no longer active and
// started before cutoff. Their observations are removed with them.
func (s *SessionStore) RemoveFinishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int, error) {
	return s.repo.RemoveWhere(ctx, tx,
		clause.Lt{Column: clause.Column{Table: clause.CurrentTable, Name: "started_at"}, Value: cutoff},
		clause.Neq{Column: clause.Column{Table: clause.CurrentTable, Name: "status"}, Value: SessionActive},
	)
}
