package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/activable/pkg/activable"
)

// ObservationStore provides observation-related database operations using GORM.
//
// Observations use the explicit scope: plain queries return removed rows too,
// and the alive view must be asked for.
type ObservationStore struct {
	db   *gorm.DB
	repo *activable.Repository[Observation, *Observation]
}

// NewObservationStore creates a new observation store.
func NewObservationStore(store *Store, opts ...activable.Option) (*ObservationStore, error) {
	repo, err := activable.NewRepository[Observation](store.DB, opts...)
	if err != nil {
		return nil, fmt.Errorf("observation repository: %w", err)
	}
	return &ObservationStore{db: store.DB, repo: repo}, nil
}

// Repository exposes the removal repository for hook and observer registration.
func (s *ObservationStore) Repository() *activable.Repository[Observation, *Observation] {
	return s.repo
}

// CreateObservation records an observation in an active session.
func (s *ObservationStore) CreateObservation(ctx context.Context, sessionID int64, obsType, title, narrative string) (*Observation, error) {
	var obs *Observation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Session{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("session %d: %w", sessionID, gorm.ErrRecordNotFound)
		}

		obs = &Observation{
			SessionID: sessionID,
			Type:      obsType,
			Title:     nullString(title),
			Narrative: nullString(narrative),
		}
		return tx.Create(obs).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create observation: %w", err)
	}
	return obs, nil
}

// SetPinned pins or unpins an active observation. Pinned observations
// refuse removal.
func (s *ObservationStore) SetPinned(ctx context.Context, id int64, pinned bool) error {
	result := s.repo.Alive(ctx).
		Where("id = ?", id).
		Update("pinned", pinned)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("observation %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// GetObservationByID retrieves an observation whether or not it was removed.
// Returns nil if no such observation exists.
func (s *ObservationStore) GetObservationByID(ctx context.Context, id int64) (*Observation, error) {
	return findByID(ctx, s.repo, id)
}

// ListObservations returns observations in any removal state.
func (s *ObservationStore) ListObservations(ctx context.Context, limit int) ([]*Observation, error) {
	return s.repo.List(ctx, clampLimit(limit))
}

// ListAliveObservations returns observations that were not removed.
func (s *ObservationStore) ListAliveObservations(ctx context.Context, limit int) ([]*Observation, error) {
	return s.repo.ListAlive(ctx, clampLimit(limit))
}

// ListRemovedObservations returns removed observations only.
func (s *ObservationStore) ListRemovedObservations(ctx context.Context, limit int) ([]*Observation, error) {
	return s.repo.ListRemoved(ctx, clampLimit(limit))
}

// ListObservationsBySession returns the alive observations of a session,
// newest first.
func (s *ObservationStore) ListObservationsBySession(ctx context.Context, sessionID int64, limit int) ([]*Observation, error) {
	var observations []*Observation
	err := s.repo.Alive(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&observations).Error
	return observations, err
}

// RemoveObservation removes an observation.
func (s *ObservationStore) RemoveObservation(ctx context.Context, id int64) (*Observation, error) {
	return removeByID(ctx, s.repo, id)
}

// RemoveAllObservations removes every alive observation one by one.
func (s *ObservationStore) RemoveAllObservations(ctx context.Context) (int, error) {
	return s.repo.RemoveAll(ctx)
}

// RemoveWhere removes the alive observations matching conds inside tx.
// Session removal cascades through it.
func (s *ObservationStore) RemoveWhere(ctx context.Context, tx *gorm.DB, conds ...clause.Expression) (int, error) {
	return s.repo.RemoveWhere(ctx, tx, conds...)
}
