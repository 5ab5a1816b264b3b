package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// SummaryStore provides summary-related database operations using GORM.
// Summaries have no removal marker; removing their session leaves them.
type SummaryStore struct {
	db *gorm.DB
}

// NewSummaryStore creates a new summary store.
func NewSummaryStore(store *Store) *SummaryStore {
	return &SummaryStore{db: store.DB}
}

// CreateSummary stores a summary for a session.
func (s *SummaryStore) CreateSummary(ctx context.Context, sessionID int64, request, learned, nextSteps string) (*Summary, error) {
	summary := &Summary{
		SessionID: sessionID,
		Request:   nullString(request),
		Learned:   nullString(learned),
		NextSteps: nullString(nextSteps),
	}
	if err := s.db.WithContext(ctx).Create(summary).Error; err != nil {
		return nil, fmt.Errorf("create summary: %w", err)
	}
	return summary, nil
}

// ListSummariesBySession returns the summaries of a session, newest first.
func (s *SummaryStore) ListSummariesBySession(ctx context.Context, sessionID int64, limit int) ([]*Summary, error) {
	var summaries []*Summary
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&summaries).Error
	return summaries, err
}

// CountSummaries returns the number of stored summaries.
func (s *SummaryStore) CountSummaries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Summary{}).Count(&count).Error
	return count, err
}
