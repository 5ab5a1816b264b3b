package gorm

import (
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/activable/pkg/activable"
)

// ErrPinnedObservation is returned when removing an observation that is pinned.
var ErrPinnedObservation = errors.New("observation is pinned")

// GORM Models

// Project groups sessions. Removing a project removes its sessions.
type Project struct {
	CreatedAt   time.Time
	Name        string `gorm:"uniqueIndex;not null"`
	Description sql.NullString
	Sessions    []Session
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	activable.Marker
}

func (Project) TableName() string { return "projects" }

// Session is one working session of a project. Removing a session removes
// its observations; summaries are plain rows and stay.
type Session struct {
	StartedAt    time.Time
	ExternalID   string `gorm:"uniqueIndex;not null"`
	Status       string `gorm:"type:text;check:status IN ('active', 'completed', 'failed');default:'active';index"`
	UserPrompt   sql.NullString
	Observations []Observation
	Summaries    []Summary
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	ProjectID    int64 `gorm:"index;not null"`
	activable.Marker
}

func (Session) TableName() string { return "sessions" }

// BeforeCreate hook to ensure defaults are set.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = tx.NowFunc()
	}
	if s.Status == "" {
		s.Status = "active"
	}
	return nil
}

// Observation is a finding recorded during a session. Queries see removed
// observations unless they ask for the alive view.
type Observation struct {
	CreatedAt time.Time
	Type      string `gorm:"type:text;check:type IN ('decision', 'bugfix', 'feature', 'refactor', 'discovery', 'change');index;not null"`
	Title     sql.NullString
	Narrative sql.NullString `gorm:"type:text"`
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	SessionID int64          `gorm:"index;not null"`
	Pinned    bool           `gorm:"default:false"`
	activable.ExplicitMarker
}

func (Observation) TableName() string { return "observations" }

// BeforeRemove vetoes removal of pinned observations.
func (o *Observation) BeforeRemove(tx *gorm.DB) error {
	if o.Pinned {
		return ErrPinnedObservation
	}
	return nil
}

// Summary is a session summary. It has no removal marker.
type Summary struct {
	CreatedAt time.Time
	Request   sql.NullString
	Learned   sql.NullString
	NextSteps sql.NullString `gorm:"column:next_steps"`
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	SessionID int64          `gorm:"index;not null"`
}

func (Summary) TableName() string { return "session_summaries" }
