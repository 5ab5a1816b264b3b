// Package db defines the store interfaces consumed outside the persistence layer.
package db

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CollectionRemover removes the active rows matching conds inside tx, running
// the removal protocol on each.
type CollectionRemover interface {
	RemoveWhere(ctx context.Context, tx *gorm.DB, conds ...clause.Expression) (int, error)
}

// SessionSweeper removes finished sessions that started before a cutoff.
type SessionSweeper interface {
	RemoveFinishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int, error)
}

// SessionRemover combines the removal operations of sessions.
type SessionRemover interface {
	CollectionRemover
	SessionSweeper
	RemoveAllSessions(ctx context.Context) (int, error)
}

// ObservationRemover combines the removal operations of observations.
type ObservationRemover interface {
	CollectionRemover
	RemoveAllObservations(ctx context.Context) (int, error)
}
