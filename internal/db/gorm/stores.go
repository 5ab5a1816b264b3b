package gorm

import (
	"github.com/thebtf/activable/internal/db"
	"github.com/thebtf/activable/pkg/activable"
)

// Stores bundles the stores of the domain, wired so that removing a project
// cascades to sessions and observations.
type Stores struct {
	Projects     *ProjectStore
	Sessions     *SessionStore
	Observations *ObservationStore
	Summaries    *SummaryStore
}

// NewStores builds every store over store. opts apply to each removal
// repository.
func NewStores(store *Store, opts ...activable.Option) (*Stores, error) {
	summaries := NewSummaryStore(store)

	observations, err := NewObservationStore(store, opts...)
	if err != nil {
		return nil, err
	}
	sessions, err := NewSessionStore(store, observations, summaries, opts...)
	if err != nil {
		return nil, err
	}
	projects, err := NewProjectStore(store, sessions, opts...)
	if err != nil {
		return nil, err
	}

	return &Stores{
		Projects:     projects,
		Sessions:     sessions,
		Observations: observations,
		Summaries:    summaries,
	}, nil
}

var (
	_ db.SessionRemover     = (*SessionStore)(nil)
	_ db.ObservationRemover = (*ObservationStore)(nil)
)
