package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/thebtf/activable/pkg/activable"
)

// ProjectStore provides project-related database operations using GORM.
type ProjectStore struct {
	db   *gorm.DB
	repo *activable.Repository[Project, *Project]
}

// NewProjectStore creates a project store. Removing a project cascades to
// its sessions through sessions.
func NewProjectStore(store *Store, sessions *SessionStore, opts ...activable.Option) (*ProjectStore, error) {
	opts = append(opts[:len(opts):len(opts)], activable.WithAssociations(activable.Association{
		Name:   "Sessions",
		Policy: activable.CascadeRemoval,
		Target: sessions,
	}))
	repo, err := activable.NewRepository[Project](store.DB, opts...)
	if err != nil {
		return nil, fmt.Errorf("project repository: %w", err)
	}
	return &ProjectStore{db: store.DB, repo: repo}, nil
}

// Repository exposes the removal repository for hook and observer registration.
func (s *ProjectStore) Repository() *activable.Repository[Project, *Project] {
	return s.repo
}

// CreateProject inserts a new project.
func (s *ProjectStore) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	project := &Project{
		Name:        name,
		Description: nullString(description),
	}
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, fmt.Errorf("create project %q: %w", name, err)
	}
	return project, nil
}

// GetProjectByID retrieves a project whether or not it was removed.
// Returns nil if no such project exists.
func (s *ProjectStore) GetProjectByID(ctx context.Context, id int64) (*Project, error) {
	return findByID(ctx, s.repo, id)
}

// GetProjectByName retrieves an active project by name.
func (s *ProjectStore) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	var project Project
	err := s.repo.Query(ctx).Where("name = ?", name).First(&project).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns active projects.
func (s *ProjectStore) ListProjects(ctx context.Context, limit int) ([]*Project, error) {
	return s.repo.List(ctx, clampLimit(limit))
}

// ListAllProjects returns projects including removed ones.
func (s *ProjectStore) ListAllProjects(ctx context.Context, limit int) ([]*Project, error) {
	var projects []*Project
	err := s.repo.Unscoped(ctx).
		Order("id").
		Limit(clampLimit(limit)).
		Find(&projects).Error
	return projects, err
}

// ListRemovedProjects returns removed projects only.
func (s *ProjectStore) ListRemovedProjects(ctx context.Context, limit int) ([]*Project, error) {
	return s.repo.ListRemoved(ctx, clampLimit(limit))
}

// RemoveProject removes a project and, in the same transaction, its active
// sessions and their observations.
func (s *ProjectStore) RemoveProject(ctx context.Context, id int64) (*Project, error) {
	return removeByID(ctx, s.repo, id)
}

// RemoveAllProjects removes every active project one by one.
func (s *ProjectStore) RemoveAllProjects(ctx context.Context) (int, error) {
	return s.repo.RemoveAll(ctx)
}
