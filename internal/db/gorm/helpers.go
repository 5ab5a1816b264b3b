package gorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/thebtf/activable/pkg/activable"
)

// MaxPaginationLimit is the maximum number of rows a list call returns.
const MaxPaginationLimit = 1000

// DefaultListLimit is used when a list call is given no positive limit.
const DefaultListLimit = 100

// nullString creates a sql.NullString from a string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// clampLimit returns limit bounded to (0, MaxPaginationLimit], or
// DefaultListLimit when limit is not positive.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxPaginationLimit)
}

// findByID loads a row of any removal state; a missing row yields nil, nil.
func findByID[T any, P activable.Entity[T]](ctx context.Context, repo *activable.Repository[T, P], id int64) (P, error) {
	entity, err := repo.Find(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// removeByID loads a row by id, removed or not, and runs the removal protocol on it.
func removeByID[T any, P activable.Entity[T]](ctx context.Context, repo *activable.Repository[T, P], id int64) (P, error) {
	entity, err := repo.Find(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s %d: %w", repo.Table(), id, err)
	}
	if err != nil {
		return nil, err
	}
	if err := repo.Remove(ctx, entity); err != nil {
		return nil, fmt.Errorf("remove %s %d: %w", repo.Table(), id, err)
	}
	return entity, nil
}
