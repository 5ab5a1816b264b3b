package activable

import (
	"errors"
	"fmt"
)

var (
	// ErrNotPersisted is returned when removing an entity that has no
	// identity or whose row no longer exists.
	ErrNotPersisted = errors.New("activable: entity is not persisted")
	// ErrNoPrimaryKey is returned for models without a primary key.
	ErrNoPrimaryKey = errors.New("activable: model has no primary key")
	// ErrUnknownAssociation is returned when a declared association does not
	// match any relationship of the model.
	ErrUnknownAssociation = errors.New("activable: unknown association")
	// ErrUnsupportedAssociation is returned for cascades over relationships
	// other than has-one and has-many.
	ErrUnsupportedAssociation = errors.New("activable: association cannot cascade removal")
	// ErrProtectedAttribute is returned when an ordinary update writes removed_at.
	ErrProtectedAttribute = errors.New("activable: removed_at can only be written by the removal protocol")
)

// HookError reports a removal hook that vetoed the operation.
type HookError struct {
	Err   error
	Phase Phase
	Index int
}

func (e *HookError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s model hook: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s hook #%d: %v", e.Phase, e.Index, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// CascadeError reports a dependent collection that could not be removed.
type CascadeError struct {
	Err         error
	Association string
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade %s: %v", e.Association, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }
