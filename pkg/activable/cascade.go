package activable

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// CascadePolicy tells whether removing a parent removes an association's rows.
type CascadePolicy int

const (
	// CascadeNone leaves dependent rows untouched.
	CascadeNone CascadePolicy = iota
	// CascadeRemoval runs the removal protocol on every active dependent row.
	CascadeRemoval
)

func (p CascadePolicy) String() string {
	switch p {
	case CascadeNone:
		return "none"
	case CascadeRemoval:
		return "cascade_removal"
	default:
		return fmt.Sprintf("CascadePolicy(%d)", int(p))
	}
}

// Association declares a relationship of the model by its struct field name.
// Target is the repository of the dependent type; when it does not implement
// CollectionRemover the association is skipped.
type Association struct {
	Target any
	Name   string
	Policy CascadePolicy
}

// CollectionRemover removes, inside an open transaction, every active row
// matching conds. Repository implements it.
type CollectionRemover interface {
	RemoveWhere(ctx context.Context, tx *gorm.DB, conds ...clause.Expression) (int, error)
}

type cascade struct {
	rel    *schema.Relationship
	target CollectionRemover
	name   string
}

func resolveCascade(s *schema.Schema, a Association) (*cascade, error) {
	s.Relationships.Mux.RLock()
	rel, ok := s.Relationships.Relations[a.Name]
	s.Relationships.Mux.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAssociation, s.Name, a.Name)
	}

	if a.Policy != CascadeRemoval {
		return nil, nil
	}

	if rel.Type != schema.HasOne && rel.Type != schema.HasMany {
		return nil, fmt.Errorf("%w: %s.%s is %s", ErrUnsupportedAssociation, s.Name, a.Name, rel.Type)
	}

	target, ok := a.Target.(CollectionRemover)
	if !ok {
		return nil, nil
	}

	return &cascade{name: a.Name, rel: rel, target: target}, nil
}
