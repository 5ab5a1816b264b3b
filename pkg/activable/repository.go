package activable

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Entity constrains the pointer type of a removable model.
type Entity[T any] interface {
	*T
	Removable
}

// Repository owns the removal protocol of one model type: its hooks,
// observers and cascading associations.
type Repository[T any, P Entity[T]] struct {
	db        *gorm.DB
	schema    *schema.Schema
	primary   *schema.Field
	now       func() time.Time
	metrics   *removalMetrics
	logger    zerolog.Logger
	before    hookChain[P]
	after     hookChain[P]
	observers observerList
	cascades  []*cascade
	batchSize int
	variant   Scope
	cascadeMu sync.RWMutex
}

// NewRepository creates the repository of model T. Declared associations are
// resolved against the GORM schema here, so a typo fails at startup.
func NewRepository[T any, P Entity[T]](db *gorm.DB, opts ...Option) (*Repository[T, P], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("parse model %T: %w", new(T), err)
	}
	if stmt.Schema.PrioritizedPrimaryField == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, stmt.Schema.Name)
	}

	metrics, err := newRemovalMetrics(o.meter, stmt.Schema.Table)
	if err != nil {
		return nil, err
	}

	now := o.now
	if now == nil {
		now = db.NowFunc
	}

	r := &Repository[T, P]{
		db:        db,
		schema:    stmt.Schema,
		primary:   stmt.Schema.PrioritizedPrimaryField,
		now:       now,
		metrics:   metrics,
		logger:    o.logger.With().Str("table", stmt.Schema.Table).Logger(),
		batchSize: o.batchSize,
		variant:   P(new(T)).scope(),
	}
	r.observers.logger = r.logger

	for _, obs := range o.observers {
		r.observers.add(obs)
	}
	for _, a := range o.associations {
		if err := r.Cascade(a); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Scope reports whether the model hides removed rows by default.
func (r *Repository[T, P]) Scope() Scope { return r.variant }

// Table returns the model's table name.
func (r *Repository[T, P]) Table() string { return r.schema.Table }

// Cascade declares an association after construction. Self-referential
// models use it to cascade to their own repository.
func (r *Repository[T, P]) Cascade(a Association) error {
	c, err := resolveCascade(r.schema, a)
	if err != nil {
		return err
	}
	if c == nil {
		msg := "Association does not cascade removal"
		if a.Policy == CascadeRemoval {
			msg = "Cascade target cannot remove collections, skipped"
		}
		r.logger.Debug().
			Str("association", a.Name).
			Stringer("policy", a.Policy).
			Msg(msg)
		return nil
	}

	r.cascadeMu.Lock()
	r.cascades = append(r.cascades, c)
	r.cascadeMu.Unlock()
	return nil
}

// OnBeforeRemoval appends a hook run before the cascade and the write.
func (r *Repository[T, P]) OnBeforeRemoval(h Hook[P]) { r.before.add(h) }

// OnAfterRemoval appends a hook run after the write.
func (r *Repository[T, P]) OnAfterRemoval(h Hook[P]) { r.after.add(h) }

// Observe registers an observer notified before and after every removal.
func (r *Repository[T, P]) Observe(o Observer) { r.observers.add(o) }

// IsActive reports whether entity has not been removed.
func (r *Repository[T, P]) IsActive(entity P) bool { return entity.IsActive() }

// Query starts a standard query. Default-scoped models never see removed
// rows through it; explicit-scoped models see every row.
func (r *Repository[T, P]) Query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(new(T))
}

// Unscoped starts a query that bypasses the default scope.
func (r *Repository[T, P]) Unscoped(ctx context.Context) *gorm.DB {
	return r.Query(ctx).Unscoped()
}

// Alive starts a query over rows that were not removed.
func (r *Repository[T, P]) Alive(ctx context.Context) *gorm.DB {
	return Alive(r.Query(ctx))
}

// Find loads an entity by primary key whether or not it was removed.
func (r *Repository[T, P]) Find(ctx context.Context, id any) (P, error) {
	entity := P(new(T))
	err := r.db.WithContext(ctx).
		Unscoped().
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: r.primary.DBName}, Value: id}).
		First(entity).Error
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// List returns rows of the standard view ordered by primary key.
// A limit <= 0 returns every row.
func (r *Repository[T, P]) List(ctx context.Context, limit int) ([]P, error) {
	return r.list(r.Query(ctx), limit)
}

// ListAlive returns rows that were not removed.
func (r *Repository[T, P]) ListAlive(ctx context.Context, limit int) ([]P, error) {
	return r.list(r.Alive(ctx), limit)
}

// ListRemoved returns removed rows only.
func (r *Repository[T, P]) ListRemoved(ctx context.Context, limit int) ([]P, error) {
	return r.list(Removed(r.Unscoped(ctx)), limit)
}

func (r *Repository[T, P]) list(query *gorm.DB, limit int) ([]P, error) {
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: r.primary.DBName}})
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []T
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]P, len(rows))
	for i := range rows {
		result[i] = &rows[i]
	}
	return result, nil
}

// identity returns the entity's primary key or ErrNotPersisted.
func (r *Repository[T, P]) identity(ctx context.Context, entity P) (any, error) {
	if entity == nil {
		return nil, ErrNotPersisted
	}
	key, zero := r.primary.ValueOf(ctx, reflect.ValueOf(entity).Elem())
	if zero {
		return nil, fmt.Errorf("%w: %s has no %s", ErrNotPersisted, r.schema.Name, r.primary.Name)
	}
	return key, nil
}

func (r *Repository[T, P]) cascadeSnapshot() []*cascade {
	r.cascadeMu.RLock()
	defer r.cascadeMu.RUnlock()
	return append([]*cascade(nil), r.cascades...)
}
