package activable

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Remove logically removes entity and, depth-first, every active row of its
// cascading associations. Everything runs in one transaction: an error from a
// hook, a dependent or the write rolls the whole removal back.
//
// Removing an already removed entity runs the hooks again and rewrites the
// timestamp.
func (r *Repository[T, P]) Remove(ctx context.Context, entity P) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.RemoveTx(ctx, tx, entity)
	})
	r.metrics.record(ctx, 1, err)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Removal rolled back")
		return err
	}
	return nil
}

// removalSet holds the rows a removal call has already visited. It lives in
// the context for the duration of one top-level call, so a row reached twice
// through cascades, or through a cycle, runs the protocol once.
type removalSet map[removalKey]struct{}

type removalKey struct {
	table string
	key   string
}

type removalSetCtxKey struct{}

// withRemovalSet returns ctx carrying a removal set, reusing an existing one.
func withRemovalSet(ctx context.Context) (context.Context, removalSet) {
	if set, ok := ctx.Value(removalSetCtxKey{}).(removalSet); ok {
		return ctx, set
	}
	set := removalSet{}
	return context.WithValue(ctx, removalSetCtxKey{}, set), set
}

// visit records table/key and reports whether it was not seen before.
func (s removalSet) visit(table string, key any) bool {
	k := removalKey{table: table, key: fmt.Sprint(key)}
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

func (s removalSet) has(table string, key any) bool {
	_, ok := s[removalKey{table: table, key: fmt.Sprint(key)}]
	return ok
}

// RemoveTx runs the removal protocol inside the caller's transaction.
// Within one call a row is removed once: a row reached again through a
// cascade, including a row that is its own ancestor, is skipped.
func (r *Repository[T, P]) RemoveTx(ctx context.Context, tx *gorm.DB, entity P) error {
	key, err := r.identity(ctx, entity)
	if err != nil {
		return err
	}
	ctx, set := withRemovalSet(ctx)
	if !set.visit(r.schema.Table, key) {
		r.logger.Debug().Interface("key", key).Msg("Row already removed in this call, skipped")
		return nil
	}
	tx = tx.Session(&gorm.Session{NewDB: true, Context: ctx})

	ev := Event{ID: uuid.New(), Table: r.schema.Table, Key: key, Entity: entity}

	if err := runBeforeModelHook(tx, entity); err != nil {
		return err
	}
	if err := r.before.run(ctx, tx, PhaseBeforeRemoval, entity); err != nil {
		return err
	}

	ev.Phase = PhaseBeforeRemoval
	ev.At = r.now()
	r.observers.notify(ctx, ev)

	for _, c := range r.cascadeSnapshot() {
		conds := c.rel.ToQueryConditions(ctx, reflect.ValueOf(entity))
		n, err := c.target.RemoveWhere(ctx, tx, conds...)
		if err != nil {
			return &CascadeError{Association: c.name, Err: err}
		}
		r.logger.Debug().
			Interface("key", key).
			Str("association", c.name).
			Int("removed", n).
			Msg("Cascaded removal")
	}

	// The marker field is read-only to GORM, so the write goes through the
	// bare table without the model's schema or hooks.
	at := r.now()
	res := tx.Table(r.schema.Table).
		Where(clause.Eq{Column: clause.Column{Name: r.primary.DBName}, Value: key}).
		UpdateColumn(Column, at)
	if res.Error != nil {
		return fmt.Errorf("write %s: %w", Column, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %v", ErrNotPersisted, r.schema.Table, key)
	}
	entity.stamp(at)

	ev.Phase = PhaseAfterRemoval
	ev.At = at
	r.observers.notify(ctx, ev)

	if err := r.after.run(ctx, tx, PhaseAfterRemoval, entity); err != nil {
		return err
	}
	return runAfterModelHook(tx, entity)
}

// RemoveWhere removes, one row at a time through the full protocol, every
// active row matching conds. It implements CollectionRemover.
func (r *Repository[T, P]) RemoveWhere(ctx context.Context, tx *gorm.DB, conds ...clause.Expression) (int, error) {
	ctx, set := withRemovalSet(ctx)
	tx = tx.Session(&gorm.Session{NewDB: true, Context: ctx})

	query := tx.Model(new(T))
	if len(conds) > 0 {
		query = query.Clauses(clause.Where{Exprs: conds})
	}
	if r.variant == ExplicitScope {
		query = Alive(query)
	}

	var (
		rows    []T
		removed int
	)
	err := query.FindInBatches(&rows, r.batchSize, func(_ *gorm.DB, _ int) error {
		for i := range rows {
			// A batch is loaded before its rows are removed, so a row may
			// already have been removed as a dependent of an earlier one.
			key, err := r.identity(ctx, P(&rows[i]))
			if err != nil {
				return err
			}
			if set.has(r.schema.Table, key) {
				continue
			}
			if err := r.RemoveTx(ctx, tx, P(&rows[i])); err != nil {
				return err
			}
			removed++
		}
		return nil
	}).Error
	if err != nil {
		return removed, err
	}
	return removed, nil
}

// RemoveAll removes every active row of the model. Rows are removed one by
// one with hooks, observers and cascades, inside a single transaction.
func (r *Repository[T, P]) RemoveAll(ctx context.Context) (int, error) {
	var removed int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := r.RemoveWhere(ctx, tx)
		removed = n
		return err
	})
	if err != nil {
		r.metrics.record(ctx, 0, err)
		return 0, err
	}
	r.metrics.record(ctx, removed, nil)

	r.logger.Info().Int("removed", removed).Msg("Removed all rows")
	return removed, nil
}
