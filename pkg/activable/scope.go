package activable

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const aliveClauseKey = "activable_alive_enabled"

// aliveQueryClause appends "removed_at IS NULL" to queries of default-scoped
// models. Unscoped statements are left untouched.
type aliveQueryClause struct {
	Field *schema.Field
}

func (aliveQueryClause) Name() string { return "" }

func (aliveQueryClause) Build(clause.Builder) {}

func (aliveQueryClause) MergeClause(*clause.Clause) {}

func (c aliveQueryClause) ModifyStatement(stmt *gorm.Statement) {
	if _, ok := stmt.Clauses[aliveClauseKey]; ok || stmt.Statement.Unscoped {
		return
	}

	// A lone OR condition would otherwise swallow the scope predicate.
	if where, ok := stmt.Clauses["WHERE"]; ok {
		if expr, ok := where.Expression.(clause.Where); ok && len(expr.Exprs) >= 1 {
			for _, e := range expr.Exprs {
				if orCond, ok := e.(clause.OrConditions); ok && len(orCond.Exprs) == 1 {
					expr.Exprs = []clause.Expression{clause.And(expr.Exprs...)}
					where.Expression = expr
					stmt.Clauses["WHERE"] = where
					break
				}
			}
		}
	}

	stmt.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: c.Field.DBName}, Value: nil},
	}})
	stmt.Clauses[aliveClauseKey] = clause.Clause{}
}

// Alive is a GORM scope restricting a query to rows that were not removed.
//
//	db.Scopes(activable.Alive).Find(&comments)
func Alive(db *gorm.DB) *gorm.DB {
	return db.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: Column}, Value: nil})
}

// Removed is a GORM scope restricting a query to removed rows. Default-scoped
// models also need Unscoped for it to match anything.
func Removed(db *gorm.DB) *gorm.DB {
	return db.Where(clause.Neq{Column: clause.Column{Table: clause.CurrentTable, Name: Column}, Value: nil})
}
