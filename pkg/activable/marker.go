package activable

import (
	"database/sql"
	"database/sql/driver"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Column is the database column holding the removal timestamp.
const Column = "removed_at"

// Scope selects how removed rows are hidden from queries.
type Scope int

const (
	// DefaultScope hides removed rows from every query unless Unscoped is used.
	DefaultScope Scope = iota
	// ExplicitScope shows every row; callers opt into the Alive view.
	ExplicitScope
)

func (s Scope) String() string {
	switch s {
	case DefaultScope:
		return "default"
	case ExplicitScope:
		return "explicit"
	default:
		return "unknown"
	}
}

// RemovedAt is the removal timestamp of default-scoped models.
// GORM adds "removed_at IS NULL" to every query of a model carrying it.
type RemovedAt sql.NullTime

// Scan implements the Scanner interface.
func (n *RemovedAt) Scan(value any) error {
	return (*sql.NullTime)(n).Scan(value)
}

// Value implements the driver Valuer interface.
func (n RemovedAt) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Time, nil
}

func (n RemovedAt) MarshalJSON() ([]byte, error) {
	return marshalStamp(sql.NullTime(n))
}

func (n *RemovedAt) UnmarshalJSON(b []byte) error {
	return unmarshalStamp(b, (*sql.NullTime)(n))
}

// QueryClauses implements schema.QueryClausesInterface.
func (RemovedAt) QueryClauses(f *schema.Field) []clause.Interface {
	return []clause.Interface{aliveQueryClause{Field: f}}
}

// Timestamp is the removal timestamp of explicit-scoped models.
type Timestamp sql.NullTime

// Scan implements the Scanner interface.
func (n *Timestamp) Scan(value any) error {
	return (*sql.NullTime)(n).Scan(value)
}

// Value implements the driver Valuer interface.
func (n Timestamp) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Time, nil
}

func (n Timestamp) MarshalJSON() ([]byte, error) {
	return marshalStamp(sql.NullTime(n))
}

func (n *Timestamp) UnmarshalJSON(b []byte) error {
	return unmarshalStamp(b, (*sql.NullTime)(n))
}

func marshalStamp(n sql.NullTime) ([]byte, error) {
	if n.Valid {
		return json.Marshal(n.Time)
	}
	return json.Marshal(nil)
}

func unmarshalStamp(b []byte, n *sql.NullTime) error {
	if string(b) == "null" {
		n.Valid = false
		return nil
	}
	err := json.Unmarshal(b, &n.Time)
	if err == nil {
		n.Valid = true
	}
	return err
}

// Removable is implemented by models embedding Marker or ExplicitMarker.
// The setter is unexported so only the removal protocol can stamp a row.
type Removable interface {
	IsActive() bool
	RemovalTime() (time.Time, bool)
	stamp(at time.Time)
	scope() Scope
}

// Marker is embedded by default-scoped models.
type Marker struct {
	RemovedAt RemovedAt `gorm:"column:removed_at;index;<-:false" json:"removed_at"`
}

// IsActive reports whether the row has not been removed.
func (m *Marker) IsActive() bool { return !m.RemovedAt.Valid }

// RemovalTime returns the removal timestamp and whether it is set.
func (m *Marker) RemovalTime() (time.Time, bool) { return m.RemovedAt.Time, m.RemovedAt.Valid }

func (m *Marker) stamp(at time.Time) { m.RemovedAt = RemovedAt{Time: at, Valid: true} }

func (*Marker) scope() Scope { return DefaultScope }

// ExplicitMarker is embedded by explicit-scoped models.
type ExplicitMarker struct {
	RemovedAt Timestamp `gorm:"column:removed_at;index;<-:false" json:"removed_at"`
}

// IsActive reports whether the row has not been removed.
func (m *ExplicitMarker) IsActive() bool { return !m.RemovedAt.Valid }

// RemovalTime returns the removal timestamp and whether it is set.
func (m *ExplicitMarker) RemovalTime() (time.Time, bool) {
	return m.RemovedAt.Time, m.RemovedAt.Valid
}

func (m *ExplicitMarker) stamp(at time.Time) { m.RemovedAt = Timestamp{Time: at, Valid: true} }

func (*ExplicitMarker) scope() Scope { return ExplicitScope }

// IsActive reports whether r has not been removed.
func IsActive(r Removable) bool {
	return r.IsActive()
}
