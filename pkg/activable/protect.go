package activable

import (
	"reflect"

	"gorm.io/gorm"
)

var (
	removedAtType = reflect.TypeOf(RemovedAt{})
	timestampType = reflect.TypeOf(Timestamp{})
)

// Protect is a GORM plugin that turns updates writing removed_at through
// Update, UpdateColumn or map Updates into ErrProtectedAttribute. Without it
// GORM drops the read-only column from the statement silently.
//
//	db.Use(activable.Protect{})
type Protect struct{}

// Name implements gorm.Plugin.
func (Protect) Name() string { return "activable:protect" }

// Initialize implements gorm.Plugin.
func (Protect) Initialize(db *gorm.DB) error {
	return db.Callback().Update().
		Before("gorm:before_update").
		Register("activable:protect_removed_at", protectRemovedAt)
}

func protectRemovedAt(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	field := db.Statement.Schema.LookUpField(Column)
	if field == nil || (field.FieldType != removedAtType && field.FieldType != timestampType) {
		return
	}

	dest, ok := db.Statement.Dest.(map[string]any)
	if !ok {
		return
	}
	_, byColumn := dest[field.DBName]
	_, byName := dest[field.Name]
	if byColumn || byName {
		_ = db.AddError(ErrProtectedAttribute)
	}
}
