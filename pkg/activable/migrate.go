package activable

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migration returns a gormigrate migration adding the removed_at column and
// its index to the tables of models that adopted a marker after their table
// was created. Tables that already have them are left alone.
func Migration(id string, models ...any) *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: id,
		Migrate: func(tx *gorm.DB) error {
			m := tx.Migrator()
			for _, model := range models {
				if !m.HasColumn(model, Column) {
					if err := m.AddColumn(model, Column); err != nil {
						return fmt.Errorf("add %s to %T: %w", Column, model, err)
					}
				}
				if !m.HasIndex(model, "RemovedAt") {
					if err := m.CreateIndex(model, "RemovedAt"); err != nil {
						return fmt.Errorf("index %s on %T: %w", Column, model, err)
					}
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			m := tx.Migrator()
			for _, model := range models {
				if m.HasIndex(model, "RemovedAt") {
					if err := m.DropIndex(model, "RemovedAt"); err != nil {
						return err
					}
				}
				if m.HasColumn(model, Column) {
					if err := m.DropColumn(model, Column); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}
