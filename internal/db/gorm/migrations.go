package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/thebtf/activable/pkg/activable"
)

// migrations returns the ordered schema history.
func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		// Migration 001: Core tables
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				// AutoMigrate creates tables with all indexes from struct tags
				if err := tx.AutoMigrate(&Project{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&Session{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&Observation{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&Summary{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("session_summaries", "observations", "sessions", "projects")
			},
		},

		// Migration 002: Removal markers for databases created before
		// projects, sessions and observations were removable. No-op on
		// tables created by 001.
		activable.Migration("002_removal_markers", &Project{}, &Session{}, &Observation{}),

		// Migration 003: Composite index for the alive view of a session's observations
		{
			ID: "003_observations_alive_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_observations_session_alive
					ON observations (session_id, removed_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_observations_session_alive").Error
			},
		},
	}
}

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	return m.Migrate()
}

// Migrate applies pending migrations.
func (s *Store) Migrate() error {
	return runMigrations(s.DB)
}

// MigrationStatus reports, for each known migration, whether it was applied.
func (s *Store) MigrationStatus() ([]MigrationState, error) {
	var applied []string
	if s.DB.Migrator().HasTable(gormigrate.DefaultOptions.TableName) {
		err := s.DB.Table(gormigrate.DefaultOptions.TableName).
			Pluck(gormigrate.DefaultOptions.IDColumnName, &applied).Error
		if err != nil {
			return nil, err
		}
	}

	done := make(map[string]bool, len(applied))
	for _, id := range applied {
		done[id] = true
	}

	var states []MigrationState
	for _, m := range migrations() {
		states = append(states, MigrationState{ID: m.ID, Applied: done[m.ID]})
	}
	return states, nil
}

// MigrationState is the applied state of one migration.
type MigrationState struct {
	ID      string
	Applied bool
}
