package activable

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type legacyNote struct {
	Body string
	ID   int64 `gorm:"primaryKey;autoIncrement"`
}

func (legacyNote) TableName() string { return "notes" }

type note struct {
	Body string
	ID   int64 `gorm:"primaryKey;autoIncrement"`
	Marker
}

func (note) TableName() string { return "notes" }

func TestMigration_AddsRemovalColumn(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "legacy.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Use(Protect{}))

	require.NoError(t, db.AutoMigrate(&legacyNote{}))
	require.NoError(t, db.Create(&legacyNote{Body: "written before adoption"}).Error)
	require.False(t, db.Migrator().HasColumn(&note{}, Column))

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		Migration("001_notes_removed_at", &note{}),
	})
	require.NoError(t, m.Migrate())

	assert.True(t, db.Migrator().HasColumn(&note{}, Column))
	assert.True(t, db.Migrator().HasIndex(&note{}, "RemovedAt"))

	// Existing rows start active and can be removed.
	notes, err := NewRepository[note](db)
	require.NoError(t, err)
	ctx := context.Background()

	listed, err := notes.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NoError(t, notes.Remove(ctx, listed[0]))

	listed, err = notes.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)

	// Running it again is a no-op.
	require.NoError(t, Migration("again", &note{}).Migrate(db))

	require.NoError(t, m.RollbackLast())
	assert.False(t, db.Migrator().HasColumn(&note{}, Column))
}
