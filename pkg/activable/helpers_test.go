package activable

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errPinned = errors.New("review is pinned")

// Author is default-scoped and cascades to its books.
type Author struct {
	Name  string
	Books []Book
	ID    int64 `gorm:"primaryKey;autoIncrement"`
	Marker
}

// Book is default-scoped and cascades to its reviews. Stickers are plain rows.
type Book struct {
	Title    string
	Reviews  []Review
	Stickers []Sticker
	ID       int64 `gorm:"primaryKey;autoIncrement"`
	AuthorID int64 `gorm:"index"`
	Marker
}

// Review is explicit-scoped; pinned reviews refuse removal.
type Review struct {
	Book   *Book
	Body   string
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	BookID int64 `gorm:"index"`
	Pinned bool
	ExplicitMarker
}

func (r *Review) BeforeRemove(tx *gorm.DB) error {
	if r.Pinned {
		return errPinned
	}
	return nil
}

// Sticker has no removal marker.
type Sticker struct {
	Label  string
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	BookID int64 `gorm:"index"`
}

// Category is a self-referential tree.
type Category struct {
	ParentID *int64 `gorm:"index"`
	Name     string
	Children []Category `gorm:"foreignKey:ParentID"`
	ID       int64      `gorm:"primaryKey;autoIncrement"`
	Marker
}

// testDB opens a SQLite database in a temporary directory.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Use(Protect{}))
	require.NoError(t, db.AutoMigrate(&Author{}, &Book{}, &Review{}, &Sticker{}, &Category{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

type repos struct {
	authors  *Repository[Author, *Author]
	books    *Repository[Book, *Book]
	reviews  *Repository[Review, *Review]
	stickers *stickerStore
}

// stickerStore stands in for a store that cannot remove collections.
type stickerStore struct{}

// testRepos wires authors -> books -> reviews, plus the non-removable stickers.
func testRepos(t *testing.T, db *gorm.DB, opts ...Option) repos {
	t.Helper()

	reviews, err := NewRepository[Review](db, opts...)
	require.NoError(t, err)

	stickers := &stickerStore{}
	books, err := NewRepository[Book](db, append(opts, WithAssociations(
		Association{Name: "Reviews", Policy: CascadeRemoval, Target: reviews},
		Association{Name: "Stickers", Policy: CascadeRemoval, Target: stickers},
	))...)
	require.NoError(t, err)

	authors, err := NewRepository[Author](db, append(opts, WithAssociations(
		Association{Name: "Books", Policy: CascadeRemoval, Target: books},
	))...)
	require.NoError(t, err)

	return repos{authors: authors, books: books, reviews: reviews, stickers: stickers}
}

// seedAuthor creates an author with two books, each with two reviews and a sticker.
func seedAuthor(t *testing.T, db *gorm.DB, name string) *Author {
	t.Helper()

	author := &Author{
		Name: name,
		Books: []Book{
			{
				Title:    name + " vol. 1",
				Reviews:  []Review{{Body: "great"}, {Body: "fine"}},
				Stickers: []Sticker{{Label: "bestseller"}},
			},
			{
				Title:    name + " vol. 2",
				Reviews:  []Review{{Body: "meh"}, {Body: "good"}},
				Stickers: []Sticker{{Label: "signed"}},
			},
		},
	}
	require.NoError(t, db.Create(author).Error)
	return author
}

// stepClock returns a second later on every call.
type stepClock struct {
	t  time.Time
	mu sync.Mutex
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}
