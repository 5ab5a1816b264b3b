package activable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNewRepository_Scope(t *testing.T) {
	db := testDB(t)
	r := testRepos(t, db)

	assert.Equal(t, DefaultScope, r.authors.Scope())
	assert.Equal(t, DefaultScope, r.books.Scope())
	assert.Equal(t, ExplicitScope, r.reviews.Scope())
	assert.Equal(t, "authors", r.authors.Table())
	assert.Equal(t, "explicit", ExplicitScope.String())
}

func TestNewRepository_AssociationErrors(t *testing.T) {
	db := testDB(t)

	_, err := NewRepository[Author](db, WithAssociations(
		Association{Name: "Novels", Policy: CascadeRemoval},
	))
	assert.ErrorIs(t, err, ErrUnknownAssociation)

	books, err := NewRepository[Book](db)
	require.NoError(t, err)

	_, err = NewRepository[Review](db, WithAssociations(
		Association{Name: "Book", Policy: CascadeRemoval, Target: books},
	))
	assert.ErrorIs(t, err, ErrUnsupportedAssociation)

	// A non-cascading association is validated but never followed.
	_, err = NewRepository[Review](db, WithAssociations(
		Association{Name: "Book", Policy: CascadeNone, Target: books},
	))
	assert.NoError(t, err)
}

func TestRepository_CascadeNoneLeavesDependents(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	books, err := NewRepository[Book](db)
	require.NoError(t, err)
	authors, err := NewRepository[Author](db, WithAssociations(
		Association{Name: "Books", Policy: CascadeNone, Target: books},
	))
	require.NoError(t, err)

	author := seedAuthor(t, db, "independent")
	require.NoError(t, authors.Remove(ctx, author))

	listed, err := books.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestRepository_SkippedCascadesAreLogged(t *testing.T) {
	db := testDB(t)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	_, err := NewRepository[Book](db, WithLogger(logger), WithAssociations(
		Association{Name: "Reviews", Policy: CascadeNone},
		Association{Name: "Stickers", Policy: CascadeRemoval, Target: &stickerStore{}},
	))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"association":"Reviews"`)
	assert.Contains(t, out, "Association does not cascade removal")
	assert.Contains(t, out, `"association":"Stickers"`)
	assert.Contains(t, out, "Cascade target cannot remove collections, skipped")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("Association does not cascade removal")))
}

func TestRepository_FindMissing(t *testing.T) {
	db := testDB(t)
	r := testRepos(t, db)

	_, err := r.authors.Find(context.Background(), 42)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepository_RemoveTxJoinsCallerTransaction(t *testing.T) {
	db := testDB(t)
	r := testRepos(t, db)
	ctx := context.Background()

	author := seedAuthor(t, db, "joined")
	errLater := errors.New("later step failed")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := r.authors.RemoveTx(ctx, tx, author); err != nil {
			return err
		}
		return errLater
	})
	require.ErrorIs(t, err, errLater)

	stored, err := r.authors.Find(ctx, author.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive())
}

func TestRepository_ScopeFuncs(t *testing.T) {
	db := testDB(t)
	r := testRepos(t, db)
	ctx := context.Background()

	seedAuthor(t, db, "one")
	gone := seedAuthor(t, db, "two")
	require.NoError(t, r.authors.Remove(ctx, gone))

	var removed []Author
	require.NoError(t, db.Unscoped().Scopes(Removed).Find(&removed).Error)
	require.Len(t, removed, 1)
	assert.Equal(t, gone.ID, removed[0].ID)

	// Without Unscoped the default scope and Removed exclude each other.
	removed = nil
	require.NoError(t, db.Scopes(Removed).Find(&removed).Error)
	assert.Empty(t, removed)

	var alive int64
	require.NoError(t, r.authors.Alive(ctx).Count(&alive).Error)
	assert.Equal(t, int64(1), alive)

	// An OR condition stays grouped under the scope predicate.
	var found []Author
	require.NoError(t, db.Or("name = ?", "two").Find(&found).Error)
	assert.Empty(t, found)
}

func TestMarker_JSON(t *testing.T) {
	a := Author{Name: "json"}
	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"removed_at":null`)

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	a.stamp(at)
	out, err = json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"removed_at":"2026-03-01T09:30:00Z"`)

	var back Author
	require.NoError(t, json.Unmarshal(out, &back))
	got, ok := back.RemovalTime()
	require.True(t, ok)
	assert.True(t, got.Equal(at))

	var review Review
	require.NoError(t, json.Unmarshal([]byte(`{"removed_at":null}`), &review))
	assert.True(t, review.IsActive())
}
