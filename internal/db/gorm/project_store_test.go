package gorm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/thebtf/activable/pkg/activable"
)

// seedProject creates a project with two sessions, two observations per
// session and one summary per session.
func seedProject(t *testing.T, stores *Stores, name string) (*Project, []*Session, []*Observation) {
	t.Helper()
	ctx := context.Background()

	project, err := stores.Projects.CreateProject(ctx, name, "seeded")
	require.NoError(t, err)

	var (
		sessions     []*Session
		observations []*Observation
	)
	for i, ext := range []string{name + "-a", name + "-b"} {
		sess, err := stores.Sessions.CreateSession(ctx, project.ID, ext, "prompt")
		require.NoError(t, err)
		sessions = append(sessions, sess)

		for _, typ := range []string{"decision", "bugfix"} {
			obs, err := stores.Observations.CreateObservation(ctx, sess.ID, typ, typ, "")
			require.NoError(t, err)
			observations = append(observations, obs)
		}

		_, err = stores.Summaries.CreateSummary(ctx, sess.ID, "request", "learned", "")
		require.NoError(t, err, "summary %d", i)
	}
	return project, sessions, observations
}

func TestProjectStore_CreateAndGet(t *testing.T) {
	stores, _ := testStores(t)
	ctx := context.Background()

	project, err := stores.Projects.CreateProject(ctx, "demo", "a demo")
	require.NoError(t, err)
	assert.Greater(t, project.ID, int64(0))
	assert.True(t, project.IsActive())

	byID, err := stores.Projects.GetProjectByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "a demo", byID.Description.String)

	byName, err := stores.Projects.GetProjectByName(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, project.ID, byName.ID)

	missing, err := stores.Projects.GetProjectByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProjectStore_RemoveCascades(t *testing.T) {
	stores, _ := testStores(t)
	ctx := context.Background()

	project, sessions, observations := seedProject(t, stores, "demo")
	other, otherSessions, _ := seedProject(t, stores, "other")

	removed, err := stores.Projects.RemoveProject(ctx, project.ID)
	require.NoError(t, err)
	assert.False(t, removed.IsActive())

	// Standard views hide the project and its sessions.
	active, err := stores.Projects.ListProjects(ctx, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, other.ID, active[0].ID)

	byName, err := stores.Projects.GetProjectByName(ctx, "demo")
	require.NoError(t, err)
	assert.Nil(t, byName)

	projectSessions, err := stores.Sessions.ListSessionsByProject(ctx, project.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, projectSessions)

	// Identity lookups still see every removed row.
	for _, sess := range sessions {
		got, err := stores.Sessions.GetSessionByID(ctx, sess.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive(), "session %d", sess.ID)
	}
	for _, obs := range observations {
		got, err := stores.Observations.GetObservationByID(ctx, obs.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive(), "observation %d", obs.ID)
	}

	// The other project is untouched.
	for _, sess := range otherSessions {
		got, err := stores.Sessions.GetSessionByID(ctx, sess.ID)
		require.NoError(t, err)
		assert.True(t, got.IsActive())
	}

	// Summaries are plain rows and stay.
	count, err := stores.Summaries.CountSummaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	trash, err := stores.Projects.ListRemovedProjects(ctx, 0)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, project.ID, trash[0].ID)

	all, err := stores.Projects.ListAllProjects(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProjectStore_RemoveMissing(t *testing.T) {
	stores, _ := testStores(t)

	_, err := stores.Projects.RemoveProject(context.Background(), 42)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProjectStore_PinnedObservationVetoesProjectRemoval(t *testing.T) {
	stores, _ := testStores(t)
	ctx := context.Background()

	project, sessions, observations := seedProject(t, stores, "demo")
	require.NoError(t, stores.Observations.SetPinned(ctx, observations[3].ID, true))

	_, err := stores.Projects.RemoveProject(ctx, project.ID)
	require.ErrorIs(t, err, ErrPinnedObservation)

	var cascadeErr *activable.CascadeError
	require.ErrorAs(t, err, &cascadeErr)
	assert.Equal(t, "Sessions", cascadeErr.Association)

	// Everything rolled back, including the first session's observations.
	got, err := stores.Projects.GetProjectByID(ctx, project.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive())
	for _, sess := range sessions {
		s, err := stores.Sessions.GetSessionByID(ctx, sess.ID)
		require.NoError(t, err)
		assert.True(t, s.IsActive())
	}
	alive, err := stores.Observations.ListAliveObservations(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, alive, len(observations))
}

func TestProjectStore_RemoveAll(t *testing.T) {
	var (
		mu     sync.Mutex
		events = map[string]int{}
	)
	observer := activable.ObserverFunc(func(_ context.Context, ev activable.Event) {
		if ev.Phase != activable.PhaseAfterRemoval {
			return
		}
		mu.Lock()
		events[ev.Table]++
		mu.Unlock()
	})

	stores, _ := testStores(t, activable.WithObservers(observer), activable.WithBatchSize(1))
	ctx := context.Background()

	seedProject(t, stores, "one")
	seedProject(t, stores, "two")
	seedProject(t, stores, "three")

	n, err := stores.Projects.RemoveAllProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"projects": 3, "sessions": 6, "observations": 12}, events)

	active, err := stores.Projects.ListProjects(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, active)

	n, err = stores.Projects.RemoveAllProjects(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProjectStore_Hooks(t *testing.T) {
	stores, _ := testStores(t)
	ctx := context.Background()

	var order []string
	stores.Projects.Repository().OnBeforeRemoval(func(_ context.Context, _ *gorm.DB, p *Project) error {
		order = append(order, "before:"+p.Name)
		return nil
	})
	stores.Sessions.Repository().OnAfterRemoval(func(_ context.Context, _ *gorm.DB, s *Session) error {
		order = append(order, "session:"+s.ExternalID)
		return nil
	})
	stores.Projects.Repository().OnAfterRemoval(func(_ context.Context, _ *gorm.DB, p *Project) error {
		order = append(order, "after:"+p.Name)
		return nil
	})

	project, _, _ := seedProject(t, stores, "demo")
	_, err := stores.Projects.RemoveProject(ctx, project.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"before:demo", "session:demo-a", "session:demo-b", "after:demo"}, order)
}
