package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/query"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/store/storetest"
)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBackendContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		return createTestStore(t)
	})
}

func TestCommittedItemsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "todos.db")

	s, err := Open(path)
	require.NoError(t, err)
	it := storetest.Item("Buy milk", 0)
	require.NoError(t, s.Insert(ctx, it))
	require.NoError(t, s.Commit(ctx))
	require.NoError(t, s.Insert(ctx, storetest.Item("never committed", time.Second)))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Fetch(ctx, nil, query.DefaultOrder)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, it.ID, got[0].ID)
	assert.True(t, it.CreationDate.Equal(got[0].CreationDate))
}

func TestOrderBy(t *testing.T) {
	clause, err := orderBy(query.DefaultOrder)
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY creation_sec DESC, creation_nsec DESC, title COLLATE BINARY ASC, id ASC", clause)

	clause, err = orderBy(nil)
	require.NoError(t, err)
	assert.Empty(t, clause)

	_, err = orderBy([]query.SortKey{{Field: "priority"}})
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	b, err := store.Open(store.Options{Driver: DriverName, Path: filepath.Join(t.TempDir(), "r.db")})
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &Store{}, b)
}

func TestStagedChangesSurviveCallerCancellation(t *testing.T) {
	s := createTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	it := storetest.Item("staged under a short-lived context", 0)
	require.NoError(t, s.Insert(ctx, it))
	cancel()

	bg := context.Background()
	require.NoError(t, s.Commit(bg))
	got, err := s.Get(bg, it.ID)
	require.NoError(t, err)
	assert.Equal(t, it.Title, got.Title)
}

func TestFailedUpdateLeavesStoreUsable(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	assert.ErrorIs(t, s.Update(ctx, storetest.Item("ghost", 0)), store.ErrNotFound)
	require.NoError(t, s.Rollback(ctx))

	it := storetest.Item("after", 0)
	require.NoError(t, s.Insert(ctx, it))
	require.NoError(t, s.Commit(ctx))
	items, err := s.Fetch(ctx, nil, query.DefaultOrder)
	require.NoError(t, err)
	assert.Equal(t, []string{"after"}, storetest.Titles(items))
}
