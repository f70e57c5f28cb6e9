// Package storetest holds the behaviour every store.Backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/query"
	"github.com/Makepad-fr/tada/internal/store"
)

// Opener returns a fresh, empty backend. Implementations register cleanup.
type Opener func(t *testing.T) store.Backend

// Base is the reference timestamp the suite builds items from.
var Base = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

// Item builds an item created offset after Base.
func Item(title string, offset time.Duration) model.Item {
	return model.New(title, Base.Add(offset))
}

// Titles lists item titles in order.
func Titles(items []model.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

// Run exercises open against the shared backend contract.
func Run(t *testing.T, open Opener) {
	t.Run("InsertCommitFetch", func(t *testing.T) { testInsertCommitFetch(t, open) })
	t.Run("FetchOrderAndFilter", func(t *testing.T) { testFetchOrderAndFilter(t, open) })
	t.Run("FarDates", func(t *testing.T) { testFarDates(t, open) })
	t.Run("Get", func(t *testing.T) { testGet(t, open) })
	t.Run("InsertDuplicate", func(t *testing.T) { testInsertDuplicate(t, open) })
	t.Run("InsertWithoutCreationDate", func(t *testing.T) { testInsertWithoutCreationDate(t, open) })
	t.Run("UpdateAndDelete", func(t *testing.T) { testUpdateAndDelete(t, open) })
	t.Run("MissingIDs", func(t *testing.T) { testMissingIDs(t, open) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, open) })
}

func testInsertCommitFetch(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t)

	empty, err := b.Fetch(ctx, nil, query.DefaultOrder)
	require.NoError(t, err)
	assert.Empty(t, empty)

	it := Item("Buy milk", 0)
	require.NoError(t, b.Insert(ctx, it))
	require.NoError(t, b.Commit(ctx))

	got, err := b.Fetch(ctx, nil, query.DefaultOrder)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, it.ID, got[0].ID)
	assert.Equal(t, "Buy milk", got[0].Title)
	assert.True(t, it.CreationDate.Equal(got[0].CreationDate))
	assert.False(t, got[0].IsChecked)
}

func testFetchOrderAndFilter(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t)

	for _, it := range []model.Item{
		Item("Write report", 0),
		Item("Write email", 0),
		Item("Call client", time.Minute),
		Item("Café with Zoé", -time.Hour),
	} {
		require.NoError(t, b.Insert(ctx, it))
	}
	require.NoError(t, b.Commit(ctx))

	all, err := b.Fetch(ctx, nil, query.DefaultOrder)
	require.NoError(t, err)
	assert.Equal(t, []string{"Call client", "Write email", "Write report", "Café with Zoé"}, Titles(all))

	writes, err := b.Fetch(ctx, query.TitleContains("WRITE"), query.DefaultOrder)
	require.NoError(t, err)
	assert.Equal(t, []string{"Write email", "Write report"}, Titles(writes))

	cafe, err := b.Fetch(ctx, query.TitleContains("cafe"), query.DefaultOrder)
	require.NoError(t, err)
	assert.Equal(t, []string{"Café with Zoé"}, Titles(cafe))
}

func testFarDates(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t)

	future := model.New("future", time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC))
	past := model.New("past", time.Date(1600, 6, 1, 12, 0, 0, 250, time.UTC))
	for _, it := range []model.Item{Item("now", 0), future, past} {
		require.NoError(t, b.Insert(ctx, it))
	}
	require.NoError(t, b.Commit(ctx))

	got, err := b.Fetch(ctx, nil, query.DefaultOrder)
	require.NoError(t, err)
	require.Equal(t, []string{"future", "now", "past"}, Titles(got))
	assert.True(t, future.CreationDate.Equal(got[0].CreationDate), got[0].CreationDate)
	assert.True(t, past.CreationDate.Equal(got[2].CreationDate), got[2].CreationDate)
}

func testGet(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t)

	it := Item("Water plants", 0)
	require.NoError(t, b.Insert(ctx, it))

	got, err := b.Get(ctx, it.ID)
	require.NoError(t, err, "staged inserts are visible before commit")
	assert.Equal(t, it.Title, got.Title)

	_, err = b.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testInsertDuplicate(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t)

	it := Item("Once", 0)
	require.NoError(t, b.Insert(ctx, it))
	require.NoError(t, b.Commit(ctx))

	assert.ErrorIs(t, b.Insert(ctx, it), store.ErrAlreadyExists)
}

func testInsertWithoutCreationDate(t *testing.T, open Opener) {
	b := open(t)
	it := model.Item{ID: uuid.New(), Title: "undated"}
	assert.ErrorIs(t, b.Insert(context.Background(), it), store.ErrMissingCreated)
}

func testUpdateAndDelete(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t)

	keep := Item("keep", 0)
	drop := Item("drop", time.Second)
	require.NoError(t, b.Insert(ctx, keep))
	require.NoError(t, b.Insert(ctx, drop))
	require.NoError(t, b.Commit(ctx))

	require.NoError(t, b.Update(ctx, keep.Toggled()))
	require.NoError(t, b.Delete(ctx, drop.ID))
	require.NoError(t, b.Commit(ctx))

	got, err := b.Fetch(ctx, nil, query.DefaultOrder)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, keep.ID, got[0].ID)
	assert.True(t, got[0].IsChecked)
}

func testMissingIDs(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t)

	ghost := Item("ghost", 0)
	assert.ErrorIs(t, b.Update(ctx, ghost), store.ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, ghost.ID), store.ErrNotFound)
}

func testRollback(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t)

	committed := Item("committed", 0)
	require.NoError(t, b.Insert(ctx, committed))
	require.NoError(t, b.Commit(ctx))

	require.NoError(t, b.Insert(ctx, Item("staged", time.Second)))
	require.NoError(t, b.Update(ctx, committed.Toggled()))
	require.NoError(t, b.Rollback(ctx))

	got, err := b.Fetch(ctx, nil, query.DefaultOrder)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "committed", got[0].Title)
	assert.False(t, got[0].IsChecked)
}

func testClosed(t *testing.T, open Opener) {
	ctx := context.Background()
	b := open(t)
	require.NoError(t, b.Close())

	_, err := b.Fetch(ctx, nil, query.DefaultOrder)
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, b.Insert(ctx, Item("late", 0)), store.ErrClosed)
}
