package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/repository"
	"github.com/Makepad-fr/tada/internal/store/memstore"
)

var base = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

func seededModel(t *testing.T, titles ...string) (modelTUI, *repository.Repository) {
	t.Helper()
	ctx := context.Background()
	repo := repository.New(memstore.New())
	t.Cleanup(func() { repo.Close() })
	// Later titles are newer, so they list first.
	for i, title := range titles {
		_, err := repo.CreateAt(ctx, title, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	m := newModel(ctx, repo, "")
	t.Cleanup(repo.Subscribe(m.notify))
	return m, repo
}

func press(m modelTUI, keys ...string) modelTUI {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(modelTUI)
	}
	return m
}

// settle delivers a pending change notification, as the program loop would.
func settle(t *testing.T, m modelTUI) modelTUI {
	t.Helper()
	select {
	case <-m.changes:
	default:
		t.Fatal("expected a change notification")
	}
	next, _ := m.Update(changedMsg{})
	return next.(modelTUI)
}

func shownTitles(m modelTUI) []string {
	var out []string
	for _, it := range m.items {
		out = append(out, it.Title)
	}
	return out
}

func TestModelLoadsInFetchOrder(t *testing.T) {
	m, _ := seededModel(t, "old", "new")
	assert.Equal(t, []string{"new", "old"}, shownTitles(m))
	assert.Len(t, m.list.Items(), 2)
}

func TestModelToggle(t *testing.T) {
	m, repo := seededModel(t, "only")

	m = press(m, " ")
	m = settle(t, m)

	items, err := repo.Fetch(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, items[0].IsChecked)
	assert.True(t, m.items[0].IsChecked)
}

func TestModelDeleteAndUndo(t *testing.T) {
	m, repo := seededModel(t, "keep", "drop")
	ctx := context.Background()

	// "drop" is newest and selected first.
	m = press(m, " ")
	m = settle(t, m)
	m = press(m, "d")
	m = settle(t, m)
	assert.Equal(t, []string{"keep"}, shownTitles(m))

	m = press(m, "u")
	m = settle(t, m)
	items, err := repo.Fetch(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	restored := items[0]
	assert.Equal(t, "drop", restored.Title)
	assert.True(t, restored.IsChecked, "undo keeps the check state")
	assert.True(t, base.Add(time.Minute).Equal(restored.CreationDate))
	assert.Nil(t, m.undoItem)
}

// stuckUpdates fails every Update while fail is set.
type stuckUpdates struct {
	*memstore.Store
	fail bool
}

func (s *stuckUpdates) Update(ctx context.Context, item model.Item) error {
	if s.fail {
		return errors.New("read-only")
	}
	return s.Store.Update(ctx, item)
}

func TestModelUndoReportsLostCheckState(t *testing.T) {
	ctx := context.Background()
	backend := &stuckUpdates{Store: memstore.New()}
	repo := repository.New(backend)
	t.Cleanup(func() { repo.Close() })
	_, err := repo.CreateAt(ctx, "drop", base)
	require.NoError(t, err)
	m := newModel(ctx, repo, "")
	t.Cleanup(repo.Subscribe(m.notify))

	m = press(m, " ")
	m = settle(t, m)
	m = press(m, "d")
	m = settle(t, m)

	backend.fail = true
	m = press(m, "u")
	assert.Contains(t, m.err, "could not mark it done")
	assert.Nil(t, m.undoItem, "the item is back, so undo is spent")

	m = press(m, "u")
	items, err := repo.Fetch(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 1, "a second undo must not duplicate the item")
	assert.False(t, items[0].IsChecked)
}

func TestWaitForChangeReturnsWhenDone(t *testing.T) {
	changes := make(chan struct{}, 1)
	done := make(chan struct{})

	changes <- struct{}{}
	assert.Equal(t, changedMsg{}, waitForChange(changes, done)())

	close(done)
	assert.Nil(t, waitForChange(changes, done)())
}

func TestModelAdd(t *testing.T) {
	m, _ := seededModel(t)

	m = press(m, "a")
	require.True(t, m.adding)
	m = press(m, "enter")
	assert.Equal(t, "Title cannot be empty", m.addErr)
	assert.True(t, m.adding)

	m = press(m, "B", "u", "y", " ", "m", "i", "l", "k", "enter")
	assert.False(t, m.adding)
	m = settle(t, m)
	assert.Equal(t, []string{"Buy milk"}, shownTitles(m))
}

func TestModelSearch(t *testing.T) {
	m, _ := seededModel(t, "Crème brûlée", "Buy milk", "Bake bread")

	m = press(m, "/", "b", "r")
	assert.True(t, m.searching)
	assert.Equal(t, "br", m.filter)
	assert.Equal(t, []string{"Bake bread", "Crème brûlée"}, shownTitles(m))

	m = press(m, "enter")
	assert.False(t, m.searching)
	assert.Equal(t, "br", m.filter, "enter keeps the filter")

	m = press(m, "esc")
	assert.Empty(t, m.filter)
	assert.Len(t, m.items, 3)
}

func TestModelNotifiedOfOutsideChanges(t *testing.T) {
	m, repo := seededModel(t, "first")

	_, err := repo.Create(context.Background(), "from elsewhere")
	require.NoError(t, err)

	m = settle(t, m)
	assert.Contains(t, shownTitles(m), "from elsewhere")
}

func TestModelQuit(t *testing.T) {
	m, _ := seededModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModelViewShowsError(t *testing.T) {
	m, repo := seededModel(t, "x")
	require.NoError(t, repo.Close())

	m = press(m, " ")
	assert.Contains(t, m.View(), "store is closed")
}
