// Package memstore is an in-memory store.Backend. Nothing survives the
// process; Commit only promotes staged changes to the committed snapshot.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/query"
	"github.com/Makepad-fr/tada/internal/store"
)

// DriverName is the store driver this package registers.
const DriverName = "memory"

func init() {
	store.Register(DriverName, func(store.Options) (store.Backend, error) {
		return New(), nil
	})
}

// Store keeps a committed map and a working copy that staged changes go to.
type Store struct {
	mu        sync.RWMutex
	committed map[uuid.UUID]model.Item
	working   map[uuid.UUID]model.Item
	closed    bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		committed: make(map[uuid.UUID]model.Item),
		working:   make(map[uuid.UUID]model.Item),
	}
}

// Fetch returns the working items matching pred, ordered by keys.
func (s *Store) Fetch(ctx context.Context, pred query.Predicate, keys []query.SortKey) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	items := make([]model.Item, 0, len(s.working))
	for _, it := range s.working {
		items = append(items, it)
	}
	return query.Apply(items, pred, keys), nil
}

// Get retrieves an item by its ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, fmt.Errorf("get item: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Item{}, store.ErrClosed
	}

	it, ok := s.working[id]
	if !ok {
		return model.Item{}, store.ErrNotFound
	}
	return it, nil
}

// Insert stages a new item.
func (s *Store) Insert(ctx context.Context, item model.Item) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	if err := store.CheckInsert(item); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	if _, exists := s.working[item.ID]; exists {
		return store.ErrAlreadyExists
	}
	s.working[item.ID] = item
	return nil
}

// Update stages a replacement for an existing item.
func (s *Store) Update(ctx context.Context, item model.Item) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	if _, exists := s.working[item.ID]; !exists {
		return store.ErrNotFound
	}
	s.working[item.ID] = item
	return nil
}

// Delete stages removal of an item.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	if _, exists := s.working[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.working, id)
	return nil
}

// Commit promotes the working copy.
func (s *Store) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.committed = clone(s.working)
	return nil
}

// Rollback resets the working copy to the last commit.
func (s *Store) Rollback(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.working = clone(s.committed)
	return nil
}

// Close marks the store unusable. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func clone(m map[uuid.UUID]model.Item) map[uuid.UUID]model.Item {
	out := make(map[uuid.UUID]model.Item, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
