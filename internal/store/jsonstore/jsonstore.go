package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/query"
	"github.com/Makepad-fr/tada/internal/store"
)

// JSON-backed storage. Single file, human-readable, portable.
// The whole list is read on Open and rewritten on every Commit.

// DriverName is the store driver this package registers.
const DriverName = "json"

// DefaultFileName is used when no path is configured.
const DefaultFileName = "todos.json"

func init() {
	store.Register(DriverName, func(opts store.Options) (store.Backend, error) {
		return Open(opts.Path)
	})
}

// Store is a store.Backend persisted to one JSON file.
type Store struct {
	path string

	mu        sync.Mutex
	committed []model.Item
	working   map[uuid.UUID]model.Item
	dirty     bool
	closed    bool
}

// DataPath resolves the file a Store reads, defaulting to todos.json in the
// working directory.
func DataPath(path string) (string, error) {
	if path != "" {
		return filepath.Clean(path), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	return filepath.Join(wd, DefaultFileName), nil
}

// Open loads the file at path. A missing file is an empty list.
func Open(path string) (*Store, error) {
	p, err := DataPath(path)
	if err != nil {
		return nil, err
	}
	items, err := load(p)
	if err != nil {
		return nil, err
	}
	s := &Store{path: p, committed: items}
	s.working = index(items)
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

func load(p string) ([]model.Item, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Item{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	var items []model.Item
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	for i, it := range items {
		if err := store.CheckInsert(it); err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", p, i, err)
		}
	}
	return items, nil
}

func index(items []model.Item) map[uuid.UUID]model.Item {
	m := make(map[uuid.UUID]model.Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

func (s *Store) Fetch(ctx context.Context, pred query.Predicate, keys []query.SortKey) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	items := make([]model.Item, 0, len(s.working))
	for _, it := range s.working {
		items = append(items, it)
	}
	return query.Apply(items, pred, keys), nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, fmt.Errorf("get item: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Item{}, store.ErrClosed
	}
	it, ok := s.working[id]
	if !ok {
		return model.Item{}, store.ErrNotFound
	}
	return it, nil
}

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
	if _, ok := s.working[item.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.working[item.ID] = item
	s.dirty = true
	return nil
}

func (s *Store) Update(ctx context.Context, item model.Item) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if _, ok := s.working[item.ID]; !ok {
		return store.ErrNotFound
	}
	s.working[item.ID] = item
	s.dirty = true
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if _, ok := s.working[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.working, id)
	s.dirty = true
	return nil
}

// Commit rewrites the file. Items are written in Fetch order so the file
// reads the same way the list does.
func (s *Store) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if !s.dirty {
		return nil
	}

	items := make([]model.Item, 0, len(s.working))
	for _, it := range s.working {
		items = append(items, it)
	}
	query.Sort(items, query.DefaultOrder)

	if err := save(s.path, items); err != nil {
		return err
	}
	s.committed = items
	s.dirty = false
	return nil
}

func (s *Store) Rollback(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.working = index(s.committed)
	s.dirty = false
	return nil
}

// Close drops staged changes. The file is only touched by Commit.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.working = nil
	return nil
}

// save writes through a temp file in the same directory so a failed write
// never leaves a truncated list behind.
func save(p string, items []model.Item) error {
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	dir := filepath.Dir(p)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}
