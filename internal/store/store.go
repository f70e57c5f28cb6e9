// Package store defines the persistence boundary the item repository
// writes through, and a registry of backends selectable by driver name.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/query"
)

// Store errors.
var (
	ErrNotFound       = errors.New("item not found")
	ErrAlreadyExists  = errors.New("item already exists")
	ErrClosed         = errors.New("store is closed")
	ErrUnknownDriver  = errors.New("unknown store driver")
	ErrMissingCreated = errors.New("item has no creation date")
)

// Backend is a durable collection of items. Insert, Update and Delete are
// staged until Commit; Rollback drops whatever has been staged.
type Backend interface {
	// Fetch returns the items matching pred ordered by keys, reflecting
	// staged changes.
	Fetch(ctx context.Context, pred query.Predicate, keys []query.SortKey) ([]model.Item, error)

	// Get returns one item by id.
	Get(ctx context.Context, id uuid.UUID) (model.Item, error)

	Insert(ctx context.Context, item model.Item) error
	Update(ctx context.Context, item model.Item) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Commit makes staged changes durable in one step.
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Close() error
}

// Options select and locate a backend.
type Options struct {
	Driver string
	Path   string
}

// Factory opens a backend for the given options.
type Factory func(opts Options) (Backend, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]Factory{}
)

// Register makes a backend available under name. It panics on duplicates,
// like database/sql.Register.
func Register(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if f == nil {
		panic("store: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("store: Register called twice for driver " + name)
	}
	drivers[name] = f
}

// Drivers lists registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for n := range drivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend registered under opts.Driver.
func Open(opts Options) (Backend, error) {
	driversMu.RLock()
	f, ok := drivers[opts.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
	b, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", opts.Driver, err)
	}
	return b, nil
}

// CheckInsert validates an item before it is staged for insertion.
func CheckInsert(item model.Item) error {
	if item.ID == uuid.Nil {
		return fmt.Errorf("insert: nil id")
	}
	if item.CreationDate.IsZero() {
		return ErrMissingCreated
	}
	return nil
}
