// Package repository is the item store: the only way items are created,
// toggled, deleted and listed. Every mutation commits before it returns.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/query"
	"github.com/Makepad-fr/tada/internal/store"
)

// ChangeKind says what a committed mutation did.
type ChangeKind int

const (
	Created ChangeKind = iota + 1
	Toggled
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Toggled:
		return "toggled"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after a successful commit. For
// Deleted, Item is the item as it was before removal.
type Change struct {
	Kind ChangeKind
	Item model.Item
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithClock overrides time.Now for creation dates.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// Repository serializes all access to a store.Backend.
type Repository struct {
	mu      sync.Mutex
	backend store.Backend
	logger  *log.Logger
	now     func() time.Time

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Change)
}

// New wraps backend. The repository owns it from here on; Close closes it.
func New(backend store.Backend, opts ...Option) *Repository {
	r := &Repository{
		backend: backend,
		logger:  log.New(io.Discard),
		now:     time.Now,
		subs:    make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch returns the items whose title contains filter (ignoring case and
// diacritics; empty matches all), newest first, ties by title. The slice
// is a snapshot owned by the caller.
func (r *Repository) Fetch(ctx context.Context, filter string) ([]model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.backend.Fetch(ctx, query.TitleContains(filter), query.DefaultOrder)
	if err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	return items, nil
}

// Create adds an unchecked item dated now.
func (r *Repository) Create(ctx context.Context, title string) (model.Item, error) {
	return r.CreateAt(ctx, title, time.Time{})
}

// CreateAt adds an unchecked item with the given creation date. A zero
// date means now. Titles are not validated here.
func (r *Repository) CreateAt(ctx context.Context, title string, date time.Time) (model.Item, error) {
	if date.IsZero() {
		date = r.now()
	}
	item := model.New(title, date)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.backend.Insert(ctx, item); err != nil {
		r.abort(ctx, "create")
		return model.Item{}, fmt.Errorf("create item: %w", err)
	}
	if err := r.commit(ctx, "create"); err != nil {
		return model.Item{}, err
	}
	r.logger.Debug("item created", "id", item.ID, "title", item.Title)
	r.publish(Change{Kind: Created, Item: item})
	return item, nil
}

// Toggle flips IsChecked and returns the updated item.
func (r *Repository) Toggle(ctx context.Context, id uuid.UUID) (model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.get(ctx, id)
	if err != nil {
		return model.Item{}, fmt.Errorf("toggle item: %w", err)
	}
	updated := current.Toggled()
	if err := r.backend.Update(ctx, updated); err != nil {
		r.abort(ctx, "toggle")
		return model.Item{}, fmt.Errorf("toggle item: %w", r.notFound(id, err))
	}
	if err := r.commit(ctx, "toggle"); err != nil {
		return model.Item{}, err
	}
	r.logger.Debug("item toggled", "id", id, "checked", updated.IsChecked)
	r.publish(Change{Kind: Toggled, Item: updated})
	return updated, nil
}

// Delete removes the item for good. Deleting it again is a NotFoundError.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if err := r.backend.Delete(ctx, id); err != nil {
		r.abort(ctx, "delete")
		return fmt.Errorf("delete item: %w", r.notFound(id, err))
	}
	if err := r.commit(ctx, "delete"); err != nil {
		return err
	}
	r.logger.Debug("item deleted", "id", id)
	r.publish(Change{Kind: Deleted, Item: current})
	return nil
}

// Subscribe registers fn for every committed change and returns a func
// that removes it. fn runs on the mutating goroutine while the repository
// is locked, so it must not call back into the repository synchronously.
func (r *Repository) Subscribe(fn func(Change)) (unsubscribe func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.subs, id)
	}
}

// Close closes the backend.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Close()
}

func (r *Repository) get(ctx context.Context, id uuid.UUID) (model.Item, error) {
	it, err := r.backend.Get(ctx, id)
	if err != nil {
		return model.Item{}, r.notFound(id, err)
	}
	return it, nil
}

func (r *Repository) notFound(id uuid.UUID, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return err
}

// commit makes staged changes durable, rolling back on failure so the
// next operation starts from the last committed state.
func (r *Repository) commit(ctx context.Context, op string) error {
	err := r.backend.Commit(ctx)
	if err == nil {
		return nil
	}
	r.logger.Error("commit failed", "op", op, "err", err)
	if rbErr := r.backend.Rollback(ctx); rbErr != nil {
		r.logger.Error("rollback failed", "op", op, "err", rbErr)
		err = errors.Join(err, rbErr)
	}
	return &CommitError{Op: op, Err: err}
}

// abort drops whatever a failed mutation left staged.
func (r *Repository) abort(ctx context.Context, op string) {
	if err := r.backend.Rollback(ctx); err != nil {
		r.logger.Error("rollback failed", "op", op, "err", err)
	}
}

func (r *Repository) publish(c Change) {
	r.subMu.Lock()
	fns := make([]func(Change), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
