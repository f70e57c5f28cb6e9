// Package sqlitestore persists items in a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/query"
	"github.com/Makepad-fr/tada/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// DriverName is the store driver this package registers.
const DriverName = "sqlite"

// DefaultFileName is used when no path is configured.
const DefaultFileName = "todos.db"

func init() {
	store.Register(DriverName, func(opts store.Options) (store.Backend, error) {
		path := opts.Path
		if path == "" {
			path = DefaultFileName
		}
		return Open(path)
	})
}

// Store is a store.Backend over SQLite. Staged changes live in an open
// transaction that Commit or Rollback ends.
type Store struct {
	db *sql.DB

	mu sync.Mutex
	tx *sql.Tx
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: the open transaction must see its own writes and
	// SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// reader returns the open transaction if any, so reads see staged writes.
func (s *Store) reader() (querier, error) {
	if s.db == nil {
		return nil, store.ErrClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	return s.db, nil
}

// writer returns the open transaction, beginning one if needed. The
// transaction outlives the call that opened it, so it is detached from
// that call's cancellation.
func (s *Store) writer(ctx context.Context) (*sql.Tx, error) {
	if s.db == nil {
		return nil, store.ErrClosed
	}
	if s.tx == nil {
		tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

// Creation dates are stored as Unix seconds plus nanoseconds so the full
// time.Time range survives; UnixNano overflows outside 1678-2262.
var orderColumns = map[query.Field][]string{
	query.ByCreationDate: {"creation_sec", "creation_nsec"},
	query.ByTitle:        {"title COLLATE BINARY"},
	query.ByID:           {"id"},
}

const itemColumns = `id, title, creation_sec, creation_nsec, is_checked`

// orderBy renders keys as an ORDER BY clause. Title folding is
// locale-aware, so the predicate stays in Go; ordering is byte-wise and
// pushes down cleanly.
func orderBy(keys []query.SortKey) (string, error) {
	if len(keys) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		cols, ok := orderColumns[k.Field]
		if !ok {
			return "", fmt.Errorf("unsupported sort field %q", k.Field)
		}
		dir := "ASC"
		if k.Descending {
			dir = "DESC"
		}
		for _, col := range cols {
			parts = append(parts, col+" "+dir)
		}
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (s *Store) Fetch(ctx context.Context, pred query.Predicate, keys []query.SortKey) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	order, err := orderBy(keys)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items`+order)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		it, err := scan(rows)
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(it) {
			items = append(items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.reader()
	if err != nil {
		return model.Item{}, err
	}
	row := q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id.String())
	it, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, store.ErrNotFound
	}
	return it, err
}

func (s *Store) Insert(ctx context.Context, item model.Item) error {
	if err := store.CheckInsert(item); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.writer(ctx)
	if err != nil {
		return err
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE id = ?`, item.ID.String()).Scan(&n); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	if n > 0 {
		return store.ErrAlreadyExists
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?)`,
		item.ID.String(), item.Title, item.CreationDate.Unix(), item.CreationDate.Nanosecond(), item.IsChecked)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.writer(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE items SET title = ?, creation_sec = ?, creation_nsec = ?, is_checked = ? WHERE id = ?`,
		item.Title, item.CreationDate.Unix(), item.CreationDate.Nanosecond(), item.IsChecked, item.ID.String())
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return expectOne(res)
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.writer(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return expectOne(res)
}

func (s *Store) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return store.ErrClosed
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Rollback(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return store.ErrClosed
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// Close rolls back anything still staged and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (model.Item, error) {
	var (
		id      string
		title   string
		sec     int64
		nsec    int64
		checked bool
	)
	if err := sc.Scan(&id, &title, &sec, &nsec, &checked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Item{}, err
		}
		return model.Item{}, fmt.Errorf("scan item: %w", err)
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return model.Item{}, fmt.Errorf("parse item id %q: %w", id, err)
	}
	return model.Item{
		ID:           uid,
		Title:        title,
		CreationDate: time.Unix(sec, nsec).UTC(),
		IsChecked:    checked,
	}, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
