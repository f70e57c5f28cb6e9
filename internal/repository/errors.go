package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinels for errors.Is.
var (
	ErrNotFound = errors.New("item not found")
	ErrCommit   = errors.New("commit failed")
)

// NotFoundError reports a Delete or Toggle on an id the store doesn't hold,
// usually a stale id from an older Fetch.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("item %s not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CommitError reports that a mutation could not be made durable. The
// backend has been rolled back; the repository is still usable.
type CommitError struct {
	Op  string
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s: commit failed: %v", e.Op, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

func (e *CommitError) Is(target error) bool { return target == ErrCommit }
