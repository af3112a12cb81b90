package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSyncInProgress signals an attempt to start a sync while one is running.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNoActiveSync signals that no sync state exists to act on.
	ErrNoActiveSync = errors.New("no active sync")
	// ErrObjectGone signals a source object that disappeared between enqueue and mapping.
	ErrObjectGone = errors.New("source object gone")
	// ErrObjectNotFound signals a missing content object.
	ErrObjectNotFound = errors.New("content object not found")
	// ErrInvalidQuery signals a malformed query specification.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidTransition signals a forbidden sync status transition.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// SyncInProgressError wraps ErrSyncInProgress with the run holding the cursor,
// so callers can report the existing run instead of failing opaquely.
type SyncInProgressError struct {
	RunID     string
	StartedAt time.Time
}

func (e *SyncInProgressError) Error() string {
	return fmt.Sprintf("%s: run %s started at %s",
		ErrSyncInProgress.Error(), e.RunID, e.StartedAt.Format(time.RFC3339))
}

func (e *SyncInProgressError) Unwrap() error { return ErrSyncInProgress }
