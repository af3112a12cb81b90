// Package tracker owns the sync cursor lifecycle: starting a run, persisting
// page-by-page progress, pausing, cancelling, and detecting abandoned runs.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contentdex/contentdex/internal/domain"
	"github.com/contentdex/contentdex/internal/domain/syncstate"
	"github.com/contentdex/contentdex/internal/statestore"
)

// DefaultStaleAfter is how long a Running state may sit untouched before a
// new start is allowed to take it over.
const DefaultStaleAfter = 15 * time.Minute

// Tracker coordinates access to the single persisted sync state.
type Tracker struct {
	store      statestore.Store
	staleAfter time.Duration
	now        func() time.Time
	log        *zap.Logger
}

// New creates a tracker.
func New(store statestore.Store, staleAfter time.Duration, log *zap.Logger) *Tracker {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Tracker{store: store, staleAfter: staleAfter, now: time.Now, log: log}
}

// WithClock overrides the time source (tests).
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// StartOptions configures a new sync run.
type StartOptions struct {
	Method     syncstate.Method
	Indexables []string
	PageSize   int
	SiteCount  int
	PutMapping bool
	Offset     int // starting offset for the first indexable
}

// Start creates and persists a fresh Running state. An existing non-terminal
// state blocks the start unless it has gone stale (its process died without
// finalizing), in which case the new run takes over the cursor.
func (t *Tracker) Start(ctx context.Context, opts StartOptions) (*syncstate.State, error) {
	existing, err := t.store.Load(ctx)
	if err != nil && !errors.Is(err, statestore.ErrNotFound) {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	if existing != nil && !existing.Status.Terminal() {
		if !existing.Stale(t.now(), t.staleAfter) {
			return nil, &domain.SyncInProgressError{RunID: existing.RunID, StartedAt: existing.StartedAt}
		}
		t.log.Warn("taking over stale sync",
			zap.String("run_id", existing.RunID),
			zap.Time("last_activity", existing.UpdatedAt),
		)
	}

	st := syncstate.New(uuid.NewString(), opts.Method, opts.Indexables, opts.PageSize, opts.SiteCount, t.now())
	st.PutMapping = opts.PutMapping
	st.Offset = opts.Offset

	if err := t.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("save sync state: %w", err)
	}
	return st, nil
}

// Current returns the persisted state, or domain.ErrNoActiveSync.
func (t *Tracker) Current(ctx context.Context) (*syncstate.State, error) {
	st, err := t.store.Load(ctx)
	if err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			return nil, domain.ErrNoActiveSync
		}
		return nil, fmt.Errorf("load sync state: %w", err)
	}
	return st, nil
}

// Save persists the state after a processed page, refreshing its timestamp.
func (t *Tracker) Save(ctx context.Context, st *syncstate.State) error {
	st.Touch(t.now())
	if err := t.store.Save(ctx, st); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// Finish transitions the state to a terminal status and persists it.
func (t *Tracker) Finish(ctx context.Context, st *syncstate.State, status syncstate.Status) error {
	if err := st.Transition(status); err != nil {
		return err
	}
	return t.Save(ctx, st)
}

// Pause marks the running sync paused. The indexer notices at the next page
// boundary and stops advancing.
func (t *Tracker) Pause(ctx context.Context) (*syncstate.State, error) {
	return t.transition(ctx, syncstate.StatusPaused)
}

// Resume moves a paused sync back to running so an indexer can pick it up.
func (t *Tracker) Resume(ctx context.Context) (*syncstate.State, error) {
	return t.transition(ctx, syncstate.StatusRunning)
}

// Cancel flags the sync cancelled. Cancellation is cooperative: an in-flight
// bulk request finishes, and the indexer stops before the next page.
func (t *Tracker) Cancel(ctx context.Context) (*syncstate.State, error) {
	return t.transition(ctx, syncstate.StatusCancelled)
}

// Clear removes the persisted state entirely.
func (t *Tracker) Clear(ctx context.Context) error {
	return t.store.Clear(ctx)
}

func (t *Tracker) transition(ctx context.Context, to syncstate.Status) (*syncstate.State, error) {
	st, err := t.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Transition(to); err != nil {
		return nil, err
	}
	if err := t.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
