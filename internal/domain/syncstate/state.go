package syncstate

import (
	"fmt"
	"time"

	"github.com/contentdex/contentdex/internal/domain"
)

// Status is the lifecycle state of a sync run.
type Status string

// Sync status values.
const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the run has stopped. A terminal state no longer
// blocks a fresh start, but a failed run keeps its cursor and may instead be
// resumed to retry the page it stopped on.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// transitions lists the allowed target statuses per current status.
// Running -> Running is re-entrant: every processed page re-persists the state.
// Failed -> Running is the resume path after a transport or cluster outage.
var transitions = map[Status][]Status{
	StatusNotStarted: {StatusRunning},
	StatusRunning:    {StatusRunning, StatusPaused, StatusCompleted, StatusCancelled, StatusFailed},
	StatusPaused:     {StatusRunning, StatusCancelled},
	StatusFailed:     {StatusRunning},
}

// Method records how the sync is being driven.
type Method string

// Sync methods.
const (
	MethodDashboard Method = "dashboard"
	MethodCLI       Method = "cli"
	MethodBackground Method = "background"
)

// MaxErrorSamples caps the number of distinct error messages kept per run.
const MaxErrorSamples = 25

// ErrorSample is one distinct error message with an occurrence count.
type ErrorSample struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// State is the persisted progress record of one sync run. It is mutated after
// every processed page and written back through the state store; a concurrent
// status poll may read it at any time (last writer wins).
type State struct {
	RunID      string   `json:"run_id"`
	Method     Method   `json:"method"`
	Status     Status   `json:"status"`
	PutMapping bool     `json:"put_mapping"`
	Indexables []string `json:"indexables"`
	Current    int      `json:"current"` // index into Indexables
	Site       int      `json:"site"`    // 1-based, network-wide syncs only
	SiteCount  int      `json:"site_count"`
	Offset     int      `json:"offset"`
	PageSize   int      `json:"page_size"`

	Totals  map[string]int `json:"totals"` // per indexable, summed across sites
	Synced  int            `json:"synced"`
	Failed  int            `json:"failed"`
	Skipped int            `json:"skipped"`

	Errors []ErrorSample `json:"errors,omitempty"`

	// Prepared marks indexable/site sections whose setup already ran, so a
	// first page retried after a failure does not re-count its total or
	// re-create the index.
	Prepared map[string]bool `json:"prepared,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a fresh Running state for the given indexables.
func New(runID string, method Method, indexables []string, pageSize, siteCount int, now time.Time) *State {
	if siteCount < 1 {
		siteCount = 1
	}
	return &State{
		RunID:      runID,
		Method:     method,
		Status:     StatusRunning,
		Indexables: indexables,
		Site:       1,
		SiteCount:  siteCount,
		PageSize:   pageSize,
		Totals:     make(map[string]int),
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition moves the state to the target status, enforcing the state machine.
func (s *State) Transition(to Status) error {
	for _, allowed := range transitions[s.Status] {
		if allowed == to {
			s.Status = to
			return nil
		}
	}
	return fmt.Errorf("%s -> %s: %w", s.Status, to, domain.ErrInvalidTransition)
}

// Indexable returns the indexable currently being synced, or "" when exhausted.
func (s *State) Indexable() string {
	if s.Current < 0 || s.Current >= len(s.Indexables) {
		return ""
	}
	return s.Indexables[s.Current]
}

// NextIndexable moves the cursor to the next indexable, rolling over to the
// next site for network-wide syncs. Returns false when everything is exhausted.
func (s *State) NextIndexable() bool {
	s.Offset = 0
	s.Current++
	if s.Current < len(s.Indexables) {
		return true
	}
	if s.Site < s.SiteCount {
		s.Site++
		s.Current = 0
		return true
	}
	return false
}

// SectionPrepared reports whether setup for the current indexable and site
// already ran.
func (s *State) SectionPrepared(indexable string) bool {
	return s.Prepared[s.sectionKey(indexable)]
}

// MarkSectionPrepared records that setup for the current indexable and site ran.
func (s *State) MarkSectionPrepared(indexable string) {
	if s.Prepared == nil {
		s.Prepared = make(map[string]bool)
	}
	s.Prepared[s.sectionKey(indexable)] = true
}

func (s *State) sectionKey(indexable string) string {
	return fmt.Sprintf("%s-%d", indexable, s.Site)
}

// Stale reports whether the state looks abandoned: still Running but not
// advanced for longer than threshold. A killed CLI process leaves exactly
// this shape behind.
func (s *State) Stale(now time.Time, threshold time.Duration) bool {
	return s.Status == StatusRunning && now.Sub(s.UpdatedAt) > threshold
}

// RecordError counts a failure message, keeping a bounded sample of distinct
// messages so thousands of identical errors collapse into one line.
func (s *State) RecordError(msg string) {
	for i := range s.Errors {
		if s.Errors[i].Message == msg {
			s.Errors[i].Count++
			return
		}
	}
	if len(s.Errors) < MaxErrorSamples {
		s.Errors = append(s.Errors, ErrorSample{Message: msg, Count: 1})
	}
}

// Touch refreshes the activity timestamp.
func (s *State) Touch(now time.Time) {
	s.UpdatedAt = now
}
