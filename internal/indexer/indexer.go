// Package indexer drives the sync pipeline: it walks content page by page,
// maps each page into documents, bulk-submits them, and persists the cursor
// after every page so an interrupted sync resumes where it stopped.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contentdex/contentdex/internal/domain"
	"github.com/contentdex/contentdex/internal/domain/content"
	"github.com/contentdex/contentdex/internal/domain/syncstate"
	"github.com/contentdex/contentdex/internal/elastic"
	"github.com/contentdex/contentdex/internal/mapper"
	"github.com/contentdex/contentdex/internal/metrics"
	"github.com/contentdex/contentdex/internal/tracker"
)

// Config tunes one indexer instance.
type Config struct {
	IndexPrefix string
	MaxAttempts int  // total bulk submissions per page, first try included
	NoBulk      bool // index documents one at a time instead of bulk
	RetryBase   time.Duration
}

// Indexer executes sync runs against one cluster.
type Indexer struct {
	store   ContentStore
	es      SearchBackend
	mapper  *mapper.Mapper
	tracker *tracker.Tracker
	cfg     Config
	sleep   func(time.Duration)
	kills   []KillSwitch
	log     *zap.Logger
}

// New creates an indexer. MaxAttempts defaults to 5 and RetryBase to 500ms.
func New(store ContentStore, es SearchBackend, m *mapper.Mapper, tr *tracker.Tracker, cfg Config, log *zap.Logger) *Indexer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	return &Indexer{store: store, es: es, mapper: m, tracker: tr, cfg: cfg, sleep: time.Sleep, log: log}
}

// WithSleeper overrides the retry backoff sleeper (tests).
func (ix *Indexer) WithSleeper(sleep func(time.Duration)) *Indexer {
	ix.sleep = sleep
	return ix
}

// RegisterKillSwitch appends an exclusion predicate applied before mapping.
func (ix *Indexer) RegisterKillSwitch(ks KillSwitch) {
	ix.kills = append(ix.kills, ks)
}

// IndexName is the naming scheme for per-site, per-indexable indices.
func IndexName(prefix, indexable string, site int) string {
	return fmt.Sprintf("%s-%s-%d", prefix, indexable, site)
}

// Run processes pages until the sync reaches a terminal status or a page
// fails. The passed state must already be persisted as Running.
func (ix *Indexer) Run(ctx context.Context, st *syncstate.State) error {
	for {
		done, err := ix.ProcessPage(ctx, st)
		if err != nil || done {
			return err
		}
	}
}

// ProcessPage executes one page of the sync and persists the advanced cursor.
// It returns done=true when the run reached a terminal or paused status.
// Driving the sync one page per call is what lets an HTTP handler advance a
// dashboard-initiated sync across many short requests.
func (ix *Indexer) ProcessPage(ctx context.Context, st *syncstate.State) (bool, error) {
	if stop := ix.adoptExternalStatus(ctx, st); stop {
		return true, nil
	}

	indexable := st.Indexable()
	if indexable == "" {
		return true, ix.tracker.Finish(ctx, st, syncstate.StatusCompleted)
	}
	typ := content.Type(indexable)
	index := IndexName(ix.cfg.IndexPrefix, indexable, st.Site)
	start := time.Now()

	if !st.SectionPrepared(indexable) {
		if err := ix.beginIndexable(ctx, st, indexable, index, typ); err != nil {
			return true, ix.failRun(ctx, st, err)
		}
		st.MarkSectionPrepared(indexable)
	}

	page, err := ix.store.FetchPage(ctx, st.Site, typ, st.Offset, st.PageSize)
	if err != nil {
		return true, ix.failRun(ctx, st, fmt.Errorf("fetch page at offset %d: %w", st.Offset, err))
	}
	if len(page) == 0 {
		if !st.NextIndexable() {
			return true, ix.tracker.Finish(ctx, st, syncstate.StatusCompleted)
		}
		return false, ix.tracker.Save(ctx, st)
	}

	actions := ix.prepare(st, indexable, page)

	if ix.cfg.NoBulk {
		err = ix.submitSingles(ctx, index, indexable, st, actions)
	} else {
		err = ix.submitBulk(ctx, index, indexable, st, actions)
	}
	if err != nil {
		// Transport and cluster failures abort the page without advancing
		// the offset; the next attempt re-submits the same page.
		return true, ix.failRun(ctx, st, err)
	}

	st.Offset += len(page)
	metrics.PageDuration.WithLabelValues(indexable).Observe(time.Since(start).Seconds())

	if err := ix.tracker.Save(ctx, st); err != nil {
		return true, err
	}

	ix.log.Debug("page processed",
		zap.String("indexable", indexable),
		zap.Int("site", st.Site),
		zap.Int("offset", st.Offset),
		zap.Int("synced", st.Synced),
		zap.Int("failed", st.Failed),
	)
	return false, nil
}

// adoptExternalStatus picks up a pause or cancel written to the state store
// by another process since the previous page.
func (ix *Indexer) adoptExternalStatus(ctx context.Context, st *syncstate.State) bool {
	cur, err := ix.tracker.Current(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSync) {
			ix.log.Warn("sync state cleared externally, stopping", zap.String("run_id", st.RunID))
			return true
		}
		// A transient store read failure is not worth stopping the run over.
		return false
	}
	if cur.RunID != st.RunID {
		ix.log.Warn("sync taken over by another run, stopping", zap.String("run_id", st.RunID))
		return true
	}
	switch cur.Status {
	case syncstate.StatusCancelled, syncstate.StatusPaused:
		st.Status = cur.Status
		ix.log.Info("stopping at page boundary", zap.String("status", string(cur.Status)))
		return true
	}
	return false
}

// beginIndexable runs the per-indexable setup once per site: a destructive
// mapping put under --setup, otherwise creating the index if missing, plus
// the total count for progress reporting.
func (ix *Indexer) beginIndexable(ctx context.Context, st *syncstate.State, indexable, index string, typ content.Type) error {
	mapping, err := elastic.MappingFor(indexable)
	if err != nil {
		return err
	}
	if st.PutMapping {
		if err := ix.es.PutMapping(ctx, index, mapping); err != nil {
			return fmt.Errorf("put mapping for %s: %w", index, err)
		}
	} else if err := ix.es.EnsureIndex(ctx, index, mapping); err != nil {
		return fmt.Errorf("ensure index %s: %w", index, err)
	}
	total, err := ix.store.CountTotal(ctx, st.Site, typ)
	if err != nil {
		return fmt.Errorf("count %s: %w", indexable, err)
	}
	st.Totals[indexable] += total
	return nil
}

// prepare maps one page into bulk actions, applying kill switches and
// dropping objects that vanished since they were counted.
func (ix *Indexer) prepare(st *syncstate.State, indexable string, page []content.Object) []elastic.BulkAction {
	actions := make([]elastic.BulkAction, 0, len(page))
	for i := range page {
		obj := page[i]
		if ix.vetoed(&obj) {
			st.Skipped++
			metrics.ObjectsSkippedTotal.WithLabelValues(indexable, "kill_switch").Inc()
			continue
		}
		doc, err := ix.mapper.Map(obj)
		if err != nil {
			if errors.Is(err, domain.ErrObjectGone) {
				st.Skipped++
				metrics.ObjectsSkippedTotal.WithLabelValues(indexable, "gone").Inc()
				continue
			}
			st.Failed++
			st.RecordError(err.Error())
			metrics.ObjectsFailedTotal.WithLabelValues(indexable).Inc()
			continue
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			st.Failed++
			st.RecordError(fmt.Sprintf("marshal object %d: %v", obj.ID, err))
			metrics.ObjectsFailedTotal.WithLabelValues(indexable).Inc()
			continue
		}
		actions = append(actions, elastic.BulkAction{ID: fmt.Sprintf("%d", obj.ID), Doc: raw})
	}
	return actions
}

func (ix *Indexer) vetoed(obj *content.Object) bool {
	for _, ks := range ix.kills {
		if ks(obj) {
			return true
		}
	}
	return false
}

// submitBulk sends the page and retries only the rejected subset, with a
// doubling delay between attempts and a hard cap on total submissions.
// Documents still failing after the last attempt are recorded and the page
// completes: a handful of poison documents must not wedge the whole sync.
func (ix *Indexer) submitBulk(ctx context.Context, index, indexable string, st *syncstate.State, actions []elastic.BulkAction) error {
	if len(actions) == 0 {
		return nil
	}
	submitted := len(actions)

	resp, err := ix.es.Bulk(ctx, index, actions)
	if err != nil {
		return err
	}
	failed, reasons := rejectedSubset(actions, resp)

	for attempt := 1; len(failed) > 0 && attempt < ix.cfg.MaxAttempts; attempt++ {
		ix.sleep(ix.cfg.RetryBase << (attempt - 1))
		metrics.BulkRetriesTotal.Inc()
		ix.log.Warn("retrying rejected bulk subset",
			zap.String("index", index),
			zap.Int("attempt", attempt+1),
			zap.Int("documents", len(failed)),
		)
		resp, err = ix.es.Bulk(ctx, index, failed)
		if err != nil {
			return err
		}
		failed, reasons = rejectedSubset(failed, resp)
	}

	st.Synced += submitted - len(failed)
	metrics.ObjectsSyncedTotal.WithLabelValues(indexable).Add(float64(submitted - len(failed)))
	for i := range failed {
		st.Failed++
		st.RecordError(reasons[i])
		metrics.ObjectsFailedTotal.WithLabelValues(indexable).Inc()
	}
	return nil
}

// submitSingles indexes documents one request at a time. Slow, but isolates
// exactly which document a cluster rejects when debugging bulk failures.
func (ix *Indexer) submitSingles(ctx context.Context, index, indexable string, st *syncstate.State, actions []elastic.BulkAction) error {
	for _, a := range actions {
		err := ix.es.IndexDocument(ctx, index, a.ID, a.Doc)
		if err != nil {
			var ce *elastic.ClusterError
			if errors.As(err, &ce) {
				st.Failed++
				st.RecordError(err.Error())
				metrics.ObjectsFailedTotal.WithLabelValues(indexable).Inc()
				continue
			}
			return err
		}
		st.Synced++
		metrics.ObjectsSyncedTotal.WithLabelValues(indexable).Inc()
	}
	return nil
}

// rejectedSubset pairs the per-item bulk results back with their actions and
// returns the subset the cluster rejected, with one reason per action.
// Response items arrive in request order.
func rejectedSubset(actions []elastic.BulkAction, resp *elastic.BulkResponse) ([]elastic.BulkAction, []string) {
	if !resp.HasErrors {
		return nil, nil
	}
	var failed []elastic.BulkAction
	var reasons []string
	for i, item := range resp.Items {
		if i >= len(actions) {
			break
		}
		if item.Failed() {
			failed = append(failed, actions[i])
			reasons = append(reasons, item.Error)
		}
	}
	return failed, reasons
}

// failRun records the error, marks the run failed, and returns the original
// error so callers surface it. The cursor keeps its offset: resuming the
// failed run retries the same page once the outage clears.
func (ix *Indexer) failRun(ctx context.Context, st *syncstate.State, err error) error {
	st.RecordError(err.Error())
	if ferr := ix.tracker.Finish(ctx, st, syncstate.StatusFailed); ferr != nil {
		ix.log.Error("persisting failed status", zap.Error(ferr))
	}
	return err
}
