package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/contentdex/contentdex/internal/contentstore"
	"github.com/contentdex/contentdex/internal/domain/content"
	"github.com/contentdex/contentdex/internal/domain/syncstate"
	"github.com/contentdex/contentdex/internal/elastic"
	"github.com/contentdex/contentdex/internal/mapper"
	"github.com/contentdex/contentdex/internal/statestore"
	"github.com/contentdex/contentdex/internal/tracker"
)

// --- Mocks ---

type memStore struct {
	state *syncstate.State
}

func (m *memStore) Load(_ context.Context) (*syncstate.State, error) {
	if m.state == nil {
		return nil, statestore.ErrNotFound
	}
	cp := *m.state
	return &cp, nil
}

func (m *memStore) Save(_ context.Context, st *syncstate.State) error {
	cp := *st
	m.state = &cp
	return nil
}

func (m *memStore) Clear(_ context.Context) error { m.state = nil; return nil }
func (m *memStore) Ping(_ context.Context) error  { return nil }

type bulkOutcome struct {
	resp *elastic.BulkResponse
	err  error
}

type mockES struct {
	bulkCalls   [][]elastic.BulkAction
	outcomes    []bulkOutcome // consumed per call; exhausted = all succeed
	indexed     []string
	putMappings []string
	ensured     []string
}

func (m *mockES) Bulk(_ context.Context, _ string, actions []elastic.BulkAction) (*elastic.BulkResponse, error) {
	m.bulkCalls = append(m.bulkCalls, actions)
	if len(m.outcomes) > 0 {
		out := m.outcomes[0]
		m.outcomes = m.outcomes[1:]
		if out.err != nil {
			return nil, out.err
		}
		if out.resp != nil {
			return out.resp, nil
		}
	}
	return okResponse(actions), nil
}

func (m *mockES) IndexDocument(_ context.Context, _ string, id string, _ any) error {
	m.indexed = append(m.indexed, id)
	return nil
}

func (m *mockES) PutMapping(_ context.Context, index, _ string) error {
	m.putMappings = append(m.putMappings, index)
	return nil
}

func (m *mockES) EnsureIndex(_ context.Context, index, _ string) error {
	m.ensured = append(m.ensured, index)
	return nil
}

func okResponse(actions []elastic.BulkAction) *elastic.BulkResponse {
	resp := &elastic.BulkResponse{}
	for _, a := range actions {
		resp.Items = append(resp.Items, elastic.BulkItemResult{ID: a.ID, Status: 201})
	}
	return resp
}

func failResponse(actions []elastic.BulkAction, failedIDs map[string]string) *elastic.BulkResponse {
	resp := &elastic.BulkResponse{}
	for _, a := range actions {
		item := elastic.BulkItemResult{ID: a.ID, Status: 201}
		if reason, ok := failedIDs[a.ID]; ok {
			item.Status = 400
			item.Error = reason
			resp.HasErrors = true
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

// --- Helpers ---

func posts(n int) []content.Object {
	objs := make([]content.Object, n)
	for i := range objs {
		objs[i] = content.Object{
			ID:        int64(i + 1),
			Type:      content.TypePost,
			Title:     fmt.Sprintf("post %d", i+1),
			Content:   "body",
			Status:    content.StatusPublish,
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return objs
}

type harness struct {
	store   *contentstore.Memory
	es      *mockES
	tracker *tracker.Tracker
	indexer *Indexer
	slept   []time.Duration
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.IndexPrefix == "" {
		cfg.IndexPrefix = "contentdex"
	}
	h := &harness{
		store: contentstore.NewMemory(),
		es:    &mockES{},
	}
	h.tracker = tracker.New(&memStore{}, 15*time.Minute, zap.NewNop())
	h.indexer = New(h.store, h.es, mapper.New(), h.tracker, cfg, zap.NewNop()).
		WithSleeper(func(d time.Duration) { h.slept = append(h.slept, d) })
	return h
}

func (h *harness) start(t *testing.T, indexables []string, pageSize int) *syncstate.State {
	t.Helper()
	st, err := h.tracker.Start(context.Background(), tracker.StartOptions{
		Method:     syncstate.MethodCLI,
		Indexables: indexables,
		PageSize:   pageSize,
		SiteCount:  1,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return st
}

// --- Tests ---

func TestRun_PagesThroughEverything(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.Add(1, posts(7)...)
	st := h.start(t, []string{"post", "user"}, 3)

	if err := h.indexer.Run(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if st.Status != syncstate.StatusCompleted {
		t.Errorf("expected completed, got %s", st.Status)
	}
	if st.Synced != 7 {
		t.Errorf("expected 7 synced, got %d", st.Synced)
	}
	if len(h.es.bulkCalls) != 3 {
		t.Fatalf("expected ceil(7/3)=3 bulk calls, got %d", len(h.es.bulkCalls))
	}
	sizes := []int{3, 3, 1}
	for i, call := range h.es.bulkCalls {
		if len(call) != sizes[i] {
			t.Errorf("bulk call %d: expected %d actions, got %d", i, sizes[i], len(call))
		}
	}
	if st.Totals["post"] != 7 {
		t.Errorf("expected total 7 for post, got %d", st.Totals["post"])
	}
}

func TestRun_RetriesOnlyFailedSubset(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 5, RetryBase: 500 * time.Millisecond})
	h.store.Add(1, posts(3)...)
	st := h.start(t, []string{"post"}, 10)

	// First submission rejects document 2; the retry (default outcome) succeeds.
	h.es.outcomes = []bulkOutcome{
		{resp: failResponse(actionsFor(3), map[string]string{"2": "mapper_parsing_exception: bad date"})},
	}

	if err := h.indexer.Run(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.es.bulkCalls) != 2 {
		t.Fatalf("expected initial submit + one retry, got %d calls", len(h.es.bulkCalls))
	}
	retry := h.es.bulkCalls[1]
	if len(retry) != 1 || retry[0].ID != "2" {
		t.Errorf("retry must carry only the rejected document, got %+v", retry)
	}
	if len(h.slept) != 1 || h.slept[0] != 500*time.Millisecond {
		t.Errorf("expected one 500ms backoff, got %v", h.slept)
	}
	if st.Synced != 3 || st.Failed != 0 {
		t.Errorf("expected 3 synced 0 failed, got %d/%d", st.Synced, st.Failed)
	}
}

func TestRun_PoisonDocumentDoesNotWedgeSync(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 3, RetryBase: 100 * time.Millisecond})
	h.store.Add(1, posts(3)...)
	st := h.start(t, []string{"post"}, 10)

	reject := map[string]string{"2": "mapper_parsing_exception: bad date"}
	h.es.outcomes = []bulkOutcome{
		{resp: failResponse(actionsFor(3), reject)},
		{resp: failResponse(actionsFor1("2"), reject)},
		{resp: failResponse(actionsFor1("2"), reject)},
	}

	if err := h.indexer.Run(context.Background(), st); err != nil {
		t.Fatalf("poison document must not fail the run: %v", err)
	}

	if len(h.es.bulkCalls) != 3 {
		t.Errorf("expected exactly MaxAttempts submissions for the page, got %d", len(h.es.bulkCalls))
	}
	if len(h.slept) != 2 || h.slept[0] != 100*time.Millisecond || h.slept[1] != 200*time.Millisecond {
		t.Errorf("expected doubling backoff [100ms 200ms], got %v", h.slept)
	}
	if st.Synced != 2 || st.Failed != 1 {
		t.Errorf("expected 2 synced 1 failed, got %d/%d", st.Synced, st.Failed)
	}
	if st.Status != syncstate.StatusCompleted {
		t.Errorf("sync must advance past the poison document, got %s", st.Status)
	}
	if len(st.Errors) != 1 || st.Errors[0].Message != "mapper_parsing_exception: bad date" {
		t.Errorf("rejection reason not recorded: %+v", st.Errors)
	}
}

func TestProcessPage_TransportErrorLeavesOffset(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.Add(1, posts(5)...)
	st := h.start(t, []string{"post"}, 3)

	h.es.outcomes = []bulkOutcome{
		{err: &elastic.TransportError{Op: "bulk", Err: errors.New("connection refused")}},
	}

	_, err := h.indexer.ProcessPage(context.Background(), st)
	if err == nil {
		t.Fatal("expected error")
	}
	var te *elastic.TransportError
	if !errors.As(err, &te) {
		t.Errorf("expected transport error surfaced, got %v", err)
	}
	if st.Offset != 0 {
		t.Errorf("offset must not advance on a page-level failure, got %d", st.Offset)
	}
	if st.Status != syncstate.StatusFailed {
		t.Errorf("expected failed status, got %s", st.Status)
	}
}

func TestRun_ResumesAfterTransportError(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.Add(1, posts(5)...)
	st := h.start(t, []string{"post"}, 3)

	// Page 1 succeeds; page 2 hits a dead cluster.
	h.es.outcomes = []bulkOutcome{
		{},
		{err: &elastic.TransportError{Op: "bulk", Err: errors.New("connection refused")}},
	}

	if err := h.indexer.Run(context.Background(), st); err == nil {
		t.Fatal("expected the outage to surface")
	}
	if st.Status != syncstate.StatusFailed || st.Offset != 3 {
		t.Fatalf("expected failed at offset 3, got %s at %d", st.Status, st.Offset)
	}

	// The cluster comes back; the failed run resumes at the same offset.
	resumed, err := h.tracker.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume after failure: %v", err)
	}
	if resumed.Offset != 3 {
		t.Fatalf("resume must keep the cursor, got offset %d", resumed.Offset)
	}
	if err := h.indexer.Run(context.Background(), resumed); err != nil {
		t.Fatalf("resumed run: %v", err)
	}

	if resumed.Status != syncstate.StatusCompleted {
		t.Errorf("expected completed, got %s", resumed.Status)
	}
	if resumed.Synced != 5 {
		t.Errorf("expected all 5 synced across both runs, got %d", resumed.Synced)
	}
	if resumed.Totals["post"] != 5 {
		t.Errorf("totals must not double-count on resume, got %d", resumed.Totals["post"])
	}
	// The failed page was re-submitted, nothing before it was.
	if len(h.es.bulkCalls) != 3 {
		t.Errorf("expected 3 bulk submissions in total, got %d", len(h.es.bulkCalls))
	}
	if got := h.es.bulkCalls[2][0].ID; got != "4" {
		t.Errorf("resumed page must start at the failed offset, got first id %s", got)
	}
}

func TestRun_FirstPageFailureDoesNotRecountTotals(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.Add(1, posts(3)...)
	st := h.start(t, []string{"post"}, 10)

	h.es.outcomes = []bulkOutcome{
		{err: &elastic.TransportError{Op: "bulk", Err: errors.New("connection refused")}},
	}

	if err := h.indexer.Run(context.Background(), st); err == nil {
		t.Fatal("expected the outage to surface")
	}
	resumed, err := h.tracker.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume after failure: %v", err)
	}
	if err := h.indexer.Run(context.Background(), resumed); err != nil {
		t.Fatalf("resumed run: %v", err)
	}

	if resumed.Totals["post"] != 3 {
		t.Errorf("retrying the first page must not re-count the total, got %d", resumed.Totals["post"])
	}
	if len(h.es.ensured) != 1 {
		t.Errorf("index setup must run once per section, got %v", h.es.ensured)
	}
}

func TestProcessPage_KillSwitchAndGone(t *testing.T) {
	h := newHarness(t, Config{})
	objs := posts(4)
	objs[1].Status = content.StatusDraft   // vetoed by SkipNonPublic
	objs[2].Status = content.StatusDeleted // gone
	h.store.Add(1, objs...)
	h.indexer.RegisterKillSwitch(SkipNonPublic)
	st := h.start(t, []string{"post"}, 10)

	if err := h.indexer.Run(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if st.Synced != 2 || st.Skipped != 2 || st.Failed != 0 {
		t.Errorf("expected 2 synced 2 skipped, got synced=%d skipped=%d failed=%d", st.Synced, st.Skipped, st.Failed)
	}
	if len(h.es.bulkCalls) != 1 || len(h.es.bulkCalls[0]) != 2 {
		t.Fatalf("excluded objects must not reach the bulk payload: %+v", h.es.bulkCalls)
	}
	// Offset still advances over skipped objects.
	if got := h.es.bulkCalls[0][0].ID; got != "1" {
		t.Errorf("expected first surviving doc 1, got %s", got)
	}
}

func TestProcessPage_CancelStopsAtBoundary(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.Add(1, posts(9)...)
	st := h.start(t, []string{"post"}, 3)

	done, err := h.indexer.ProcessPage(context.Background(), st)
	if err != nil || done {
		t.Fatalf("first page: done=%v err=%v", done, err)
	}

	if _, err := h.tracker.Cancel(context.Background()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	done, err = h.indexer.ProcessPage(context.Background(), st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Error("expected the indexer to stop at the page boundary")
	}
	if st.Status != syncstate.StatusCancelled {
		t.Errorf("expected cancelled, got %s", st.Status)
	}
	if len(h.es.bulkCalls) != 1 {
		t.Errorf("no further pages may be submitted after cancel, got %d calls", len(h.es.bulkCalls))
	}
}

func TestRun_SetupPutsMappingPerIndexable(t *testing.T) {
	h := newHarness(t, Config{IndexPrefix: "cdx"})
	h.store.Add(1, posts(2)...)
	st, err := h.tracker.Start(context.Background(), tracker.StartOptions{
		Method:     syncstate.MethodCLI,
		Indexables: []string{"post", "user"},
		PageSize:   10,
		SiteCount:  1,
		PutMapping: true,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := h.indexer.Run(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"cdx-post-1", "cdx-user-1"}
	if len(h.es.putMappings) != len(want) {
		t.Fatalf("expected mappings %v, got %v", want, h.es.putMappings)
	}
	for i := range want {
		if h.es.putMappings[i] != want[i] {
			t.Errorf("mapping %d: expected %s, got %s", i, want[i], h.es.putMappings[i])
		}
	}
}

func TestRun_EnsuresIndexWithoutSetup(t *testing.T) {
	h := newHarness(t, Config{IndexPrefix: "cdx"})
	h.store.Add(1, posts(2)...)
	st := h.start(t, []string{"post"}, 10)

	if err := h.indexer.Run(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.es.ensured) != 1 || h.es.ensured[0] != "cdx-post-1" {
		t.Errorf("expected a non-destructive index creation, got %v", h.es.ensured)
	}
	if len(h.es.putMappings) != 0 {
		t.Errorf("plain syncs must not recreate indices, got %v", h.es.putMappings)
	}
}

func TestKillSwitches(t *testing.T) {
	cases := []struct {
		name string
		ks   KillSwitch
		obj  content.Object
		want bool
	}{
		{"draft post vetoed", SkipNonPublic, content.Object{Type: content.TypePost, Status: content.StatusDraft}, true},
		{"published post passes", SkipNonPublic, content.Object{Type: content.TypePost, Status: content.StatusPublish}, false},
		{"users pass regardless", SkipNonPublic, content.Object{Type: content.TypeUser, Status: content.StatusDraft}, false},
		{"empty object vetoed", SkipUntitled, content.Object{Type: content.TypePost}, true},
		{"title alone passes", SkipUntitled, content.Object{Type: content.TypePost, Title: "t"}, false},
		{"content alone passes", SkipUntitled, content.Object{Type: content.TypePost, Content: "c"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ks(&tc.obj); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRun_NoBulkIndexesIndividually(t *testing.T) {
	h := newHarness(t, Config{NoBulk: true})
	h.store.Add(1, posts(3)...)
	st := h.start(t, []string{"post"}, 10)

	if err := h.indexer.Run(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.es.bulkCalls) != 0 {
		t.Errorf("nobulk mode must not issue bulk requests")
	}
	if len(h.es.indexed) != 3 {
		t.Errorf("expected 3 single-document requests, got %d", len(h.es.indexed))
	}
	if st.Synced != 3 {
		t.Errorf("expected 3 synced, got %d", st.Synced)
	}
}

func TestIndexName(t *testing.T) {
	if got := IndexName("contentdex", "post", 2); got != "contentdex-post-2" {
		t.Errorf("unexpected index name %q", got)
	}
}

// actionsFor builds placeholder actions with ids 1..n for response scripting.
func actionsFor(n int) []elastic.BulkAction {
	actions := make([]elastic.BulkAction, n)
	for i := range actions {
		actions[i] = elastic.BulkAction{ID: fmt.Sprintf("%d", i+1)}
	}
	return actions
}

func actionsFor1(id string) []elastic.BulkAction {
	return []elastic.BulkAction{{ID: id}}
}
