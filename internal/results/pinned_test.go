package results

import (
	"testing"

	"github.com/contentdex/contentdex/internal/domain/query"
)

func applyPins(t *testing.T, pins []Pin, spec query.Spec, ids []int64) []int64 {
	t.Helper()
	res := &query.Result{IDs: ids}
	if err := PinnedInserter(pins)(&spec, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res.IDs
}

func assertIDs(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPinned_InsertAtTop(t *testing.T) {
	got := applyPins(t, []Pin{{ID: 99, Position: 1}}, specOfSize(10), []int64{10, 20, 30})
	assertIDs(t, got, []int64{99, 10, 20, 30})
}

func TestPinned_InsertMidList(t *testing.T) {
	got := applyPins(t, []Pin{{ID: 99, Position: 2}}, specOfSize(10), []int64{10, 20, 30})
	assertIDs(t, got, []int64{10, 99, 20, 30})
}

func TestPinned_OrganicOccurrenceMoves(t *testing.T) {
	// 20 ranks organically but is pinned to position 1: moved, not duplicated.
	got := applyPins(t, []Pin{{ID: 20, Position: 1}}, specOfSize(10), []int64{10, 20, 30})
	assertIDs(t, got, []int64{20, 10, 30})
}

func TestPinned_PositionPastEndAppends(t *testing.T) {
	got := applyPins(t, []Pin{{ID: 99, Position: 50}}, specOfSize(10), []int64{10, 20})
	assertIDs(t, got, []int64{10, 20, 99})
}

func TestPinned_TruncatesToPageSize(t *testing.T) {
	got := applyPins(t, []Pin{{ID: 99, Position: 1}}, specOfSize(3), []int64{10, 20, 30})
	assertIDs(t, got, []int64{99, 10, 20})
}

func TestPinned_FirstPageOnly(t *testing.T) {
	spec := specOfSize(10)
	spec.From = 10
	got := applyPins(t, []Pin{{ID: 99, Position: 1}}, spec, []int64{10, 20, 30})
	assertIDs(t, got, []int64{10, 20, 30})
}

func TestPinned_MultiplePinsKeepRelativeOrder(t *testing.T) {
	pins := []Pin{{ID: 98, Position: 1}, {ID: 99, Position: 3}}
	got := applyPins(t, pins, specOfSize(10), []int64{10, 20, 30})
	assertIDs(t, got, []int64{98, 10, 99, 20, 30})
}

func TestPinned_UnsortedPinListStillLandsAtPositions(t *testing.T) {
	// Same pins as above, listed out of position order.
	pins := []Pin{{ID: 99, Position: 3}, {ID: 98, Position: 1}}
	got := applyPins(t, pins, specOfSize(10), []int64{10, 20, 30})
	assertIDs(t, got, []int64{98, 10, 99, 20, 30})
}
