package results

import (
	"sort"

	"github.com/contentdex/contentdex/internal/domain/query"
)

// Pin places one document at a fixed 1-based position on the first page.
type Pin struct {
	ID       int64
	Position int
}

// PinnedInserter returns a post-processor that splices pinned documents into
// the result at their configured positions. Organic results keep their
// relative order and shift down; a pinned document already present in the
// organic results is moved, not duplicated. Pins apply to the first page only.
func PinnedInserter(pins []Pin) PostProcessor {
	return func(spec *query.Spec, res *query.Result) error {
		if len(pins) == 0 || spec.From > 0 {
			return nil
		}

		pinned := make(map[int64]bool, len(pins))
		for _, p := range pins {
			pinned[p.ID] = true
		}

		organic := make([]int64, 0, len(res.IDs))
		for _, id := range res.IDs {
			if !pinned[id] {
				organic = append(organic, id)
			}
		}

		// Splice in ascending position order so every pin lands at its own
		// configured slot regardless of how the pin list was written.
		ordered := make([]Pin, len(pins))
		copy(ordered, pins)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

		out := make([]int64, 0, len(organic)+len(ordered))
		out = append(out, organic...)
		for _, p := range ordered {
			pos := p.Position - 1
			if pos < 0 {
				pos = 0
			}
			if pos > len(out) {
				pos = len(out)
			}
			out = append(out, 0)
			copy(out[pos+1:], out[pos:])
			out[pos] = p.ID
		}

		if len(out) > spec.Size {
			out = out[:spec.Size]
		}
		res.IDs = out
		return nil
	}
}
