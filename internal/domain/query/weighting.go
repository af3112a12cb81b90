package query

import (
	"sort"
	"strconv"
)

// FieldWeight controls one field's influence on relevance scoring.
type FieldWeight struct {
	Enabled   bool    `json:"enabled"`
	Weight    float64 `json:"weight"`
	Fuzziness int     `json:"fuzziness"` // max edit distance for the fuzzy clause
}

// Weighting maps searchable field names to their boost configuration.
type Weighting map[string]FieldWeight

// wellKnownFields is the stable ordering for the stock searchable fields.
var wellKnownFields = []string{"title", "excerpt", "content", "author", "slug"}

// DefaultWeighting mirrors the stock field boosts for post content.
func DefaultWeighting() Weighting {
	return Weighting{
		"title":   {Enabled: true, Weight: 2, Fuzziness: 1},
		"excerpt": {Enabled: true, Weight: 1, Fuzziness: 1},
		"content": {Enabled: true, Weight: 1, Fuzziness: 1},
		"author":  {Enabled: true, Weight: 1},
	}
}

// Fields returns the enabled fields in deterministic order with boost suffixes
// (field^weight), suitable for a multi_match clause.
func (w Weighting) Fields() []string {
	names := make([]string, 0, len(w))
	known := make(map[string]bool, len(wellKnownFields))
	for _, name := range wellKnownFields {
		known[name] = true
		if fw, ok := w[name]; ok && fw.Enabled {
			names = append(names, boosted(name, fw.Weight))
		}
	}
	extra := make([]string, 0)
	for name, fw := range w {
		if !known[name] && fw.Enabled {
			extra = append(extra, boosted(name, fw.Weight))
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// MaxFuzziness returns the largest configured edit distance across enabled fields.
func (w Weighting) MaxFuzziness() int {
	maxDist := 0
	for _, fw := range w {
		if fw.Enabled && fw.Fuzziness > maxDist {
			maxDist = fw.Fuzziness
		}
	}
	return maxDist
}

func boosted(name string, weight float64) string {
	if weight == 0 || weight == 1 {
		return name
	}
	return name + "^" + strconv.FormatFloat(weight, 'f', -1, 64)
}
