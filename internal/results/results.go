// Package results maps raw search responses back onto the query result shape
// and runs result post-processors such as pinned-result insertion.
package results

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/contentdex/contentdex/internal/domain/query"
	"github.com/contentdex/contentdex/internal/elastic"
)

// PostProcessor rewrites a mapped result in place. Processors run in
// registration order after the raw response is decoded.
type PostProcessor func(spec *query.Spec, res *query.Result) error

// Mapper converts search responses into results.
type Mapper struct {
	processors []PostProcessor
}

// NewMapper creates a mapper with no post-processors.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Register appends a post-processor.
func (m *Mapper) Register(p PostProcessor) {
	m.processors = append(m.processors, p)
}

// Map converts one response. Hit order is preserved exactly as the engine
// ranked it.
func (m *Mapper) Map(spec query.Spec, resp *elastic.SearchResponse) (*query.Result, error) {
	res := &query.Result{
		IDs:           make([]int64, 0, len(resp.Hits.Hits)),
		Total:         resp.Hits.Total.Value,
		TotalRelation: resp.Hits.Total.Relation,
	}

	for _, hit := range resp.Hits.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric document id %q: %w", hit.ID, err)
		}
		res.IDs = append(res.IDs, id)
	}

	if len(resp.Aggregations) > 0 {
		res.Facets = make(map[string]map[string]int64, len(resp.Aggregations))
		for name, raw := range resp.Aggregations {
			counts, err := extractBuckets(raw)
			if err != nil {
				return nil, fmt.Errorf("aggregation %q: %w", name, err)
			}
			res.Facets[name] = counts
		}
	}

	for _, p := range m.processors {
		if err := p(&spec, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// bucketNode is the recursive slice of an aggregation payload: either a terms
// bucket list at this level, or nested sub-aggregations one of which carries
// the buckets. Facet aggregations arrive filter-wrapped, so the terms buckets
// sit one level down under the facet's own name.
type bucketNode struct {
	Buckets []struct {
		Key      json.RawMessage `json:"key"`
		DocCount int64           `json:"doc_count"`
	} `json:"buckets"`
	Sub map[string]json.RawMessage `json:"-"`
}

func (n *bucketNode) UnmarshalJSON(data []byte) error {
	type alias bucketNode
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	delete(all, "buckets")
	delete(all, "doc_count")
	delete(all, "meta")
	a.Sub = all
	*n = bucketNode(a)
	return nil
}

// extractBuckets walks an aggregation payload down to its terms buckets and
// returns key -> doc_count.
func extractBuckets(raw json.RawMessage) (map[string]int64, error) {
	var node bucketNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, err
	}

	if node.Buckets != nil {
		counts := make(map[string]int64, len(node.Buckets))
		for _, b := range node.Buckets {
			counts[bucketKey(b.Key)] = b.DocCount
		}
		return counts, nil
	}

	for _, sub := range node.Sub {
		counts, err := extractBuckets(sub)
		if err == nil && counts != nil {
			return counts, nil
		}
	}
	return nil, fmt.Errorf("no terms buckets found")
}

// bucketKey renders a bucket key, which may be a string or a number.
func bucketKey(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(raw)
}
