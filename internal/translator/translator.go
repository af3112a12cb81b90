// Package translator turns structured query specs into Elasticsearch request
// bodies. Translation is pure: the only ambient input is the clock, injected
// so relative date presets resolve deterministically in tests.
package translator

import (
	"fmt"
	"time"

	"github.com/contentdex/contentdex/internal/domain/query"
)

// aggregation bucket ceiling; facet UIs render the full value list.
const facetBucketSize = 10000

const dateFormat = "2006-01-02"

// Translator builds search request bodies under one weighting configuration.
type Translator struct {
	weighting query.Weighting
	now       func() time.Time
}

// New creates a translator.
func New(w query.Weighting) *Translator {
	if len(w) == 0 {
		w = query.DefaultWeighting()
	}
	return &Translator{weighting: w, now: time.Now}
}

// WithClock overrides the time source (tests).
func (t *Translator) WithClock(now func() time.Time) *Translator {
	t.now = now
	return t
}

// Translate renders the spec as a search request body. The spec must be
// normalized first.
//
// Facet filters land in post_filter, not the query, so aggregations count
// the pre-filter document set; each facet's aggregation then re-applies the
// other facets' filters itself. Whether a facet's own filter is re-applied
// depends on its match mode, which is what makes multi-select drilldowns
// show "what selecting this value too would add".
func (t *Translator) Translate(spec query.Spec) (map[string]any, error) {
	body := map[string]any{
		"query":            t.queryClause(spec),
		"from":             spec.From,
		"size":             spec.Size,
		"track_total_hits": true,
		"_source":          false,
	}

	if len(spec.Selections) > 0 {
		post, err := t.postFilter(spec.Selections)
		if err != nil {
			return nil, err
		}
		body["post_filter"] = post

		aggs, err := t.aggregations(spec.Selections)
		if err != nil {
			return nil, err
		}
		body["aggs"] = aggs
	}

	if sorts := t.sortClause(spec); len(sorts) > 0 {
		body["sort"] = sorts
	}

	return body, nil
}

// queryClause builds the scored part of the request: the free-text clause
// plus the structural type filter.
func (t *Translator) queryClause(spec query.Spec) map[string]any {
	var filters []any
	if len(spec.Types) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"type": spec.Types}})
	}

	if spec.Search == "" {
		if len(filters) == 0 {
			return map[string]any{"match_all": map[string]any{}}
		}
		return map[string]any{"bool": map[string]any{"filter": filters}}
	}

	clause := map[string]any{"bool": map[string]any{
		"should":               t.searchVariants(spec.Search),
		"minimum_should_match": 1,
	}}
	if len(filters) > 0 {
		return map[string]any{"bool": map[string]any{
			"must":   []any{clause},
			"filter": filters,
		}}
	}
	return clause
}

// searchVariants is the three-clause relevance ladder: an exact phrase match
// scores highest, a document containing all terms scores next, and a fuzzy
// match catches typos at the lowest boost. The fuzzy variant is omitted when
// no field allows an edit distance.
func (t *Translator) searchVariants(search string) []any {
	fields := t.weighting.Fields()
	variants := []any{
		map[string]any{"multi_match": map[string]any{
			"query":  search,
			"type":   "phrase",
			"fields": fields,
			"boost":  4,
		}},
		map[string]any{"multi_match": map[string]any{
			"query":     search,
			"fields":    fields,
			"operator":  "and",
			"boost":     2,
			"fuzziness": 0,
		}},
	}
	if maxDist := t.weighting.MaxFuzziness(); maxDist > 0 {
		variants = append(variants, map[string]any{"multi_match": map[string]any{
			"query":     search,
			"fields":    fields,
			"fuzziness": maxDist,
			"boost":     1,
		}})
	}
	return variants
}

func (t *Translator) postFilter(sels []query.Selection) (map[string]any, error) {
	clauses := make([]any, 0, len(sels))
	for i := range sels {
		c, err := t.selectionClause(&sels[i])
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return map[string]any{"bool": map[string]any{"must": clauses}}, nil
}

// aggregations builds one filtered terms aggregation per facet. The filter
// re-applies the other facets' selections; a MatchAll facet also re-applies
// its own.
func (t *Translator) aggregations(sels []query.Selection) (map[string]any, error) {
	aggs := make(map[string]any, len(sels))
	for i := range sels {
		sel := &sels[i]

		var clauses []any
		for j := range sels {
			other := &sels[j]
			if other.Facet == sel.Facet && sel.Mode != query.MatchAll {
				continue
			}
			c, err := t.selectionClause(other)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		}

		var filter map[string]any
		if len(clauses) == 0 {
			filter = map[string]any{"match_all": map[string]any{}}
		} else {
			filter = map[string]any{"bool": map[string]any{"must": clauses}}
		}

		aggs[sel.Facet] = map[string]any{
			"filter": filter,
			"aggs": map[string]any{
				sel.Facet: map[string]any{
					"terms": map[string]any{"field": sel.Field, "size": facetBucketSize},
				},
			},
		}
	}
	return aggs, nil
}

func (t *Translator) selectionClause(sel *query.Selection) (map[string]any, error) {
	switch sel.Kind {
	case query.KindTaxonomy, query.KindMeta:
		if sel.Mode == query.MatchAny {
			return map[string]any{"terms": map[string]any{sel.Field: sel.Values}}, nil
		}
		must := make([]any, 0, len(sel.Values))
		for _, v := range sel.Values {
			must = append(must, map[string]any{"term": map[string]any{sel.Field: v}})
		}
		return map[string]any{"bool": map[string]any{"must": must}}, nil

	case query.KindNumeric:
		bounds := map[string]any{}
		if sel.Min != nil {
			bounds["gte"] = *sel.Min
		}
		if sel.Max != nil {
			bounds["lte"] = *sel.Max
		}
		return map[string]any{"range": map[string]any{sel.Field: bounds}}, nil

	case query.KindDate:
		from, to := sel.DateFrom, sel.DateTo
		if sel.Preset != query.PresetNone {
			from = t.presetStart(sel.Preset)
			to = ""
		}
		bounds := map[string]any{"format": "yyyy-MM-dd"}
		if from != "" {
			bounds["gte"] = from
		}
		if to != "" {
			bounds["lte"] = to
		}
		return map[string]any{"range": map[string]any{sel.Field: bounds}}, nil
	}
	return nil, fmt.Errorf("facet %q: untranslatable kind %q", sel.Facet, sel.Kind)
}

// presetStart resolves a relative window against the current clock.
func (t *Translator) presetStart(p query.DatePreset) string {
	now := t.now()
	switch p {
	case query.PresetLastMonth:
		return now.AddDate(0, -1, 0).Format(dateFormat)
	case query.PresetLast3Months:
		return now.AddDate(0, -3, 0).Format(dateFormat)
	case query.PresetLast6Months:
		return now.AddDate(0, -6, 0).Format(dateFormat)
	case query.PresetLastYear:
		return now.AddDate(-1, 0, 0).Format(dateFormat)
	}
	return ""
}

// sortClause maps sort instructions onto index fields. Analyzed text fields
// sort on their lowercased keyword sub-field. Without instructions, a
// free-text query ranks by relevance and a browse query by recency.
func (t *Translator) sortClause(spec query.Spec) []any {
	if len(spec.Sort) == 0 {
		if spec.Search != "" {
			return nil // _score desc is the engine default
		}
		return []any{map[string]any{"date": map[string]any{"order": "desc"}}}
	}
	sorts := make([]any, 0, len(spec.Sort))
	for _, s := range spec.Sort {
		sorts = append(sorts, map[string]any{sortField(s.Field): map[string]any{"order": s.Order}})
	}
	return sorts
}

// lexical sorting needs the untokenized sub-field, not the analyzed text.
var sortableFields = map[string]string{
	"title":  "title.sortable",
	"author": "author.sortable",
}

func sortField(field string) string {
	if mapped, ok := sortableFields[field]; ok {
		return mapped
	}
	return field
}
