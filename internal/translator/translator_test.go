package translator

import (
	"testing"
	"time"

	"github.com/contentdex/contentdex/internal/domain/query"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func normalized(t *testing.T, spec query.Spec) query.Spec {
	t.Helper()
	if err := spec.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return spec
}

func translate(t *testing.T, spec query.Spec) map[string]any {
	t.Helper()
	body, err := New(query.DefaultWeighting()).WithClock(fixedClock).Translate(normalized(t, spec))
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	return body
}

// digs into nested map[string]any, failing loudly on a missing key.
func dig(t *testing.T, m map[string]any, keys ...string) any {
	t.Helper()
	var cur any = m
	for _, k := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			t.Fatalf("path %v: %T is not a map", keys, cur)
		}
		cur, ok = mm[k]
		if !ok {
			t.Fatalf("path %v: key %q missing", keys, k)
		}
	}
	return cur
}

func TestTranslate_EmptySpecIsMatchAll(t *testing.T) {
	body := translate(t, query.Spec{})

	if _, ok := dig(t, body, "query").(map[string]any)["match_all"]; !ok {
		t.Errorf("expected match_all query, got %v", body["query"])
	}
	if body["size"] != query.DefaultSize {
		t.Errorf("expected default size, got %v", body["size"])
	}
	if body["track_total_hits"] != true {
		t.Error("track_total_hits must be set")
	}
	if _, ok := body["post_filter"]; ok {
		t.Error("no post_filter without selections")
	}
}

func TestTranslate_SearchBuildsThreeVariants(t *testing.T) {
	body := translate(t, query.Spec{Search: "hello world"})

	should, ok := dig(t, body, "query", "bool", "should").([]any)
	if !ok {
		t.Fatalf("expected should clause list")
	}
	if len(should) != 3 {
		t.Fatalf("expected 3 variants (phrase, and, fuzzy), got %d", len(should))
	}

	phrase := dig(t, should[0].(map[string]any), "multi_match").(map[string]any)
	if phrase["type"] != "phrase" || phrase["boost"] != 4 {
		t.Errorf("variant 0 must be phrase with boost 4: %v", phrase)
	}
	and := dig(t, should[1].(map[string]any), "multi_match").(map[string]any)
	if and["operator"] != "and" || and["boost"] != 2 || and["fuzziness"] != 0 {
		t.Errorf("variant 1 must be all-terms with boost 2 and no fuzziness: %v", and)
	}
	fuzzy := dig(t, should[2].(map[string]any), "multi_match").(map[string]any)
	if fuzzy["boost"] != 1 || fuzzy["fuzziness"] != 1 {
		t.Errorf("variant 2 must be fuzzy with boost 1: %v", fuzzy)
	}

	if mm := dig(t, body, "query", "bool").(map[string]any); mm["minimum_should_match"] != 1 {
		t.Error("at least one variant must match")
	}
}

func TestTranslate_NoFuzzyVariantWhenDisabled(t *testing.T) {
	w := query.Weighting{"title": {Enabled: true, Weight: 1}}
	spec := normalized(t, query.Spec{Search: "hello"})
	body, err := New(w).Translate(spec)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}

	should := dig(t, body, "query", "bool", "should").([]any)
	if len(should) != 2 {
		t.Errorf("expected fuzzy variant dropped, got %d variants", len(should))
	}
}

func TestTranslate_TypesBecomeStructuralFilter(t *testing.T) {
	body := translate(t, query.Spec{Search: "hi", Types: []string{"post"}})

	filters := dig(t, body, "query", "bool", "filter").([]any)
	terms := dig(t, filters[0].(map[string]any), "terms").(map[string]any)
	types, ok := terms["type"].([]string)
	if !ok || len(types) != 1 || types[0] != "post" {
		t.Errorf("expected type filter on post, got %v", terms)
	}
}

func TestTranslate_SelectionsGoToPostFilter(t *testing.T) {
	body := translate(t, query.Spec{Selections: []query.Selection{
		{Facet: "category", Kind: query.KindTaxonomy, Field: "terms.category.slug", Values: []string{"news", "tech"}, Mode: query.MatchAll},
	}})

	must := dig(t, body, "post_filter", "bool", "must").([]any)
	if len(must) != 1 {
		t.Fatalf("expected one selection clause, got %d", len(must))
	}
	// MatchAll: every value is its own term clause.
	inner := dig(t, must[0].(map[string]any), "bool", "must").([]any)
	if len(inner) != 2 {
		t.Errorf("all-mode must require every value, got %v", inner)
	}

	// The scored query must not contain the facet filters.
	if _, ok := dig(t, body, "query").(map[string]any)["match_all"]; !ok {
		t.Error("facet filters must not leak into the query")
	}
}

func TestTranslate_AnyModeUsesTerms(t *testing.T) {
	body := translate(t, query.Spec{Selections: []query.Selection{
		{Facet: "tag", Kind: query.KindTaxonomy, Field: "terms.tag.slug", Values: []string{"go", "rust"}, Mode: query.MatchAny},
	}})

	must := dig(t, body, "post_filter", "bool", "must").([]any)
	terms := dig(t, must[0].(map[string]any), "terms").(map[string]any)
	if _, ok := terms["terms.tag.slug"]; !ok {
		t.Errorf("any-mode must use a single terms clause: %v", terms)
	}
}

func TestTranslate_DrilldownExcludesOwnFilterForAnyMode(t *testing.T) {
	spec := query.Spec{Selections: []query.Selection{
		{Facet: "category", Kind: query.KindTaxonomy, Field: "terms.category.slug", Values: []string{"news"}, Mode: query.MatchAny},
		{Facet: "tag", Kind: query.KindTaxonomy, Field: "terms.tag.slug", Values: []string{"go"}, Mode: query.MatchAll},
	}}
	body := translate(t, spec)

	// category is any-mode: its aggregation filter carries only tag's clause.
	catMust := dig(t, body, "aggs", "category", "filter", "bool", "must").([]any)
	if len(catMust) != 1 {
		t.Fatalf("any-mode facet must exclude its own filter, got %d clauses", len(catMust))
	}
	inner := dig(t, catMust[0].(map[string]any), "bool", "must").([]any)
	term := dig(t, inner[0].(map[string]any), "term").(map[string]any)
	if _, ok := term["terms.tag.slug"]; !ok {
		t.Errorf("category agg should re-apply only the tag filter: %v", term)
	}

	// tag is all-mode: its aggregation filter carries both clauses.
	tagMust := dig(t, body, "aggs", "tag", "filter", "bool", "must").([]any)
	if len(tagMust) != 2 {
		t.Errorf("all-mode facet must keep its own filter, got %d clauses", len(tagMust))
	}

	// The terms sub-aggregation sits under the facet's own name.
	sub := dig(t, body, "aggs", "category", "aggs", "category", "terms").(map[string]any)
	if sub["field"] != "terms.category.slug" {
		t.Errorf("unexpected aggregation field: %v", sub)
	}
}

func TestTranslate_SoleAnyFacetAggregatesUnfiltered(t *testing.T) {
	body := translate(t, query.Spec{Selections: []query.Selection{
		{Facet: "category", Kind: query.KindTaxonomy, Field: "terms.category.slug", Values: []string{"news"}, Mode: query.MatchAny},
	}})

	filter := dig(t, body, "aggs", "category", "filter").(map[string]any)
	if _, ok := filter["match_all"]; !ok {
		t.Errorf("with no other facets, the any-mode agg filter must match all: %v", filter)
	}
}

func TestTranslate_NumericRange(t *testing.T) {
	min, max := 10.0, 99.5
	body := translate(t, query.Spec{Selections: []query.Selection{
		{Facet: "price", Kind: query.KindNumeric, Field: "meta.price.double", Min: &min, Max: &max},
	}})

	must := dig(t, body, "post_filter", "bool", "must").([]any)
	bounds := dig(t, must[0].(map[string]any), "range", "meta.price.double").(map[string]any)
	if bounds["gte"] != 10.0 || bounds["lte"] != 99.5 {
		t.Errorf("unexpected bounds: %v", bounds)
	}
}

func TestTranslate_DatePresetResolvedAtQueryTime(t *testing.T) {
	body := translate(t, query.Spec{Selections: []query.Selection{
		{Facet: "published", Kind: query.KindDate, Field: "date", Preset: query.PresetLast3Months},
	}})

	must := dig(t, body, "post_filter", "bool", "must").([]any)
	bounds := dig(t, must[0].(map[string]any), "range", "date").(map[string]any)
	if bounds["gte"] != "2024-03-15" {
		t.Errorf("expected 3 months before the fixed clock, got %v", bounds["gte"])
	}
	if _, ok := bounds["lte"]; ok {
		t.Error("presets are open-ended")
	}
}

func TestTranslate_ExplicitDateBounds(t *testing.T) {
	body := translate(t, query.Spec{Selections: []query.Selection{
		{Facet: "published", Kind: query.KindDate, Field: "date", DateFrom: "2024-01-01", DateTo: "2024-02-01"},
	}})

	must := dig(t, body, "post_filter", "bool", "must").([]any)
	bounds := dig(t, must[0].(map[string]any), "range", "date").(map[string]any)
	if bounds["gte"] != "2024-01-01" || bounds["lte"] != "2024-02-01" {
		t.Errorf("unexpected bounds: %v", bounds)
	}
}

func TestTranslate_SortMapping(t *testing.T) {
	body := translate(t, query.Spec{Sort: []query.Sort{
		{Field: "title", Order: "asc"},
		{Field: "date", Order: "desc"},
	}})

	sorts := body["sort"].([]any)
	if len(sorts) != 2 {
		t.Fatalf("expected 2 sorts, got %d", len(sorts))
	}
	if _, ok := sorts[0].(map[string]any)["title.sortable"]; !ok {
		t.Errorf("title must sort on its keyword sub-field: %v", sorts[0])
	}
	if _, ok := sorts[1].(map[string]any)["date"]; !ok {
		t.Errorf("date sorts directly: %v", sorts[1])
	}
}

func TestTranslate_DefaultSorts(t *testing.T) {
	// Browsing without a search term orders by recency.
	body := translate(t, query.Spec{})
	sorts, ok := body["sort"].([]any)
	if !ok || len(sorts) != 1 {
		t.Fatalf("expected date sort for browse queries, got %v", body["sort"])
	}

	// A free-text query leaves ordering to relevance.
	body = translate(t, query.Spec{Search: "hello"})
	if _, ok := body["sort"]; ok {
		t.Errorf("search queries must rank by score, got %v", body["sort"])
	}
}
