package query

import (
	"fmt"

	"github.com/contentdex/contentdex/internal/domain"
)

// Pagination limits.
const (
	DefaultSize = 10
	MaxSize     = 100
)

// MatchMode controls how multiple selected values within one facet combine.
type MatchMode string

// Match modes.
const (
	// MatchAll requires every selected value (AND). The facet's own filter is
	// kept in its aggregation.
	MatchAll MatchMode = "all"
	// MatchAny requires at least one selected value (OR). The facet's own
	// filter is excluded from its aggregation so counts answer "what would
	// selecting this value too add".
	MatchAny MatchMode = "any"
)

// FacetKind is the data shape of a filterable dimension.
type FacetKind string

// Facet kinds.
const (
	KindTaxonomy FacetKind = "taxonomy"
	KindMeta     FacetKind = "meta"
	KindNumeric  FacetKind = "numeric"
	KindDate     FacetKind = "date"
)

// DatePreset is a relative date window resolved against the clock at query time.
type DatePreset string

// Date presets.
const (
	PresetNone       DatePreset = ""
	PresetLastMonth  DatePreset = "last_month"
	PresetLast3Months DatePreset = "last_3_months"
	PresetLast6Months DatePreset = "last_6_months"
	PresetLastYear   DatePreset = "last_year"
)

// IsValid checks the preset value.
func (p DatePreset) IsValid() bool {
	switch p {
	case PresetNone, PresetLastMonth, PresetLast3Months, PresetLast6Months, PresetLastYear:
		return true
	}
	return false
}

// Selection is one applied facet filter.
type Selection struct {
	Facet  string    `json:"facet"` // facet name, doubles as the aggregation name
	Kind   FacetKind `json:"kind"`
	Field  string    `json:"field"` // index field path, e.g. terms.category.slug
	Values []string  `json:"values,omitempty"`
	Mode   MatchMode `json:"mode,omitempty"`

	// Numeric range bounds (KindNumeric).
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// Date bounds (KindDate): either a preset or explicit from/to.
	Preset   DatePreset `json:"preset,omitempty"`
	DateFrom string     `json:"date_from,omitempty"`
	DateTo   string     `json:"date_to,omitempty"`
}

// Sort is one explicit sort instruction.
type Sort struct {
	Field string `json:"field"`
	Order string `json:"order"` // asc | desc
}

// Spec is a structured content query. An empty spec is valid and translates
// to a match-all query.
type Spec struct {
	Search     string      `json:"search,omitempty"`
	Types      []string    `json:"types,omitempty"` // content types to match, default all
	Selections []Selection `json:"selections,omitempty"`
	Sort       []Sort      `json:"sort,omitempty"`
	From       int         `json:"from"`
	Size       int         `json:"size"`
}

// Normalize applies defaults and validates the spec.
func (s *Spec) Normalize() error {
	if s.Size <= 0 {
		s.Size = DefaultSize
	}
	if s.Size > MaxSize {
		s.Size = MaxSize
	}
	if s.From < 0 {
		return fmt.Errorf("from must be non-negative: %w", domain.ErrInvalidQuery)
	}
	for i := range s.Selections {
		if err := s.Selections[i].normalize(); err != nil {
			return err
		}
	}
	for _, so := range s.Sort {
		if so.Order != "asc" && so.Order != "desc" {
			return fmt.Errorf("sort order must be asc or desc, got %q: %w", so.Order, domain.ErrInvalidQuery)
		}
		if so.Field == "" {
			return fmt.Errorf("sort field is required: %w", domain.ErrInvalidQuery)
		}
	}
	return nil
}

func (sel *Selection) normalize() error {
	if sel.Facet == "" {
		return fmt.Errorf("facet name is required: %w", domain.ErrInvalidQuery)
	}
	if sel.Field == "" {
		return fmt.Errorf("facet %q: field is required: %w", sel.Facet, domain.ErrInvalidQuery)
	}
	if sel.Mode == "" {
		sel.Mode = MatchAll
	}
	if sel.Mode != MatchAll && sel.Mode != MatchAny {
		return fmt.Errorf("facet %q: match mode must be all or any: %w", sel.Facet, domain.ErrInvalidQuery)
	}
	switch sel.Kind {
	case KindTaxonomy, KindMeta:
		if len(sel.Values) == 0 {
			return fmt.Errorf("facet %q: at least one value required: %w", sel.Facet, domain.ErrInvalidQuery)
		}
	case KindNumeric:
		if sel.Min == nil && sel.Max == nil {
			return fmt.Errorf("facet %q: numeric range needs a bound: %w", sel.Facet, domain.ErrInvalidQuery)
		}
	case KindDate:
		if !sel.Preset.IsValid() {
			return fmt.Errorf("facet %q: unknown date preset %q: %w", sel.Facet, sel.Preset, domain.ErrInvalidQuery)
		}
		if sel.Preset == PresetNone && sel.DateFrom == "" && sel.DateTo == "" {
			return fmt.Errorf("facet %q: date range needs a preset or bounds: %w", sel.Facet, domain.ErrInvalidQuery)
		}
	default:
		return fmt.Errorf("facet %q: unknown kind %q: %w", sel.Facet, sel.Kind, domain.ErrInvalidQuery)
	}
	return nil
}

// Result is the mapped outcome of a translated query.
type Result struct {
	IDs []int64 `json:"ids"`
	// Total is exact when TotalRelation is "eq" and a lower bound when "gte"
	// (the cluster caps total tracking past 10k hits by default).
	Total         int64                       `json:"total"`
	TotalRelation string                      `json:"total_relation"`
	Facets        map[string]map[string]int64 `json:"facets,omitempty"`
}
