// Package mapper converts content objects into index documents. Mapping is
// pure and deterministic: the same source object always yields the same
// document, which keeps re-indexing idempotent.
package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/contentdex/contentdex/internal/domain"
	"github.com/contentdex/contentdex/internal/domain/content"
)

// Stage names a mapping extension point.
type Stage string

// Extension points, in execution order.
const (
	// StageBeforeTerms runs after the scalar fields are populated, before
	// taxonomy resolution.
	StageBeforeTerms Stage = "before_terms"
	// StageAfterMeta runs after meta preparation, on the finished document.
	StageAfterMeta Stage = "after_meta"
)

// Filter rewrites a document in place at an extension point. Filters run in
// registration order; an error aborts mapping of that single object.
type Filter func(obj *content.Object, doc *Document) error

// Mapper builds index documents from content objects.
type Mapper struct {
	filters map[Stage][]Filter
}

// New creates a mapper with no registered filters.
func New() *Mapper {
	return &Mapper{filters: make(map[Stage][]Filter)}
}

// Register appends a filter at the given stage.
func (m *Mapper) Register(stage Stage, f Filter) {
	m.filters[stage] = append(m.filters[stage], f)
}

// Map converts one object. Returns domain.ErrObjectGone when the object
// vanished from the store after it was enqueued; the caller omits it from
// the bulk payload without counting it as a failure.
func (m *Mapper) Map(obj content.Object) (Document, error) {
	if obj.Gone() {
		return Document{}, fmt.Errorf("object %d: %w", obj.ID, domain.ErrObjectGone)
	}

	doc := Document{
		ID:      obj.ID,
		Type:    string(obj.Type),
		Slug:    obj.Slug,
		Status:  string(obj.Status),
		Author:  obj.Author,
		Title:   obj.Title,
		Excerpt: obj.Excerpt,
		Content: obj.Content,
	}
	if !obj.CreatedAt.IsZero() {
		doc.Date = obj.CreatedAt.UTC().Format(dateLayout)
	}
	if !obj.ModifiedAt.IsZero() {
		doc.Modified = obj.ModifiedAt.UTC().Format(dateLayout)
	}

	if err := m.apply(StageBeforeTerms, &obj, &doc); err != nil {
		return Document{}, err
	}

	doc.Terms = mapTerms(obj.Terms)
	doc.Meta = mapMeta(obj.Meta)

	if err := m.apply(StageAfterMeta, &obj, &doc); err != nil {
		return Document{}, err
	}

	return doc, nil
}

func (m *Mapper) apply(stage Stage, obj *content.Object, doc *Document) error {
	for _, f := range m.filters[stage] {
		if err := f(obj, doc); err != nil {
			return fmt.Errorf("%s filter: %w", stage, err)
		}
	}
	return nil
}

const dateLayout = "2006-01-02 15:04:05"

func mapTerms(terms []content.Term) map[string][]TermDoc {
	if len(terms) == 0 {
		return nil
	}
	out := make(map[string][]TermDoc)
	for _, t := range terms {
		out[t.Taxonomy] = append(out[t.Taxonomy], TermDoc{TermID: t.ID, Name: t.Name, Slug: t.Slug})
	}
	return out
}

func mapMeta(meta map[string][]string) map[string][]MetaValue {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string][]MetaValue, len(meta))
	for key, values := range meta {
		typed := make([]MetaValue, 0, len(values))
		for _, v := range values {
			typed = append(typed, typeMeta(v))
		}
		out[key] = typed
	}
	return out
}

// typeMeta detects the typed sub-fields for one raw meta string.
// Precedence: boolean, then numeric, then date-parseable, then plain string.
func typeMeta(raw string) MetaValue {
	mv := MetaValue{Value: raw}

	switch strings.ToLower(raw) {
	case "true":
		b := true
		mv.Boolean = &b
		return mv
	case "false":
		b := false
		mv.Boolean = &b
		return mv
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		mv.Long = &n
		f := float64(n)
		mv.Double = &f
		return mv
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		mv.Double = &f
		return mv
	}

	for _, layout := range []string{dateLayout, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			mv.Date = ts.Format(dateLayout)
			return mv
		}
	}

	return mv
}
