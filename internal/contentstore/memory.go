// Package contentstore provides content source implementations. The sync
// pipeline only needs a paginated, offset-addressable view of content; the
// in-memory store here backs tests and local development.
package contentstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/contentdex/contentdex/internal/domain"
	"github.com/contentdex/contentdex/internal/domain/content"
)

type siteKey struct {
	site int
	typ  content.Type
}

// Memory is a thread-safe in-memory content store, paginated by object ID.
type Memory struct {
	mu      sync.RWMutex
	objects map[siteKey][]content.Object
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[siteKey][]content.Object)}
}

// Add inserts objects for a site, keeping ID order stable for pagination.
func (m *Memory) Add(site int, objs ...content.Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range objs {
		k := siteKey{site: site, typ: o.Type}
		m.objects[k] = append(m.objects[k], o)
		sort.Slice(m.objects[k], func(i, j int) bool {
			return m.objects[k][i].ID < m.objects[k][j].ID
		})
	}
}

// FetchPage returns up to size objects of the given type starting at offset.
func (m *Memory) FetchPage(_ context.Context, site int, typ content.Type, offset, size int) ([]content.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.objects[siteKey{site: site, typ: typ}]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + size
	if end > len(all) {
		end = len(all)
	}
	page := make([]content.Object, end-offset)
	copy(page, all[offset:end])
	return page, nil
}

// CountTotal returns the number of objects of the given type.
func (m *Memory) CountTotal(_ context.Context, site int, typ content.Type) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects[siteKey{site: site, typ: typ}]), nil
}

// SiteCount returns the number of distinct sites holding content.
func (m *Memory) SiteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sites := make(map[int]struct{})
	for k := range m.objects {
		sites[k.site] = struct{}{}
	}
	return len(sites)
}

// Fetch returns one object by ID.
func (m *Memory) Fetch(_ context.Context, site int, typ content.Type, id int64) (content.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.objects[siteKey{site: site, typ: typ}] {
		if o.ID == id {
			return o, nil
		}
	}
	return content.Object{}, fmt.Errorf("%s %d on site %d: %w", typ, id, site, domain.ErrObjectNotFound)
}
