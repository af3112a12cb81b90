package search

import (
	"context"

	"github.com/contentdex/contentdex/internal/elastic"
)

// Backend is the slice of the cluster client the search service uses.
type Backend interface {
	Search(ctx context.Context, index string, body map[string]any) (*elastic.SearchResponse, error)
}
