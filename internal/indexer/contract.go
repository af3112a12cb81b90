package indexer

import (
	"context"

	"github.com/contentdex/contentdex/internal/domain/content"
	"github.com/contentdex/contentdex/internal/elastic"
)

// ContentStore is the paginated content source the sync walks through.
type ContentStore interface {
	FetchPage(ctx context.Context, site int, typ content.Type, offset, size int) ([]content.Object, error)
	CountTotal(ctx context.Context, site int, typ content.Type) (int, error)
}

// SearchBackend is the slice of the cluster client the indexer drives.
type SearchBackend interface {
	Bulk(ctx context.Context, index string, actions []elastic.BulkAction) (*elastic.BulkResponse, error)
	IndexDocument(ctx context.Context, index, id string, doc any) error
	PutMapping(ctx context.Context, index, mapping string) error
	EnsureIndex(ctx context.Context, index, mapping string) error
}
