package events

import (
	"context"

	"github.com/contentdex/contentdex/internal/domain/content"
)

// ContentFetcher loads single objects for incremental updates.
type ContentFetcher interface {
	Fetch(ctx context.Context, site int, typ content.Type, id int64) (content.Object, error)
}

// DocumentWriter applies single-document changes to the cluster.
type DocumentWriter interface {
	IndexDocument(ctx context.Context, index, id string, doc any) error
	DeleteDocument(ctx context.Context, index, id string) error
}
