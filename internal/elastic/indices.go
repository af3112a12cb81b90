package elastic

import (
	"context"
	"errors"
	"net/http"
)

// PutMapping recreates index from scratch with the given settings/mappings
// body. Any existing index is deleted first: this is the destructive
// "setup" path that a full re-sync runs before indexing.
func (c *Client) PutMapping(ctx context.Context, index, mapping string) error {
	if err := c.DeleteIndex(ctx, index); err != nil {
		return err
	}
	resp, err := c.do(ctx, "put_mapping", http.MethodPut, "/"+index, "application/json", []byte(mapping))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DeleteIndex removes an index. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	resp, err := c.do(ctx, "delete_index", http.MethodDelete, "/"+index, "", nil)
	if err != nil {
		var ce *ClusterError
		if errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	resp.Body.Close()
	return nil
}

// IndexExists checks for the index via HEAD.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	resp, err := c.do(ctx, "index_exists", http.MethodHead, "/"+index, "", nil)
	if err != nil {
		var ce *ClusterError
		if errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

// EnsureIndex creates the index with the given mapping if it does not exist.
func (c *Client) EnsureIndex(ctx context.Context, index, mapping string) error {
	exists, err := c.IndexExists(ctx, index)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	resp, err := c.do(ctx, "create_index", http.MethodPut, "/"+index, "application/json", []byte(mapping))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
