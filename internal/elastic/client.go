// Package elastic is a thin HTTP transport for the Elasticsearch bulk,
// search, and index-lifecycle APIs. It carries no business logic: callers
// interpret per-item bulk results and response shapes themselves.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/contentdex/contentdex/internal/metrics"
)

// Config holds cluster connection settings.
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// Client issues synchronous HTTP calls to one Elasticsearch cluster.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient creates a client. Timeout defaults to 30s.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
	}
}

// Ping verifies that the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, "ping", http.MethodGet, "/", "", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// IndexDocument indexes a single document (upsert by id).
func (c *Client) IndexDocument(ctx context.Context, index, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	path := fmt.Sprintf("/%s/_doc/%s", index, url.PathEscape(id))
	resp, err := c.do(ctx, "index", http.MethodPut, path, "application/json", body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DeleteDocument removes a document by id. A missing document is not an error.
func (c *Client) DeleteDocument(ctx context.Context, index, id string) error {
	path := fmt.Sprintf("/%s/_doc/%s", index, url.PathEscape(id))
	resp, err := c.do(ctx, "delete", http.MethodDelete, path, "", nil)
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

// do executes one request and maps failures onto the error taxonomy:
// network failures become *TransportError, 4xx/5xx become *ClusterError.
// The caller owns the response body on success.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ESRequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		metrics.ESRequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, newClusterError(op, resp.StatusCode, respBody)
	}

	metrics.ESRequestsTotal.WithLabelValues(op, "success").Inc()
	return resp, nil
}
