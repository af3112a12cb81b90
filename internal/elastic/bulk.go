package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// BulkAction is one operation in a bulk request: an index (upsert) of Doc
// under ID, or a delete of ID when Delete is set.
type BulkAction struct {
	ID     string
	Doc    json.RawMessage
	Delete bool
}

// BulkItemResult is the per-document outcome of a bulk request, in request order.
type BulkItemResult struct {
	ID     string
	Status int
	Error  string // empty on success
}

// Failed reports whether this item was rejected by the cluster.
func (r *BulkItemResult) Failed() bool { return r.Error != "" }

// BulkResponse is the interpreted outcome of one bulk request.
// HasErrors true with per-item detail is a normal, expected outcome
// (a partial failure), not a request-level error.
type BulkResponse struct {
	Took      int
	HasErrors bool
	Items     []BulkItemResult
}

// Bulk submits actions as one NDJSON bulk request against index.
// Item order in the response matches action order in the request, which is
// how callers map results back to source objects.
func (c *Client) Bulk(ctx context.Context, index string, actions []BulkAction) (*BulkResponse, error) {
	if len(actions) == 0 {
		return &BulkResponse{}, nil
	}

	body, err := encodeBulk(actions)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, "bulk", "POST", "/"+index+"/_bulk", "application/x-ndjson", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw rawBulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}

	out := &BulkResponse{Took: raw.Took, HasErrors: raw.Errors, Items: make([]BulkItemResult, 0, len(raw.Items))}
	for _, item := range raw.Items {
		op := item.Index
		if op == nil {
			op = item.Delete
		}
		if op == nil {
			continue
		}
		res := BulkItemResult{ID: op.ID, Status: op.Status}
		if len(op.Error) > 0 {
			res.Error = formatItemError(op.Error)
		}
		out.Items = append(out.Items, res)
	}
	return out, nil
}

// encodeBulk builds the NDJSON payload: every document is preceded by an
// action line naming the target id, and the whole body must end with a
// newline or the cluster rejects it.
func encodeBulk(actions []BulkAction) ([]byte, error) {
	var buf bytes.Buffer
	for _, a := range actions {
		if a.Delete {
			fmt.Fprintf(&buf, `{"delete":{"_id":%q}}`+"\n", a.ID)
			continue
		}
		if len(a.Doc) == 0 {
			return nil, fmt.Errorf("bulk action %s: empty document", a.ID)
		}
		fmt.Fprintf(&buf, `{"index":{"_id":%q}}`+"\n", a.ID)
		buf.Write(bytes.TrimRight(a.Doc, "\n"))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

type rawBulkResponse struct {
	Took   int           `json:"took"`
	Errors bool          `json:"errors"`
	Items  []rawBulkItem `json:"items"`
}

type rawBulkItem struct {
	Index  *rawBulkOp `json:"index"`
	Delete *rawBulkOp `json:"delete"`
}

type rawBulkOp struct {
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

// formatItemError renders a per-item error, which may be an object with
// type/reason or a bare string.
func formatItemError(raw json.RawMessage) string {
	var detail errorDetail
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Reason != "" {
		if detail.Type != "" {
			return detail.Type + ": " + detail.Reason
		}
		return detail.Reason
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	return string(raw)
}
