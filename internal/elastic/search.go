package elastic

import (
	"context"
	"encoding/json"
	"fmt"
)

// TotalHits is the hit count reported by a search. The cluster returns either
// a bare integer (legacy) or an object with value/relation (7.x+); both
// deserialize here. Relation "gte" means Value is a lower bound.
type TotalHits struct {
	Value    int64
	Relation string
}

// UnmarshalJSON accepts both total-hits shapes.
func (t *TotalHits) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		t.Value = n
		t.Relation = "eq"
		return nil
	}
	var obj struct {
		Value    int64  `json:"value"`
		Relation string `json:"relation"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unexpected total hits shape: %w", err)
	}
	t.Value = obj.Value
	t.Relation = obj.Relation
	if t.Relation == "" {
		t.Relation = "eq"
	}
	return nil
}

// Hit is one search result document.
type Hit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

// SearchResponse is the raw search outcome. Aggregations stay undecoded;
// the result mapper digs into the shapes it asked for.
type SearchResponse struct {
	Took     int  `json:"took"`
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Total TotalHits `json:"total"`
		Hits  []Hit     `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// Search executes a Query DSL request against index.
func (c *Client) Search(ctx context.Context, index string, body map[string]any) (*SearchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	resp, err := c.do(ctx, "search", "POST", "/"+index+"/_search", "application/json", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &result, nil
}
