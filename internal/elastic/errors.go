package elastic

import (
	"encoding/json"
	"fmt"
)

// TransportError is a network-level failure reaching the cluster: connection
// refused, timeout, DNS. The request may or may not have been received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ClusterError is a 4xx/5xx response with a structured error body. The
// cluster's own message is preserved verbatim in Reason.
type ClusterError struct {
	Op         string
	StatusCode int
	Type       string
	Reason     string
}

func (e *ClusterError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, e.Type, e.Reason)
	}
	return fmt.Sprintf("%s: %d: %s", e.Op, e.StatusCode, e.Reason)
}

// errorBody is the cluster error envelope. "error" is either an object with
// type/reason or a bare string depending on the endpoint and version.
type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

type errorDetail struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// newClusterError deserializes an error response body, falling back to the
// raw body when the envelope does not parse.
func newClusterError(op string, statusCode int, body []byte) *ClusterError {
	ce := &ClusterError{Op: op, StatusCode: statusCode, Reason: string(body)}

	var env errorBody
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return ce
	}

	var detail errorDetail
	if err := json.Unmarshal(env.Error, &detail); err == nil && detail.Reason != "" {
		ce.Type = detail.Type
		ce.Reason = detail.Reason
		return ce
	}

	var msg string
	if err := json.Unmarshal(env.Error, &msg); err == nil && msg != "" {
		ce.Reason = msg
	}
	return ce
}
