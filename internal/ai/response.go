package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Response is the structured reply the model is instructed to produce.
// All three fields are optional; absent keys decode to nil. Any
// combination may be set — the wire contract makes no exclusivity
// promise.
type Response struct {
	Content *string `json:"content"`
	Command *string `json:"command"`
	Error   *string `json:"error"`
}

// DecodeResponse parses the accumulated raw text of one turn. Anything
// that is not a JSON object with the expected (possibly absent) keys is
// an error, which the orchestrator treats as retryable. The object
// check is explicit because json.Unmarshal quietly maps a top-level
// null onto the zero struct.
func DecodeResponse(raw string) (*Response, error) {
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return nil, fmt.Errorf("malformed response: not a JSON object")
	}
	var r Response
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	return &r, nil
}

// JSON serializes r, rendering unset fields as explicit nulls. This is
// the form appended to the conversation as the assistant's turn.
func (r *Response) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		// Marshal of a plain struct of string pointers cannot fail.
		return "{}"
	}
	return string(data)
}

// HasCommand reports whether the model returned a non-empty command.
func (r *Response) HasCommand() bool {
	return r.Command != nil && *r.Command != ""
}

// HasError reports whether the model flagged the request as an error.
func (r *Response) HasError() bool {
	return r.Error != nil && *r.Error != ""
}
