// Package ai drives a streaming conversation with an OpenAI-compatible
// chat API and decodes its structured JSON replies into typed responses.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// Role identifies the author of a conversation message. Only the three
// values below are valid; Chat.Append rejects anything else.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single entry in a conversation.
type Message struct {
	Role    Role
	Content string
}

// FinishReason signals why the model stopped streaming, or that it has
// not stopped yet (empty string).
type FinishReason string

const (
	FinishNone   FinishReason = ""
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
)

// Fragment is one unit of streamed text. Err is set when the stream
// failed mid-flight; no further fragments follow it.
type Fragment struct {
	Text   string
	Reason FinishReason
	Err    error
}

// Provider is the interface any chat backend must implement.
//
// Stream blocks until the remote service has accepted the request, then
// returns a channel that yields fragments as they arrive. The channel is
// closed when the stream ends. An error returned from Stream itself is a
// handshake failure and wraps one of the sentinel errors below.
type Provider interface {
	Stream(ctx context.Context, messages []Message) (<-chan Fragment, error)
}

// Sentinel errors for the retry loop. ErrTimeout and ErrConnection are
// transient and retried; the rest end the turn immediately.
var (
	// ErrTimeout means the service did not start responding within the
	// configured deadline.
	ErrTimeout = errors.New("timed out waiting for the model")

	// ErrConnection covers rate limits, server errors, and network
	// failures reaching the service.
	ErrConnection = errors.New("connection to the model failed")

	// ErrAuth means the API key was rejected.
	ErrAuth = errors.New("authentication failed")

	// ErrTruncated means the model hit its token limit mid-response.
	// The partial output cannot be trusted, so the turn is not retried.
	ErrTruncated = errors.New("response truncated: token limit reached")

	// ErrExhausted is returned once the retry budget is spent.
	ErrExhausted = errors.New("failed to receive a response")
)

// retryable reports whether err is transient enough to try again.
func retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection)
}

func errUnexpectedFinish(reason FinishReason) error {
	return fmt.Errorf("unexpected completion reason: %q", string(reason))
}
