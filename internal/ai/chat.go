package ai

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/arin/qx-cli/internal/ui"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

// Chat owns one conversation and drives each turn through a bounded
// retry loop: open the stream, consume fragments (live-printing the
// content field), then decode the accumulated text into a Response.
// Transient failures — timeouts, connection errors, stalled streams,
// unparsable output — are retried with fresh state; truncation and auth
// failures end the turn immediately.
type Chat struct {
	provider Provider
	log      *zap.SugaredLogger

	maxRetries     int
	timeout        time.Duration
	retryDelay     time.Duration
	maxEmptyChunks int

	// out receives the live-printed content stream; errw the retry
	// notices. Both default to the process streams.
	out  io.Writer
	errw io.Writer

	// onOpen, when set, is called once per attempt as soon as the
	// stream handshake succeeds (used to stop the spinner).
	onOpen func()

	conversation []Message
}

// Options tunes the retry state machine.
type Options struct {
	MaxRetries     int
	Timeout        time.Duration
	RetryDelay     time.Duration
	MaxEmptyChunks int
}

// New creates a Chat for the given provider.
func New(provider Provider, opts Options, log *zap.SugaredLogger) *Chat {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Chat{
		provider:       provider,
		log:            log,
		maxRetries:     opts.MaxRetries,
		timeout:        opts.Timeout,
		retryDelay:     opts.RetryDelay,
		maxEmptyChunks: opts.MaxEmptyChunks,
		out:            os.Stdout,
		errw:           os.Stderr,
	}
}

// SetOutput redirects the live content stream and retry notices.
func (c *Chat) SetOutput(out, errw io.Writer) {
	c.out = out
	c.errw = errw
}

// OnStreamOpen registers a callback fired when a stream handshake
// completes, before any fragment is printed.
func (c *Chat) OnStreamOpen(fn func()) {
	c.onOpen = fn
}

// Append adds a message to the conversation. Invalid roles fail fast
// rather than falling through to the API.
func (c *Chat) Append(role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role: %q", string(role))
	}
	c.conversation = append(c.conversation, Message{Role: role, Content: content})
	return nil
}

// Conversation returns a copy of the messages exchanged so far.
func (c *Chat) Conversation() []Message {
	msgs := make([]Message, len(c.conversation))
	copy(msgs, c.conversation)
	return msgs
}

// Send appends prompt as a user message and generates the model's
// reply, live-printing the content field to the output writer. On
// success the serialized response is appended to the conversation as
// the assistant's turn.
func (c *Chat) Send(ctx context.Context, prompt string) (*Response, error) {
	if err := c.Append(RoleUser, prompt); err != nil {
		return nil, err
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.log.Debugw("starting attempt", "attempt", attempt)

		raw, emptyCount, err := c.streamOnce(ctx)
		if err != nil {
			if retryable(err) {
				c.notifyRetry(fmt.Sprintf("Error occurred. Retrying... (%v)", err))
				if err := c.sleep(ctx); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}

		if emptyCount > c.maxEmptyChunks {
			c.log.Debugw("stream stalled", "empty_chunks", emptyCount)
			c.notifyRetry("Received too many empty chunks. Retrying...")
			if err := c.sleep(ctx); err != nil {
				return nil, err
			}
			continue
		}

		resp, err := DecodeResponse(raw)
		if err != nil {
			c.notifyRetry(fmt.Sprintf("Error occurred. Retrying... (%v)", err))
			if err := c.sleep(ctx); err != nil {
				return nil, err
			}
			continue
		}

		if err := c.Append(RoleAssistant, resp.JSON()); err != nil {
			return nil, err
		}
		return resp, nil
	}

	return nil, ErrExhausted
}

// streamOnce runs a single attempt: open the transport, consume the
// fragment stream, and return the accumulated raw text along with the
// number of empty fragments seen. The content printer is finished
// exactly once no matter how the attempt ends.
func (c *Chat) streamOnce(ctx context.Context) (string, int, error) {
	ch, err := c.open(ctx)
	if err != nil {
		return "", 0, err
	}
	if c.onOpen != nil {
		c.onOpen()
	}

	printer := ui.NewContentPrinter(c.out)
	defer printer.Finish()

	var raw strings.Builder
	emptyCount := 0

	for {
		select {
		case <-ctx.Done():
			return "", emptyCount, ctx.Err()
		case frag, ok := <-ch:
			if !ok {
				return raw.String(), emptyCount, nil
			}
			if frag.Err != nil {
				return "", emptyCount, frag.Err
			}

			switch frag.Reason {
			case FinishLength:
				// The remote cut the response off — what we have is
				// incomplete and retrying would just spend quota on
				// another oversized reply.
				return "", emptyCount, ErrTruncated
			case FinishStop, FinishNone:
			default:
				return "", emptyCount, errUnexpectedFinish(frag.Reason)
			}

			raw.WriteString(frag.Text)
			printer.Feed(frag.Text)
			if strings.TrimSpace(frag.Text) == "" {
				emptyCount++
			}
			if frag.Reason == FinishStop {
				return raw.String(), emptyCount, nil
			}
		}
	}
}

// open invokes the provider's blocking Stream call on a worker
// goroutine so a wall-clock timeout can be enforced. On timeout the
// worker is abandoned, not interrupted — its eventual result is
// discarded via the buffered channel.
func (c *Chat) open(ctx context.Context) (<-chan Fragment, error) {
	type opened struct {
		ch  <-chan Fragment
		err error
	}
	done := make(chan opened, 1)
	go func() {
		ch, err := c.provider.Stream(ctx, c.conversation)
		done <- opened{ch: ch, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.ch, o.err
	case <-timer.C:
		c.log.Debugw("stream open timed out", "timeout", c.timeout)
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Chat) notifyRetry(msg string) {
	dim := color.New(color.FgHiBlack)
	dim.Fprintln(c.errw, msg)
}

// sleep waits out the retry delay, returning early if ctx is canceled.
func (c *Chat) sleep(ctx context.Context) error {
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
