package ai

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{"content": "ok", "command": null, "error": null}`

// mockProvider replays a scripted sequence of attempts: each call to
// Stream consumes the next script entry (the last entry repeats).
type mockProvider struct {
	mu      sync.Mutex
	calls   int
	script  []scriptedAttempt
	blockMu chan struct{} // when set, Stream blocks on it forever
}

type scriptedAttempt struct {
	err   error
	frags []Fragment
}

func (m *mockProvider) Stream(_ context.Context, _ []Message) (<-chan Fragment, error) {
	m.mu.Lock()
	i := m.calls
	m.calls++
	m.mu.Unlock()

	if m.blockMu != nil {
		<-m.blockMu
	}

	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	a := m.script[i]
	if a.err != nil {
		return nil, a.err
	}

	ch := make(chan Fragment, len(a.frags))
	for _, f := range a.frags {
		ch <- f
	}
	close(ch)
	return ch, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testOptions() Options {
	return Options{
		MaxRetries:     3,
		Timeout:        time.Second,
		RetryDelay:     0,
		MaxEmptyChunks: 100,
	}
}

func newTestChat(p Provider, opts Options) (*Chat, *bytes.Buffer) {
	c := New(p, opts, nil)
	var out bytes.Buffer
	c.SetOutput(&out, &bytes.Buffer{})
	return c, &out
}

func frag(text string) Fragment {
	return Fragment{Text: text}
}

func stopFrag(text string) Fragment {
	return Fragment{Text: text, Reason: FinishStop}
}

func TestSend_ConcreteScenario(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{
			frag(`{"content": "A`),
			stopFrag(`B", "command": null, "error": null}`),
		}},
	}}
	chat, _ := newTestChat(mock, testOptions())

	resp, err := chat.Send(context.Background(), "say AB")
	require.NoError(t, err)
	require.NotNil(t, resp.Content)
	assert.Equal(t, "AB", *resp.Content)
	assert.Nil(t, resp.Command)
	assert.Nil(t, resp.Error)
	assert.Equal(t, 1, mock.callCount())
}

func TestSend_AppendsSerializedAssistantTurn(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{stopFrag(validJSON)}},
	}}
	chat, _ := newTestChat(mock, testOptions())

	resp, err := chat.Send(context.Background(), "hello")
	require.NoError(t, err)

	conv := chat.Conversation()
	require.Len(t, conv, 2)
	assert.Equal(t, RoleUser, conv[0].Role)
	assert.Equal(t, "hello", conv[0].Content)
	assert.Equal(t, RoleAssistant, conv[1].Role)
	assert.Equal(t, resp.JSON(), conv[1].Content)
}

func TestSend_RetryBound(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{stopFrag("definitely not json")}},
	}}
	opts := testOptions()
	opts.MaxRetries = 2
	chat, _ := newTestChat(mock, opts)

	_, err := chat.Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, mock.callCount(), "should attempt exactly maxRetries+1 times")
}

func TestSend_TruncationIsFatal(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{{Text: "partial out", Reason: FinishLength}}},
	}}
	chat, _ := newTestChat(mock, testOptions())

	_, err := chat.Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrTruncated)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, mock.callCount(), "truncation must not be retried")
}

func TestSend_UnknownFinishReasonIsFatal(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{{Text: "x", Reason: "content_filter"}}},
	}}
	chat, _ := newTestChat(mock, testOptions())

	_, err := chat.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected completion reason")
	assert.Equal(t, 1, mock.callCount())
}

func TestSend_EmptyFragmentsWithinBudget(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{frag("  "), frag("\t"), stopFrag(validJSON)}},
	}}
	opts := testOptions()
	opts.MaxEmptyChunks = 2
	chat, _ := newTestChat(mock, opts)

	resp, err := chat.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", *resp.Content)
	assert.Equal(t, 1, mock.callCount())
}

func TestSend_TooManyEmptyFragmentsRetries(t *testing.T) {
	// The first attempt's text decodes fine, but the stalled stream is
	// distrusted and its output discarded anyway.
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{frag(" "), frag(" "), frag(" "), stopFrag(`{"content": "stalled", "command": null, "error": null}`)}},
		{frags: []Fragment{stopFrag(validJSON)}},
	}}
	opts := testOptions()
	opts.MaxEmptyChunks = 2
	chat, _ := newTestChat(mock, opts)

	resp, err := chat.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", *resp.Content, "first attempt's response must be discarded")
	assert.Equal(t, 2, mock.callCount())
}

func TestSend_DecodeFailureRetries(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{stopFrag("{broken")}},
		{frags: []Fragment{stopFrag(validJSON)}},
	}}
	chat, _ := newTestChat(mock, testOptions())

	resp, err := chat.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", *resp.Content)
	assert.Equal(t, 2, mock.callCount())
}

func TestSend_NullResponseRetries(t *testing.T) {
	// A bare JSON null is not the expected object; the turn is retried
	// rather than surfaced as an empty success.
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{stopFrag("null")}},
		{frags: []Fragment{stopFrag(validJSON)}},
	}}
	chat, _ := newTestChat(mock, testOptions())

	resp, err := chat.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", *resp.Content)
	assert.Equal(t, 2, mock.callCount())
}

func TestSend_ConnectionErrorRetries(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{err: fmt.Errorf("%w: connection reset", ErrConnection)},
		{frags: []Fragment{stopFrag(validJSON)}},
	}}
	chat, _ := newTestChat(mock, testOptions())

	resp, err := chat.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", *resp.Content)
	assert.Equal(t, 2, mock.callCount())
}

func TestSend_MidStreamErrorRetries(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{frag(`{"content`), {Err: fmt.Errorf("%w: broken pipe", ErrConnection)}}},
		{frags: []Fragment{stopFrag(validJSON)}},
	}}
	chat, _ := newTestChat(mock, testOptions())

	resp, err := chat.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", *resp.Content)
	assert.Equal(t, 2, mock.callCount())
}

func TestSend_AuthErrorIsFatal(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{err: fmt.Errorf("%w: bad key", ErrAuth)},
	}}
	chat, _ := newTestChat(mock, testOptions())

	_, err := chat.Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, mock.callCount())
}

func TestSend_TimeoutAbandonsWorker(t *testing.T) {
	mock := &mockProvider{
		script:  []scriptedAttempt{{frags: []Fragment{stopFrag(validJSON)}}},
		blockMu: make(chan struct{}),
	}
	opts := testOptions()
	opts.MaxRetries = 1
	opts.Timeout = 20 * time.Millisecond
	chat, _ := newTestChat(mock, opts)

	start := time.Now()
	_, err := chat.Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, mock.callCount())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSend_ContextCanceled(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{stopFrag(validJSON)}},
	}}
	chat, _ := newTestChat(mock, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chat.Send(ctx, "hi")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, mock.callCount())
}

func TestSend_LivePrintsContentField(t *testing.T) {
	wire := "{\n  \"content\": \"hello\",\n  \"command\": null,\n  \"error\": null\n}"
	mock := &mockProvider{script: []scriptedAttempt{
		{frags: []Fragment{
			frag(wire[:9]),
			frag(wire[9:20]),
			frag(wire[20:]),
			{Reason: FinishStop},
		}},
	}}
	chat, out := newTestChat(mock, testOptions())

	resp, err := chat.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", *resp.Content)
	assert.Equal(t, "hello\n", out.String(), "content should stream to the writer with a closing newline")
}

func TestSend_FreshPrinterPerAttempt(t *testing.T) {
	mock := &mockProvider{script: []scriptedAttempt{
		// Stream dies mid-field: printed text must still be closed off
		// with a newline before the retry prints anything.
		{frags: []Fragment{frag(`{"content": "one`)}},
		{frags: []Fragment{stopFrag("{\"content\": \"two\",\n \"command\": null}")}},
	}}
	chat, out := newTestChat(mock, testOptions())

	resp, err := chat.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "two", *resp.Content)
	assert.Equal(t, "one\ntwo\n", out.String())
}

func TestAppend_RejectsInvalidRole(t *testing.T) {
	chat, _ := newTestChat(&mockProvider{script: []scriptedAttempt{{}}}, testOptions())

	err := chat.Append(Role("robot"), "beep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
	assert.Empty(t, chat.Conversation())
}

func TestRetryable_Taxonomy(t *testing.T) {
	assert.True(t, retryable(ErrTimeout))
	assert.True(t, retryable(ErrConnection))
	assert.True(t, retryable(fmt.Errorf("wrapped: %w", ErrTimeout)))
	assert.False(t, retryable(ErrAuth))
	assert.False(t, retryable(ErrTruncated))
	assert.False(t, retryable(ErrExhausted))
	assert.False(t, retryable(fmt.Errorf("some other failure")))
}
