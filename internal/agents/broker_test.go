package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/BrokerGo/internal/storage/sqlite"
)

// echoRunner replies with the number of messages it saw and the last one.
type echoRunner struct {
	seen [][]*schema.Message
	err  error
}

func (e *echoRunner) reply(input []*schema.Message) string {
	e.seen = append(e.seen, input)
	return "you said: " + input[len(input)-1].Content
}

func (e *echoRunner) Generate(_ context.Context, input []*schema.Message, _ ...agent.AgentOption) (*schema.Message, error) {
	if e.err != nil {
		return nil, e.err
	}
	return schema.AssistantMessage(e.reply(input), nil), nil
}

func (e *echoRunner) Stream(_ context.Context, input []*schema.Message, _ ...agent.AgentOption) (*schema.StreamReader[*schema.Message], error) {
	if e.err != nil {
		return nil, e.err
	}
	text := e.reply(input)
	half := len(text) / 2
	return schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage(text[:half], nil),
		schema.AssistantMessage("", nil),
		schema.AssistantMessage(text[half:], nil),
	}), nil
}

func newTestBroker(t *testing.T) (*Broker, *echoRunner, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	r := &echoRunner{}
	return newBroker(r, store, nil), r, store
}

func TestChatKeepsHistory(t *testing.T) {
	b, r, store := newTestBroker(t)
	ctx := context.Background()

	reply, err := b.Chat(ctx, "s1", "  How is JKH doing?  ")
	require.NoError(t, err)
	assert.Equal(t, "you said: How is JKH doing?", reply)

	_, err = b.Chat(ctx, "s1", "And SAMP?")
	require.NoError(t, err)

	require.Len(t, r.seen, 2)
	second := r.seen[1]
	require.Len(t, second, 3)
	assert.Equal(t, schema.User, second[0].Role)
	assert.Equal(t, schema.Assistant, second[1].Role)
	assert.Equal(t, "And SAMP?", second[2].Content)

	sess, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "How is JKH doing?", sess.Title)

	msgs, err := store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestStreamDeliversChunks(t *testing.T) {
	b, _, store := newTestBroker(t)
	ctx := context.Background()

	var chunks []string
	reply, err := b.Stream(ctx, "s1", "hello", func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "you said: hello", reply)
	assert.Len(t, chunks, 2)

	msgs, err := store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "you said: hello", msgs[1].Content)
}

func TestResetClearsHistory(t *testing.T) {
	b, r, _ := newTestBroker(t)
	ctx := context.Background()

	_, err := b.Chat(ctx, "s1", "first")
	require.NoError(t, err)
	require.NoError(t, b.Reset(ctx, "s1"))
	_, err = b.Chat(ctx, "s1", "second")
	require.NoError(t, err)

	require.Len(t, r.seen, 2)
	assert.Len(t, r.seen[1], 1)
}

func TestResetReleasesSessionLock(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	_, err := b.Chat(ctx, "s1", "first")
	require.NoError(t, err)
	_, err = b.Chat(ctx, "s2", "other")
	require.NoError(t, err)
	_, ok := b.locks.Load("s1")
	require.True(t, ok)

	require.NoError(t, b.Reset(ctx, "s1"))
	_, ok = b.locks.Load("s1")
	assert.False(t, ok)
	_, ok = b.locks.Load("s2")
	assert.True(t, ok)

	// The session is usable again after a reset.
	_, err = b.Chat(ctx, "s1", "second")
	require.NoError(t, err)
}

func TestChatErrors(t *testing.T) {
	b, r, store := newTestBroker(t)
	ctx := context.Background()

	_, err := b.Chat(ctx, "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	r.err = errors.New("model unavailable")
	_, err = b.Chat(ctx, "s1", "hi")
	assert.ErrorContains(t, err, "model unavailable")

	sess, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, sqlite.StatusError, sess.Status)

	msgs, err := store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTitleTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "word "
	}
	assert.Len(t, []rune(title(long)), titleLength)
	assert.Equal(t, "a b", title("  a \n b "))
}
