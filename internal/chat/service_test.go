package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ashureev/cgpt/internal/agent"
	"github.com/ashureev/cgpt/internal/domain"
	"github.com/ashureev/cgpt/internal/identity"
	"github.com/ashureev/cgpt/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter replays scripted replies and records what it was sent.
type fakeCompleter struct {
	mu      sync.Mutex
	replies []agent.Reply
	err     error
	calls   [][]domain.Message
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []domain.Message) (agent.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]domain.Message(nil), msgs...))
	if f.err != nil {
		return agent.NoReply(), f.err
	}
	if len(f.replies) == 0 {
		return agent.Answer(domain.AssistantMessage("ok")), nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingLogger captures transcript events synchronously.
type recordingLogger struct {
	mu     sync.Mutex
	events []ConversationLogEvent
}

func (r *recordingLogger) Log(e ConversationLogEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLogger) Close() error { return nil }

// countingRepo counts writes on top of the in-memory store.
type countingRepo struct {
	*store.MemoryStore
	creates, updates int
}

func (c *countingRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	c.creates++
	return c.MemoryStore.Create(ctx, conv)
}

func (c *countingRepo) Update(ctx context.Context, conv *domain.Conversation) error {
	c.updates++
	return c.MemoryStore.Update(ctx, conv)
}

func answer(text string) agent.Reply {
	return agent.Answer(domain.AssistantMessage(text))
}

func newTestService(t *testing.T, completer agent.Completer, opts ...Option) (*Service, *countingRepo) {
	t.Helper()
	repo := &countingRepo{MemoryStore: store.NewMemory()}
	return NewService(repo, completer, opts...), repo
}

func TestStartCreatesThreeMessageConversation(t *testing.T) {
	completer := &fakeCompleter{replies: []agent.Reply{answer("Hi")}}
	svc, repo := newTestService(t, completer)
	ctx := context.Background()

	resp, err := svc.Start(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, identity.IsValidChatID(resp.ChatID), "chat id %q", resp.ChatID)
	assert.Equal(t, "Hi", resp.Message)
	assert.Equal(t, 1, repo.creates)

	hist, err := svc.History(ctx, resp.ChatID)
	require.NoError(t, err)
	assert.Equal(t, History{ChatID: resp.ChatID, Messages: []string{Preamble, "hello", "Hi"}}, hist)

	conv, err := repo.Get(ctx, resp.ChatID)
	require.NoError(t, err)
	require.NoError(t, conv.Validate())

	require.Len(t, completer.calls, 1)
	assert.Equal(t, []domain.Message{domain.SystemMessage(Preamble), domain.UserMessage("hello")}, completer.calls[0])
}

func TestStartNoReplyWritesNothing(t *testing.T) {
	completer := &fakeCompleter{replies: []agent.Reply{agent.NoReply()}}
	svc, repo := newTestService(t, completer)

	resp, err := svc.Start(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Response{ChatID: NoneChatID, Message: NoResponseText}, resp)
	assert.Zero(t, repo.creates)
	assert.Zero(t, repo.Len())
}

func TestStartEmptyContentPlaceholder(t *testing.T) {
	completer := &fakeCompleter{replies: []agent.Reply{answer(NoContentText)}}
	svc, _ := newTestService(t, completer)

	resp, err := svc.Start(context.Background(), "hello")
	require.NoError(t, err)
	assert.NotEqual(t, NoneChatID, resp.ChatID)
	assert.Equal(t, NoContentText, resp.Message)
}

func TestStartIDCollisionIsRejected(t *testing.T) {
	completer := &fakeCompleter{}
	svc, _ := newTestService(t, completer, WithIDGenerator(func() string { return "AAAAAAAAAAAAAAAA" }))
	ctx := context.Background()

	_, err := svc.Start(ctx, "first")
	require.NoError(t, err)

	_, err = svc.Start(ctx, "second")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	hist, err := svc.History(ctx, "AAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "first", hist.Messages[1])
}

func TestStartGatewayError(t *testing.T) {
	boom := errors.New("provider down")
	svc, repo := newTestService(t, &fakeCompleter{err: boom})

	_, err := svc.Start(context.Background(), "hello")
	require.ErrorIs(t, err, boom)
	assert.Zero(t, repo.creates)
}

func TestContinueAppendsUserThenAssistant(t *testing.T) {
	completer := &fakeCompleter{replies: []agent.Reply{answer("r1"), answer("r2")}}
	svc, repo := newTestService(t, completer)
	ctx := context.Background()

	started, err := svc.Start(ctx, "q1")
	require.NoError(t, err)

	resp, err := svc.Continue(ctx, started.ChatID, "q2")
	require.NoError(t, err)
	assert.Equal(t, Response{ChatID: started.ChatID, Message: "r2"}, resp)
	assert.Equal(t, 1, repo.updates)

	hist, err := svc.History(ctx, started.ChatID)
	require.NoError(t, err)
	assert.Equal(t, []string{Preamble, "q1", "r1", "q2", "r2"}, hist.Messages)

	// The model sees the full prior conversation plus the new user turn.
	require.Len(t, completer.calls, 2)
	assert.Len(t, completer.calls[1], 4)
	assert.Equal(t, domain.UserMessage("q2"), completer.calls[1][3])
}

func TestContinueUnknownChat(t *testing.T) {
	completer := &fakeCompleter{}
	svc, repo := newTestService(t, completer)

	resp, err := svc.Continue(context.Background(), "doesnotexist0000", "hello")
	require.NoError(t, err)
	assert.Equal(t, Response{ChatID: NoneChatID, Message: NoResponseText}, resp)
	assert.Zero(t, completer.callCount())
	assert.Zero(t, repo.creates+repo.updates)
}

func TestContinueNoReplyLeavesRecordUntouched(t *testing.T) {
	completer := &fakeCompleter{replies: []agent.Reply{answer("r1"), agent.NoReply()}}
	svc, repo := newTestService(t, completer)
	ctx := context.Background()

	started, err := svc.Start(ctx, "q1")
	require.NoError(t, err)

	resp, err := svc.Continue(ctx, started.ChatID, "q2")
	require.NoError(t, err)
	assert.Equal(t, NoneChatID, resp.ChatID)
	assert.Zero(t, repo.updates)

	hist, err := svc.History(ctx, started.ChatID)
	require.NoError(t, err)
	assert.Len(t, hist.Messages, 3)
}

func TestDeleteThenHistory(t *testing.T) {
	svc, _ := newTestService(t, &fakeCompleter{})
	ctx := context.Background()

	started, err := svc.Start(ctx, "hello")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, started.ChatID))

	hist, err := svc.History(ctx, started.ChatID)
	require.NoError(t, err)
	assert.Equal(t, NoneChatID, hist.ChatID)
	assert.NotNil(t, hist.Messages)
	assert.Empty(t, hist.Messages)

	err = svc.Delete(ctx, started.ChatID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListAfterCreatesAndDeletes(t *testing.T) {
	svc, _ := newTestService(t, &fakeCompleter{})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		resp, err := svc.Start(ctx, "hello")
		require.NoError(t, err)
		ids = append(ids, resp.ChatID)
	}
	require.NoError(t, svc.Delete(ctx, ids[1]))
	require.NoError(t, svc.Delete(ctx, ids[3]))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ids[0], ids[2], ids[4]}, list.Chats)
}

func TestListEmptyIsNotNil(t *testing.T) {
	svc, _ := newTestService(t, &fakeCompleter{})

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list.Chats)
	assert.Empty(t, list.Chats)
}

func TestTranscriptRecordsBothTurns(t *testing.T) {
	rec := &recordingLogger{}
	svc, _ := newTestService(t, &fakeCompleter{replies: []agent.Reply{answer("Hi")}}, WithConversationLogger(rec))

	ctx := WithChannel(context.Background(), ChannelCLI)
	resp, err := svc.Start(ctx, "hello")
	require.NoError(t, err)

	require.Len(t, rec.events, 2)
	assert.Equal(t, eventUserMessage, rec.events[0].EventType)
	assert.Equal(t, "hello", rec.events[0].ContentRaw)
	assert.Equal(t, eventAssistantMessage, rec.events[1].EventType)
	assert.Equal(t, "Hi", rec.events[1].ContentRaw)
	for _, e := range rec.events {
		assert.Equal(t, resp.ChatID, e.ChatID)
		assert.Equal(t, ChannelCLI, e.Channel)
	}
}
