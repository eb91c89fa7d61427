package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
)

// fakeStreamer replays canned records and remembers the last request.
type fakeStreamer struct {
	records []domain.ChatResponse
	err     error
	lastReq domain.ChatRequest
	aborts  int
}

func (f *fakeStreamer) GenerateChat(_ context.Context, req domain.ChatRequest, onData domain.ChatHandler) ([]domain.ChatResponse, error) {
	f.lastReq = req
	for _, r := range f.records {
		onData(r)
	}
	return f.records, f.err
}

func (f *fakeStreamer) Abort() { f.aborts++ }

// memHistory is an in-memory domain.HistoryStore.
type memHistory struct {
	mu    sync.Mutex
	convs map[string]*domain.Conversation
	msgs  map[string][]domain.StoredMessage
	next  int
}

func newMemHistory() *memHistory {
	return &memHistory{
		convs: make(map[string]*domain.Conversation),
		msgs:  make(map[string][]domain.StoredMessage),
	}
}

func (m *memHistory) CreateConversation(_ context.Context, title, model string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	c := &domain.Conversation{ID: "c" + string(rune('0'+m.next)), Title: title, Model: model, CreatedAt: time.Now()}
	m.convs[c.ID] = c
	return c, nil
}

func (m *memHistory) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return c, nil
}

func (m *memHistory) ListConversations(context.Context) ([]domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Conversation
	for _, c := range m.convs {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memHistory) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[id]; !ok {
		return domain.ErrConversationNotFound
	}
	delete(m.convs, id)
	delete(m.msgs, id)
	return nil
}

func (m *memHistory) Append(_ context.Context, id string, msg domain.Message, metrics *domain.ChatMetrics) (*domain.StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[id]; !ok {
		return nil, domain.ErrConversationNotFound
	}
	sm := domain.StoredMessage{ConversationID: id, Message: msg, Metrics: metrics, CreatedAt: time.Now()}
	m.msgs[id] = append(m.msgs[id], sm)
	return &sm, nil
}

func (m *memHistory) Messages(_ context.Context, id string) ([]domain.StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[id]; !ok {
		return nil, domain.ErrConversationNotFound
	}
	return append([]domain.StoredMessage(nil), m.msgs[id]...), nil
}

func chunk(content string, done bool) domain.ChatResponse {
	r := domain.ChatResponse{Model: "m", CreatedAt: "t", Message: domain.Message{Role: domain.RoleAssistant, Content: content}, Done: done}
	if done {
		r.EvalCount = 3
		r.EvalDuration = int64(time.Second)
	}
	return r
}

func TestChatServiceSendNewConversation(t *testing.T) {
	streamer := &fakeStreamer{records: []domain.ChatResponse{chunk("Hel", false), chunk("lo", true)}}
	hist := newMemHistory()
	svc := NewChatService(streamer, hist, slog.Default(), WithModel("llama3"), WithSystemPrompt("be brief"))

	var deltas []string
	res, err := svc.Send(context.Background(), "", "  say   hello  ", func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, "Hello", res.Reply.Content)
	assert.Equal(t, domain.RoleAssistant, res.Reply.Role)
	assert.Len(t, res.Records, 2)
	require.NotNil(t, res.Metrics)
	assert.Equal(t, int64(3), res.Metrics.EvalCount)

	require.NotEmpty(t, res.ConversationID)
	conv, err := hist.GetConversation(context.Background(), res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "say hello", conv.Title)
	assert.Equal(t, "llama3", conv.Model)

	stored, _ := hist.Messages(context.Background(), res.ConversationID)
	require.Len(t, stored, 2)
	assert.Equal(t, domain.RoleUser, stored[0].Message.Role)
	assert.Equal(t, "Hello", stored[1].Message.Content)
	assert.NotNil(t, stored[1].Metrics)

	assert.Equal(t, "llama3", streamer.lastReq.Model)
	require.Len(t, streamer.lastReq.Messages, 2)
	assert.Equal(t, domain.RoleSystem, streamer.lastReq.Messages[0].Role)
	assert.Equal(t, "  say   hello  ", streamer.lastReq.Messages[1].Content)
}

func TestChatServiceSendIncludesPriorMessages(t *testing.T) {
	streamer := &fakeStreamer{records: []domain.ChatResponse{chunk("second answer", true)}}
	hist := newMemHistory()
	svc := NewChatService(streamer, hist, slog.Default())

	conv, _ := hist.CreateConversation(context.Background(), "t", "")
	hist.Append(context.Background(), conv.ID, domain.Message{Role: domain.RoleUser, Content: "q1"}, nil)
	hist.Append(context.Background(), conv.ID, domain.Message{Role: domain.RoleAssistant, Content: "a1"}, nil)

	res, err := svc.Send(context.Background(), conv.ID, "q2", nil)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, res.ConversationID)

	got := streamer.lastReq.Messages
	require.Len(t, got, 3)
	assert.Equal(t, "q1", got[0].Content)
	assert.Equal(t, "a1", got[1].Content)
	assert.Equal(t, "q2", got[2].Content)
}

func TestChatServiceSendFailureKeepsOnlyUserMessage(t *testing.T) {
	streamer := &fakeStreamer{
		records: []domain.ChatResponse{chunk("par", false)},
		err:     domain.NewSubSystemError("chat", "Client.GenerateChat", domain.ErrCancelled, ""),
	}
	hist := newMemHistory()
	svc := NewChatService(streamer, hist, slog.Default())

	res, err := svc.Send(context.Background(), "", "hi", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	require.NotNil(t, res)
	assert.Equal(t, "par", res.Reply.Content, "partial reply is returned")
	assert.Nil(t, res.Metrics)

	stored, _ := hist.Messages(context.Background(), res.ConversationID)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.RoleUser, stored[0].Message.Role)
}

func TestChatServiceStatelessWithoutHistory(t *testing.T) {
	streamer := &fakeStreamer{records: []domain.ChatResponse{chunk("ok", true)}}
	svc := NewChatService(streamer, nil, slog.Default())

	res, err := svc.Send(context.Background(), "", "hi", nil)
	require.NoError(t, err)
	assert.Empty(t, res.ConversationID)
	assert.Equal(t, "ok", res.Reply.Content)
	assert.Len(t, streamer.lastReq.Messages, 1)
}

func TestChatServiceRejectsEmptyPrompt(t *testing.T) {
	svc := NewChatService(&fakeStreamer{}, newMemHistory(), slog.Default())
	_, err := svc.Send(context.Background(), "", "   ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatServiceUnknownConversation(t *testing.T) {
	svc := NewChatService(&fakeStreamer{}, newMemHistory(), slog.Default())
	_, err := svc.Send(context.Background(), "nope", "hi", nil)
	assert.True(t, errors.Is(err, domain.ErrConversationNotFound), "err = %v", err)
}

func TestChatServiceAbortDelegates(t *testing.T) {
	streamer := &fakeStreamer{}
	NewChatService(streamer, nil, slog.Default()).Abort()
	assert.Equal(t, 1, streamer.aborts)
}

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "a b c", titleFrom(" a\n b\t c "))

	long := strings.Repeat("é", 100)
	title := titleFrom(long)
	assert.Equal(t, maxTitleRunes, len([]rune(title)))
	assert.True(t, strings.HasSuffix(title, "…"))
}

// gatedStreamer blocks each call until released and echoes the last prompt.
type gatedStreamer struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	seen    [][]domain.Message
}

func (g *gatedStreamer) GenerateChat(_ context.Context, req domain.ChatRequest, onData domain.ChatHandler) ([]domain.ChatResponse, error) {
	g.mu.Lock()
	g.seen = append(g.seen, req.Messages)
	g.mu.Unlock()
	g.started <- struct{}{}
	<-g.release
	r := chunk("re:"+req.Messages[len(req.Messages)-1].Content, true)
	onData(r)
	return []domain.ChatResponse{r}, nil
}

func (g *gatedStreamer) Abort() {}

func TestChatServiceSerializesTurnsPerConversation(t *testing.T) {
	g := &gatedStreamer{started: make(chan struct{}, 2), release: make(chan struct{})}
	hist := newMemHistory()
	svc := NewChatService(g, hist, slog.Default())
	conv, _ := hist.CreateConversation(context.Background(), "t", "")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		svc.Send(context.Background(), conv.ID, "one", nil)
	}()
	<-g.started
	go func() {
		defer wg.Done()
		svc.Send(context.Background(), conv.ID, "two", nil)
	}()

	select {
	case <-g.started:
		t.Fatal("second turn started while the first was still streaming")
	case <-time.After(50 * time.Millisecond):
	}
	g.release <- struct{}{}
	<-g.started
	g.release <- struct{}{}
	wg.Wait()

	require.Len(t, g.seen, 2)
	second := g.seen[1]
	require.Len(t, second, 3)
	assert.Equal(t, "re:one", second[1].Content, "second turn sees the first reply")
}
