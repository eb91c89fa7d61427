package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
)

// maxTitleRunes bounds the title derived from a conversation's first prompt.
const maxTitleRunes = 60

// TurnResult is the outcome of one chat turn.
type TurnResult struct {
	ConversationID string // empty when history is disabled
	Reply          domain.Message
	Records        []domain.ChatResponse
	Metrics        *domain.ChatMetrics // from the terminal record, if one arrived
}

// ChatOption configures a ChatService.
type ChatOption func(*ChatService)

// WithModel sets the model sent with every turn. Empty uses the client default.
func WithModel(model string) ChatOption {
	return func(s *ChatService) { s.model = model }
}

// WithSystemPrompt prepends a system message to every request.
func WithSystemPrompt(prompt string) ChatOption {
	return func(s *ChatService) { s.systemPrompt = prompt }
}

// ChatService runs streamed chat turns against a conversation history.
type ChatService struct {
	chat         domain.ChatStreamer
	history      domain.HistoryStore // nil: stateless turns
	locks        *ConversationLocker
	model        string
	systemPrompt string
	logger       *slog.Logger
}

// NewChatService creates a ChatService. history may be nil.
func NewChatService(chat domain.ChatStreamer, history domain.HistoryStore, logger *slog.Logger, opts ...ChatOption) *ChatService {
	s := &ChatService{
		chat:    chat,
		history: history,
		locks:   NewConversationLocker(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send runs one turn: it records the user message, streams the reply
// (passing every non-empty content fragment to onDelta) and stores the
// assembled assistant message. An empty conversationID starts a new
// conversation. On failure the user message stays stored, no assistant
// message is written, and the partial result is returned with the error.
func (s *ChatService) Send(ctx context.Context, conversationID, text string, onDelta func(string)) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewDomainError("ChatService.Send", domain.ErrInvalidInput, "empty prompt")
	}

	userMsg := domain.Message{Role: domain.RoleUser, Content: text}
	conversationID, err := s.resolve(ctx, conversationID, userMsg.Content)
	if err != nil {
		return nil, err
	}
	if conversationID != "" {
		unlock, err := s.locks.Lock(ctx, conversationID)
		if err != nil {
			return nil, domain.NewDomainError("ChatService.Send", domain.ErrCancelled, err.Error())
		}
		defer unlock()
	}
	prior, err := s.prepare(ctx, conversationID, userMsg)
	if err != nil {
		return nil, err
	}

	msgs := make([]domain.Message, 0, len(prior)+2)
	if s.systemPrompt != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: s.systemPrompt})
	}
	msgs = append(msgs, prior...)
	msgs = append(msgs, userMsg)

	var reply strings.Builder
	records, err := s.chat.GenerateChat(ctx, domain.ChatRequest{Model: s.model, Messages: msgs}, func(r domain.ChatResponse) {
		if r.Message.Content == "" {
			return
		}
		reply.WriteString(r.Message.Content)
		if onDelta != nil {
			onDelta(r.Message.Content)
		}
	})

	result := &TurnResult{
		ConversationID: conversationID,
		Reply:          domain.Message{Role: domain.RoleAssistant, Content: reply.String()},
		Records:        records,
	}
	if n := len(records); n > 0 && records[n-1].Done {
		m := records[n-1].Metrics()
		result.Metrics = &m
	}
	if err != nil {
		s.logger.Warn("chat turn failed",
			"conversation_id", conversationID,
			"records", len(records),
			"error", err,
		)
		return result, err
	}

	if s.history != nil {
		if _, err := s.history.Append(ctx, conversationID, result.Reply, result.Metrics); err != nil {
			return result, fmt.Errorf("store reply: %w", err)
		}
	}

	s.logger.Debug("chat turn completed",
		"conversation_id", conversationID,
		"records", len(records),
		"reply_len", len(result.Reply.Content),
	)
	return result, nil
}

// Abort cancels in-flight turns.
func (s *ChatService) Abort() {
	s.chat.Abort()
}

// resolve returns the conversation the turn belongs to, creating one when
// conversationID is empty. It returns "" when history is disabled.
func (s *ChatService) resolve(ctx context.Context, conversationID, prompt string) (string, error) {
	if s.history == nil {
		return "", nil
	}
	if conversationID != "" {
		return conversationID, nil
	}
	conv, err := s.history.CreateConversation(ctx, titleFrom(prompt), s.model)
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return conv.ID, nil
}

// prepare loads the prior messages of the conversation and stores the new
// user message.
func (s *ChatService) prepare(ctx context.Context, conversationID string, userMsg domain.Message) ([]domain.Message, error) {
	if s.history == nil {
		return nil, nil
	}

	stored, err := s.history.Messages(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return nil, domain.NewDomainError("ChatService.Send", err, conversationID)
		}
		return nil, fmt.Errorf("load history: %w", err)
	}
	prior := make([]domain.Message, 0, len(stored))
	for _, m := range stored {
		prior = append(prior, m.Message)
	}

	if _, err := s.history.Append(ctx, conversationID, userMsg, nil); err != nil {
		return nil, fmt.Errorf("store prompt: %w", err)
	}
	return prior, nil
}

// titleFrom derives a short one-line title from a prompt.
func titleFrom(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxTitleRunes-1]) + "…"
}
