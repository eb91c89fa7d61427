package domain

import "context"

// ChatHandler receives each chat record as soon as it is decoded.
type ChatHandler func(ChatResponse)

// ChatStreamer runs streamed chat completions.
type ChatStreamer interface {
	// GenerateChat streams one chat completion, invoking onData for every
	// record in arrival order, and returns all records once the call settles.
	GenerateChat(ctx context.Context, req ChatRequest, onData ChatHandler) ([]ChatResponse, error)
	// Abort cancels in-flight chat calls. It is a no-op when none are active.
	Abort()
}

// ModelManager is the model management surface of the service.
type ModelManager interface {
	ListLocalModels(ctx context.Context) (*ListLocalModelsResponse, error)
	ShowModelInformation(ctx context.Context, req ShowModelInformationRequest) (*ShowModelInformationResponse, error)
	CopyModel(ctx context.Context, req CopyModelRequest) (*StatusResponse, error)
	DeleteModel(ctx context.Context, req DeleteModelRequest) (*StatusResponse, error)
	PullModel(ctx context.Context, req PullModelRequest) (*PullModelResponse, error)
	PushModel(ctx context.Context, req PushModelRequest) (*StatusResponse, error)
	CreateModel(ctx context.Context, req CreateModelRequest) (*StatusResponse, error)
}

// EmbeddingGenerator produces a single embedding via the service's
// embeddings endpoint.
type EmbeddingGenerator interface {
	GenerateEmbeddings(ctx context.Context, req GenerateEmbeddingsRequest) (*GenerateEmbeddingsResponse, error)
}

// HistoryStore persists conversations and their messages.
type HistoryStore interface {
	CreateConversation(ctx context.Context, title, model string) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	Append(ctx context.Context, conversationID string, msg Message, metrics *ChatMetrics) (*StoredMessage, error)
	Messages(ctx context.Context, conversationID string) ([]StoredMessage, error)
}
