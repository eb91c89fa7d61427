package domain

import "context"

// EmbeddingProvider is the interface for text embedding backends.
type EmbeddingProvider interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the dimensionality of the embedding vectors,
	// or 0 before the first successful call when it is not configured.
	Dimensions() int
	// Name returns the provider's identifier.
	Name() string
}
