package embedding

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
)

// OllamaOption configures the Ollama embedding provider.
type OllamaOption func(*OllamaProvider)

// WithOllamaModel sets the embedding model.
func WithOllamaModel(model string) OllamaOption {
	return func(p *OllamaProvider) { p.model = model }
}

// WithOllamaDimensions fixes the embedding dimensions. Without it the size
// is learned from the first response.
func WithOllamaDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) { p.dims.Store(int64(dims)) }
}

// OllamaProvider implements domain.EmbeddingProvider on top of the
// service's single-prompt embeddings endpoint, one request per text.
type OllamaProvider struct {
	gen   domain.EmbeddingGenerator
	model string
	dims  atomic.Int64
}

// NewOllamaProvider creates an embedding provider backed by gen.
func NewOllamaProvider(gen domain.EmbeddingGenerator, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		gen:   gen,
		model: "nomic-embed-text",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed implements domain.EmbeddingProvider.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		resp, err := p.gen.GenerateEmbeddings(ctx, domain.GenerateEmbeddingsRequest{
			Model:  p.model,
			Prompt: text,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: text %d: %w", domain.ErrEmbeddingFailed, i, err)
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("%w: text %d: empty embedding", domain.ErrEmbeddingFailed, i)
		}

		vec := make([]float32, len(resp.Embedding))
		for j, v := range resp.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}

	p.dims.CompareAndSwap(0, int64(len(out[0])))
	return out, nil
}

// Dimensions implements domain.EmbeddingProvider.
func (p *OllamaProvider) Dimensions() int { return int(p.dims.Load()) }

// Name implements domain.EmbeddingProvider.
func (p *OllamaProvider) Name() string { return "ollama" }

// Compile-time interface check.
var _ domain.EmbeddingProvider = (*OllamaProvider)(nil)
