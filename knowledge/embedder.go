package knowledge

import (
	"context"

	"github.com/mechatbot/mechatbot/internal/llm"
)

// Embedder turns free text into fixed-length vectors.
type Embedder interface {
	Embed(ctx context.Context, texts ...string) ([][]float32, error)
}

// OpenAIEmbedder embeds through the OpenAI embedding endpoint.
type OpenAIEmbedder struct {
	client *llm.Client
	model  string
}

func NewOpenAIEmbedder(client *llm.Client, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: client,
		model:  model,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	return e.client.Embed(ctx, e.model, texts...)
}

var (
	_ Embedder = (*OpenAIEmbedder)(nil)
)
