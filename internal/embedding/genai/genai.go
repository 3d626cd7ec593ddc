package genai

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Embedder embeds queries with the Gemini embedding API.
type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
}

// NewEmbedder creates an embedder for modelName, e.g. "embedding-001".
func NewEmbedder(ctx context.Context, apiKey, modelName string) (*Embedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	model := client.EmbeddingModel(modelName)
	model.TaskType = genai.TaskTypeRetrievalQuery
	return &Embedder{client: client, model: model, name: modelName}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "genai/" + e.name }

// Embed returns an embedding vector for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return res.Embedding.Values, nil
}

// Close releases the underlying client.
func (e *Embedder) Close() error { return e.client.Close() }
