package domain

import (
	"context"
	"strings"
)

// Kind is the content type of a parent document.
type Kind string

const (
	// KindUnknown means the type was not recorded at indexing time.
	KindUnknown Kind = ""
	KindText    Kind = "text"
	KindImage   Kind = "image"
)

// DefaultImageMIME is used for image blocks without a recorded MIME type.
const DefaultImageMIME = "image/jpeg"

// Document is a parent document held by the docstore.
// Content is plain text or a base64-encoded image.
type Document struct {
	ID      string
	Content string
	Kind    Kind
	MIME    string
}

// Hit is a ranked identifier returned by a vector index.
type Hit struct {
	ID    string
	Score float64
}

// Image is a base64 image payload with its MIME type.
type Image struct {
	Base64 string
	MIME   string
}

// Classified is retrieved context split into image and text payloads.
type Classified struct {
	Images []Image
	Texts  []string
}

// Prompt is a single multi-part chat message: one text block, then images.
type Prompt struct {
	Text   string
	Images []ImageBlock
}

// ImageBlock is an inlined image carried as a data URI.
type ImageBlock struct {
	URL string
}

// MIME returns the media type declared by the data URI.
func (b ImageBlock) MIME() string {
	rest, ok := strings.CutPrefix(b.URL, "data:")
	if !ok {
		return ""
	}
	mime, _, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return ""
	}
	return mime
}

// Base64 returns the payload with the data URI prefix stripped.
func (b ImageBlock) Base64() string {
	_, payload, ok := strings.Cut(b.URL, ";base64,")
	if !ok {
		return ""
	}
	return payload
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns identifiers ranked by similarity to a query embedding.
type VectorIndex interface {
	Name() string
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
	Close() error
}

// DocStore resolves identifiers to parent documents.
// MGet returns one entry per id, nil where the id is unknown.
type DocStore interface {
	Name() string
	MGet(ctx context.Context, ids []string) ([]*Document, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// Retriever returns parent documents relevant to a query, in rank order.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
}

// ChatModel sends a single-turn prompt and returns the plain-text answer.
type ChatModel interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// Answer is a generated answer with the amount of context behind it.
type Answer struct {
	Text   string
	Texts  int
	Images int
}

// HasContext reports whether any retrieved document reached the prompt.
func (a Answer) HasContext() bool { return a.Texts+a.Images > 0 }

// RAGService defines the operations exposed by the application core.
type RAGService interface {
	Answer(ctx context.Context, question string) (string, error)
	Ask(ctx context.Context, question string) (Answer, error)
}
