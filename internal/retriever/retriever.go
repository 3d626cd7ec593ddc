package retriever

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"mmrag/internal/domain"
)

// DefaultTopK is how many index hits are resolved per query.
const DefaultTopK = 4

// MultiVector searches small indexed vectors and returns the parent
// documents they point to.
type MultiVector struct {
	embedder domain.Embedder
	index    domain.VectorIndex
	docs     domain.DocStore
	topK     int
	log      logrus.FieldLogger
}

// New creates a MultiVector retriever. topK <= 0 selects DefaultTopK.
func New(embedder domain.Embedder, index domain.VectorIndex, docs domain.DocStore, topK int, log logrus.FieldLogger) *MultiVector {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &MultiVector{embedder: embedder, index: index, docs: docs, topK: topK, log: log}
}

// Retrieve embeds the query, searches the index and resolves each hit
// through the docstore, keeping rank order. Unknown ids are skipped.
func (r *MultiVector) Retrieve(ctx context.Context, query string) ([]domain.Document, error) {
	if empty, ok := r.index.(interface{ Len() int }); ok && empty.Len() == 0 {
		r.log.Debug("vector index is empty")
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.index.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}
	if len(hits) == 0 {
		r.log.Info("no documents found in vector index for the query")
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		if _, dup := seen[h.ID]; dup {
			continue
		}
		seen[h.ID] = struct{}{}
		ids = append(ids, h.ID)
	}

	parents, err := r.docs.MGet(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve documents: %w", err)
	}

	out := make([]domain.Document, 0, len(ids))
	for i, p := range parents {
		if p == nil {
			r.log.WithField("doc_id", ids[i]).Warn("document missing from docstore")
			continue
		}
		doc := *p
		doc.ID = ids[i]
		out = append(out, doc)
	}
	r.log.WithFields(logrus.Fields{"hits": len(hits), "documents": len(out)}).Info("retrieved context")
	return out, nil
}

var _ domain.Retriever = (*MultiVector)(nil)
