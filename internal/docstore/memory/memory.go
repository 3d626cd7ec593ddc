package memory

import (
	"context"
	"sync"

	"mmrag/internal/docstore"
	"mmrag/internal/domain"
)

// Store is a thread-safe, in-memory DocStore.
type Store struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

// NewStore creates a store holding docs.
func NewStore(docs map[string]domain.Document) *Store {
	if docs == nil {
		docs = make(map[string]domain.Document)
	}
	return &Store{docs: docs}
}

// Load reads the side-table file wholesale. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	docs, err := docstore.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStore(docs), nil
}

func (s *Store) Name() string { return "memory" }

// MGet returns documents for ids in the same order, nil for unknown ids.
func (s *Store) MGet(_ context.Context, ids []string) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Document, len(ids))
	for i, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out[i] = &doc
		}
	}
	return out, nil
}

func (s *Store) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *Store) Close() error { return nil }

var _ domain.DocStore = (*Store)(nil)
