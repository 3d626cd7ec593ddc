package chromem

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/philippgille/chromem-go"
	"github.com/sirupsen/logrus"

	"mmrag/internal/domain"
)

// IDKey is the metadata key holding the parent document identifier.
const IDKey = "doc_id"

// Storage searches a chromem-go collection persisted on disk.
type Storage struct {
	db         *chromem.DB
	collection *chromem.Collection
	log        logrus.FieldLogger
}

// Config selects the persistence directory and collection.
type Config struct {
	Dir        string
	Collection string
	Compress   bool
}

// Open opens the persisted DB under cfg.Dir. When the directory or the
// collection does not exist the index is empty.
func Open(cfg Config, embedder domain.Embedder, log logrus.FieldLogger) (*Storage, error) {
	s := &Storage{log: log}
	if _, err := os.Stat(cfg.Dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.WithField("dir", cfg.Dir).Info("chromem index not found, starting empty")
			s.db = chromem.NewDB()
			return s, nil
		}
		return nil, err
	}
	db, err := chromem.NewPersistentDB(cfg.Dir, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem DB at %s: %w", cfg.Dir, err)
	}
	s.db = db
	s.collection = db.GetCollection(cfg.Collection, embeddingFunc(embedder))
	if s.collection == nil {
		log.WithField("collection", cfg.Collection).Warn("chromem collection not found, starting empty")
		return s, nil
	}
	log.WithFields(logrus.Fields{"collection": cfg.Collection, "count": s.collection.Count()}).Info("chromem index loaded")
	return s, nil
}

func (s *Storage) Name() string { return "chromem" }

// Len returns the number of indexed documents.
func (s *Storage) Len() int {
	if s.collection == nil {
		return 0
	}
	return s.collection.Count()
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Hit, error) {
	n := s.Len()
	if topK <= 0 {
		topK = 4
	}
	if topK > n {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}
	results, err := s.collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	hits := make([]domain.Hit, 0, len(results))
	for _, r := range results {
		id := r.Metadata[IDKey]
		if id == "" {
			id = r.ID
		}
		hits = append(hits, domain.Hit{ID: id, Score: float64(r.Similarity)})
	}
	return hits, nil
}

func (s *Storage) Close() error { return nil }

func embeddingFunc(e domain.Embedder) chromem.EmbeddingFunc {
	if e == nil {
		return func(context.Context, string) ([]float32, error) {
			return nil, errors.New("no embedder configured")
		}
	}
	return e.Embed
}
