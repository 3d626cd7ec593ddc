// Package loader assembles the retriever from the prebuilt index described
// by the configuration. Missing index files are not errors: the retriever
// then answers every query with no context.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mmrag/internal/config"
	dsmemory "mmrag/internal/docstore/memory"
	dsredis "mmrag/internal/docstore/redis"
	"mmrag/internal/domain"
	"mmrag/internal/embedding/genai"
	"mmrag/internal/embedding/openai"
	"mmrag/internal/retriever"
	"mmrag/internal/vectorstore/chromem"
	vsmemory "mmrag/internal/vectorstore/memory"
	"mmrag/internal/vectorstore/milvus"
	"mmrag/internal/vectorstore/qdrant"
)

// Index is the loaded, read-only retrieval state shared by all requests.
type Index struct {
	Retriever *retriever.MultiVector
	Vectors   domain.VectorIndex
	Docs      domain.DocStore
}

// Close releases the backends.
func (ix *Index) Close() error {
	return errors.Join(ix.Vectors.Close(), ix.Docs.Close())
}

// Describe returns a one-line summary of the loaded backends.
func (ix *Index) Describe(ctx context.Context) string {
	n, err := ix.Docs.Len(ctx)
	if err != nil {
		return fmt.Sprintf("index: %s, docstore: %s", ix.Vectors.Name(), ix.Docs.Name())
	}
	return fmt.Sprintf("index: %s, docstore: %s (%d documents)", ix.Vectors.Name(), ix.Docs.Name(), n)
}

// Load opens the configured vector index and docstore and wires them into a
// multi-vector retriever.
func Load(ctx context.Context, cfg *config.AppConfig, embedder domain.Embedder, log logrus.FieldLogger) (*Index, error) {
	vectors, err := OpenVectorIndex(ctx, cfg, embedder, log)
	if err != nil {
		return nil, err
	}
	docs, err := OpenDocStore(ctx, cfg, log)
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}
	r := retriever.New(embedder, vectors, docs, cfg.Retriever.TopK, log.WithField("component", "retriever"))
	return &Index{Retriever: r, Vectors: vectors, Docs: docs}, nil
}

// OpenVectorIndex selects the vector index implementation.
func OpenVectorIndex(ctx context.Context, cfg *config.AppConfig, embedder domain.Embedder, log logrus.FieldLogger) (domain.VectorIndex, error) {
	vs := cfg.VectorStore
	log = log.WithField("vector_store", vs.Type)
	switch vs.Type {
	case "chromem", "":
		return chromem.Open(chromem.Config{
			Dir:        cfg.ChromemPath(),
			Collection: vs.Chromem.Collection,
			Compress:   vs.Chromem.Compress,
		}, embedder, log)
	case "memory":
		s, err := vsmemory.Load(cfg.MemoryIndexPath())
		if err != nil {
			return nil, err
		}
		log.WithField("vectors", s.Len()).Info("flat index loaded")
		return s, nil
	case "qdrant":
		if vs.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		s := qdrant.NewStorage(qdrant.Config{
			URL:        vs.Qdrant.URL,
			APIKey:     vs.Qdrant.APIKey,
			Collection: vs.Qdrant.Collection,
			Timeout:    time.Duration(vs.Qdrant.TimeoutSecs) * time.Second,
		})
		ok, err := s.Exists(ctx)
		if err != nil {
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		if !ok {
			log.WithField("collection", vs.Qdrant.Collection).Warn("qdrant collection not found, starting empty")
			return emptyIndex{name: "qdrant"}, nil
		}
		return s, nil
	case "milvus":
		if vs.Milvus == nil {
			return nil, errors.New("milvus config missing")
		}
		return milvus.Open(ctx, milvus.Config{
			Address:     vs.Milvus.Address,
			APIKey:      vs.Milvus.APIKey,
			Collection:  vs.Milvus.Collection,
			VectorField: vs.Milvus.VectorField,
			IDField:     vs.Milvus.IDField,
			MetricType:  vs.Milvus.MetricType,
		}, log)
	default:
		return nil, fmt.Errorf("unknown vector store: %s", vs.Type)
	}
}

// OpenDocStore selects the side-table implementation.
func OpenDocStore(ctx context.Context, cfg *config.AppConfig, log logrus.FieldLogger) (domain.DocStore, error) {
	ds := cfg.DocStore
	switch ds.Type {
	case "memory", "":
		s, err := dsmemory.Load(cfg.DocStorePath())
		if err != nil {
			return nil, err
		}
		n, _ := s.Len(ctx)
		log.WithFields(logrus.Fields{"path": cfg.DocStorePath(), "documents": n}).Info("docstore loaded")
		return s, nil
	case "redis":
		if ds.Redis == nil {
			return nil, errors.New("redis config missing")
		}
		s, err := dsredis.NewStore(ctx, dsredis.Config{
			Address:   ds.Redis.Address,
			Password:  ds.Redis.Password,
			DB:        ds.Redis.DB,
			KeyPrefix: ds.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		if ds.Redis.Seed {
			n, err := s.Seed(ctx, cfg.DocStorePath())
			if err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("seed redis docstore: %w", err)
			}
			log.WithField("documents", n).Info("redis docstore seeded")
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown docstore: %s", ds.Type)
	}
}

// NewEmbedder builds the query embedder. It must match the model used when
// the index was built.
func NewEmbedder(ctx context.Context, cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "genai", "":
		key, err := cfg.GoogleAPIKey()
		if err != nil {
			return nil, err
		}
		return genai.NewEmbedder(ctx, key, cfg.Embedder.Model)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

// emptyIndex stands in for a remote collection that does not exist.
type emptyIndex struct{ name string }

func (e emptyIndex) Name() string { return e.name }
func (emptyIndex) Len() int       { return 0 }
func (emptyIndex) Close() error   { return nil }
func (emptyIndex) Search(context.Context, []float32, int) ([]domain.Hit, error) {
	return nil, nil
}
