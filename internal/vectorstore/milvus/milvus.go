package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/sirupsen/logrus"

	"mmrag/internal/domain"
)

// searchClient is the subset of client.Client used by Storage.
type searchClient interface {
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int,
		sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Close() error
}

type Config struct {
	Address     string
	APIKey      string
	Collection  string
	VectorField string
	IDField     string
	MetricType  string
}

// Storage searches a Milvus collection whose rows carry a varchar
// parent-document identifier next to the embedding.
type Storage struct {
	client  searchClient
	cfg     Config
	metric  entity.MetricType
	params  entity.SearchParam
	log     logrus.FieldLogger
	present bool
}

// Open connects to Milvus and loads the collection into memory.
// A missing collection yields an empty index.
func Open(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Storage, error) {
	c, err := client.NewClient(ctx, client.Config{Address: cfg.Address, APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus at %s: %w", cfg.Address, err)
	}
	ok, err := c.HasCollection(ctx, cfg.Collection)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to check Milvus collection %s: %w", cfg.Collection, err)
	}
	if !ok {
		log.WithField("collection", cfg.Collection).Warn("milvus collection not found, starting empty")
		return newStorage(c, cfg, log, false)
	}
	if err := c.LoadCollection(ctx, cfg.Collection, false); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to load Milvus collection %s: %w", cfg.Collection, err)
	}
	return newStorage(c, cfg, log, true)
}

func newStorage(c searchClient, cfg Config, log logrus.FieldLogger, present bool) (*Storage, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(10)
	if err != nil {
		return nil, err
	}
	return &Storage{
		client:  c,
		cfg:     cfg,
		metric:  convertMetricType(cfg.MetricType),
		params:  sp,
		log:     log,
		present: present,
	}, nil
}

func (s *Storage) Name() string { return "milvus" }

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Hit, error) {
	if !s.present {
		return nil, nil
	}
	if topK <= 0 {
		topK = 4
	}
	results, err := s.client.Search(
		ctx, s.cfg.Collection, nil, "", []string{s.cfg.IDField},
		[]entity.Vector{entity.FloatVector(vector)},
		s.cfg.VectorField, s.metric, topK, s.params,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}
	var hits []domain.Hit
	for _, res := range results {
		var ids []string
		for _, field := range res.Fields {
			if field.Name() != s.cfg.IDField {
				continue
			}
			if col, ok := field.(*entity.ColumnVarChar); ok {
				ids = col.Data()
			}
		}
		if ids == nil {
			s.log.WithField("field", s.cfg.IDField).Warn("milvus result is missing the id field, skipping")
			continue
		}
		for i := 0; i < res.ResultCount && i < len(ids); i++ {
			h := domain.Hit{ID: ids[i]}
			if i < len(res.Scores) {
				h.Score = float64(res.Scores[i])
			}
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func (s *Storage) Close() error { return s.client.Close() }

func convertMetricType(metricType string) entity.MetricType {
	switch strings.ToUpper(metricType) {
	case "L2":
		return entity.L2
	case "IP":
		return entity.IP
	default:
		return entity.COSINE
	}
}
