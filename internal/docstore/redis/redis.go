package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"mmrag/internal/docstore"
	"mmrag/internal/domain"
)

// Store keeps parent documents in redis under <prefix><id>.
type Store struct {
	client *goredis.Client
	prefix string
}

type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// NewStore connects to redis and verifies the connection.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return &Store{client: client, prefix: cfg.KeyPrefix}, nil
}

func (s *Store) Name() string { return "redis" }

func (s *Store) key(id string) string { return s.prefix + id }

// MGet returns documents for ids in the same order, nil for unknown ids.
func (s *Store) MGet(ctx context.Context, ids []string) ([]*domain.Document, error) {
	out := make([]*domain.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := docstore.DecodeStored(ids[i], str)
		if err != nil {
			return nil, err
		}
		out[i] = &doc
	}
	return out, nil
}

// MSet writes documents in a single pipeline.
func (s *Store) MSet(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, d := range docs {
		v, err := docstore.EncodeValue(d)
		if err != nil {
			return fmt.Errorf("encode %q: %w", d.ID, err)
		}
		pipe.Set(ctx, s.key(d.ID), v, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	return nil
}

// Seed loads the side-table file into redis. A missing file is a no-op.
func (s *Store) Seed(ctx context.Context, path string) (int, error) {
	docs, err := docstore.ReadFile(path)
	if err != nil {
		return 0, err
	}
	batch := make([]domain.Document, 0, len(docs))
	for _, id := range docstore.SortedIDs(docs) {
		batch = append(batch, docs[id])
	}
	if err := s.MSet(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// Len counts keys under the prefix.
func (s *Store) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return 0, err
	}
	return n, nil
}

func (s *Store) Close() error { return s.client.Close() }

var _ domain.DocStore = (*Store)(nil)
