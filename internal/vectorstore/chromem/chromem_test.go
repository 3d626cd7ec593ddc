package chromem

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, dir, collection string, docs ...chromem.Document) {
	t.Helper()
	db, err := chromem.NewPersistentDB(dir, false)
	require.NoError(t, err)
	noEmbed := func(context.Context, string) ([]float32, error) {
		t.Fatal("embedding func must not be called for precomputed vectors")
		return nil, nil
	}
	col, err := db.GetOrCreateCollection(collection, nil, noEmbed)
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, col.AddDocument(context.Background(), d))
	}
}

func TestOpenMissingDirIsEmpty(t *testing.T) {
	log, _ := test.NewNullLogger()
	s, err := Open(Config{Dir: filepath.Join(t.TempDir(), "absent"), Collection: "c"}, nil, log)
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestOpenMissingCollectionIsEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chromem")
	seed(t, dir, "other", chromem.Document{ID: "x", Content: "x", Embedding: []float32{1, 0}})

	log, hook := test.NewNullLogger()
	s, err := Open(Config{Dir: dir, Collection: "multi_modal_rag"}, nil, log)
	require.NoError(t, err)
	assert.NotEmpty(t, hook.Entries)

	hits, err := s.Search(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchReturnsDocIDsInRankOrder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chromem")
	seed(t, dir, "multi_modal_rag",
		chromem.Document{ID: "chunk-1", Content: "summary of doc1", Embedding: []float32{0, 1}, Metadata: map[string]string{IDKey: "doc1"}},
		chromem.Document{ID: "chunk-2", Content: "summary of doc2", Embedding: []float32{1, 0}, Metadata: map[string]string{IDKey: "doc2"}},
		chromem.Document{ID: "raw-3", Content: "no metadata", Embedding: []float32{-1, 0}},
	)

	log, _ := test.NewNullLogger()
	s, err := Open(Config{Dir: dir, Collection: "multi_modal_rag"}, nil, log)
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), []float32{0.9, 0.1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "doc2", hits[0].ID)
	assert.Equal(t, "doc1", hits[1].ID)
	assert.Equal(t, "raw-3", hits[2].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}
