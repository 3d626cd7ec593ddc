package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmrag/internal/docstore/memory"
	"mmrag/internal/domain"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return []float32{1, 0}, f.err
}

type fakeIndex struct {
	hits []domain.Hit
	err  error
	topK int
}

func (f *fakeIndex) Name() string { return "fake" }

func (f *fakeIndex) Search(_ context.Context, _ []float32, topK int) ([]domain.Hit, error) {
	f.topK = topK
	return f.hits, f.err
}

func (f *fakeIndex) Close() error { return nil }

type emptyIndex struct{ fakeIndex }

func (emptyIndex) Len() int { return 0 }

const b64Image = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func docs() *memory.Store {
	return memory.NewStore(map[string]domain.Document{
		"doc1": {ID: "doc1", Content: "hello world"},
		"doc2": {ID: "doc2", Content: b64Image},
	})
}

func nullLog() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func TestRetrieveResolvesParentsInRankOrder(t *testing.T) {
	idx := &fakeIndex{hits: []domain.Hit{{ID: "doc2", Score: 0.9}, {ID: "doc1", Score: 0.5}}}
	r := New(&fakeEmbedder{}, idx, docs(), 0, nullLog())

	got, err := r.Retrieve(context.Background(), "what is shown?")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b64Image, got[0].Content)
	assert.Equal(t, "hello world", got[1].Content)
	assert.Equal(t, DefaultTopK, idx.topK)
}

func TestRetrieveSkipsMissingAndDuplicateIDs(t *testing.T) {
	idx := &fakeIndex{hits: []domain.Hit{{ID: "doc1"}, {ID: "ghost"}, {ID: "doc1"}, {ID: "doc2"}}}
	log, hook := test.NewNullLogger()
	r := New(&fakeEmbedder{}, idx, docs(), 10, log)

	got, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc1", got[0].ID)
	assert.Equal(t, "doc2", got[1].ID)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["doc_id"] == "ghost" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRetrieveEmptyIndexSkipsEmbedding(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("offline")}
	r := New(emb, &emptyIndex{}, docs(), 4, nullLog())

	got, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, emb.calls)
}

func TestRetrieveNoHits(t *testing.T) {
	r := New(&fakeEmbedder{}, &fakeIndex{}, docs(), 4, nullLog())
	got, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrievePropagatesErrors(t *testing.T) {
	embErr := errors.New("embedding service down")
	r := New(&fakeEmbedder{err: embErr}, &fakeIndex{}, docs(), 4, nullLog())
	_, err := r.Retrieve(context.Background(), "q")
	require.ErrorIs(t, err, embErr)

	searchErr := errors.New("index down")
	r = New(&fakeEmbedder{}, &fakeIndex{err: searchErr}, docs(), 4, nullLog())
	_, err = r.Retrieve(context.Background(), "q")
	require.ErrorIs(t, err, searchErr)
}
