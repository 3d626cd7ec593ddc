package milvus

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	results []client.SearchResult
	err     error
	topK    int
	fields  []string
	metric  entity.MetricType
	closed  bool
}

func (f *fakeClient) Search(_ context.Context, _ string, _ []string, _ string, outputFields []string,
	_ []entity.Vector, _ string, metricType entity.MetricType, topK int,
	_ entity.SearchParam, _ ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	f.topK = topK
	f.fields = outputFields
	f.metric = metricType
	return f.results, f.err
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

var testCfg = Config{Collection: "multi_modal_rag", VectorField: "embedding", IDField: "doc_id", MetricType: "cosine"}

func TestSearchReadsIDColumn(t *testing.T) {
	fc := &fakeClient{results: []client.SearchResult{{
		ResultCount: 2,
		Scores:      []float32{0.9, 0.3},
		Fields:      []entity.Column{entity.NewColumnVarChar("doc_id", []string{"doc2", "doc1"})},
	}}}
	log, _ := test.NewNullLogger()
	s, err := newStorage(fc, testCfg, log, true)
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), []float32{1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc2", hits[0].ID)
	assert.InDelta(t, 0.9, hits[0].Score, 1e-6)
	assert.Equal(t, "doc1", hits[1].ID)
	assert.Equal(t, 4, fc.topK)
	assert.Equal(t, []string{"doc_id"}, fc.fields)
	assert.Equal(t, entity.COSINE, fc.metric)

	require.NoError(t, s.Close())
	assert.True(t, fc.closed)
}

func TestSearchSkipsResultsWithoutIDField(t *testing.T) {
	fc := &fakeClient{results: []client.SearchResult{{
		ResultCount: 1,
		Scores:      []float32{0.5},
		Fields:      []entity.Column{entity.NewColumnVarChar("other", []string{"x"})},
	}}}
	log, hook := test.NewNullLogger()
	s, err := newStorage(fc, testCfg, log, true)
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), []float32{1}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Len(t, hook.Entries, 1)
}

func TestSearchAbsentCollectionIsEmpty(t *testing.T) {
	fc := &fakeClient{err: errors.New("must not be called")}
	log, _ := test.NewNullLogger()
	s, err := newStorage(fc, testCfg, log, false)
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), []float32{1}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchWrapsErrors(t *testing.T) {
	fc := &fakeClient{err: errors.New("unavailable")}
	log, _ := test.NewNullLogger()
	s, err := newStorage(fc, testCfg, log, true)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), []float32{1}, 1)
	require.ErrorContains(t, err, "unavailable")
}

func TestConvertMetricType(t *testing.T) {
	assert.Equal(t, entity.L2, convertMetricType("l2"))
	assert.Equal(t, entity.IP, convertMetricType("IP"))
	assert.Equal(t, entity.COSINE, convertMetricType(""))
}
