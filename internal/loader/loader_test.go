package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/philippgille/chromem-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmrag/internal/config"
)

// keywordEmbedder maps a query onto a fixed 2-d space so the ranking is known.
type keywordEmbedder struct{ calls int }

func (k *keywordEmbedder) Name() string { return "keyword" }

func (k *keywordEmbedder) Embed(context.Context, string) ([]float32, error) {
	k.calls++
	return []float32{1, 0.2}, nil
}

const imageB64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func testConfig(t *testing.T, dir string) *config.AppConfig {
	t.Helper()
	t.Setenv("MMRAG_INDEX_DIR", dir)
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	return cfg
}

func nullLog() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func writeDocstore(t *testing.T, dir string) {
	t.Helper()
	body := `{"doc1": "hello world", "doc2": "` + imageB64 + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docstore.json"), []byte(body), 0o644))
}

func TestLoadWithoutIndexFilesReturnsEmpty(t *testing.T) {
	for _, backend := range []string{"chromem", "memory"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, filepath.Join(t.TempDir(), "index"))
			cfg.VectorStore.Type = backend
			emb := &keywordEmbedder{}

			ix, err := Load(context.Background(), cfg, emb, nullLog())
			require.NoError(t, err)
			defer ix.Close()

			for _, q := range []string{"anything", ""} {
				docs, err := ix.Retriever.Retrieve(context.Background(), q)
				require.NoError(t, err)
				assert.Empty(t, docs)
			}
			assert.Zero(t, emb.calls)
		})
	}
}

func TestLoadFlatIndexResolvesParents(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.VectorStore.Type = "memory"
	writeDocstore(t, dir)
	vectors := `[{"id": "doc1", "vector": [0, 1]}, {"id": "doc2", "vector": [1, 0]}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vectors.json"), []byte(vectors), 0o644))

	ix, err := Load(context.Background(), cfg, &keywordEmbedder{}, nullLog())
	require.NoError(t, err)
	defer ix.Close()

	docs, err := ix.Retriever.Retrieve(context.Background(), "show me the figure")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, imageB64, docs[0].Content)
	assert.Equal(t, "hello world", docs[1].Content)
	assert.Contains(t, ix.Describe(context.Background()), "2 documents")
}

func TestLoadChromemIndexResolvesParents(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	writeDocstore(t, dir)

	db, err := chromem.NewPersistentDB(cfg.ChromemPath(), false)
	require.NoError(t, err)
	col, err := db.GetOrCreateCollection("multi_modal_rag", nil, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, col.AddDocument(ctx, chromem.Document{ID: "s1", Content: "greeting summary", Embedding: []float32{0, 1}, Metadata: map[string]string{"doc_id": "doc1"}}))
	require.NoError(t, col.AddDocument(ctx, chromem.Document{ID: "s2", Content: "figure summary", Embedding: []float32{1, 0}, Metadata: map[string]string{"doc_id": "doc2"}}))

	ix, err := Load(ctx, cfg, &keywordEmbedder{}, nullLog())
	require.NoError(t, err)
	defer ix.Close()

	docs, err := ix.Retriever.Retrieve(ctx, "show me the figure")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc2", docs[0].ID)
	assert.Equal(t, imageB64, docs[0].Content)
	assert.Equal(t, "hello world", docs[1].Content)
}

func TestLoadMalformedDocstoreIsAnError(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docstore.json"), []byte(`{"doc1": `), 0o644))

	_, err := Load(context.Background(), cfg, &keywordEmbedder{}, nullLog())
	require.Error(t, err)
}

func TestLoadRedisDocstoreWithSeed(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.VectorStore.Type = "memory"
	writeDocstore(t, dir)
	mr := miniredis.RunT(t)
	cfg.DocStore = config.DocStoreConfig{Type: "redis", Redis: &config.RedisConfig{Address: mr.Addr(), KeyPrefix: "t:", Seed: true}}

	ix, err := Load(context.Background(), cfg, &keywordEmbedder{}, nullLog())
	require.NoError(t, err)
	defer ix.Close()

	_, err = mr.Get("t:doc1")
	require.NoError(t, err)
	docs, err := ix.Docs.MGet(context.Background(), []string{"doc1"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", docs[0].Content)
	assert.Equal(t, "redis", ix.Docs.Name())
}

func TestUnknownBackends(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.VectorStore.Type = "faiss"
	_, err := Load(context.Background(), cfg, &keywordEmbedder{}, nullLog())
	require.ErrorContains(t, err, "unknown vector store")

	cfg = testConfig(t, t.TempDir())
	cfg.DocStore.Type = "sqlite"
	_, err = Load(context.Background(), cfg, &keywordEmbedder{}, nullLog())
	require.ErrorContains(t, err, "unknown docstore")

	cfg = testConfig(t, t.TempDir())
	cfg.Embedder.Type = "word2vec"
	_, err = NewEmbedder(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown embedder")
}

func TestNewEmbedderRequiresKey(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Google.APIKeyEnv = "MMRAG_TEST_ABSENT_KEY"
	t.Setenv("MMRAG_TEST_ABSENT_KEY", "")

	_, err := NewEmbedder(context.Background(), cfg)
	require.ErrorIs(t, err, config.ErrMissingAPIKey)
}
