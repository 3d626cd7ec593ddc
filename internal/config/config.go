package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when the env var holding the API key is empty.
var ErrMissingAPIKey = errors.New("missing API key")

// IndexConfig locates the prebuilt index on disk.
type IndexConfig struct {
	Dir      string `yaml:"dir"`
	DocStore string `yaml:"docstore"`
}

// GoogleConfig holds credentials shared by the Gemini embedder and chat model.
type GoogleConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the query embedder.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	Model  string                `yaml:"model"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// MemoryIndexConfig configures the flat JSON vector index.
type MemoryIndexConfig struct {
	File string `yaml:"file"`
}

// ChromemConfig configures the embedded chromem-go index.
type ChromemConfig struct {
	Dir        string `yaml:"dir"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MilvusConfig contains connection details for a Milvus vector store.
type MilvusConfig struct {
	Address     string `yaml:"address"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	VectorField string `yaml:"vector_field"`
	IDField     string `yaml:"id_field"`
	MetricType  string `yaml:"metric_type"`
}

// VectorStoreConfig selects and configures the vector index implementation.
type VectorStoreConfig struct {
	Type    string             `yaml:"type"`
	Memory  *MemoryIndexConfig `yaml:"memory,omitempty"`
	Chromem *ChromemConfig     `yaml:"chromem,omitempty"`
	Qdrant  *QdrantConfig      `yaml:"qdrant,omitempty"`
	Milvus  *MilvusConfig      `yaml:"milvus,omitempty"`
}

// RedisConfig contains connection details for the redis docstore.
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	Seed      bool   `yaml:"seed"`
}

// DocStoreConfig selects the side-table implementation.
type DocStoreConfig struct {
	Type  string       `yaml:"type"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// RetrieverConfig tunes the multi-vector retriever.
type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// LLMConfig configures the generative model.
type LLMConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Index       IndexConfig       `yaml:"index"`
	Google      GoogleConfig      `yaml:"google"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	DocStore    DocStoreConfig    `yaml:"docstore"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	LLM         LLMConfig         `yaml:"llm"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault reads ./config.yaml when present, otherwise returns defaults.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	cfg := defaultConfig()
	applyEnv(cfg)
	return cfg, "", nil
}

// GoogleAPIKey returns the Gemini API key from the configured env var.
func (c *AppConfig) GoogleAPIKey() (string, error) {
	key := os.Getenv(c.Google.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%w: env %s is empty", ErrMissingAPIKey, c.Google.APIKeyEnv)
	}
	return key, nil
}

// DocStorePath is the side-table file inside the index directory.
func (c *AppConfig) DocStorePath() string {
	return c.resolve(c.Index.DocStore)
}

// MemoryIndexPath is the flat vector index file.
func (c *AppConfig) MemoryIndexPath() string {
	return c.resolve(c.VectorStore.Memory.File)
}

// ChromemPath is the chromem-go persistence directory.
func (c *AppConfig) ChromemPath() string {
	return c.resolve(c.VectorStore.Chromem.Dir)
}

// resolve joins relative index paths onto Index.Dir.
func (c *AppConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Index.Dir, p)
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Index:     IndexConfig{Dir: "index", DocStore: "docstore.json"},
		Google:    GoogleConfig{APIKeyEnv: "GOOGLE_API_KEY"},
		Embedder:  EmbedderConfig{Type: "genai", Model: "embedding-001"},
		DocStore:  DocStoreConfig{Type: "memory"},
		Retriever: RetrieverConfig{TopK: 4},
		LLM:       LLMConfig{Model: "gemini-2.5-flash", Temperature: 0},
		Log:       LogConfig{Level: "info", File: "mmrag.log"},
		VectorStore: VectorStoreConfig{
			Type:    "chromem",
			Chromem: &ChromemConfig{Dir: "chromem", Collection: "multi_modal_rag"},
		},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "index"
	}
	if cfg.Index.DocStore == "" {
		cfg.Index.DocStore = "docstore.json"
	}
	if cfg.Google.APIKeyEnv == "" {
		cfg.Google.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if cfg.Retriever.TopK <= 0 {
		cfg.Retriever.TopK = 4
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.5-flash"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch cfg.Embedder.Type {
	case "genai", "":
		cfg.Embedder.Type = "genai"
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "embedding-001"
		}
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	vs := &cfg.VectorStore
	if vs.Memory == nil {
		vs.Memory = &MemoryIndexConfig{}
	}
	if vs.Memory.File == "" {
		vs.Memory.File = "vectors.json"
	}
	if vs.Chromem == nil {
		vs.Chromem = &ChromemConfig{}
	}
	if vs.Chromem.Dir == "" {
		vs.Chromem.Dir = "chromem"
	}
	if vs.Chromem.Collection == "" {
		vs.Chromem.Collection = "multi_modal_rag"
	}
	if vs.Qdrant != nil {
		if vs.Qdrant.Collection == "" {
			vs.Qdrant.Collection = "multi_modal_rag"
		}
		if vs.Qdrant.TimeoutSecs == 0 {
			vs.Qdrant.TimeoutSecs = 15
		}
	}
	if vs.Milvus != nil {
		if vs.Milvus.Collection == "" {
			vs.Milvus.Collection = "multi_modal_rag"
		}
		if vs.Milvus.VectorField == "" {
			vs.Milvus.VectorField = "embedding"
		}
		if vs.Milvus.IDField == "" {
			vs.Milvus.IDField = "doc_id"
		}
		if vs.Milvus.MetricType == "" {
			vs.Milvus.MetricType = "COSINE"
		}
	}
	if cfg.DocStore.Type == "" {
		cfg.DocStore.Type = "memory"
	}
	if cfg.DocStore.Redis != nil && cfg.DocStore.Redis.KeyPrefix == "" {
		cfg.DocStore.Redis.KeyPrefix = "mmrag:doc:"
	}
}

func applyEnv(cfg *AppConfig) {
	if dir := os.Getenv("MMRAG_INDEX_DIR"); dir != "" {
		cfg.Index.Dir = dir
	}
}
