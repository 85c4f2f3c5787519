// Package config loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the legal RAG service. It is built once
// at startup and passed explicitly into each component's constructor.
type Config struct {
	// Paths
	DataDir       string `env:"DATA_DIR" envDefault:"data"`
	SourcePath    string `env:"SOURCE_PATH" envDefault:"USCODE-2011-title18.txt"`
	DocumentTitle string `env:"DOCUMENT_TITLE" envDefault:"18 U.S.C. - Crimes and Criminal Procedure"`

	// Chunking (characters)
	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"500"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"100"`
	MinChunkSize int `env:"MIN_CHUNK_SIZE" envDefault:"50"`

	// Embedding
	EmbeddingModel     string `env:"EMBEDDING_MODEL" envDefault:"all-minilm"`
	EmbeddingDimension int    `env:"EMBEDDING_DIMENSION" envDefault:"384"`
	EmbeddingBatchSize int    `env:"EMBEDDING_BATCH_SIZE" envDefault:"32"`

	// Vector store
	VectorStoreType       string `env:"VECTOR_STORE_TYPE" envDefault:"qdrant"` // qdrant or flat
	VectorStorePath       string `env:"VECTOR_STORE_PATH" envDefault:"data/vector_store"`
	VectorStoreCollection string `env:"VECTOR_STORE_COLLECTION" envDefault:"legal_documents"`
	QdrantGRPCURL         string `env:"QDRANT_GRPC_URL" envDefault:"localhost:6334"`

	// Retrieval
	RetrievalK          int     `env:"RETRIEVAL_K" envDefault:"5"`
	RetrievalKMax       int     `env:"RETRIEVAL_K_MAX" envDefault:"15"`
	SimilarityThreshold float32 `env:"SIMILARITY_THRESHOLD" envDefault:"0.3"`
	FusionConstant      float64 `env:"FUSION_CONSTANT" envDefault:"60"`
	HybridEnabled       bool    `env:"USE_HYBRID_RETRIEVAL" envDefault:"true"`
	MetadataFiltering   bool    `env:"USE_METADATA_FILTERING" envDefault:"true"`
	SparseMaxFeatures   int     `env:"SPARSE_MAX_FEATURES" envDefault:"10000"`

	// Query understanding
	QueryExpansion      bool `env:"QUERY_EXPANSION_ENABLED" envDefault:"true"`
	QueryClassification bool `env:"QUERY_CLASSIFICATION_ENABLED" envDefault:"true"`

	// Ollama
	OllamaURL      string  `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	LLMModel       string  `env:"LLM_MODEL" envDefault:"llama3.2"`
	LLMTemperature float32 `env:"LLM_TEMPERATURE" envDefault:"0.3"`
	LLMMaxTokens   int     `env:"LLM_MAX_TOKENS" envDefault:"2000"`

	// API server
	APIHost   string        `env:"API_HOST" envDefault:"127.0.0.1"`
	APIPort   int           `env:"API_PORT" envDefault:"8000"`
	APIKey    string        `env:"API_KEY"` // empty disables auth
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-in-production"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// Chat log
	ChatDBPath string `env:"CHAT_DB_PATH" envDefault:"data/chat_history.db"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from .env file (if present) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express.
func (c *Config) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be less than chunk size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("retrieval k must be positive, got %d", c.RetrievalK)
	}
	if c.RetrievalKMax < c.RetrievalK {
		return fmt.Errorf("retrieval k_max (%d) must be at least k (%d)", c.RetrievalKMax, c.RetrievalK)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.EmbeddingDimension)
	}
	switch c.VectorStoreType {
	case "qdrant", "flat":
	default:
		return fmt.Errorf("invalid vector store type %q (valid: qdrant, flat)", c.VectorStoreType)
	}
	return nil
}

// EnsureDirectories creates the data directories used by the stores.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.VectorStorePath, filepath.Dir(c.ChatDBPath)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
