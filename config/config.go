package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service. It is loaded once at
// process start and passed explicitly into component constructors; no
// component reads configuration through a global.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Index     IndexConfig     `mapstructure:"index"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	AppName  string `mapstructure:"app_name"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Listen         string        `mapstructure:"listen"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// ProvidersConfig lists external model providers.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig configures the OpenAI-compatible completion/embedding service.
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// ChunkingConfig parameterises document splitting.
type ChunkingConfig struct {
	ChunkSize        int      `mapstructure:"chunk_size"`
	ChunkOverlap     int      `mapstructure:"chunk_overlap"`
	MaxDocumentSize  int64    `mapstructure:"max_document_size_bytes"`
	SupportedFormats []string `mapstructure:"supported_formats"`
}

// RetrievalConfig parameterises similarity search.
type RetrievalConfig struct {
	TopK                int     `mapstructure:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// IndexConfig selects and configures the similarity index backend.
type IndexConfig struct {
	Driver   string         `mapstructure:"driver"` // memory, chroma, pgvector, bleve
	Chroma   ChromaConfig   `mapstructure:"chroma"`
	Pgvector PgvectorConfig `mapstructure:"pgvector"`
	Bleve    BleveConfig    `mapstructure:"bleve"`
}

// ChromaConfig points at a Chroma-style HTTP vector index.
type ChromaConfig struct {
	URL        string `mapstructure:"url"`
	Collection string `mapstructure:"collection"`
}

// PgvectorConfig points at a postgres database with the vector extension.
type PgvectorConfig struct {
	URL string `mapstructure:"url"`
}

// BleveConfig configures the lexical index backend.
type BleveConfig struct {
	Path string `mapstructure:"path"` // empty means in-memory
}

// CacheConfig configures the redis-backed memoization layer.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// StorageConfig holds relational storage used by the transport layer (users).
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig describes the auth database connection.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// Load reads configuration from the given file (or ./ragd.yaml when empty),
// layering RAGD_* environment variables over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ragd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ragd")
	}

	v.SetEnvPrefix("RAGD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that would otherwise surface deep in the pipeline.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be > 0")
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be > 0")
	}
	switch c.Index.Driver {
	case "memory", "chroma", "pgvector", "bleve":
	default:
		return fmt.Errorf("index.driver must be one of memory, chroma, pgvector, bleve (got %q)", c.Index.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.app_name", "ragd")
	v.SetDefault("general.log_level", "info")

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.completion_model", "gpt-4-turbo-preview")
	v.SetDefault("providers.openai.embedding_model", "text-embedding-3-large")
	v.SetDefault("providers.openai.temperature", 0.1)
	v.SetDefault("providers.openai.max_tokens", 2000)
	v.SetDefault("providers.openai.timeout", 60*time.Second)

	v.SetDefault("chunking.chunk_size", 1000)
	v.SetDefault("chunking.chunk_overlap", 200)
	v.SetDefault("chunking.max_document_size_bytes", int64(50*1024*1024))
	v.SetDefault("chunking.supported_formats", []string{".pdf", ".docx", ".txt", ".md", ".pptx"})

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.similarity_threshold", 0.7)

	v.SetDefault("index.driver", "memory")
	v.SetDefault("index.chroma.url", "http://localhost:8000")
	v.SetDefault("index.chroma.collection", "ragd")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.default_ttl", time.Hour)
}
