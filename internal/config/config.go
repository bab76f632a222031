// Package config loads typed, validated configuration for the service,
// layering compiled-in defaults under environment variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config is the complete, validated configuration for the service.
type Config struct {
	Server   ServerConfig   `koanf:"server"   validate:"required"`
	Database DatabaseConfig `koanf:"database" validate:"required"`
	Upload   UploadConfig   `koanf:"upload"   validate:"required"`
	Chunk    ChunkConfig    `koanf:"chunk"    validate:"required"`
	Embed    EmbedConfig    `koanf:"embed"    validate:"required"`
	Chat     ChatConfig     `koanf:"chat"     validate:"required"`
	Search   SearchConfig   `koanf:"search"   validate:"required"`
	Ingest   IngestConfig   `koanf:"ingest"   validate:"required"`
	Log      LogConfig      `koanf:"log"      validate:"required"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `koanf:"addr"          env:"SERVER_ADDR"`
	ReadTimeout  time.Duration `koanf:"read_timeout"  env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `koanf:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
}

// DatabaseConfig configures the Postgres/pgvector connection. An empty DSN
// selects the in-memory store.
type DatabaseConfig struct {
	DSN      string `koanf:"dsn"       env:"DB_DSN"`
	EmbedDim int    `koanf:"embed_dim" env:"EMBED_DIM" validate:"min=1"`
}

// UploadConfig describes accepted files. Only Dir is read by the server;
// internal/upload checks size and extension against its own MaxUploadBytes
// constant and extension table, so MaxBytes and AllowedExtensions do not
// change which uploads are accepted.
type UploadConfig struct {
	MaxBytes          int64    `koanf:"max_bytes"          env:"MAX_UPLOAD_BYTES" validate:"min=1"`
	AllowedExtensions []string `koanf:"allowed_extensions" env:"ALLOWED_EXTENSIONS"`
	Dir               string   `koanf:"dir"                env:"UPLOAD_DIR"`
}

// ChunkConfig configures the text splitter.
type ChunkConfig struct {
	Size    int `koanf:"size"    env:"CHUNK_SIZE"    validate:"min=1"`
	Overlap int `koanf:"overlap" env:"CHUNK_OVERLAP" validate:"min=0"`
}

// EmbedConfig configures the embedding provider.
type EmbedConfig struct {
	Provider  string `koanf:"provider"   env:"EMBED_PROVIDER" validate:"oneof=openai local"`
	Model     string `koanf:"model"      env:"EMBED_MODEL"`
	APIKey    string `koanf:"api_key"    env:"EMBED_API_KEY"`
	BatchMax  int    `koanf:"batch_max"  env:"EMBED_BATCH_MAX" validate:"min=1"`
	CacheSize int    `koanf:"cache_size" env:"EMBED_CACHE_SIZE"`
}

// ChatConfig configures the completion provider. Provider is validated but
// not read: the server always builds the OpenAI chat client.
type ChatConfig struct {
	Provider string `koanf:"provider" env:"CHAT_PROVIDER" validate:"oneof=openai local"`
	Model    string `koanf:"model"    env:"CHAT_MODEL"`
	APIKey   string `koanf:"api_key"  env:"CHAT_API_KEY"`
}

// SearchConfig holds default ranking parameters. These values are loaded
// and validated but not read by the server: the HTTP search handlers,
// internal/search and internal/rag use their own compiled-in defaults
// (top_k 5, RAG top_k 8, 6000 context characters, weights 0.7/0.3).
type SearchConfig struct {
	TopKDefault     int     `koanf:"top_k_default"     env:"TOP_K_DEFAULT"     validate:"min=1"`
	RAGTopKDefault  int     `koanf:"rag_top_k_default" env:"RAG_TOP_K_DEFAULT" validate:"min=1"`
	MaxContextChars int     `koanf:"max_context_chars" env:"MAX_CONTEXT_CHARS" validate:"min=1"`
	SemanticWeight  float64 `koanf:"semantic_weight"   env:"SEMANTIC_WEIGHT"`
	KeywordWeight   float64 `koanf:"keyword_weight"    env:"KEYWORD_WEIGHT"`
}

// IngestConfig configures the background worker pool.
type IngestConfig struct {
	Workers   int `koanf:"workers"    env:"INGEST_WORKERS"    validate:"min=1"`
	QueueSize int `koanf:"queue_size" env:"INGEST_QUEUE_SIZE" validate:"min=1"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `koanf:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"  env:"LOG_JSON"`
}

// Default returns the compiled-in configuration baseline.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{EmbedDim: 1536},
		Upload: UploadConfig{
			MaxBytes:          10 * 1024 * 1024,
			AllowedExtensions: []string{"txt", "pdf"},
			Dir:               "./data/uploads",
		},
		Chunk: ChunkConfig{Size: 1000, Overlap: 200},
		Embed: EmbedConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchMax:  100,
			CacheSize: 1024,
		},
		Chat: ChatConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Search: SearchConfig{
			TopKDefault:     5,
			RAGTopKDefault:  8,
			MaxContextChars: 6000,
			SemanticWeight:  0.7,
			KeywordWeight:   0.3,
		},
		Ingest: IngestConfig{Workers: 4, QueueSize: 256},
		Log:    LogConfig{Level: "info", JSON: false},
	}
}

// Load builds a Config from compiled-in defaults overridden by the
// environment variables named on each field's `env` tag, then validates it.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load default config: %w", err)
	}

	envToPath := envToConfigPath()
	envProvider := env.Provider(".", env.Opt{
		Prefix: "",
		TransformFunc: func(key, value string) (string, any) {
			if path, ok := envToPath[key]; ok {
				return path, value
			}
			return "", value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
