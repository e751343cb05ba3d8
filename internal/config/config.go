// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.coursemate/config.yaml)
//  3. Default values
//
// Categories:
//   - AI: model selection, temperature, max tokens, embedder
//   - Chunking: window size and overlap for document splitting
//   - Index: store backend, top-K, similarity floor, PostgreSQL connection
//   - Generation: tool-calling vs. always-search strategy
//   - Session: conversation history depth
//
// Validation is comprehensive and fail-fast: Load returns an error before
// any component is constructed with a bad value.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Generation modes for Config.GenerationMode. The mode is pinned at startup;
// the turn controller never renegotiates it per request.
const (
	// ModeToolCalling lets the backend decide when to invoke the retrieval
	// tool. Use only with backends verified to honor tool-call directives.
	ModeToolCalling = "tool"

	// ModeAlwaysSearch retrieves unconditionally before every completion and
	// injects the results into the prompt. Fallback for backends that accept
	// tool schemas but never invoke them.
	ModeAlwaysSearch = "always-search"
)

// Store backends for Config.StoreBackend.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

const (
	// DefaultChunkSize is the default chunk window size in bytes.
	DefaultChunkSize = 800

	// DefaultChunkOverlap is the default overlap between consecutive chunks.
	DefaultChunkOverlap = 100

	// DefaultMaxResults is the default top-K for content search.
	DefaultMaxResults = 5

	// DefaultMinSimilarity is the default similarity floor for fuzzy course
	// name resolution. A catalog match below this is reported as not found.
	DefaultMinSimilarity = 0.30

	// DefaultMaxHistory is the default number of retained exchange pairs
	// per session.
	DefaultMaxHistory = 2

	// DefaultEmbedderModel is the default Gemini embedding model.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension is the vector dimension requested from the
	// embedder and used by the pgvector schema.
	DefaultEmbedderDimension = 768
)

// Config stores application configuration.
type Config struct {
	// AI model configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	APIKey      string  `mapstructure:"api_key" json:"-"` // GEMINI_API_KEY, never serialized

	// Embedder configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Chunking configuration
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Index configuration
	StoreBackend  string  `mapstructure:"store_backend" json:"store_backend"`
	MaxResults    int     `mapstructure:"max_results" json:"max_results"`
	MinSimilarity float32 `mapstructure:"min_similarity" json:"min_similarity"`

	// Generation configuration
	GenerationMode string `mapstructure:"generation_mode" json:"generation_mode"`

	// Session configuration
	MaxHistory int `mapstructure:"max_history" json:"max_history"`

	// PostgreSQL connection (store_backend = "postgres" only)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".coursemate"))
	}

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults. Low temperature keeps answers close to the retrieved
	// material; the original deployment used 0.1 for the same reason.
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("temperature", 0.1)
	v.SetDefault("max_tokens", 800)

	// Embedder defaults
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	// Chunking defaults
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)

	// Index defaults
	v.SetDefault("store_backend", StoreMemory)
	v.SetDefault("max_results", DefaultMaxResults)
	v.SetDefault("min_similarity", DefaultMinSimilarity)

	// Generation defaults: always-search, the conservative choice for
	// backends whose tool-call support has not been probed.
	v.SetDefault("generation_mode", ModeAlwaysSearch)

	// Session defaults
	v.SetDefault("max_history", DefaultMaxHistory)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "coursemate")
	v.SetDefault("postgres_password", "coursemate_dev_password")
	v.SetDefault("postgres_db_name", "coursemate")
	v.SetDefault("postgres_ssl_mode", "disable")

	// HTTP defaults
	v.SetDefault("http_addr", "127.0.0.1:8000")
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("api_key", "GEMINI_API_KEY")
	mustBind("model_name", "COURSEMATE_MODEL_NAME")
	mustBind("generation_mode", "COURSEMATE_GENERATION_MODE")
	mustBind("store_backend", "COURSEMATE_STORE_BACKEND")
	mustBind("http_addr", "COURSEMATE_HTTP_ADDR")
	mustBind("postgres_host", "COURSEMATE_POSTGRES_HOST")
	mustBind("postgres_password", "COURSEMATE_POSTGRES_PASSWORD")
}

// DSN returns the PostgreSQL connection string for the configured database.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}
