package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Sentinel errors for configuration validation.
// Wrap with context using fmt.Errorf("%w: details", ErrXxx); check with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedder indicates an invalid embedder model or dimension.
	ErrInvalidEmbedder = errors.New("invalid embedder configuration")

	// ErrInvalidChunking indicates invalid chunk window/overlap sizing.
	// This is fatal at startup: a chunker cannot be built from it.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidMaxResults indicates the search top-K is out of range.
	ErrInvalidMaxResults = errors.New("invalid max results")

	// ErrInvalidSimilarity indicates the similarity floor is out of range.
	ErrInvalidSimilarity = errors.New("invalid similarity floor")

	// ErrInvalidGenerationMode indicates an unknown generation mode.
	ErrInvalidGenerationMode = errors.New("invalid generation mode")

	// ErrInvalidStoreBackend indicates an unknown store backend.
	ErrInvalidStoreBackend = errors.New("invalid store backend")

	// ErrInvalidMaxHistory indicates the history depth is out of range.
	ErrInvalidMaxHistory = errors.New("invalid max history")

	// ErrInvalidPostgres indicates invalid PostgreSQL connection settings.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key is required for all embedding and completion calls.
	if c.APIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range per the Gemini API documentation.
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedder)
	}
	if c.EmbedderDimension < 1 {
		return fmt.Errorf("%w: embedder_dimension must be positive, got %d", ErrInvalidEmbedder, c.EmbedderDimension)
	}

	// Chunk sizing. Overlap must be strictly smaller than the window or
	// chunking cannot make forward progress.
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap cannot be negative, got %d", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.MaxResults < 1 || c.MaxResults > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidMaxResults, c.MaxResults)
	}

	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f", ErrInvalidSimilarity, c.MinSimilarity)
	}

	if c.GenerationMode != ModeToolCalling && c.GenerationMode != ModeAlwaysSearch {
		return fmt.Errorf("%w: %q is not valid, must be %q or %q",
			ErrInvalidGenerationMode, c.GenerationMode, ModeToolCalling, ModeAlwaysSearch)
	}

	if c.StoreBackend != StoreMemory && c.StoreBackend != StorePostgres {
		return fmt.Errorf("%w: %q is not valid, must be %q or %q",
			ErrInvalidStoreBackend, c.StoreBackend, StoreMemory, StorePostgres)
	}

	if c.MaxHistory < 1 || c.MaxHistory > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidMaxHistory, c.MaxHistory)
	}

	// PostgreSQL settings only matter for the postgres backend.
	if c.StoreBackend == StorePostgres {
		if c.PostgresHost == "" {
			return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgres)
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidPostgres, c.PostgresPort)
		}
		if c.PostgresDBName == "" {
			return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgres)
		}
		if c.PostgresPassword == "coursemate_dev_password" {
			slog.Warn("using default development password for PostgreSQL",
				"warning", "change postgres_password for production deployments")
		}

		// Modern SSL modes only; allow/prefer are deprecated.
		validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
		if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
			return fmt.Errorf("%w: ssl mode %q is not valid, must be one of: %v",
				ErrInvalidPostgres, c.PostgresSSLMode, validSSLModes)
		}
	}

	return nil
}
