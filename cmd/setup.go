package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/coursemate/coursemate/internal/config"
	"github.com/coursemate/coursemate/internal/course"
	"github.com/coursemate/coursemate/internal/gemini"
	"github.com/coursemate/coursemate/internal/generator"
	"github.com/coursemate/coursemate/internal/index"
	"github.com/coursemate/coursemate/internal/log"
	"github.com/coursemate/coursemate/internal/rag"
	"github.com/coursemate/coursemate/internal/session"
	"github.com/coursemate/coursemate/internal/tool"
)

// Backend rate limiting: the free Gemini tier allows a handful of requests
// per second; staying under it avoids burning the retry on 429s.
const (
	backendRequestInterval = 250 * time.Millisecond
	backendBurst           = 4
)

// app bundles the wired system with its cleanup.
type app struct {
	system *rag.System
	logger log.Logger
	close  func()
}

// setup wires the full system from configuration: Gemini client, embedder,
// collections, index, chunker, sessions, tool, and the generation strategy.
func setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*app, error) {
	client, err := gemini.NewClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	embedder, err := gemini.NewEmbedder(client, cfg.EmbedderModel, cfg.EmbedderDimension)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	backend, err := gemini.NewBackend(client, cfg.ModelName)
	if err != nil {
		return nil, fmt.Errorf("creating backend: %w", err)
	}

	catalog, content, cleanup, err := openCollections(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	courseIndex, err := index.New(index.Config{
		Catalog:       catalog,
		Content:       content,
		Embedder:      embedder,
		Logger:        logger,
		TopK:          cfg.MaxResults,
		MinSimilarity: cfg.MinSimilarity,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating course index: %w", err)
	}

	chunker, err := course.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	sessions, err := session.NewStore(cfg.MaxHistory)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	searchTool, err := tool.NewCourseSearch(courseIndex, logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating search tool: %w", err)
	}

	genCfg := generator.Config{
		Backend:     backend,
		Tool:        searchTool,
		Logger:      logger,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Limiter:     rate.NewLimiter(rate.Every(backendRequestInterval), backendBurst),
	}

	var gen generator.Generator
	switch cfg.GenerationMode {
	case config.ModeToolCalling:
		gen, err = generator.NewToolCalling(genCfg)
	default:
		gen, err = generator.NewAlwaysSearch(genCfg)
	}
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	system, err := rag.New(rag.Config{
		Index:     courseIndex,
		Chunker:   chunker,
		Sessions:  sessions,
		Generator: gen,
		Logger:    logger,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating rag system: %w", err)
	}

	logger.Info("system ready",
		"model", cfg.ModelName,
		"mode", cfg.GenerationMode,
		"store", cfg.StoreBackend)

	return &app{system: system, logger: logger, close: cleanup}, nil
}

// openCollections opens the catalog and content collections for the
// configured store backend.
func openCollections(ctx context.Context, cfg *config.Config, logger log.Logger) (catalog, content index.Collection, cleanup func(), err error) {
	if cfg.StoreBackend != config.StorePostgres {
		return index.NewMemory(), index.NewMemory(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("pinging postgres: %w", err)
	}

	pgCatalog, err := index.NewPostgres(pool, "course_catalog", cfg.EmbedderDimension)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	pgContent, err := index.NewPostgres(pool, "course_content", cfg.EmbedderDimension)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	if err := pgCatalog.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	if err := pgContent.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	logger.Info("postgres store ready", "host", cfg.PostgresHost, "db", cfg.PostgresDBName)
	return pgCatalog, pgContent, pool.Close, nil
}
