package cmd

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serisow/lesocle-kb/config"
	"github.com/serisow/lesocle-kb/db"
	"github.com/serisow/lesocle-kb/services/file_store"
	"github.com/serisow/lesocle-kb/services/llm_service"
	"github.com/serisow/lesocle-kb/services/rag_service"
	"github.com/serisow/lesocle-kb/services/vector_index"
)

// application holds the wired knowledge-base components.
type application struct {
	pool      *pgxpool.Pool
	store     *rag_service.VectorStore
	uploads   *file_store.Store
	processor *rag_service.Processor
	pipeline  *rag_service.QueryPipeline
	manager   *rag_service.Manager
}

// newApplication probes the embedding service first: if it cannot produce a
// vector nothing else is started.
func newApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	embedder := rag_service.NewOpenAIEmbedder(rag_service.EmbedderConfig{
		BaseURL:     cfg.EmbeddingAPIBase,
		APIKey:      cfg.EmbeddingAPIKey,
		Model:       cfg.EmbeddingModel,
		BatchSize:   cfg.EmbeddingBatchSize,
		Concurrency: cfg.EmbeddingConcurrency,
		Timeout:     cfg.RequestTimeout,
	}, logger)

	dimension, err := rag_service.ProbeDimension(ctx, embedder)
	if err != nil {
		return nil, err
	}
	logger.Info("Embedding service ready",
		slog.String("model", cfg.EmbeddingModel),
		slog.Int("dimension", dimension))

	app := &application{}

	var backend vector_index.Backend
	if cfg.DatabaseURL != "" {
		app.pool, err = db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		backend = vector_index.NewPGVectorBackend(app.pool, logger)
	} else {
		backend = vector_index.NewSQLiteBackend(cfg.PersistDirectory, logger)
	}

	app.store, err = rag_service.NewVectorStore(ctx, backend, embedder, cfg.CollectionName, dimension, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.uploads, err = file_store.New(cfg.UploadDirectory, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	chat := llm_service.NewOpenAIService(llm_service.OpenAIConfig{
		BaseURL:     cfg.LLMAPIBase,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		Timeout:     cfg.RequestTimeout,
	}, logger)

	app.processor = rag_service.NewProcessor(app.uploads, app.store, rag_service.NewTextSplitter(), logger)
	app.pipeline = rag_service.NewQueryPipeline(app.store, chat, logger)
	app.manager = rag_service.NewManager(app.store, app.uploads, logger)

	logger.Info("Knowledge base ready",
		slog.String("persist_directory", app.store.Location()),
		slog.String("upload_directory", app.uploads.Dir()),
		slog.String("collection", cfg.CollectionName))

	return app, nil
}

func (a *application) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
