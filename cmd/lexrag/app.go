package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lexrag/lexrag/internal/config"
	"github.com/lexrag/lexrag/internal/embedder"
	"github.com/lexrag/lexrag/internal/generate"
	"github.com/lexrag/lexrag/internal/ingest"
	"github.com/lexrag/lexrag/internal/llm"
	"github.com/lexrag/lexrag/internal/memory"
	"github.com/lexrag/lexrag/internal/query"
	"github.com/lexrag/lexrag/internal/retriever"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

// app wires the components every command needs. Construction order matters:
// the retriever builds its sparse index from the store's metadata, so the
// store opens first.
type app struct {
	store     *vectorstore.Store
	embedder  embedder.Embedder
	retriever *retriever.Retriever
	pipeline  *ingest.Pipeline
	processor *query.Processor
	generator *generate.Generator
	memory    *memory.Store
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := slog.Default()

	store, err := vectorstore.Open(ctx, vectorstore.Options{
		Type:       cfg.VectorStoreType,
		Path:       cfg.VectorStorePath,
		Collection: cfg.VectorStoreCollection,
		QdrantURL:  cfg.QdrantGRPCURL,
		Dimension:  cfg.EmbeddingDimension,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	embed := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:   cfg.OllamaURL,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
	})

	ret := retriever.New(embed, store, retriever.Options{
		K:                   cfg.RetrievalK,
		KMax:                cfg.RetrievalKMax,
		SimilarityThreshold: cfg.SimilarityThreshold,
		FusionConstant:      cfg.FusionConstant,
		Hybrid:              cfg.HybridEnabled,
		MetadataFiltering:   cfg.MetadataFiltering,
		SparseMaxFeatures:   cfg.SparseMaxFeatures,
		Logger:              logger,
	})

	pipeline := ingest.NewPipeline(ingest.PipelineConfig{
		SourcePath:    cfg.SourcePath,
		DocumentTitle: cfg.DocumentTitle,
		Chunker: ingest.ChunkerConfig{
			Size:    cfg.ChunkSize,
			Overlap: cfg.ChunkOverlap,
			MinSize: cfg.MinChunkSize,
		},
		EmbedBatchSize: cfg.EmbeddingBatchSize,
	}, embed, store, logger)

	generator := generate.NewGenerator(
		llm.NewOllamaClient(llm.WithBaseURL(cfg.OllamaURL), llm.WithModel(cfg.LLMModel)),
		generate.Options{
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
			Logger:      logger,
		},
	)

	return &app{
		store:     store,
		embedder:  embed,
		retriever: ret,
		pipeline:  pipeline,
		processor: query.NewProcessor(query.Options{
			Expansion:      cfg.QueryExpansion,
			Classification: cfg.QueryClassification,
		}),
		generator: generator,
		memory:    memory.DefaultStore(),
	}, nil
}

func (a *app) Close() {
	a.memory.Close()
	if err := a.store.Close(); err != nil {
		slog.Error("closing vector store failed", "error", err)
	}
}
