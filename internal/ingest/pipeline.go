package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexrag/lexrag/internal/embedder"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

// PipelineConfig holds configuration for the index build pipeline.
type PipelineConfig struct {
	// SourcePath is the extracted statute text file.
	SourcePath string

	// DocumentTitle is stamped into every chunk's metadata.
	DocumentTitle string

	// Chunker bounds chunk sizes.
	Chunker ChunkerConfig

	// EmbedBatchSize is the number of texts sent to the embedder per call.
	EmbedBatchSize int
}

// BuildStats summarizes an index build.
type BuildStats struct {
	// Pages is the number of non-empty source pages parsed.
	Pages int

	// Chunks is the number of chunks indexed.
	Chunks int

	// Skipped reports that the store already held an index and force was
	// not set, so nothing was built.
	Skipped bool

	// Duration is the wall time of the build.
	Duration time.Duration
}

// Pipeline drives the batch index build: parse pages, clean, chunk, extract
// metadata, embed, and store.
type Pipeline struct {
	config   PipelineConfig
	embedder embedder.Embedder
	store    *vectorstore.Store
	chunker  *Chunker
	logger   *slog.Logger
}

// NewPipeline creates a build pipeline.
func NewPipeline(config PipelineConfig, embed embedder.Embedder, store *vectorstore.Store, logger *slog.Logger) *Pipeline {
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		config:   config,
		embedder: embed,
		store:    store,
		chunker:  NewChunker(config.Chunker),
		logger:   logger,
	}
}

// BuildIndex builds the full index from the source document. When the store
// already holds chunks and force is false the build is skipped, so repeated
// invocations are idempotent. With force the build proceeds and appends to
// the existing corpus, which callers use after clearing the data directory.
func (p *Pipeline) BuildIndex(ctx context.Context, force bool) (*BuildStats, error) {
	start := time.Now()

	if existing := p.store.Size(ctx); existing > 0 && !force {
		p.logger.Info("index already built, skipping", "chunks", existing)
		return &BuildStats{Skipped: true, Duration: time.Since(start)}, nil
	}

	pages, err := ReadPages(p.config.SourcePath)
	if err != nil {
		return nil, err
	}
	p.logger.Info("parsed source document", "path", p.config.SourcePath, "pages", len(pages))

	chunks := p.buildChunks(pages)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("source document produced no chunks")
	}
	p.logger.Info("chunked document", "chunks", len(chunks))

	if err := p.embedAndStore(ctx, chunks); err != nil {
		return nil, err
	}

	stats := &BuildStats{
		Pages:    len(pages),
		Chunks:   len(chunks),
		Duration: time.Since(start),
	}
	p.logger.Info("index build complete",
		"pages", stats.Pages,
		"chunks", stats.Chunks,
		"duration", stats.Duration,
	)
	return stats, nil
}

// buildChunks cleans and chunks each page, carrying page position into the
// chunk metadata and enriching it from the chunk text.
func (p *Pipeline) buildChunks(pages []Page) []vectorstore.Chunk {
	var chunks []vectorstore.Chunk
	for _, page := range pages {
		cleaned := CleanText(page.Text)
		if cleaned == "" {
			continue
		}
		for _, text := range p.chunker.Chunk(cleaned) {
			meta := vectorstore.Metadata{
				Page:          page.Number,
				Section:       page.Section,
				Subsection:    page.Subsection,
				DocumentTitle: p.config.DocumentTitle,
			}
			chunks = append(chunks, vectorstore.Chunk{
				Text:     text,
				Metadata: ExtractMetadata(text, meta),
			})
		}
	}
	return chunks
}

// embedAndStore embeds chunk texts in batches and indexes each batch as it
// completes, so a mid-build failure leaves a consistent partial index.
func (p *Pipeline) embedAndStore(ctx context.Context, chunks []vectorstore.Chunk) error {
	for start := 0; start < len(chunks); start += p.config.EmbedBatchSize {
		end := min(start+p.config.EmbedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch starting at %d: %w", start, err)
		}
		if err := p.store.Add(ctx, batch, vectors); err != nil {
			return fmt.Errorf("indexing batch starting at %d: %w", start, err)
		}

		p.logger.Debug("embedded and indexed batch", "from", start, "count", len(batch))
	}
	return nil
}
